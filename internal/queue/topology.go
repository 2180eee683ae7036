package queue

import (
    "fmt"

    amqp "github.com/rabbitmq/amqp091-go"
)

// deadLetterExchange receives mail the consumer gave up on.
const deadLetterExchange = "mail.dlx"

// topology is the subset of *amqp.Channel needed to declare the queues.
type topology interface {
    ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
    QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// deadLetterQueue names the parking queue for a work queue.
func deadLetterQueue(queue string) string { return queue + ".dead" }

// declareMailQueue declares the durable work queue and its dead-letter
// queue.  Publisher and consumer both call it and must pass identical
// arguments, otherwise the broker rejects the second declare with
// PRECONDITION_FAILED.
func declareMailQueue(ch topology, queue string) error {
    dlq := deadLetterQueue(queue)
    if err := ch.ExchangeDeclare(deadLetterExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
        return fmt.Errorf("dead-letter queue declare: %w", err)
    }
    if err := ch.QueueBind(dlq, dlq, deadLetterExchange, false, nil); err != nil {
        return fmt.Errorf("dead-letter queue bind: %w", err)
    }
    args := amqp.Table{
        "x-dead-letter-exchange":    deadLetterExchange,
        "x-dead-letter-routing-key": dlq,
    }
    if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    return nil
}
