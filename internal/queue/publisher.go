package queue

import (
    "context"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"

    "github.com/iliyamo/auth-service/internal/notify"
)

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
    topology
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher is a notify.Transport that enqueues mail instead of sending it.
// Each Send opens its own connection, so the publisher holds no broker
// state between requests.
type Publisher struct {
    queue string
    log   zerolog.Logger
    open  func() (channel, func(), error)
}

// NewPublisher returns a publisher for the given broker URL and queue.
func NewPublisher(url, queue string, log zerolog.Logger) *Publisher {
    return &Publisher{
        queue: queue,
        log:   log.With().Str("component", "mail-publisher").Logger(),
        open:  func() (channel, func(), error) { return dial(url) },
    }
}

func dial(url string) (channel, func(), error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, fmt.Errorf("channel open: %w", err)
    }
    return ch, func() { _ = ch.Close(); _ = conn.Close() }, nil
}

// Send implements notify.Transport.  A nil error means the broker accepted
// the message, not that it was delivered.
func (p *Publisher) Send(ctx context.Context, m notify.Mail) error {
    ch, closeFn, err := p.open()
    if err != nil {
        p.log.Error().Err(err).Msg("rabbitmq: connect failed")
        return err
    }
    defer closeFn()

    // Idempotent. Durable so messages survive broker restarts.
    if err := declareMailQueue(ch, p.queue); err != nil {
        p.log.Error().Err(err).Msg("rabbitmq: queue declare failed")
        return err
    }

    now := time.Now().UTC()
    body, err := encode(m, now)
    if err != nil {
        return fmt.Errorf("marshal mail: %w", err)
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    now,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
        p.log.Error().Err(err).Msg("rabbitmq: publish failed")
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}
