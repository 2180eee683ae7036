package queue

import (
    "context"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"

    "github.com/iliyamo/auth-service/internal/notify"
)

const maxBackoff = 30 * time.Second

// errMalformed marks a message that can never be delivered.
var errMalformed = errors.New("malformed mail message")

// Consumer drains the mail queue into a delivering transport (normally
// SMTP).  A failed delivery is requeued once; a second failure, or a body
// that does not decode, goes to the dead-letter queue.
type Consumer struct {
    url     string
    queue   string
    deliver notify.Transport
    log     zerolog.Logger
}

func NewConsumer(url, queue string, deliver notify.Transport, log zerolog.Logger) *Consumer {
    return &Consumer{
        url:     url,
        queue:   queue,
        deliver: deliver,
        log:     log.With().Str("component", "mail-consumer").Logger(),
    }
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  It only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < maxBackoff {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn().Err(err).Msg("consume loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn().Err(err).Msg("set QoS failed")
    }
    if err := declareMailQueue(ch, c.queue); err != nil {
        return err
    }
    msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            c.process(ctx, d)
        }
    }
}

// process settles one delivery.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
    err := c.handle(ctx, d.Body)
    switch {
    case err == nil:
        if aerr := d.Ack(false); aerr != nil {
            c.log.Warn().Err(aerr).Msg("ack failed")
        }
        return
    case errors.Is(err, errMalformed) || d.Redelivered:
        c.log.Error().Err(err).Str("dead_letter_queue", deadLetterQueue(c.queue)).Msg("mail dead-lettered")
        err = d.Nack(false, false)
    default:
        c.log.Warn().Err(err).Msg("mail delivery failed, requeued")
        err = d.Nack(false, true)
    }
    if err != nil {
        c.log.Warn().Err(err).Msg("nack failed")
    }
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
    msg, err := decode(body)
    if err != nil {
        return fmt.Errorf("%w: %v", errMalformed, err)
    }
    if err := c.deliver.Send(ctx, msg.Mail); err != nil {
        return fmt.Errorf("deliver to %s: %w", msg.Mail.To, err)
    }
    c.log.Info().Str("to", msg.Mail.To).Dur("queued_for", time.Since(msg.EnqueuedAt)).Msg("mail relayed")
    return nil
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
