// Package queue moves outbound mail through RabbitMQ.  The web process
// publishes to a durable queue and a consumer relays each message to SMTP,
// so slow mail servers never hold up a request.
package queue

import (
    "encoding/json"
    "fmt"
    "time"

    "github.com/iliyamo/auth-service/internal/notify"
)

// MailMessage is the JSON body of one queued mail.
type MailMessage struct {
    Mail       notify.Mail `json:"mail"`
    EnqueuedAt time.Time   `json:"enqueued_at"`
}

func encode(m notify.Mail, now time.Time) ([]byte, error) {
    return json.Marshal(MailMessage{Mail: m, EnqueuedAt: now.UTC()})
}

func decode(body []byte) (MailMessage, error) {
    var msg MailMessage
    if err := json.Unmarshal(body, &msg); err != nil {
        return MailMessage{}, fmt.Errorf("unmarshal: %w", err)
    }
    if msg.Mail.To == "" {
        return MailMessage{}, fmt.Errorf("message has no recipient")
    }
    return msg, nil
}
