package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUnknownKind is returned when no message is registered for a kind.
var ErrUnknownKind = errors.New("unknown notification kind")

// Mail is one outbound message as handed to a Transport.
type Mail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// Transport delivers a rendered mail.  Implementations must report every
// failure; the dispatcher never retries.
type Transport interface {
	Send(ctx context.Context, m Mail) error
}

// Dispatcher selects a template by kind, renders it and submits exactly one
// mail to the transport per call.
type Dispatcher struct {
	from      string
	transport Transport
	log       zerolog.Logger

	subject *Renderer
	body    *Renderer

	mu       sync.RWMutex
	registry map[Kind]Message
}

// NewDispatcher wires a dispatcher with the default message registry.
func NewDispatcher(from string, t Transport, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		from:      from,
		transport: t,
		log:       log.With().Str("component", "notify").Logger(),
		subject:   NewRenderer(nil, nil),
		body:      NewRenderer(nil, html.EscapeString),
		registry:  DefaultMessages(),
	}
}

// Register adds or replaces the message for kind.
func (d *Dispatcher) Register(kind Kind, msg Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registry[kind] = msg
}

// Dispatch renders the message registered for kind against data and sends
// it to recipient.  data is not modified.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, recipient string, data Context) error {
	d.mu.RLock()
	msg, ok := d.registry[kind]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	view := make(Context, len(data)+1)
	for k, v := range data {
		view[k] = v
	}
	subject := d.subject.Render(msg.Subject, view)
	view["subject"] = subject
	body := d.body.Render(msg.Body, view)

	m := Mail{
		From:    d.from,
		To:      recipient,
		Subject: subject,
		HTML:    body,
		Text:    HTMLToText(body),
	}
	if err := d.transport.Send(ctx, m); err != nil {
		d.log.Error().Err(err).Str("kind", string(kind)).Str("to", recipient).Msg("send failed")
		return fmt.Errorf("send %s mail: %w", kind, err)
	}
	d.log.Debug().Str("kind", string(kind)).Str("to", recipient).Msg("mail sent")
	return nil
}
