// Package mail builds and delivers the CRM's outbound email.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var ErrNoRecipients = errors.New("message has no recipients")

type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	for _, addr := range m.To {
		if strings.TrimSpace(addr) == "" || strings.ContainsAny(addr, "\r\n") {
			return fmt.Errorf("invalid recipient %q", addr)
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("subject must be a single line")
	}
	return nil
}

// Sender performs the actual delivery of a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher hands a message off for delivery, either inline or through the
// job queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// DirectDispatcher delivers inline through a Sender. It is used when no
// queue is configured.
type DirectDispatcher struct {
	sender Sender
	from   string
}

func NewDirectDispatcher(sender Sender, from string) *DirectDispatcher {
	return &DirectDispatcher{sender: sender, from: from}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = d.from
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return d.sender.Send(ctx, msg)
}

// Notify dispatches msg and logs, rather than returns, any failure. Mail
// problems never fail the operation that triggered them.
func Notify(ctx context.Context, d Dispatcher, logger *slog.Logger, msg Message) {
	start := time.Now()
	if err := d.Dispatch(ctx, msg); err != nil {
		logger.Error("failed to dispatch email",
			"subject", msg.Subject,
			"recipients", len(msg.To),
			"error", err,
		)
		return
	}
	logger.Debug("email dispatched",
		"subject", msg.Subject,
		"recipients", len(msg.To),
		"duration", time.Since(start),
	)
}
