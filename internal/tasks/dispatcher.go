package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/mail"
	"github.com/hugh/go-crm/pkg/crypto"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EmailDispatcher queues mail for the worker instead of sending inline.
type EmailDispatcher struct {
	client    Enqueuer
	encryptor *crypto.Encryptor
	from      string
}

func NewEmailDispatcher(client Enqueuer, encryptor *crypto.Encryptor, from string) *EmailDispatcher {
	return &EmailDispatcher{
		client:    client,
		encryptor: encryptor,
		from:      from,
	}
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, msg mail.Message) error {
	if msg.From == "" {
		msg.From = d.from
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	task, err := NewSendEmailTask(d.encryptor, msg)
	if err != nil {
		return fmt.Errorf("building email task: %w", err)
	}

	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueueing email: %w", err)
	}
	return nil
}

var _ mail.Dispatcher = (*EmailDispatcher)(nil)
