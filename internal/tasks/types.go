package tasks

import (
	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/mail"
	"github.com/hugh/go-crm/pkg/crypto"
	"github.com/hugh/go-crm/pkg/queue"
)

// Task type names
const (
	TypeSendEmail            = "email:send"
	TypeUnassignedLeadDigest = "digest:unassigned_leads"
)

const emailMaxRetry = 5

// NewSendEmailTask seals msg so the queue only ever stores ciphertext.
func NewSendEmailTask(encryptor *crypto.Encryptor, msg mail.Message) (*asynq.Task, error) {
	data, err := encryptor.SealJSON(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSendEmail, data,
		asynq.MaxRetry(emailMaxRetry),
		asynq.Queue(queue.Critical),
	), nil
}

// NewUnassignedLeadDigestTask has no payload; the handler checks every
// organisation.
func NewUnassignedLeadDigestTask() *asynq.Task {
	return asynq.NewTask(TypeUnassignedLeadDigest, nil, asynq.Queue(queue.Low))
}
