package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/mail"
	"github.com/hugh/go-crm/pkg/crypto"
	"gorm.io/gorm"
)

type Handler struct {
	db        *gorm.DB
	logger    *slog.Logger
	encryptor *crypto.Encryptor
	sender    mail.Sender
	links     crm.Links
}

func NewHandler(db *gorm.DB, logger *slog.Logger, encryptor *crypto.Encryptor, sender mail.Sender, links crm.Links) *Handler {
	return &Handler{
		db:        db,
		logger:    logger,
		encryptor: encryptor,
		sender:    sender,
		links:     links,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSendEmail, h.HandleSendEmail)
	mux.HandleFunc(TypeUnassignedLeadDigest, h.HandleUnassignedLeadDigest)
}

// HandleSendEmail delivers a queued message. Payloads that cannot be opened
// are dropped without retry; transport errors are retried by asynq.
func (h *Handler) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var msg mail.Message
	if err := h.encryptor.OpenJSON(t.Payload(), &msg); err != nil {
		return fmt.Errorf("open payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		h.logger.Warn("email delivery failed, will retry",
			"subject", msg.Subject,
			"recipients", len(msg.To),
			"error", err,
		)
		return err
	}

	h.logger.Info("email delivered", "subject", msg.Subject, "recipients", len(msg.To))
	return nil
}

type unassignedCount struct {
	OrganisationID uuid.UUID
	Count          int64
}

// HandleUnassignedLeadDigest emails each organisor whose organisation has
// leads without an agent.
func (h *Handler) HandleUnassignedLeadDigest(ctx context.Context, t *asynq.Task) error {
	var counts []unassignedCount
	if err := h.db.WithContext(ctx).Model(&models.Lead{}).
		Select("organisation_id, COUNT(*) AS count").
		Where("agent_id IS NULL").
		Group("organisation_id").
		Scan(&counts).Error; err != nil {
		return fmt.Errorf("counting unassigned leads: %w", err)
	}

	if len(counts) == 0 {
		h.logger.Debug("no unassigned leads")
		return nil
	}

	orgIDs := make([]uuid.UUID, 0, len(counts))
	for _, c := range counts {
		orgIDs = append(orgIDs, c.OrganisationID)
	}

	var profiles []models.UserProfile
	if err := h.db.WithContext(ctx).
		Preload("User").
		Where("id IN ?", orgIDs).
		Find(&profiles).Error; err != nil {
		return fmt.Errorf("loading organisations: %w", err)
	}

	owners := make(map[uuid.UUID]*models.User, len(profiles))
	for i := range profiles {
		owners[profiles[i].ID] = profiles[i].User
	}

	sent, failed := 0, 0
	for _, c := range counts {
		owner := owners[c.OrganisationID]
		if owner == nil || !owner.IsOrganisor || !owner.IsActive {
			continue
		}

		msg := mail.UnassignedLeadsMessage(owner, c.Count, h.links.Leads())
		if err := h.sender.Send(ctx, msg); err != nil {
			failed++
			h.logger.Error("failed to send digest",
				"organisation_id", c.OrganisationID,
				"error", err,
			)
			continue
		}
		sent++
	}

	h.logger.Info("unassigned lead digest finished", "sent", sent, "failed", failed)
	return nil
}
