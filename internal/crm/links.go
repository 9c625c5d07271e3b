package crm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/auth"
)

// Links builds absolute URLs for emails.
type Links struct {
	BaseURL string
}

func (l Links) Leads() string {
	return l.BaseURL + "/leads/"
}

func (l Links) Lead(id uuid.UUID) string {
	return fmt.Sprintf("%s/leads/%s", l.BaseURL, id)
}

func (l Links) Invitation(userID uuid.UUID, token string) string {
	return fmt.Sprintf("%s/invitations/%s/%s", l.BaseURL, auth.EncodeUID(userID), token)
}

func (l Links) VerifyEmail(userID uuid.UUID, token string) string {
	return fmt.Sprintf("%s/verify-email/confirm/%s/%s", l.BaseURL, auth.EncodeUID(userID), token)
}
