package mail

import (
	"fmt"

	"github.com/hugh/go-crm/internal/database/models"
)

const (
	SubjectVerifyEmail     = "Verify Email"
	SubjectAgentInvite     = "You are invited to be an agent"
	SubjectLeadCreated     = "A new Lead has been created"
	SubjectUnassignedLeads = "Leads are waiting for an agent"
)

func VerifyEmailMessage(user *models.User, link string) Message {
	return Message{
		To:      []string{user.Email},
		Subject: SubjectVerifyEmail,
		Body: fmt.Sprintf("Hi %s,\n\nPlease confirm your email address by following the link below:\n\n%s\n",
			user.FullName(), link),
	}
}

func InviteMessage(agent *models.User, link string) Message {
	return Message{
		To:      []string{agent.Email},
		Subject: SubjectAgentInvite,
		Body: fmt.Sprintf("Hi %s,\n\nYou were invited to start working as an agent on Go CRM.\n"+
			"Choose a password to activate your account:\n\n%s\n", agent.FullName(), link),
	}
}

func LeadCreatedMessage(lead *models.Lead, to []string, link string) Message {
	return Message{
		To:      to,
		Subject: SubjectLeadCreated,
		Body:    fmt.Sprintf("%s was added as a lead.\n\nVisit the website to view the Lead:\n\n%s\n", lead.FullName(), link),
	}
}

func UnassignedLeadsMessage(owner *models.User, count int64, link string) Message {
	noun := "leads are"
	if count == 1 {
		noun = "lead is"
	}
	return Message{
		To:      []string{owner.Email},
		Subject: SubjectUnassignedLeads,
		Body: fmt.Sprintf("Hi %s,\n\n%d %s not assigned to any agent yet.\n\n%s\n",
			owner.FullName(), count, noun, link),
	}
}
