// Package forms decodes and validates the HTML forms posted to the CRM.
package forms

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/validation"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
)

const (
	msgRequired      = "This field is required."
	msgInvalidChoice = "Select a valid choice."
)

func field(r *http.Request, name string) string {
	return strings.TrimSpace(validation.SanitizeString(r.PostFormValue(name)))
}

// parseChoice reads an optional foreign-key select. Empty means "none".
func parseChoice(value string) (*uuid.UUID, bool) {
	if value == "" {
		return nil, true
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, false
	}
	return &id, true
}

type LeadForm struct {
	FirstName   string
	LastName    string
	Age         string
	Description string
	PhoneNumber string
	Email       string
	Agent       string
	Category    string
}

func LeadFormFromRequest(r *http.Request) LeadForm {
	return LeadForm{
		FirstName:   field(r, "first_name"),
		LastName:    field(r, "last_name"),
		Age:         field(r, "age"),
		Description: field(r, "description"),
		PhoneNumber: field(r, "phone_number"),
		Email:       field(r, "email"),
		Agent:       field(r, "agent"),
		Category:    field(r, "category"),
	}
}

// LeadFormFromLead pre-fills the update form.
func LeadFormFromLead(lead *models.Lead) LeadForm {
	return LeadForm{
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		Age:         strconv.Itoa(lead.Age),
		Description: lead.Description,
		PhoneNumber: lead.PhoneNumber,
		Email:       lead.Email,
		Agent:       choiceValue(lead.AgentID),
		Category:    choiceValue(lead.CategoryID),
	}
}

func choiceValue(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func (f LeadForm) Validate() map[string]string {
	errors := make(map[string]string)

	if f.FirstName == "" {
		errors["first_name"] = msgRequired
	} else if len(f.FirstName) > validation.MaxNameLength {
		errors["first_name"] = "Ensure this value has at most 150 characters."
	}
	if f.LastName == "" {
		errors["last_name"] = msgRequired
	} else if len(f.LastName) > validation.MaxNameLength {
		errors["last_name"] = "Ensure this value has at most 150 characters."
	}

	if f.Age != "" {
		age, err := strconv.Atoi(f.Age)
		if err != nil {
			errors["age"] = "Enter a whole number."
		} else if age < 0 || age > 150 {
			errors["age"] = "Enter an age between 0 and 150."
		}
	}

	if f.Email != "" && !validation.IsValidEmail(f.Email) {
		errors["email"] = "Enter a valid email address."
	}
	if f.PhoneNumber != "" && !validation.IsValidPhone(f.PhoneNumber) {
		errors["phone_number"] = "Enter a valid phone number."
	}
	if _, ok := parseChoice(f.Agent); !ok {
		errors["agent"] = msgInvalidChoice
	}
	if _, ok := parseChoice(f.Category); !ok {
		errors["category"] = msgInvalidChoice
	}

	return errors
}

// Input converts a validated form.
func (f LeadForm) Input() crm.LeadInput {
	age, _ := strconv.Atoi(f.Age)
	agentID, _ := parseChoice(f.Agent)
	categoryID, _ := parseChoice(f.Category)

	return crm.LeadInput{
		FirstName:   f.FirstName,
		LastName:    f.LastName,
		Age:         age,
		Description: f.Description,
		PhoneNumber: f.PhoneNumber,
		Email:       f.Email,
		AgentID:     agentID,
		CategoryID:  categoryID,
	}
}

// ChoiceForm is a single optional select: the agent on the assign form or
// the category on the lead category form.
type ChoiceForm struct {
	Name     string
	Value    string
	Required bool
}

func ChoiceFormFromRequest(r *http.Request, name string, required bool) ChoiceForm {
	return ChoiceForm{Name: name, Value: field(r, name), Required: required}
}

func ChoiceFormFromID(name string, id *uuid.UUID) ChoiceForm {
	return ChoiceForm{Name: name, Value: choiceValue(id)}
}

func (f ChoiceForm) Validate() map[string]string {
	errors := make(map[string]string)
	if f.Required && f.Value == "" {
		errors[f.Name] = msgRequired
		return errors
	}
	if _, ok := parseChoice(f.Value); !ok {
		errors[f.Name] = msgInvalidChoice
	}
	return errors
}

func (f ChoiceForm) ID() *uuid.UUID {
	id, _ := parseChoice(f.Value)
	return id
}

type CategoryForm struct {
	Name string
}

func CategoryFormFromRequest(r *http.Request) CategoryForm {
	return CategoryForm{Name: field(r, "name")}
}

func (f CategoryForm) Validate() map[string]string {
	errors := make(map[string]string)
	if f.Name == "" {
		errors["name"] = msgRequired
	} else if len([]rune(f.Name)) > 30 {
		errors["name"] = "Ensure this value has at most 30 characters."
	}
	return errors
}

type AgentForm struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

func AgentFormFromRequest(r *http.Request) AgentForm {
	return AgentForm{
		Username:  field(r, "username"),
		Email:     field(r, "email"),
		FirstName: field(r, "first_name"),
		LastName:  field(r, "last_name"),
	}
}

func (f AgentForm) Validate() map[string]string {
	errors := make(map[string]string)
	validateAccount(errors, f.Username, f.Email, f.FirstName, f.LastName)
	return errors
}

func (f AgentForm) Input() crm.AgentInput {
	return crm.AgentInput{
		Username:  f.Username,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
	}
}

func validateAccount(errors map[string]string, username, email, firstName, lastName string) {
	if username == "" {
		errors["username"] = msgRequired
	} else if !validation.IsValidUsername(username) {
		errors["username"] = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	if email == "" {
		errors["email"] = msgRequired
	} else if !validation.IsValidEmail(email) {
		errors["email"] = "Enter a valid email address."
	}
	if len(firstName) > validation.MaxNameLength {
		errors["first_name"] = "Ensure this value has at most 150 characters."
	}
	if len(lastName) > validation.MaxNameLength {
		errors["last_name"] = "Ensure this value has at most 150 characters."
	}
}
