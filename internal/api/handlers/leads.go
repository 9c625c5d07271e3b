package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/forms"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
)

type LeadHandler struct {
	view  *View
	leads *crm.LeadService
}

func NewLeadHandler(view *View, leads *crm.LeadService) *LeadHandler {
	return &LeadHandler{view: view, leads: leads}
}

// List shows the visible leads, optionally filtered with ?category=<id>. An
// unparseable filter is ignored.
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var categoryID *uuid.UUID
	filter := r.URL.Query().Get("category")
	if id, err := uuid.Parse(filter); err == nil {
		categoryID = &id
	} else {
		filter = ""
	}

	list, err := h.leads.List(r.Context(), user, categoryID)
	if err != nil {
		h.view.fail(w, r, err)
		return
	}
	categories, err := h.leads.CategoryChoices(r.Context(), user)
	if err != nil {
		h.view.fail(w, r, err)
		return
	}

	h.view.render(w, r, http.StatusOK, "lead_list.html", Page{
		Title: "Leads",
		Data: map[string]interface{}{
			"Leads":      list,
			"Categories": categories,
			"Category":   filter,
		},
	})
}

func (h *LeadHandler) Detail(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.lead(w, r)
	if !ok {
		return
	}
	h.view.render(w, r, http.StatusOK, "lead_detail.html", Page{
		Title: lead.FullName(),
		Data:  map[string]interface{}{"Lead": lead},
	})
}

func (h *LeadHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, nil, forms.LeadForm{}, nil)
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	form := forms.LeadFormFromRequest(r)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, nil, form, errs)
		return
	}

	_, err := h.leads.Create(r.Context(), middleware.GetUser(r.Context()), form.Input())
	if err != nil {
		errs := map[string]string{}
		if mergeErrors(errs, err) {
			h.renderForm(w, r, http.StatusBadRequest, nil, form, errs)
			return
		}
		h.view.fail(w, r, err)
		return
	}

	redirect(w, r, "/leads/")
}

func (h *LeadHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.lead(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, lead, forms.LeadFormFromLead(lead), nil)
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.lead(w, r)
	if !ok {
		return
	}

	form := forms.LeadFormFromRequest(r)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, lead, form, errs)
		return
	}

	_, err := h.leads.Update(r.Context(), middleware.GetUser(r.Context()), lead.ID, form.Input())
	if err != nil {
		errs := map[string]string{}
		if mergeErrors(errs, err) {
			h.renderForm(w, r, http.StatusBadRequest, lead, form, errs)
			return
		}
		h.view.fail(w, r, err)
		return
	}

	redirect(w, r, "/leads/")
}

func (h *LeadHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.lead(w, r)
	if !ok {
		return
	}
	h.view.render(w, r, http.StatusOK, "lead_delete.html", Page{
		Title: "Delete lead",
		Data:  map[string]interface{}{"Lead": lead},
	})
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		h.view.NotFound(w, r)
		return
	}
	if err := h.leads.Delete(r.Context(), middleware.GetUser(r.Context()), id); err != nil {
		h.view.fail(w, r, err)
		return
	}
	redirect(w, r, "/leads/")
}

func (h *LeadHandler) AssignAgentPage(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.lead(w, r)
	if !ok {
		return
	}
	h.renderAssign(w, r, http.StatusOK, lead, forms.ChoiceFormFromID("agent", lead.AgentID), nil)
}

func (h *LeadHandler) AssignAgent(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.lead(w, r)
	if !ok {
		return
	}

	form := forms.ChoiceFormFromRequest(r, "agent", false)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderAssign(w, r, http.StatusBadRequest, lead, form, errs)
		return
	}

	_, err := h.leads.AssignAgent(r.Context(), middleware.GetUser(r.Context()), lead.ID, form.ID())
	if err != nil {
		errs := map[string]string{}
		if mergeErrors(errs, err) {
			h.renderAssign(w, r, http.StatusBadRequest, lead, form, errs)
			return
		}
		h.view.fail(w, r, err)
		return
	}

	redirect(w, r, "/leads/")
}

func (h *LeadHandler) CategoryPage(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.lead(w, r)
	if !ok {
		return
	}
	h.renderCategory(w, r, http.StatusOK, lead, forms.ChoiceFormFromID("category", lead.CategoryID), nil)
}

func (h *LeadHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.lead(w, r)
	if !ok {
		return
	}

	form := forms.ChoiceFormFromRequest(r, "category", false)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderCategory(w, r, http.StatusBadRequest, lead, form, errs)
		return
	}

	_, err := h.leads.UpdateCategory(r.Context(), middleware.GetUser(r.Context()), lead.ID, form.ID())
	if err != nil {
		errs := map[string]string{}
		if mergeErrors(errs, err) {
			h.renderCategory(w, r, http.StatusBadRequest, lead, form, errs)
			return
		}
		h.view.fail(w, r, err)
		return
	}

	redirect(w, r, "/leads/"+lead.ID.String())
}

// lead loads the lead named in the URL, writing the error response itself
// when that fails.
func (h *LeadHandler) lead(w http.ResponseWriter, r *http.Request) (*models.Lead, bool) {
	id, ok := urlID(r)
	if !ok {
		h.view.NotFound(w, r)
		return nil, false
	}
	lead, err := h.leads.Get(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		h.view.fail(w, r, err)
		return nil, false
	}
	return lead, true
}

func (h *LeadHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, lead *models.Lead, form forms.LeadForm, errs map[string]string) {
	user := middleware.GetUser(r.Context())

	agents, err := h.leads.AgentChoices(r.Context(), user)
	if err != nil {
		h.view.fail(w, r, err)
		return
	}
	categories, err := h.leads.CategoryChoices(r.Context(), user)
	if err != nil {
		h.view.fail(w, r, err)
		return
	}

	title, action := "Create lead", "/leads/create"
	if lead != nil {
		title, action = "Update lead", "/leads/"+lead.ID.String()+"/update"
	}

	h.view.render(w, r, status, "lead_form.html", Page{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data: map[string]interface{}{
			"Lead":       lead,
			"Action":     action,
			"Agents":     agents,
			"Categories": categories,
		},
	})
}

func (h *LeadHandler) renderAssign(w http.ResponseWriter, r *http.Request, status int, lead *models.Lead, form forms.ChoiceForm, errs map[string]string) {
	agents, err := h.leads.AgentChoices(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.view.fail(w, r, err)
		return
	}
	h.view.render(w, r, status, "lead_assign_agent.html", Page{
		Title:  "Assign agent",
		Form:   form,
		Errors: errs,
		Data:   map[string]interface{}{"Lead": lead, "Agents": agents},
	})
}

// renderCategory offers the lead organisation's categories. Agents see the
// same choices as their organisor.
func (h *LeadHandler) renderCategory(w http.ResponseWriter, r *http.Request, status int, lead *models.Lead, form forms.ChoiceForm, errs map[string]string) {
	categories, err := h.leads.CategoryChoices(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.view.fail(w, r, err)
		return
	}
	h.view.render(w, r, status, "lead_category_update.html", Page{
		Title:  "Update category",
		Form:   form,
		Errors: errs,
		Data:   map[string]interface{}{"Lead": lead, "Categories": categories},
	})
}
