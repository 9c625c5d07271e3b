package handlers

import (
	"net/http"

	"github.com/hugh/go-crm/internal/api/forms"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
)

type AgentHandler struct {
	view   *View
	agents *crm.AgentService
}

func NewAgentHandler(view *View, agents *crm.AgentService) *AgentHandler {
	return &AgentHandler{view: view, agents: agents}
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.view.fail(w, r, err)
		return
	}
	h.view.render(w, r, http.StatusOK, "agent_list.html", Page{
		Title: "Agents",
		Data:  map[string]interface{}{"Agents": agents},
	})
}

func (h *AgentHandler) Detail(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.agent(w, r)
	if !ok {
		return
	}
	h.view.render(w, r, http.StatusOK, "agent_detail.html", Page{
		Title: "Agent",
		Data:  map[string]interface{}{"Agent": agent},
	})
}

func (h *AgentHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, nil, forms.AgentForm{}, nil)
}

// Create invites an agent by email.
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	form := forms.AgentFormFromRequest(r)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, nil, form, errs)
		return
	}

	if _, err := h.agents.Create(r.Context(), middleware.GetUser(r.Context()), form.Input()); err != nil {
		errs := map[string]string{}
		if mergeErrors(errs, err) {
			h.renderForm(w, r, http.StatusBadRequest, nil, form, errs)
			return
		}
		h.view.fail(w, r, err)
		return
	}
	redirect(w, r, "/agents/")
}

func (h *AgentHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.agent(w, r)
	if !ok {
		return
	}

	form := forms.AgentForm{}
	if u := agent.User; u != nil {
		form = forms.AgentForm{Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
	}
	h.renderForm(w, r, http.StatusOK, agent, form, nil)
}

func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.agent(w, r)
	if !ok {
		return
	}

	form := forms.AgentFormFromRequest(r)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, agent, form, errs)
		return
	}

	if _, err := h.agents.Update(r.Context(), middleware.GetUser(r.Context()), agent.ID, form.Input()); err != nil {
		errs := map[string]string{}
		if mergeErrors(errs, err) {
			h.renderForm(w, r, http.StatusBadRequest, agent, form, errs)
			return
		}
		h.view.fail(w, r, err)
		return
	}
	redirect(w, r, "/agents/")
}

// DeletePage and Delete only need a session. The lookup is scoped to the
// requester's own profile, so agents get a 404.
func (h *AgentHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		h.view.NotFound(w, r)
		return
	}
	agent, err := h.agents.Owned(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		h.view.fail(w, r, err)
		return
	}
	h.view.render(w, r, http.StatusOK, "agent_delete.html", Page{
		Title: "Delete agent",
		Data:  map[string]interface{}{"Agent": agent},
	})
}

func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		h.view.NotFound(w, r)
		return
	}
	if err := h.agents.Delete(r.Context(), middleware.GetUser(r.Context()), id); err != nil {
		h.view.fail(w, r, err)
		return
	}
	redirect(w, r, "/agents/")
}

func (h *AgentHandler) agent(w http.ResponseWriter, r *http.Request) (*models.Agent, bool) {
	id, ok := urlID(r)
	if !ok {
		h.view.NotFound(w, r)
		return nil, false
	}
	agent, err := h.agents.Get(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		h.view.fail(w, r, err)
		return nil, false
	}
	return agent, true
}

func (h *AgentHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, agent *models.Agent, form forms.AgentForm, errs map[string]string) {
	title, action := "Invite agent", "/agents/create"
	if agent != nil {
		title, action = "Update agent", "/agents/"+agent.ID.String()+"/update"
	}
	h.view.render(w, r, status, "agent_form.html", Page{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   map[string]interface{}{"Agent": agent, "Action": action},
	})
}
