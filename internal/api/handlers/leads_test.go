package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-crm/internal/api/handlers"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/mail"
	"github.com/hugh/go-crm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLeadRouter(t *testing.T) (*chi.Mux, *testEnv) {
	env := newTestEnv(t)
	leads := crm.NewLeadService(env.DB, env.Mail, testutil.NewLogger(), env.Links, []string{"sales@example.com"})
	h := handlers.NewLeadHandler(env.View, leads)

	r := chi.NewRouter()
	s := env.session(r)
	s.Get("/leads/", h.List)
	s.Get("/leads/{id}", h.Detail)
	s.Get("/leads/{id}/category", h.CategoryPage)
	s.Post("/leads/{id}/category", h.UpdateCategory)

	o := s.With(middleware.RequireOrganisor)
	o.Get("/leads/create", h.CreatePage)
	o.Post("/leads/create", h.Create)
	o.Get("/leads/{id}/update", h.UpdatePage)
	o.Post("/leads/{id}/update", h.Update)
	o.Get("/leads/{id}/delete", h.DeletePage)
	o.Post("/leads/{id}/delete", h.Delete)
	o.Get("/leads/{id}/assign-agent", h.AssignAgentPage)
	o.Post("/leads/{id}/assign-agent", h.AssignAgent)

	return r, env
}

func TestLeadHandler_List(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)
	category := testutil.CreateCategory(t, env.DB, organisor, "Contacted")

	assigned := testutil.CreateLead(t, env.DB, organisor, testutil.WithAgent(agent), testutil.WithCategory(category))
	unassigned := testutil.CreateLead(t, env.DB, organisor)
	other := testutil.CreateLead(t, env.DB, testutil.CreateOrganisor(t, env.DB))

	t.Run("redirects anonymous users to login", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/", nil, nil)
		testutil.AssertRedirect(t, rr, http.StatusFound, "/login")
	})

	t.Run("organisor sees both sections", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/", nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)

		body := rr.Body.String()
		assert.Contains(t, body, assigned.LastName)
		assert.Contains(t, body, unassigned.LastName)
		assert.Contains(t, body, "Unassigned leads")
		assert.Contains(t, body, "New lead")
		assert.NotContains(t, body, other.LastName)
	})

	t.Run("agent sees only its own leads", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/", nil, agent)
		testutil.AssertStatus(t, rr, http.StatusOK)

		body := rr.Body.String()
		assert.Contains(t, body, assigned.LastName)
		assert.NotContains(t, body, unassigned.LastName)
		assert.NotContains(t, body, "New lead")
	})

	t.Run("category filter", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/?category="+category.ID.String(), nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), assigned.LastName)
		assert.NotContains(t, rr.Body.String(), unassigned.LastName)
	})

	t.Run("bad category filter is ignored", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/?category=nope", nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), unassigned.LastName)
	})
}

func TestLeadHandler_Detail(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)
	mine := testutil.CreateLead(t, env.DB, organisor, testutil.WithAgent(agent))
	unassigned := testutil.CreateLead(t, env.DB, organisor)

	tests := []struct {
		name       string
		user       *models.User
		path       string
		wantStatus int
	}{
		{"organisor sees lead", organisor, "/leads/" + unassigned.ID.String(), http.StatusOK},
		{"agent sees assigned lead", agent, "/leads/" + mine.ID.String(), http.StatusOK},
		{"agent cannot see unassigned lead", agent, "/leads/" + unassigned.ID.String(), http.StatusNotFound},
		{"outsider gets not found", testutil.CreateOrganisor(t, env.DB), "/leads/" + mine.ID.String(), http.StatusNotFound},
		{"malformed id", organisor, "/leads/not-a-uuid", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, router, http.MethodGet, tt.path, nil, tt.user)
			testutil.AssertStatus(t, rr, tt.wantStatus)
		})
	}
}

func TestLeadHandler_Create(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)
	foreignAgent := testutil.CreateAgent(t, env.DB, testutil.CreateOrganisor(t, env.DB))

	t.Run("form lists the organisation's agents", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/create", nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), agent.Agent.ID.String())
		assert.NotContains(t, rr.Body.String(), foreignAgent.Agent.ID.String())
	})

	t.Run("agents are sent to the lead list", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/create", nil, agent)
		testutil.AssertRedirect(t, rr, http.StatusFound, "/leads/")
	})

	t.Run("creates and notifies", func(t *testing.T) {
		form := url.Values{
			"first_name": {"Jane"},
			"last_name":  {"Prospect"},
			"age":        {"41"},
			"email":      {"jane@example.com"},
			"agent":      {agent.Agent.ID.String()},
		}
		rr := env.do(t, router, http.MethodPost, "/leads/create", form, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/")

		var lead models.Lead
		require.NoError(t, env.DB.First(&lead, "last_name = ?", "Prospect").Error)
		assert.Equal(t, organisor.Profile.ID, lead.OrganisationID)
		assert.Equal(t, 41, lead.Age)
		require.NotNil(t, lead.AgentID)
		assert.Equal(t, agent.Agent.ID, *lead.AgentID)

		msgs := env.Mail.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, mail.SubjectLeadCreated, msgs[0].Subject)
		assert.ElementsMatch(t, []string{organisor.Email, "sales@example.com"}, msgs[0].To)
	})

	t.Run("foreign agent is a validation error", func(t *testing.T) {
		form := url.Values{
			"first_name": {"Cross"},
			"last_name":  {"Org"},
			"agent":      {foreignAgent.Agent.ID.String()},
		}
		rr := env.do(t, router, http.MethodPost, "/leads/create", form, organisor)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Contains(t, rr.Body.String(), "not part of your organisation")

		var n int64
		env.DB.Model(&models.Lead{}).Where("last_name = ?", "Org").Count(&n)
		assert.Zero(t, n)
	})

	t.Run("missing names", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, "/leads/create", url.Values{"age": {"x"}}, organisor)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Contains(t, rr.Body.String(), "This field is required.")
	})
}

func TestLeadHandler_UpdateDelete(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	lead := testutil.CreateLead(t, env.DB, organisor)
	path := "/leads/" + lead.ID.String()

	t.Run("update form is prefilled", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, path+"/update", nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), lead.LastName)
	})

	t.Run("update", func(t *testing.T) {
		form := url.Values{"first_name": {"Renamed"}, "last_name": {lead.LastName}, "age": {"52"}}
		rr := env.do(t, router, http.MethodPost, path+"/update", form, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/")

		var reloaded models.Lead
		require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
		assert.Equal(t, "Renamed", reloaded.FirstName)
		assert.Equal(t, 52, reloaded.Age)
	})

	t.Run("other organisation cannot delete", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, path+"/delete", nil, testutil.CreateOrganisor(t, env.DB))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, path+"/delete", nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = env.do(t, router, http.MethodPost, path+"/delete", nil, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/")

		rr = env.do(t, router, http.MethodGet, path, nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestLeadHandler_AssignAgent(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)
	foreignAgent := testutil.CreateAgent(t, env.DB, testutil.CreateOrganisor(t, env.DB))
	lead := testutil.CreateLead(t, env.DB, organisor)
	path := "/leads/" + lead.ID.String() + "/assign-agent"

	rr := env.do(t, router, http.MethodGet, path, nil, organisor)
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = env.do(t, router, http.MethodPost, path, url.Values{"agent": {foreignAgent.Agent.ID.String()}}, organisor)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, router, http.MethodPost, path, url.Values{"agent": {agent.Agent.ID.String()}}, organisor)
	testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/")

	var reloaded models.Lead
	require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
	require.NotNil(t, reloaded.AgentID)
	assert.Equal(t, agent.Agent.ID, *reloaded.AgentID)

	t.Run("agents cannot assign", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, path, url.Values{"agent": {""}}, agent)
		testutil.AssertRedirect(t, rr, http.StatusFound, "/leads/")
	})
}

func TestLeadHandler_UpdateCategory(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)
	category := testutil.CreateCategory(t, env.DB, organisor, "Converted")
	foreign := testutil.CreateCategory(t, env.DB, testutil.CreateOrganisor(t, env.DB), "Elsewhere")
	lead := testutil.CreateLead(t, env.DB, organisor, testutil.WithAgent(agent))
	path := "/leads/" + lead.ID.String() + "/category"

	t.Run("agent can pick a category", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, path, nil, agent)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), "Converted")
		assert.NotContains(t, rr.Body.String(), "Elsewhere")

		rr = env.do(t, router, http.MethodPost, path, url.Values{"category": {category.ID.String()}}, agent)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/"+lead.ID.String())

		var reloaded models.Lead
		require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
		require.NotNil(t, reloaded.CategoryID)
		assert.Equal(t, category.ID, *reloaded.CategoryID)
	})

	t.Run("foreign category rejected", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, path, url.Values{"category": {foreign.ID.String()}}, agent)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("empty clears", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, path, url.Values{"category": {""}}, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/"+lead.ID.String())

		var reloaded models.Lead
		require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
		assert.Nil(t, reloaded.CategoryID)
	})
}

func TestLeadHandler_ReassignAgent(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	first := testutil.CreateAgent(t, env.DB, organisor)
	second := testutil.CreateAgent(t, env.DB, organisor)
	lead := testutil.CreateLead(t, env.DB, organisor, testutil.WithAgent(first))
	path := "/leads/" + lead.ID.String() + "/assign-agent"

	t.Run("moves to another agent", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, path, url.Values{"agent": {second.Agent.ID.String()}}, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/")

		var reloaded models.Lead
		require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
		require.NotNil(t, reloaded.AgentID)
		assert.Equal(t, second.Agent.ID, *reloaded.AgentID)

		rr = env.do(t, router, http.MethodGet, "/leads/"+lead.ID.String(), nil, first)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("empty unassigns", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, path, url.Values{"agent": {""}}, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/")

		var reloaded models.Lead
		require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
		assert.Nil(t, reloaded.AgentID)
	})
}

func TestLeadHandler_ChangeCategory(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	contacted := testutil.CreateCategory(t, env.DB, organisor, "Contacted")
	converted := testutil.CreateCategory(t, env.DB, organisor, "Converted")
	lead := testutil.CreateLead(t, env.DB, organisor, testutil.WithCategory(contacted))
	path := "/leads/" + lead.ID.String() + "/category"

	rr := env.do(t, router, http.MethodPost, path, url.Values{"category": {converted.ID.String()}}, organisor)
	testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/"+lead.ID.String())

	var reloaded models.Lead
	require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
	require.NotNil(t, reloaded.CategoryID)
	assert.Equal(t, converted.ID, *reloaded.CategoryID)
}

func TestLeadHandler_CreateIgnoresOrganisationField(t *testing.T) {
	router, env := setupLeadRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	other := testutil.CreateOrganisor(t, env.DB)

	form := url.Values{
		"first_name":   {"Sneaky"},
		"last_name":    {"Crossover"},
		"organisation": {other.Profile.ID.String()},
	}
	rr := env.do(t, router, http.MethodPost, "/leads/create", form, organisor)
	testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/")

	var lead models.Lead
	require.NoError(t, env.DB.First(&lead, "last_name = ?", "Crossover").Error)
	assert.Equal(t, organisor.Profile.ID, lead.OrganisationID)

	rr = env.do(t, router, http.MethodGet, "/leads/"+lead.ID.String(), nil, other)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
