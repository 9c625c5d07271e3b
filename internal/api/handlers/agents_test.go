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

func setupAgentRouter(t *testing.T) (*chi.Mux, *testEnv) {
	env := newTestEnv(t)
	agents := crm.NewAgentService(env.DB, env.Mail, env.Tokens, testutil.NewLogger(), env.Links)
	h := handlers.NewAgentHandler(env.View, agents)

	r := chi.NewRouter()
	s := env.session(r)
	s.Get("/agents/{id}/delete", h.DeletePage)
	s.Post("/agents/{id}/delete", h.Delete)

	o := s.With(middleware.RequireOrganisor)
	o.Get("/agents/", h.List)
	o.Get("/agents/create", h.CreatePage)
	o.Post("/agents/create", h.Create)
	o.Get("/agents/{id}", h.Detail)
	o.Get("/agents/{id}/update", h.UpdatePage)
	o.Post("/agents/{id}/update", h.Update)

	return r, env
}

func TestAgentHandler_List(t *testing.T) {
	router, env := setupAgentRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	mine := testutil.CreateAgent(t, env.DB, organisor)
	theirs := testutil.CreateAgent(t, env.DB, testutil.CreateOrganisor(t, env.DB))

	rr := env.do(t, router, http.MethodGet, "/agents/", nil, organisor)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), mine.Username)
	assert.NotContains(t, rr.Body.String(), theirs.Username)

	t.Run("agents are redirected", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/agents/", nil, mine)
		testutil.AssertRedirect(t, rr, http.StatusFound, "/leads/")
	})
}

func TestAgentHandler_Create(t *testing.T) {
	router, env := setupAgentRouter(t)
	organisor := testutil.CreateOrganisor(t, env.DB)

	rr := env.do(t, router, http.MethodGet, "/agents/create", nil, organisor)
	testutil.AssertStatus(t, rr, http.StatusOK)

	form := url.Values{
		"username":   {"newagent"},
		"email":      {"newagent@example.com"},
		"first_name": {"New"},
		"last_name":  {"Agent"},
	}
	rr = env.do(t, router, http.MethodPost, "/agents/create", form, organisor)
	testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/agents/")

	var user models.User
	require.NoError(t, env.DB.Preload("Agent").Preload("Profile").First(&user, "username = ?", "newagent").Error)
	assert.True(t, user.IsAgent)
	assert.False(t, user.IsOrganisor)
	require.NotNil(t, user.Agent)
	assert.Equal(t, organisor.Profile.ID, user.Agent.OrganisationID)
	assert.NotNil(t, user.Profile)

	msgs := env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, mail.SubjectAgentInvite, msgs[0].Subject)
	assert.Equal(t, []string{"newagent@example.com"}, msgs[0].To)

	t.Run("duplicate username", func(t *testing.T) {
		form.Set("email", "fresh@example.com")
		rr := env.do(t, router, http.MethodPost, "/agents/create", form, organisor)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Contains(t, rr.Body.String(), "username already exists")
		assert.Len(t, env.Mail.Messages(), 1)
	})

	t.Run("invalid email", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, "/agents/create",
			url.Values{"username": {"bademail"}, "email": {"not-an-email"}}, organisor)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestAgentHandler_DetailUpdate(t *testing.T) {
	router, env := setupAgentRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)
	path := "/agents/" + agent.Agent.ID.String()

	rr := env.do(t, router, http.MethodGet, path, nil, organisor)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), agent.Email)

	rr = env.do(t, router, http.MethodGet, path, nil, testutil.CreateOrganisor(t, env.DB))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, router, http.MethodGet, path+"/update", nil, organisor)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), agent.Username)

	form := url.Values{
		"username":   {agent.Username},
		"email":      {"renamed@example.com"},
		"first_name": {"Renamed"},
		"last_name":  {"Agent"},
	}
	rr = env.do(t, router, http.MethodPost, path+"/update", form, organisor)
	testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/agents/")

	var user models.User
	require.NoError(t, env.DB.First(&user, "id = ?", agent.ID).Error)
	assert.Equal(t, "renamed@example.com", user.Email)
	assert.Equal(t, "Renamed", user.FirstName)
}

func TestAgentHandler_Delete(t *testing.T) {
	router, env := setupAgentRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)
	lead := testutil.CreateLead(t, env.DB, organisor, testutil.WithAgent(agent))
	path := "/agents/" + agent.Agent.ID.String() + "/delete"

	t.Run("agent session reaches the view but finds nothing", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, path, nil, agent)
		testutil.AssertStatus(t, rr, http.StatusNotFound)

		rr = env.do(t, router, http.MethodPost, path, nil, agent)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("organisor deletes", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, path, nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = env.do(t, router, http.MethodPost, path, nil, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/agents/")

		var reloaded models.Lead
		require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
		assert.Nil(t, reloaded.AgentID)
	})
}
