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
	"github.com/hugh/go-crm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCategoryRouter(t *testing.T) (*chi.Mux, *testEnv) {
	env := newTestEnv(t)
	h := handlers.NewCategoryHandler(env.View, crm.NewCategoryService(env.DB))

	r := chi.NewRouter()
	s := env.session(r)
	s.Get("/leads/categories/", h.List)
	s.Get("/leads/categories/{id}", h.Detail)

	o := s.With(middleware.RequireOrganisor)
	o.Get("/leads/categories/create", h.CreatePage)
	o.Post("/leads/categories/create", h.Create)
	o.Get("/leads/categories/{id}/update", h.UpdatePage)
	o.Post("/leads/categories/{id}/update", h.Update)
	o.Get("/leads/categories/{id}/delete", h.DeletePage)
	o.Post("/leads/categories/{id}/delete", h.Delete)

	return r, env
}

func TestCategoryHandler_ListDetail(t *testing.T) {
	router, env := setupCategoryRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)
	category := testutil.CreateCategory(t, env.DB, organisor, "Contacted")
	testutil.CreateCategory(t, env.DB, testutil.CreateOrganisor(t, env.DB), "Hidden")

	visible := testutil.CreateLead(t, env.DB, organisor, testutil.WithAgent(agent), testutil.WithCategory(category))
	hidden := testutil.CreateLead(t, env.DB, organisor, testutil.WithCategory(category))
	testutil.CreateLead(t, env.DB, organisor)
	testutil.CreateLead(t, env.DB, organisor)

	t.Run("agent lists its organisation's categories", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/categories/", nil, agent)
		testutil.AssertStatus(t, rr, http.StatusOK)

		body := rr.Body.String()
		assert.Contains(t, body, "Contacted")
		assert.NotContains(t, body, "Hidden")
		assert.Contains(t, body, "<td>2</td>")
		assert.NotContains(t, body, "New category")
	})

	t.Run("detail shows only visible leads", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/categories/"+category.ID.String(), nil, agent)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), visible.LastName)
		assert.NotContains(t, rr.Body.String(), hidden.LastName)

		rr = env.do(t, router, http.MethodGet, "/leads/categories/"+category.ID.String(), nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), hidden.LastName)
	})

	t.Run("other organisation gets not found", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, "/leads/categories/"+category.ID.String(), nil, testutil.CreateOrganisor(t, env.DB))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestCategoryHandler_CRUD(t *testing.T) {
	router, env := setupCategoryRouter(t)

	organisor := testutil.CreateOrganisor(t, env.DB)
	agent := testutil.CreateAgent(t, env.DB, organisor)

	t.Run("agent cannot create", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, "/leads/categories/create", url.Values{"name": {"Nope"}}, agent)
		testutil.AssertRedirect(t, rr, http.StatusFound, "/leads/")
	})

	t.Run("name is validated", func(t *testing.T) {
		rr := env.do(t, router, http.MethodPost, "/leads/categories/create",
			url.Values{"name": {"this category name is far too long to be stored"}}, organisor)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	rr := env.do(t, router, http.MethodPost, "/leads/categories/create", url.Values{"name": {"Unconverted"}}, organisor)
	testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/categories/")

	var category models.Category
	require.NoError(t, env.DB.First(&category, "name = ?", "Unconverted").Error)
	assert.Equal(t, organisor.Profile.ID, category.OrganisationID)
	path := "/leads/categories/" + category.ID.String()

	t.Run("update", func(t *testing.T) {
		rr := env.do(t, router, http.MethodGet, path+"/update", nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), "Unconverted")

		rr = env.do(t, router, http.MethodPost, path+"/update", url.Values{"name": {"Converted"}}, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/categories/")

		var reloaded models.Category
		require.NoError(t, env.DB.First(&reloaded, "id = ?", category.ID).Error)
		assert.Equal(t, "Converted", reloaded.Name)
	})

	t.Run("delete uncategorises leads", func(t *testing.T) {
		lead := testutil.CreateLead(t, env.DB, organisor, testutil.WithCategory(&category))

		rr := env.do(t, router, http.MethodGet, path+"/delete", nil, organisor)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = env.do(t, router, http.MethodPost, path+"/delete", nil, organisor)
		testutil.AssertRedirect(t, rr, http.StatusSeeOther, "/leads/categories/")

		var reloaded models.Lead
		require.NoError(t, env.DB.First(&reloaded, "id = ?", lead.ID).Error)
		assert.Nil(t, reloaded.CategoryID)
	})
}
