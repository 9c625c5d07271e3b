package handlers

import (
	"net/http"

	"github.com/hugh/go-crm/internal/api/forms"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
)

type CategoryHandler struct {
	view       *View
	categories *crm.CategoryService
}

func NewCategoryHandler(view *View, categories *crm.CategoryService) *CategoryHandler {
	return &CategoryHandler{view: view, categories: categories}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.categories.List(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.view.fail(w, r, err)
		return
	}
	h.view.render(w, r, http.StatusOK, "category_list.html", Page{
		Title: "Categories",
		Data:  map[string]interface{}{"List": list},
	})
}

func (h *CategoryHandler) Detail(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.detail(w, r)
	if !ok {
		return
	}
	h.view.render(w, r, http.StatusOK, "category_detail.html", Page{
		Title: detail.Category.Name,
		Data:  map[string]interface{}{"Detail": detail},
	})
}

func (h *CategoryHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, nil, forms.CategoryForm{}, nil)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	form := forms.CategoryFormFromRequest(r)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, nil, form, errs)
		return
	}

	if _, err := h.categories.Create(r.Context(), middleware.GetUser(r.Context()), form.Name); err != nil {
		h.view.fail(w, r, err)
		return
	}
	redirect(w, r, "/leads/categories/")
}

func (h *CategoryHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.detail(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, detail.Category, forms.CategoryForm{Name: detail.Category.Name}, nil)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.detail(w, r)
	if !ok {
		return
	}

	form := forms.CategoryFormFromRequest(r)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, detail.Category, form, errs)
		return
	}

	if _, err := h.categories.Update(r.Context(), middleware.GetUser(r.Context()), detail.Category.ID, form.Name); err != nil {
		h.view.fail(w, r, err)
		return
	}
	redirect(w, r, "/leads/categories/")
}

func (h *CategoryHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.detail(w, r)
	if !ok {
		return
	}
	h.view.render(w, r, http.StatusOK, "category_delete.html", Page{
		Title: "Delete category",
		Data:  map[string]interface{}{"Category": detail.Category},
	})
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		h.view.NotFound(w, r)
		return
	}
	if err := h.categories.Delete(r.Context(), middleware.GetUser(r.Context()), id); err != nil {
		h.view.fail(w, r, err)
		return
	}
	redirect(w, r, "/leads/categories/")
}

func (h *CategoryHandler) detail(w http.ResponseWriter, r *http.Request) (*crm.CategoryDetail, bool) {
	id, ok := urlID(r)
	if !ok {
		h.view.NotFound(w, r)
		return nil, false
	}
	detail, err := h.categories.Get(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		h.view.fail(w, r, err)
		return nil, false
	}
	return detail, true
}

func (h *CategoryHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, category *models.Category, form forms.CategoryForm, errs map[string]string) {
	title, action := "Create category", "/leads/categories/create"
	if category != nil {
		title, action = "Update category", "/leads/categories/"+category.ID.String()+"/update"
	}
	h.view.render(w, r, status, "category_form.html", Page{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   map[string]interface{}{"Category": category, "Action": action},
	})
}
