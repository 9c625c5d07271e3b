package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-crm/internal/api/forms"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/mail"
)

// AccountService is the part of auth.Service the account pages use.
type AccountService interface {
	auth.Authenticator
	MarkEmailVerified(ctx context.Context, user *models.User) error
	AcceptInvite(ctx context.Context, user *models.User, password string) error
}

var _ AccountService = (*auth.Service)(nil)

type AccountHandler struct {
	view          *View
	accounts      AccountService
	tokens        auth.TokenIssuer
	mailer        mail.Dispatcher
	links         crm.Links
	logger        *slog.Logger
	sessionMaxAge time.Duration
}

func NewAccountHandler(view *View, accounts AccountService, tokens auth.TokenIssuer, mailer mail.Dispatcher, links crm.Links, logger *slog.Logger, sessionMaxAge time.Duration) *AccountHandler {
	return &AccountHandler{
		view:          view,
		accounts:      accounts,
		tokens:        tokens,
		mailer:        mailer,
		links:         links,
		logger:        logger,
		sessionMaxAge: sessionMaxAge,
	}
}

func (h *AccountHandler) Landing(w http.ResponseWriter, r *http.Request) {
	h.view.render(w, r, http.StatusOK, "landing.html", Page{Title: "Welcome"})
}

func (h *AccountHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.view.render(w, r, http.StatusOK, "signup.html", Page{Title: "Sign up", Form: forms.SignupForm{}})
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	form := forms.SignupFormFromRequest(r)
	page := Page{Title: "Sign up", Form: form, Errors: form.Validate()}
	if len(page.Errors) > 0 {
		h.view.render(w, r, http.StatusBadRequest, "signup.html", page)
		return
	}

	user, err := h.accounts.Signup(r.Context(), form.Input())
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			page.Errors["username"] = "A user with that username or email already exists."
			h.view.render(w, r, http.StatusBadRequest, "signup.html", page)
			return
		}
		h.view.serverError(w, r, err)
		return
	}

	h.logger.Info("organisor signed up", "user_id", user.ID)
	redirect(w, r, "/login")
}

func (h *AccountHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.view.render(w, r, http.StatusOK, "login.html", Page{Title: "Log in", Form: forms.LoginForm{}})
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	form := forms.LoginFormFromRequest(r)
	// The password is never echoed back.
	page := Page{Title: "Log in", Form: forms.LoginForm{Email: form.Email}, Errors: form.Validate()}
	if len(page.Errors) > 0 {
		h.view.render(w, r, http.StatusBadRequest, "login.html", page)
		return
	}

	resp, err := h.accounts.Login(r.Context(), auth.LoginInput{Email: form.Email, Password: form.Password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrInactiveUser) {
			page.Errors["form"] = "Please enter a correct email and password."
			h.view.render(w, r, http.StatusUnauthorized, "login.html", page)
			return
		}
		h.view.serverError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, r, resp.Token, int(h.sessionMaxAge.Seconds()))
	redirect(w, r, "/leads/")
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookie(w, r)
	redirect(w, r, "/")
}

func (h *AccountHandler) VerifyEmailPage(w http.ResponseWriter, r *http.Request) {
	h.view.render(w, r, http.StatusOK, "verify_email.html", Page{Title: "Verify email"})
}

// VerifyEmail emails a confirmation link. Users who are already verified are
// sent to the signup page.
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.EmailIsVerified {
		redirect(w, r, "/signup")
		return
	}

	token, err := h.tokens.MakeToken(user, auth.PurposeEmailVerification)
	if err != nil {
		h.view.serverError(w, r, err)
		return
	}
	mail.Notify(r.Context(), h.mailer, h.logger,
		mail.VerifyEmailMessage(user, h.links.VerifyEmail(user.ID, token)))

	redirect(w, r, "/verify-email/done")
}

func (h *AccountHandler) VerifyEmailDone(w http.ResponseWriter, r *http.Request) {
	h.view.render(w, r, http.StatusOK, "verify_email_done.html", Page{Title: "Check your inbox"})
}

func (h *AccountHandler) VerifyEmailConfirm(w http.ResponseWriter, r *http.Request) {
	page := Page{Title: "Verify email", Data: map[string]interface{}{"Verified": false}}

	user := h.linkUser(r, auth.PurposeEmailVerification)
	if user == nil {
		h.view.render(w, r, http.StatusBadRequest, "verify_email_confirm.html", page)
		return
	}
	if err := h.accounts.MarkEmailVerified(r.Context(), user); err != nil {
		h.view.serverError(w, r, err)
		return
	}

	h.logger.Info("email verified", "user_id", user.ID)
	page.Data["Verified"] = true
	h.view.render(w, r, http.StatusOK, "verify_email_confirm.html", page)
}

func (h *AccountHandler) InvitationPage(w http.ResponseWriter, r *http.Request) {
	invitee := h.linkUser(r, auth.PurposeAgentInvite)
	page := invitationPage(invitee)
	if invitee == nil {
		h.view.render(w, r, http.StatusBadRequest, "invitation.html", page)
		return
	}
	h.view.render(w, r, http.StatusOK, "invitation.html", page)
}

// AcceptInvitation sets the invited agent's password. The token is bound to
// the old password hash, so the link stops working once this succeeds.
func (h *AccountHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	invitee := h.linkUser(r, auth.PurposeAgentInvite)
	page := invitationPage(invitee)
	if invitee == nil {
		h.view.render(w, r, http.StatusBadRequest, "invitation.html", page)
		return
	}

	form := forms.SetPasswordFormFromRequest(r)
	if page.Errors = form.Validate(); len(page.Errors) > 0 {
		h.view.render(w, r, http.StatusBadRequest, "invitation.html", page)
		return
	}

	if err := h.accounts.AcceptInvite(r.Context(), invitee, form.Password1); err != nil {
		h.view.serverError(w, r, err)
		return
	}

	h.logger.Info("agent invitation accepted", "user_id", invitee.ID)
	redirect(w, r, "/login")
}

func invitationPage(invitee *models.User) Page {
	return Page{
		Title: "Accept invitation",
		Form:  forms.SetPasswordForm{},
		Data:  map[string]interface{}{"Valid": invitee != nil, "Invitee": invitee},
	}
}

// linkUser resolves the user an emailed link was issued to. It returns nil
// for unknown users and for tokens that do not check out.
func (h *AccountHandler) linkUser(r *http.Request, purpose auth.Purpose) *models.User {
	id, err := auth.DecodeUID(chi.URLParam(r, "uidb64"))
	if err != nil {
		return nil
	}
	user, err := h.accounts.GetUserByID(r.Context(), id)
	if err != nil {
		return nil
	}
	if err := h.tokens.CheckToken(user, purpose, chi.URLParam(r, "token")); err != nil {
		h.logger.Debug("rejected account token", "user_id", user.ID, "purpose", purpose, "error", err)
		return nil
	}
	return user
}
