package forms

import (
	"net/http"

	"github.com/hugh/go-crm/internal/api/validation"
	"github.com/hugh/go-crm/internal/auth"
)

type SignupForm struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password1 string
	Password2 string
}

// Passwords are read raw: trimming would silently change them.
func SignupFormFromRequest(r *http.Request) SignupForm {
	return SignupForm{
		Username:  field(r, "username"),
		Email:     field(r, "email"),
		FirstName: field(r, "first_name"),
		LastName:  field(r, "last_name"),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}
}

func (f SignupForm) Validate() map[string]string {
	errors := make(map[string]string)
	validateAccount(errors, f.Username, f.Email, f.FirstName, f.LastName)
	validateNewPassword(errors, f.Password1, f.Password2)
	return errors
}

func (f SignupForm) Input() auth.SignupInput {
	return auth.SignupInput{
		Username:  f.Username,
		Email:     f.Email,
		Password:  f.Password1,
		FirstName: f.FirstName,
		LastName:  f.LastName,
	}
}

type LoginForm struct {
	Email    string
	Password string
}

func LoginFormFromRequest(r *http.Request) LoginForm {
	return LoginForm{
		Email:    field(r, "email"),
		Password: r.PostFormValue("password"),
	}
}

func (f LoginForm) Validate() map[string]string {
	errors := make(map[string]string)
	if f.Email == "" {
		errors["email"] = msgRequired
	}
	if f.Password == "" {
		errors["password"] = msgRequired
	}
	return errors
}

// SetPasswordForm is posted by an invited agent choosing a password.
type SetPasswordForm struct {
	Password1 string
	Password2 string
}

func SetPasswordFormFromRequest(r *http.Request) SetPasswordForm {
	return SetPasswordForm{
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}
}

func (f SetPasswordForm) Validate() map[string]string {
	errors := make(map[string]string)
	validateNewPassword(errors, f.Password1, f.Password2)
	return errors
}

func validateNewPassword(errors map[string]string, password1, password2 string) {
	if password1 == "" {
		errors["password1"] = msgRequired
		return
	}
	if ok, msg := validation.IsValidPassword(password1); !ok {
		errors["password1"] = msg
		return
	}
	if password1 != password2 {
		errors["password2"] = "The two password fields didn't match."
	}
}
