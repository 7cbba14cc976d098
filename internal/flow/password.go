package flow

import (
	"context"
	"net/http"
	"net/url"
)

// ChangePassword sets a new password on an already-authenticated session:
// locate the edit link on the account page, follow it, submit the form.
// The caller is responsible for the session actually being authenticated.
type ChangePassword struct {
	NewPassword string
}

func (f *ChangePassword) Name() string { return "change_password" }

func (f *ChangePassword) Run(ctx context.Context, v Visitor, x Extractor) Result {
	page, err := v.Visit(ctx, http.MethodGet, pathAccount, nil)
	if err != nil {
		return transportErr("account page", err)
	}
	if !page.OK() {
		return badStatus("account page", page)
	}

	// No edit link means the account page did not render as expected:
	// an OTP cap, an un-provisioned account, or no session at all. The
	// visible page text is the operator's best clue. No POST is attempted.
	href, ok := x.Attribute(page.Body, selEditPasswordLink, "href")
	if !ok {
		return failure(ClassMissingToken, page,
			"no password-edit link at %s; page says: %s", page.URL, x.Text(page.Body, selVisibleError))
	}

	page, err = v.Visit(ctx, http.MethodGet, href, nil)
	if err != nil {
		return transportErr("edit page", err)
	}
	if !page.OK() {
		return badStatus("edit page", page)
	}

	// Landing anywhere else means the target wants reauthentication,
	// which this flow deliberately does not attempt.
	if page.Path() != pathManagePassword {
		return failure(ClassUnexpectedLocation, page,
			"reauthentication required: expected %s, landed on %s", pathManagePassword, page.URL)
	}

	token, ok := authToken(x, page)
	if !ok {
		return failure(ClassMissingToken, page,
			"no anti-forgery token on the password form at %s", page.URL)
	}

	form := url.Values{}
	form.Set(fieldNewPassword, f.NewPassword)
	form.Set(fieldToken, token)
	form.Set(fieldMethod, "patch")
	form.Set(fieldCommit, commitUpdate)

	page, err = v.Visit(ctx, http.MethodPost, page.URL.String(), form)
	if err != nil {
		return transportErr("password submission", err)
	}
	if !page.OK() {
		return badStatus("password submission", page)
	}

	return success(page, "password changed")
}
