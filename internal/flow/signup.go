package flow

import (
	"context"
	"net/http"
	"net/url"

	"stampede/internal/data"
)

// Signup creates a new account end to end: submit an email, follow the
// confirmation link the test-mode target renders into the page, create a
// password, enroll a phone, submit the pre-filled one-time code, and
// acknowledge the personal key. All requests go through VisitWithAuth
// because signup endpoints may sit behind basic auth.
type Signup struct {
	Email    string
	Password string // zero value falls back to the pool default
	Phone    string
	// EntryURL replaces /sign_up/start for relying-party-initiated signup.
	EntryURL string
}

func (f *Signup) Name() string { return "signup" }

func (f *Signup) Run(ctx context.Context, v Visitor, x Extractor) Result {
	password := f.Password
	if password == "" {
		password = data.DefaultPassword
	}

	entry := f.EntryURL
	if entry == "" {
		entry = pathSignupStart
	}

	if _, err := v.VisitWithAuth(ctx, http.MethodGet, entry, nil); err != nil {
		return transportErr("signup start", err)
	}

	page, err := v.VisitWithAuth(ctx, http.MethodGet, pathSignupEnterEmail, nil)
	if err != nil {
		return transportErr("email page", err)
	}
	if !page.OK() {
		return badStatus("email page", page)
	}

	token, ok := authToken(x, page)
	if !ok {
		return failure(ClassMissingToken, page,
			"no anti-forgery token on the email page at %s", page.URL)
	}

	form := url.Values{}
	form.Set(fieldEmail, f.Email)
	form.Set(fieldToken, token)
	form.Set(fieldCommit, commitSubmit)

	page, err = v.VisitWithAuth(ctx, http.MethodPost, pathSignupEnterEmail, form)
	if err != nil {
		return transportErr("email submission", err)
	}
	if !page.OK() {
		return badStatus("email submission", page)
	}

	// Test-mode targets render the confirmation link straight into the
	// page. Its absence has two distinguishable causes.
	link, ok := x.Attribute(page.Body, selConfirmationLink, "href")
	if !ok {
		if inAccountArea(page) {
			return failure(ClassUnexpectedLocation, page,
				"already signed up and logged in at %s", page.URL)
		}
		return failure(ClassMissingToken, page,
			"confirmation token not found at %s; check the target's test-mode configuration", page.URL)
	}

	page, err = v.VisitWithAuth(ctx, http.MethodGet, link, nil)
	if err != nil {
		return transportErr("confirmation link", err)
	}
	if !page.OK() {
		return badStatus("confirmation link", page)
	}

	confToken, ok := x.Attribute(page.Body, selConfirmationToken, "value")
	if !ok {
		return failure(ClassMissingToken, page,
			"no confirmation token field on the password page at %s", page.URL)
	}
	token, ok = authToken(x, page)
	if !ok {
		return failure(ClassMissingToken, page,
			"no anti-forgery token on the password page at %s", page.URL)
	}

	form = url.Values{}
	form.Set(fieldSignupPassword, password)
	form.Set(fieldToken, token)
	form.Set(fieldConfirmationToken, confToken)
	form.Set(fieldCommit, commitSubmit)

	page, err = v.VisitWithAuth(ctx, http.MethodPost, pathSignupPassword, form)
	if err != nil {
		return transportErr("password submission", err)
	}
	if !page.OK() {
		return badStatus("password submission", page)
	}

	token, ok = authToken(x, page)
	if !ok {
		return failure(ClassMissingToken, page,
			"no anti-forgery token on the phone page at %s", page.URL)
	}

	form = url.Values{}
	form.Set(fieldMethod, "patch")
	form.Set(fieldPhoneIntlCode, "US")
	form.Set(fieldPhone, f.Phone)
	form.Set(fieldOTPDelivery, "sms")
	form.Set(fieldToken, token)
	form.Set(fieldCommit, commitSendCode)

	page, err = v.VisitWithAuth(ctx, http.MethodPost, pathPhoneSetup, form)
	if err != nil {
		return transportErr("phone submission", err)
	}
	if !page.OK() {
		return badStatus("phone submission", page)
	}

	otp, ok := x.Attribute(page.Body, selOTPCode, "value")
	if !ok || otp == "" {
		return failure(ClassMissingCode, page,
			"account creation failed for %s: no one-time code at %s; response: %s",
			f.Email, page.URL, truncateDiag(page.Body))
	}

	token, ok = authToken(x, page)
	if !ok {
		return failure(ClassMissingToken, page,
			"no anti-forgery token on the code page at %s", page.URL)
	}

	form = url.Values{}
	form.Set(fieldCode, otp)
	form.Set(fieldToken, token)
	form.Set(fieldCommit, commitSubmit)

	page, err = v.VisitWithAuth(ctx, http.MethodPost, pathTwoFactorSMS, form)
	if err != nil {
		return transportErr("code submission", err)
	}
	if !page.OK() {
		return badStatus("code submission", page)
	}

	token, ok = authToken(x, page)
	if !ok {
		return failure(ClassMissingToken, page,
			"no anti-forgery token on the personal key page at %s", page.URL)
	}

	form = url.Values{}
	form.Set(fieldToken, token)
	form.Set(fieldCommit, commitContinue)

	page, err = v.VisitWithAuth(ctx, http.MethodPost, pathPersonalKey, form)
	if err != nil {
		return transportErr("personal key acknowledgement", err)
	}
	if !page.OK() {
		return badStatus("personal key acknowledgement", page)
	}

	return success(page, "account created")
}

// truncateDiag keeps raw-response diagnostics to a triageable size.
func truncateDiag(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
