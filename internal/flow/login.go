package flow

import (
	"context"
	"net/http"
	"net/url"

	"stampede/internal/data"
)

// Login signs a virtual user in: initial page render, credential
// submission, then the SMS one-time code round trip. If the code is not
// issued after the first submission, one rescue attempt resubmits with
// the fixed alternate password before the flow fails.
type Login struct {
	Credential data.Credential
	// EntryURL is where the flow starts; defaults to "/". Relying-party
	// variants set it to the relying party's entry point, whose redirect
	// handshake lands on the same sign-in form.
	EntryURL string
}

func (f *Login) Name() string { return "login" }

// rescuePolicy is the one bounded retry in the system: at most two
// credential submissions, the second with the fixed alternate password.
type rescuePolicy struct {
	passwords [2]string
}

func (f *Login) Run(ctx context.Context, v Visitor, x Extractor) Result {
	entry := f.EntryURL
	if entry == "" {
		entry = "/"
	}

	page, err := v.Visit(ctx, http.MethodGet, entry, nil)
	if err != nil {
		return transportErr("initial page", err)
	}

	// Already signed in: the initial page redirects straight to the
	// authenticated area. Short-circuit without submitting anything.
	if inAccountArea(page) {
		return success(page, "already authenticated")
	}
	if !page.OK() {
		return badStatus("initial page", page)
	}

	// A sign-in form always carries an anti-forgery token. Its absence
	// means this is not a sign-in page at all; no retry will fix that.
	if _, ok := authToken(x, page); !ok {
		return failure(ClassMissingToken, page,
			"not a sign-in page: no anti-forgery token at %s", page.URL)
	}

	policy := rescuePolicy{passwords: [2]string{f.Credential.Password, RescuePassword}}

	var code string
	for attempt, password := range policy.passwords {
		// Re-extract the token from the page this submission answers;
		// tokens are valid for exactly one render.
		token, ok := authToken(x, page)
		if !ok {
			return failure(ClassMissingToken, page,
				"no anti-forgery token before credential submission %d at %s", attempt+1, page.URL)
		}

		form := url.Values{}
		form.Set(fieldEmail, f.Credential.Email)
		form.Set(fieldPassword, password)
		form.Set(fieldToken, token)
		form.Set(fieldCommit, commitSubmit)

		page, err = v.Visit(ctx, http.MethodPost, page.URL.String(), form)
		if err != nil {
			return transportErr("credential submission", err)
		}
		if !page.OK() {
			return badStatus("credential submission", page)
		}

		if c, ok := x.Attribute(page.Body, selOTPCode, "value"); ok && c != "" {
			code = c
			break
		}

		if attempt == len(policy.passwords)-1 {
			return failure(ClassMissingCode, page,
				"no two-factor code for %s after %d attempts (primary and rescue password); check the account is provisioned",
				f.Credential.Email, len(policy.passwords))
		}
		// Missing code after the first attempt usually means an
		// un-reverted password change; rescue with the alternate password.
	}

	action, ok := x.Attribute(page.Body, selOTPForm, "action")
	if !ok || action == "" {
		action = pathTwoFactorSMS
	}

	token, ok := authToken(x, page)
	if !ok {
		return failure(ClassMissingToken, page,
			"no anti-forgery token on the two-factor page at %s", page.URL)
	}

	form := url.Values{}
	form.Set(fieldCode, code)
	form.Set(fieldToken, token)
	form.Set(fieldCommit, commitSubmit)

	page, err = v.Visit(ctx, http.MethodPost, action, form)
	if err != nil {
		return transportErr("code submission", err)
	}
	if !page.OK() {
		return badStatus("code submission", page)
	}

	// Post-login landing varies by relying party; reaching this point with
	// a success status is the flow's last defined milestone.
	return success(page, "authenticated")
}
