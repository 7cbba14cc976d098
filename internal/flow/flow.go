// Package flow implements the per-user authentication flow state machines:
// login with a multi-factor challenge, password change, account signup with
// phone enrollment, and logout. Each flow drives a session through a
// sequence of page renders and form submissions, re-extracting the
// anti-forgery token before every submit, and yields a terminal Result.
package flow

import (
	"context"
	"net/url"
	"strings"

	"stampede/internal/extract"
	"stampede/internal/session"
)

// Endpoints and form fields of the target's form handlers. These are wire
// contract: they must match the identity provider verbatim.
const (
	pathAccount          = "/account"
	pathTwoFactorSMS     = "/login/two_factor/sms"
	pathManagePassword   = "/manage/password"
	pathSignupStart      = "/sign_up/start"
	pathSignupEnterEmail = "/sign_up/enter_email"
	pathSignupPassword   = "/sign_up/create_password"
	pathPhoneSetup       = "/phone_setup"
	pathPersonalKey      = "/sign_up/personal_key"

	fieldToken             = "authenticity_token"
	fieldEmail             = "user[email]"
	fieldPassword          = "user[password]"
	fieldCode              = "code"
	fieldNewPassword       = "update_user_password_form[password]"
	fieldSignupPassword    = "password_form[password]"
	fieldConfirmationToken = "confirmation_token"
	fieldPhoneIntlCode     = "user_phone_form[international_code]"
	fieldPhone             = "user_phone_form[phone]"
	fieldOTPDelivery       = "user_phone_form[otp_delivery_preference]"
	fieldMethod            = "_method"
	fieldCommit            = "commit"

	commitSubmit   = "Submit"
	commitUpdate   = "update"
	commitSendCode = "Send security code"
	commitContinue = "Continue"
)

// Selectors for the ephemeral values flows pull out of rendered pages.
const (
	selToken             = `input[name="authenticity_token"]`
	selOTPCode           = `input[name="code"]`
	selOTPForm           = `form[action='/login/two_factor/sms']`
	selSignOutLink       = `a[href="/api/saml/logout"]`
	selEditPasswordLink  = `a[href="/manage/password"]`
	selConfirmationLink  = `a[href*='confirmation_token']`
	selConfirmationToken = `[name="confirmation_token"]`
	selVisibleError      = `.container`
)

// RescuePassword is the fixed alternate password the login rescue attempt
// submits, matching what a previous un-reverted change-password journey
// would have left on the account.
const RescuePassword = "thisisanewpass"

// Visitor is the transport surface a flow drives. *session.Session
// implements it; flows never touch the HTTP client directly.
type Visitor interface {
	Visit(ctx context.Context, method, ref string, form url.Values) (*session.Page, error)
	VisitWithAuth(ctx context.Context, method, ref string, form url.Values) (*session.Page, error)
}

// Extractor pulls named values out of the latest rendered page. Absence is
// returned, never raised; it is a first-class transition trigger.
type Extractor interface {
	Attribute(body []byte, selector, attr string) (string, bool)
	Text(body []byte, selector string) string
}

// Flow is one authentication flow state machine. Run executes it to a
// terminal state against the given session.
type Flow interface {
	Name() string
	Run(ctx context.Context, v Visitor, x Extractor) Result
}

// NewExtractor returns the production Extractor backed by the HTML parser.
func NewExtractor() Extractor {
	return htmlExtractor{}
}

type htmlExtractor struct{}

func (htmlExtractor) Attribute(body []byte, selector, attr string) (string, bool) {
	return extract.Attribute(body, selector, attr)
}

func (htmlExtractor) Text(body []byte, selector string) string {
	return extract.Text(body, selector)
}

// inAccountArea reports whether the page landed in the authenticated area.
func inAccountArea(p *session.Page) bool {
	return strings.Contains(p.Path(), pathAccount)
}

// authToken extracts the per-render anti-forgery token. Called immediately
// before every submission; tokens are never carried across renders.
func authToken(x Extractor, p *session.Page) (string, bool) {
	return x.Attribute(p.Body, selToken, "value")
}
