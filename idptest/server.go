// Package idptest provides a fake identity provider for load-test
// development and integration tests. It renders the same forms, field
// names, and test-mode conveniences (pre-filled one-time codes, inline
// confirmation links) as the real target, and enforces single-render
// anti-forgery tokens.
package idptest

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Options configures failure modes used to exercise rescue and error paths.
type Options struct {
	// NeverIssueOTP makes credential and phone submissions re-render their
	// form without a one-time code, as a misconfigured target would.
	NeverIssueOTP bool
	// HideSignOutLink renders the account page without a sign-out link.
	HideSignOutLink bool
	// BasicAuthUser/Pass, when set, protect the signup endpoints.
	BasicAuthUser string
	BasicAuthPass string
}

const (
	sessionCookie = "_idp_session"
	otpCode       = "123456"
)

// Server is a fake identity provider.
type Server struct {
	mux  *http.ServeMux
	opts Options

	mu       sync.Mutex
	users    map[string]string // email -> password
	sessions map[string]*userSession
	counts   map[string]int // "METHOD /path" -> request count
}

type userSession struct {
	token         string // current anti-forgery token; one render only
	email         string
	pendingOTP    string
	authenticated bool
	signingUp     bool // the pending 2FA belongs to a signup, not a login
}

func NewServer(opts Options) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		opts:     opts,
		users:    make(map[string]string),
		sessions: make(map[string]*userSession),
		counts:   make(map[string]int),
	}
	s.registerHandlers()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Register provisions an account, as the rake task would.
func (s *Server) Register(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

// Password returns the current password of a provisioned account.
func (s *Server) Password(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[email]
	return p, ok
}

// Count returns how many requests matched the method and path.
func (s *Server) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method+" "+path]
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/sign_in", s.handleSignIn)
	s.mux.HandleFunc("/login/two_factor/sms", s.handleTwoFactor)
	s.mux.HandleFunc("/account", s.handleAccount)
	s.mux.HandleFunc("/manage/password", s.handleManagePassword)
	s.mux.HandleFunc("/api/saml/logout", s.handleLogout)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/sign_up/start", s.requireAuth(s.handleSignupStart))
	s.mux.HandleFunc("/sign_up/enter_email", s.requireAuth(s.handleEnterEmail))
	s.mux.HandleFunc("/sign_up/email/confirm", s.requireAuth(s.handleConfirm))
	s.mux.HandleFunc("/sign_up/create_password", s.requireAuth(s.handleCreatePassword))
	s.mux.HandleFunc("/phone_setup", s.requireAuth(s.handlePhoneSetup))
	s.mux.HandleFunc("/sign_up/personal_key", s.requireAuth(s.handlePersonalKey))
}

// session returns the caller's session, creating it and setting the cookie
// if needed. It also records the request for Count.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *userSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[r.Method+" "+r.URL.Path]++

	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.sessions[c.Value]; ok {
			return sess
		}
	}
	id := uuid.NewString()
	sess := &userSession{}
	s.sessions[id] = sess
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})
	return sess
}

// freshToken issues a new single-render anti-forgery token for the session.
func (s *Server) freshToken(sess *userSession) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.token = uuid.NewString()
	return sess.token
}

// consumeToken validates the submitted token against the session's current
// one. Stale or missing tokens are rejected; the current token is consumed
// either way so it cannot be replayed.
func (s *Server) consumeToken(w http.ResponseWriter, r *http.Request, sess *userSession) bool {
	s.mu.Lock()
	submitted := r.PostFormValue("authenticity_token")
	valid := sess.token != "" && submitted == sess.token
	sess.token = ""
	s.mu.Unlock()

	if !valid {
		http.Error(w, "stale or missing authenticity token", http.StatusUnprocessableEntity)
	}
	return valid
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.BasicAuthUser != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.opts.BasicAuthUser || pass != s.opts.BasicAuthPass {
				w.Header().Set("WWW-Authenticate", `Basic realm="signup"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sess := s.session(w, r)
	if sess.authenticated {
		http.Redirect(w, r, "/account", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/sign_in", http.StatusFound)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	switch r.Method {
	case http.MethodGet:
		s.renderSignIn(w, sess, "")
	case http.MethodPost:
		if !s.consumeToken(w, r, sess) {
			return
		}
		email := r.PostFormValue("user[email]")
		password := r.PostFormValue("user[password]")

		s.mu.Lock()
		stored, known := s.users[email]
		s.mu.Unlock()

		if !known || stored != password {
			s.renderSignIn(w, sess, "The email or password you entered is not correct.")
			return
		}
		if s.opts.NeverIssueOTP {
			s.renderSignIn(w, sess, "We are unable to send your security code right now.")
			return
		}

		s.mu.Lock()
		sess.email = email
		sess.pendingOTP = otpCode
		s.mu.Unlock()
		s.renderOTP(w, sess)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.consumeToken(w, r, sess) {
		return
	}

	s.mu.Lock()
	ok := sess.pendingOTP != "" && r.PostFormValue("code") == sess.pendingOTP
	signingUp := sess.signingUp
	if ok {
		sess.authenticated = true
		sess.pendingOTP = ""
		sess.signingUp = false
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "invalid security code", http.StatusUnprocessableEntity)
		return
	}
	if signingUp {
		http.Redirect(w, r, "/sign_up/personal_key", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/account", http.StatusFound)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if !sess.authenticated {
		http.Redirect(w, r, "/sign_in", http.StatusFound)
		return
	}

	signOut := `<a href="/api/saml/logout">Sign out</a>`
	if s.opts.HideSignOutLink {
		signOut = ""
	}
	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<div class="container">
  <h1>Your account</h1>
  <p>Signed in as %s</p>
  <a href="/manage/password">Edit password</a>
  %s
</div>
</body></html>`, sess.email, signOut)
}

func (s *Server) handleManagePassword(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if !sess.authenticated {
		http.Redirect(w, r, "/sign_in", http.StatusFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<form action="/manage/password" method="post">
  <input type="hidden" name="authenticity_token" value="%s">
  <input type="password" name="update_user_password_form[password]">
  <input type="submit" name="commit" value="update">
</form>
</body></html>`, s.freshToken(sess))
	case http.MethodPost:
		if !s.consumeToken(w, r, sess) {
			return
		}
		if r.PostFormValue("_method") != "patch" {
			http.Error(w, "expected _method=patch", http.StatusBadRequest)
			return
		}
		newPassword := r.PostFormValue("update_user_password_form[password]")
		if newPassword == "" {
			http.Error(w, "password required", http.StatusUnprocessableEntity)
			return
		}
		s.mu.Lock()
		s.users[sess.email] = newPassword
		s.mu.Unlock()
		http.Redirect(w, r, "/account", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.mu.Lock()
	sess.authenticated = false
	sess.email = ""
	s.mu.Unlock()
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"healthy":true,"checks":[{"name":"db","ok":true},{"name":"sms","ok":true}]}`)
}

func (s *Server) handleSignupStart(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	fmt.Fprint(w, `<!DOCTYPE html><html><body><a href="/sign_up/enter_email">Create an account</a></body></html>`)
}

func (s *Server) handleEnterEmail(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	switch r.Method {
	case http.MethodGet:
		fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<form action="/sign_up/enter_email" method="post">
  <input type="hidden" name="authenticity_token" value="%s">
  <input type="email" name="user[email]">
  <input type="submit" name="commit" value="Submit">
</form>
</body></html>`, s.freshToken(sess))
	case http.MethodPost:
		if !s.consumeToken(w, r, sess) {
			return
		}
		email := r.PostFormValue("user[email]")

		s.mu.Lock()
		_, exists := s.users[email]
		authed := sess.authenticated
		s.mu.Unlock()

		if exists && authed {
			http.Redirect(w, r, "/account", http.StatusFound)
			return
		}
		if exists {
			// Real targets send a "you already have an account" email and
			// render no confirmation link.
			fmt.Fprint(w, `<!DOCTYPE html><html><body><p>Check your email.</p></body></html>`)
			return
		}

		s.mu.Lock()
		sess.email = email
		s.mu.Unlock()

		// Test-mode convenience: the confirmation link is rendered inline.
		fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<p>Check your email.</p>
<a href="/sign_up/email/confirm?confirmation_token=%s">Confirm your email</a>
</body></html>`, uuid.NewString())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	confToken := r.URL.Query().Get("confirmation_token")
	if confToken == "" {
		http.Error(w, "missing confirmation token", http.StatusBadRequest)
		return
	}
	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<form action="/sign_up/create_password" method="post">
  <input type="hidden" name="authenticity_token" value="%s">
  <input type="hidden" name="confirmation_token" value="%s">
  <input type="password" name="password_form[password]">
  <input type="submit" name="commit" value="Submit">
</form>
</body></html>`, s.freshToken(sess), confToken)
}

func (s *Server) handleCreatePassword(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.consumeToken(w, r, sess) {
		return
	}
	if r.PostFormValue("confirmation_token") == "" {
		http.Error(w, "missing confirmation token", http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	s.users[sess.email] = r.PostFormValue("password_form[password]")
	sess.signingUp = true
	s.mu.Unlock()

	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<form action="/phone_setup" method="post">
  <input type="hidden" name="authenticity_token" value="%s">
  <input type="tel" name="user_phone_form[phone]">
  <input type="submit" name="commit" value="Send security code">
</form>
</body></html>`, s.freshToken(sess))
}

func (s *Server) handlePhoneSetup(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.consumeToken(w, r, sess) {
		return
	}
	if r.PostFormValue("user_phone_form[phone]") == "" {
		http.Error(w, "phone required", http.StatusUnprocessableEntity)
		return
	}
	if s.opts.NeverIssueOTP {
		fmt.Fprint(w, `<!DOCTYPE html><html><body><p>We are unable to send your security code right now.</p></body></html>`)
		return
	}

	s.mu.Lock()
	sess.pendingOTP = otpCode
	s.mu.Unlock()
	s.renderOTP(w, sess)
}

func (s *Server) handlePersonalKey(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	switch r.Method {
	case http.MethodGet:
		s.renderPersonalKey(w, sess)
	case http.MethodPost:
		if !s.consumeToken(w, r, sess) {
			return
		}
		http.Redirect(w, r, "/account", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// renderOTP renders the two-factor page with the test-mode pre-filled code.
func (s *Server) renderOTP(w http.ResponseWriter, sess *userSession) {
	s.mu.Lock()
	code := sess.pendingOTP
	s.mu.Unlock()
	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<form action="/login/two_factor/sms" method="post">
  <input type="hidden" name="authenticity_token" value="%s">
  <input name="code" id="code" value="%s">
  <input type="submit" name="commit" value="Submit">
</form>
</body></html>`, s.freshToken(sess), code)
}

func (s *Server) renderPersonalKey(w http.ResponseWriter, sess *userSession) {
	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<p>Your personal key: ABCD-EFGH-IJKL-MNOP</p>
<form action="/sign_up/personal_key" method="post">
  <input type="hidden" name="authenticity_token" value="%s">
  <input type="submit" name="commit" value="Continue">
</form>
</body></html>`, s.freshToken(sess))
}

func (s *Server) renderSignIn(w http.ResponseWriter, sess *userSession, flash string) {
	notice := ""
	if flash != "" {
		notice = fmt.Sprintf(`<div class="alert">%s</div>`, flash)
	}
	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<div class="container">
%s
<form action="/sign_in" method="post">
  <input type="hidden" name="authenticity_token" value="%s">
  <input type="email" name="user[email]">
  <input type="password" name="user[password]">
  <input type="submit" name="commit" value="Submit">
</form>
</div>
</body></html>`, notice, s.freshToken(sess))
}
