package flow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stampede/idptest"
	"stampede/internal/data"
)

func TestChangePassword_Success(t *testing.T) {
	idp, ts := startIdP(t, idptest.Options{})
	idp.Register("testuser5@example.com", "salty pickles")

	s := newTestSession(t, ts.URL, nil)
	login := &Login{Credential: data.Credential{Email: "testuser5@example.com", Password: "salty pickles"}}
	if result := login.Run(context.Background(), s, NewExtractor()); result.Failed() {
		t.Fatalf("setup login failed: %s", result.Diagnostic)
	}

	change := &ChangePassword{NewPassword: RescuePassword}
	result := change.Run(context.Background(), s, NewExtractor())

	if result.Failed() {
		t.Fatalf("expected success, got %s: %s", result.Outcome, result.Diagnostic)
	}
	if pw, _ := idp.Password("testuser5@example.com"); pw != RescuePassword {
		t.Errorf("expected password to be changed, target has %q", pw)
	}
}

func TestChangePassword_ChangeAndRevert(t *testing.T) {
	idp, ts := startIdP(t, idptest.Options{})
	idp.Register("testuser6@example.com", "salty pickles")

	s := newTestSession(t, ts.URL, nil)
	x := NewExtractor()
	ctx := context.Background()

	login := &Login{Credential: data.Credential{Email: "testuser6@example.com", Password: "salty pickles"}}
	if result := login.Run(ctx, s, x); result.Failed() {
		t.Fatalf("setup login failed: %s", result.Diagnostic)
	}

	if result := (&ChangePassword{NewPassword: RescuePassword}).Run(ctx, s, x); result.Failed() {
		t.Fatalf("change failed: %s", result.Diagnostic)
	}
	if result := (&ChangePassword{NewPassword: "salty pickles"}).Run(ctx, s, x); result.Failed() {
		t.Fatalf("revert failed: %s", result.Diagnostic)
	}

	if pw, _ := idp.Password("testuser6@example.com"); pw != "salty pickles" {
		t.Errorf("expected password reverted, target has %q", pw)
	}
	if got := idp.Count("POST", "/manage/password"); got != 2 {
		t.Errorf("expected 2 password submissions, got %d", got)
	}
}

func TestChangePassword_EditLinkAbsent(t *testing.T) {
	// No edit link: terminal failure, no POST, and the page's visible
	// error text lands in the diagnostic.
	var posts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.Write([]byte(`<html><body><div class="container">You have reached your daily OTP limit.</div></body></html>`))
	}))
	defer server.Close()

	s := newTestSession(t, server.URL, nil)
	change := &ChangePassword{NewPassword: RescuePassword}

	result := change.Run(context.Background(), s, NewExtractor())

	if result.Outcome != OutcomeFailure || result.Class != ClassMissingToken {
		t.Fatalf("expected missing_token failure, got %s/%s", result.Outcome, result.Class)
	}
	if posts != 0 {
		t.Errorf("expected no POST when the edit link is absent, got %d", posts)
	}
	if !strings.Contains(result.Diagnostic, "daily OTP limit") {
		t.Errorf("diagnostic must include visible page text, got %q", result.Diagnostic)
	}
}

func TestChangePassword_ReauthenticationRequired(t *testing.T) {
	// Following the edit link lands somewhere else: the target wants
	// reauthentication, which the flow does not attempt.
	var posts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			posts++
		case r.URL.Path == "/account":
			w.Write([]byte(`<html><body><a href="/manage/password">Edit password</a></body></html>`))
		case r.URL.Path == "/manage/password":
			http.Redirect(w, r, "/reauthn", http.StatusFound)
		default:
			w.Write([]byte(`<html><body>Confirm it's you</body></html>`))
		}
	}))
	defer server.Close()

	s := newTestSession(t, server.URL, nil)
	change := &ChangePassword{NewPassword: RescuePassword}

	result := change.Run(context.Background(), s, NewExtractor())

	if result.Outcome != OutcomeFailure || result.Class != ClassUnexpectedLocation {
		t.Fatalf("expected unexpected_location failure, got %s/%s: %s", result.Outcome, result.Class, result.Diagnostic)
	}
	if !strings.Contains(result.Diagnostic, "reauthentication required") {
		t.Errorf("expected reauthentication diagnostic, got %q", result.Diagnostic)
	}
	if posts != 0 {
		t.Errorf("expected no POST, got %d", posts)
	}
}
