package flow

import (
	"fmt"

	"stampede/internal/session"
)

// Outcome is the terminal disposition of a flow.
type Outcome int

const (
	// OutcomeSuccess: all expected protocol milestones were reached, or the
	// session was already in the target state (idempotent no-op).
	OutcomeSuccess Outcome = iota
	// OutcomeFailure: the target responded but an expected field, code, or
	// location was missing after all defined retries.
	OutcomeFailure
	// OutcomeError: the exchange itself failed (network error or a
	// non-success HTTP status on a required step).
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FailureClass classifies non-success results for operator triage.
type FailureClass string

const (
	ClassNone FailureClass = ""
	// ClassMissingToken: structural — the page is not the expected form.
	ClassMissingToken FailureClass = "missing_token"
	// ClassMissingCode: protocol — the one-time code was never issued, or
	// the rescue attempt was exhausted.
	ClassMissingCode FailureClass = "missing_code"
	// ClassUnexpectedLocation: redirected somewhere the flow did not anticipate.
	ClassUnexpectedLocation FailureClass = "unexpected_location"
	// ClassTransport: network failure or non-success HTTP status.
	ClassTransport FailureClass = "transport"
)

// Result is the immutable terminal outcome of one flow execution.
type Result struct {
	Outcome     Outcome
	Class       FailureClass
	TerminalURL string
	StatusCode  int
	Diagnostic  string
}

// Failed reports whether the flow did not reach its success milestone.
func (r Result) Failed() bool {
	return r.Outcome != OutcomeSuccess
}

func success(p *session.Page, diagnostic string) Result {
	r := Result{Outcome: OutcomeSuccess, Diagnostic: diagnostic}
	if p != nil {
		r.TerminalURL = p.URL.String()
		r.StatusCode = p.StatusCode
	}
	return r
}

func failure(class FailureClass, p *session.Page, format string, args ...any) Result {
	r := Result{
		Outcome:    OutcomeFailure,
		Class:      class,
		Diagnostic: fmt.Sprintf(format, args...),
	}
	if p != nil {
		r.TerminalURL = p.URL.String()
		r.StatusCode = p.StatusCode
	}
	return r
}

// transportErr covers request construction and network failures.
func transportErr(step string, err error) Result {
	return Result{
		Outcome:    OutcomeError,
		Class:      ClassTransport,
		Diagnostic: fmt.Sprintf("%s: %v", step, err),
	}
}

// badStatus covers responses outside the success range on a required step.
func badStatus(step string, p *session.Page) Result {
	return Result{
		Outcome:     OutcomeError,
		Class:       ClassTransport,
		TerminalURL: p.URL.String(),
		StatusCode:  p.StatusCode,
		Diagnostic:  fmt.Sprintf("%s: unexpected status %d at %s", step, p.StatusCode, p.URL),
	}
}
