package flow

import "testing"

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome  Outcome
		expected string
	}{
		{OutcomeSuccess, "success"},
		{OutcomeFailure, "failure"},
		{OutcomeError, "error"},
		{Outcome(9), "outcome(9)"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.expected {
			t.Errorf("Outcome(%d).String() = %q, expected %q", tt.outcome, got, tt.expected)
		}
	}
}

func TestResultFailed(t *testing.T) {
	if (Result{Outcome: OutcomeSuccess}).Failed() {
		t.Error("success must not be failed")
	}
	if !(Result{Outcome: OutcomeFailure}).Failed() {
		t.Error("failure must be failed")
	}
	if !(Result{Outcome: OutcomeError}).Failed() {
		t.Error("error must be failed")
	}
}
