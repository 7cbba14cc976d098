// Package journey composes flows into the weighted end-to-end scenarios
// virtual users execute, and reports one event per flow to the metrics
// sink. A journey aborts at its first failed flow; partial side effects
// (an un-reverted password change) are left as-is, acceptable for
// disposable load-test accounts.
package journey

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"stampede/internal/core"
	"stampede/internal/data"
	"stampede/internal/flow"
	"stampede/internal/ratelimit"
	"stampede/internal/session"
)

// Config wires a Runner to its target and collaborators.
type Config struct {
	TargetHost string
	// SPEntryURL enables the relying-party journey variants: the same IdP
	// flows entered through the relying party's redirect handshake.
	SPEntryURL string
	// SkipLogout suppresses the trailing logout flow of each journey.
	SkipLogout bool
	// Auth is applied to signup-related requests only.
	Auth    *session.BasicAuth
	Timeout time.Duration
	Debug   *session.DebugLogger
	// Weights overrides the default journey weights by name; a zero weight
	// disables a journey.
	Weights map[string]int
}

// Default journey weights, mirroring the expected real-world mix: password
// churn is rare, account creation less so, relying-party traffic dominates.
const (
	defaultWeightIdPChangePass    = 1
	defaultWeightIdPCreateAccount = 2
	defaultWeightSPChangePass     = 2
	defaultWeightSPCreateAccount  = 2
)

// definition is one named journey: a weight and a builder producing the
// ordered flows of a fresh iteration.
type definition struct {
	name   string
	weight int
	flows  func() []flow.Flow
}

// Runner picks and executes journeys. It implements core.Workflow; one
// Runner serves all virtual users, but every iteration gets its own
// Session, so users share nothing mutable.
type Runner struct {
	cfg       Config
	creds     *data.CredentialPool
	phones    *data.PhonePool
	emails    *data.EmailGenerator
	extractor flow.Extractor
	limiter   *ratelimit.RateLimiter

	journeys    []definition
	totalWeight int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRunner builds a Runner over the given pools. It returns an error when
// every journey is disabled.
func NewRunner(cfg Config, creds *data.CredentialPool, phones *data.PhonePool, emails *data.EmailGenerator) (*Runner, error) {
	r := &Runner{
		cfg:       cfg,
		creds:     creds,
		phones:    phones,
		emails:    emails,
		extractor: flow.NewExtractor(),
		rng:       rand.New(rand.NewSource(rand.Int63())),
	}

	r.add("idp_change_pass", defaultWeightIdPChangePass, func() []flow.Flow {
		return r.changePassFlows("")
	})
	r.add("idp_create_account", defaultWeightIdPCreateAccount, func() []flow.Flow {
		return r.createAccountFlows("")
	})
	if cfg.SPEntryURL != "" {
		r.add("sp_change_pass", defaultWeightSPChangePass, func() []flow.Flow {
			return r.changePassFlows(cfg.SPEntryURL)
		})
		r.add("sp_create_account", defaultWeightSPCreateAccount, func() []flow.Flow {
			return r.createAccountFlows(cfg.SPEntryURL)
		})
	}

	if r.totalWeight == 0 {
		return nil, fmt.Errorf("all journeys disabled by weights %v", cfg.Weights)
	}
	return r, nil
}

// SetRateLimiter paces journey starts; nil disables pacing.
func (r *Runner) SetRateLimiter(l *ratelimit.RateLimiter) {
	r.limiter = l
}

func (r *Runner) add(name string, weight int, flows func() []flow.Flow) {
	if w, ok := r.cfg.Weights[name]; ok {
		weight = w
	}
	if weight <= 0 {
		return
	}
	r.journeys = append(r.journeys, definition{name: name, weight: weight, flows: flows})
	r.totalWeight += weight
}

// changePassFlows is login, change the password, change it back, logout.
func (r *Runner) changePassFlows(entryURL string) []flow.Flow {
	cred := r.creds.Pick()
	flows := []flow.Flow{
		&flow.Login{Credential: cred, EntryURL: entryURL},
		&flow.ChangePassword{NewPassword: flow.RescuePassword},
		&flow.ChangePassword{NewPassword: cred.Password},
	}
	return r.withLogout(flows)
}

// createAccountFlows is a full signup, then logout.
func (r *Runner) createAccountFlows(entryURL string) []flow.Flow {
	flows := []flow.Flow{
		&flow.Signup{
			Email:    r.emails.Next(),
			Phone:    r.phones.Pick(),
			EntryURL: entryURL,
		},
	}
	return r.withLogout(flows)
}

func (r *Runner) withLogout(flows []flow.Flow) []flow.Flow {
	if r.cfg.SkipLogout {
		return flows
	}
	return append(flows, &flow.Logout{})
}

// pick returns a journey chosen by weight. Thread-safe.
func (r *Runner) pick() definition {
	r.mu.Lock()
	n := r.rng.Intn(r.totalWeight)
	r.mu.Unlock()
	for _, def := range r.journeys {
		n -= def.weight
		if n < 0 {
			return def
		}
	}
	return r.journeys[len(r.journeys)-1]
}

// Run executes one journey iteration for one virtual user. Flow failures
// are reported, never returned: one user's failed journey must not stop
// the run. Only context cancellation and session setup problems propagate.
func (r *Runner) Run(ctx context.Context, actorID int, coord core.Coordinator, rep core.Reporter) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	def := r.pick()
	runID := uuid.NewString()

	sess, err := session.New(r.cfg.TargetHost, session.Options{
		Timeout: r.cfg.Timeout,
		Auth:    r.cfg.Auth,
		Debug:   r.cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("creating session for %s: %w", def.name, err)
	}

	flows := def.flows()
	for i, f := range flows {
		start := time.Now()
		result := f.Run(ctx, sess, r.extractor)

		event := core.Event{
			ActorID:    actorID,
			RunID:      runID,
			Timestamp:  time.Now(),
			Journey:    def.name,
			Flow:       f.Name(),
			Duration:   time.Since(start),
			Success:    !result.Failed(),
			Class:      string(result.Class),
			StatusCode: result.StatusCode,
			Terminal:   result.Failed() || i == len(flows)-1,
		}
		if result.Failed() {
			event.Error = result.Diagnostic
		}
		rep.Report(event)

		if result.Failed() {
			// Abort the journey; the diagnostic is the journey's terminal
			// result. Cancellation is the only error that propagates.
			return ctx.Err()
		}
	}
	return nil
}

// Journeys returns the enabled journey names in registration order.
func (r *Runner) Journeys() []string {
	names := make([]string, len(r.journeys))
	for i, def := range r.journeys {
		names[i] = def.name
	}
	return names
}
