// Package core defines the fundamental interfaces and types for Stampede.
package core

import (
	"context"
	"time"
)

// Event represents the terminal result of one flow executed by a virtual user.
type Event struct {
	ActorID    int
	RunID      string // correlates all flows of one journey iteration
	Timestamp  time.Time
	Journey    string
	Flow       string // "login", "change_password", "signup", "logout"
	Duration   time.Duration
	Success    bool
	Error      string
	Class      string // failure class: missing_token, missing_code, unexpected_location, transport
	StatusCode int    // last HTTP status observed by the flow
	Terminal   bool   // true for the event that ends the journey iteration
}

// Workflow defines a user journey that a virtual user executes.
// Each invocation of Run is one complete journey iteration.
type Workflow interface {
	Run(ctx context.Context, actorID int, coord Coordinator, rep Reporter) error
}

// Coordinator spawns and manages virtual users.
type Coordinator interface {
	Spawn(ctx context.Context, count int, workflow Workflow)
}

// Reporter is the interface virtual users use to send events to the Collector.
type Reporter interface {
	Report(Event)
}

// MultiReporter fans out events to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// Context key for passing the actor ID to flows.
type contextKey string

const actorIDContextKey contextKey = "actorID"

func ContextWithActorID(ctx context.Context, actorID int) context.Context {
	return context.WithValue(ctx, actorIDContextKey, actorID)
}

func ActorIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(actorIDContextKey).(int); ok {
		return id
	}
	return 0
}
