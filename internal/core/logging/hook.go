package logging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/colonyops/cadence/internal/core/actor"
)

// ContextHook copies run_id and actor_id from the event's context onto the
// event.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil || ctx == context.Background() {
		return
	}

	if id := RunID(ctx); id != "" {
		e.Str("run_id", id)
	}
	if a, ok := actor.FromContext(ctx); ok && a.ID != "" {
		e.Str("actor_id", a.ID)
	}
}
