// Package actor carries the identity of whoever is driving an operation.
package actor

import "context"

// Actor is the user on whose behalf the engine runs. SeesAllPeriods grants
// oversight of every item regardless of its active months.
type Actor struct {
	ID             string `json:"id" yaml:"id"`
	SeesAllPeriods bool   `json:"sees_all_periods" yaml:"sees_all_periods"`
}

type contextKey struct{}

// WithActor adds an actor to the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext retrieves the actor from the context.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
