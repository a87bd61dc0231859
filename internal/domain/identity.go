package domain

import (
	"context"
	"errors"
)

type callerKey struct{}

// ErrNoCaller is returned when no principal has been attached to the context.
var ErrNoCaller = errors.New("no caller in context")

// WithCaller attaches the invoking principal to ctx.
func WithCaller(ctx context.Context, caller Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the principal attached by WithCaller.
func CallerFrom(ctx context.Context) (Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(Address)
	return caller, ok && caller != ""
}

// ContextIdentity resolves the caller from the request context and the owner
// from static configuration.
type ContextIdentity struct {
	OwnerAddress Address
}

// Caller implements IdentityOracle.
func (c ContextIdentity) Caller(ctx context.Context) (Address, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return "", ErrNoCaller
	}
	return caller, nil
}

// Owner implements IdentityOracle.
func (c ContextIdentity) Owner() Address {
	return c.OwnerAddress
}
