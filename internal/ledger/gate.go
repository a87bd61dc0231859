package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"token_swap/internal/domain"
)

// State returns the current operational state. It always succeeds.
func (l *Ledger) State() domain.OperationalState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// SetState overwrites the operational state. Owner only; any state is
// reachable from any state.
func (l *Ledger) SetState(ctx context.Context, state domain.OperationalState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	caller, err := l.requireOwner(ctx)
	if err != nil {
		return l.reject(OpSetState, err, slog.String("caller", string(caller)))
	}
	if !state.IsValid() {
		return l.reject(OpSetState, fmt.Errorf("%w: %d", domain.ErrInvalidState, uint8(state)))
	}
	if err := l.store.SaveState(state); err != nil {
		return domain.NewOpError(OpSetState, err)
	}
	prev := l.state
	l.state = state
	l.logger.Info("operational state changed",
		slog.String("from", prev.String()),
		slog.String("to", state.String()),
	)
	return nil
}

// requireActive must be called with l.mu held.
func (l *Ledger) requireActive() error {
	switch l.state {
	case domain.StateActive:
		return nil
	default: // Inactive and Paused block alike
		return fmt.Errorf("%w: state is %s", domain.ErrNotActive, l.state)
	}
}

// requireOwner resolves the caller and checks it against the owner.
func (l *Ledger) requireOwner(ctx context.Context) (domain.Address, error) {
	caller, err := l.identity.Caller(ctx)
	if err != nil {
		return "", err
	}
	if caller != l.identity.Owner() {
		return caller, domain.ErrUnauthorized
	}
	return caller, nil
}
