// Package reconnect keeps the signaling transport connected.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// MaxRetries is the number of retries after the first failed dial.
	MaxRetries = 5
	// Step is the delay added per attempt.
	Step = time.Second
	// MaxDelay caps a single wait.
	MaxDelay = 5 * time.Second
)

var ErrReconnectExhausted = errors.New("could not reach the signaling server")

// Linear waits attempt*Step, capped at Max, and stops after Retries attempts.
type Linear struct {
	Step    time.Duration
	Max     time.Duration
	Retries int

	attempt int
}

// NewLinear returns the default retry policy.
func NewLinear() *Linear {
	return &Linear{Step: Step, Max: MaxDelay, Retries: MaxRetries}
}

func (l *Linear) NextBackOff() time.Duration {
	if l.attempt >= l.Retries {
		return backoff.Stop
	}
	l.attempt++
	return min(time.Duration(l.attempt)*l.Step, l.Max)
}

// Reset zeroes the attempt counter.
func (l *Linear) Reset() { l.attempt = 0 }

// Manager dials through a retry policy and redials whenever the session ends
// because the transport was lost.
type Manager struct {
	// Policy returns a fresh policy per connect cycle; nil uses NewLinear.
	Policy func() backoff.BackOff
	// Timer replaces the real clock in tests.
	Timer backoff.Timer
	// OnRetry is told about every failed dial and the wait before the next.
	OnRetry func(err error, wait time.Duration)
}

// Connect calls dial until it succeeds or the policy gives up.
func (m *Manager) Connect(ctx context.Context, dial func(context.Context) error) error {
	policy := m.policy()
	op := func() error {
		err := dial(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(policy, ctx), m.OnRetry, m.Timer)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("%w: %v", ErrReconnectExhausted, err)
	}
}

// Run connects, then runs serve until it returns. A nil result from serve
// ends Run and so does an error wrapped with backoff.Permanent, which Run
// returns unwrapped. Any other error means the transport dropped and
// triggers a redial with a fresh attempt counter.
func (m *Manager) Run(ctx context.Context, dial func(context.Context) error, serve func(context.Context) error) error {
	for {
		if err := m.Connect(ctx, dial); err != nil {
			return err
		}
		err := serve(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Unwrap()
		}
		if m.OnRetry != nil {
			m.OnRetry(err, 0)
		}
	}
}

func (m *Manager) policy() backoff.BackOff {
	if m.Policy != nil {
		return m.Policy()
	}
	return NewLinear()
}
