// Package auth contains the pure security logic of gophauth: access token
// issuance and verification, and the account lockout policy.
package auth

import (
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type LockState int

const (
	Unlocked LockState = iota
	Locked
)

func (s LockState) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// LoginState is the pair of counters persisted on the account after a login
// attempt.
type LoginState struct {
	FailedAttempts int
	LockedUntil    *time.Time
	// JustLocked is set when this failure pushed the account into Locked.
	JustLocked bool
}

// LockoutPolicy decides lock transitions. It holds no state of its own; the
// counters live on the account row. Unlocking is lazy: an expired lock is only
// noticed by the next attempt.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

func NewLockoutPolicy(cfg *config.Config) LockoutPolicy {
	return LockoutPolicy{Threshold: cfg.MaxFailedLogins, Window: cfg.LockoutDuration}
}

// State reports whether u is locked at now and, if so, for how long still.
func (p LockoutPolicy) State(u *models.User, now time.Time) (LockState, time.Duration) {
	if u.LockedUntil != nil && now.Before(*u.LockedUntil) {
		return Locked, u.LockedUntil.Sub(now)
	}
	return Unlocked, 0
}

// Failure computes the counters after a wrong password. Must only be called
// when State is Unlocked. A lock that has already expired restarts the count
// from zero.
func (p LockoutPolicy) Failure(u *models.User, now time.Time) LoginState {
	base := u.FailedLoginAttempts
	if u.LockedUntil != nil {
		base = 0
	}

	next := LoginState{FailedAttempts: base + 1}
	if next.FailedAttempts >= p.Threshold {
		until := now.Add(p.Window)
		next.LockedUntil = &until
		next.JustLocked = true
	}
	return next
}

// Success computes the counters after a correct password.
func (p LockoutPolicy) Success() LoginState {
	return LoginState{}
}
