// Package session proves a stored credential is still valid before any
// protected UI is shown, and keeps the client usable when it cannot prove
// anything: auth rejections destroy the credential, network trouble never
// does.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wavechat/client/internal/application/flight"
	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
	"github.com/wavechat/client/internal/infrastructure/config"
)

// Validation failure reasons surfaced to callers
const (
	ReasonNoToken          = "no_token"
	ReasonAuthRejected     = "auth_rejected"
	ReasonRouteUnavailable = "route_unavailable"
	ReasonNetwork          = "network"
)

// AuthClient is the slice of the backend boundary the validator needs
type AuthClient interface {
	Me(ctx context.Context, token string) (syncdomain.User, error)
	Mount(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (*syncdomain.AuthGrant, error)
	Logout(ctx context.Context, token string) error
}

// ConnectivityGate exposes the monitor's readiness to the validator
type ConnectivityGate interface {
	WaitReady(ctx context.Context) error
	Online() bool
}

// Result is the outcome of one validation pass
type Result struct {
	Valid  bool
	User   *syncdomain.User
	Reason string
}

// Validator is the single-flight authentication bootstrap. Validate may be
// called by any number of goroutines; exactly one identity check runs and
// every caller shares its outcome.
type Validator struct {
	client AuthClient
	creds  *CredentialStore
	gate   ConnectivityGate
	bus    shared.EventPublisher
	mirror syncdomain.StateRepository
	cfg    config.SessionConfig
	logger *zap.Logger

	validateFlight flight.Flight[Result]

	mu      sync.RWMutex
	session *syncdomain.Session
	ready   bool

	fallbackOnce sync.Once
}

// NewValidator creates a session validator
func NewValidator(client AuthClient, creds *CredentialStore, gate ConnectivityGate, bus shared.EventPublisher, mirror syncdomain.StateRepository, cfg config.SessionConfig, logger *zap.Logger) *Validator {
	return &Validator{
		client: client,
		creds:  creds,
		gate:   gate,
		bus:    bus,
		mirror: mirror,
		cfg:    cfg,
		logger: logger.Named("session"),
	}
}

// Validate runs the authentication bootstrap. Concurrent callers await the
// in-flight pass; at most one identity check hits the network.
func (v *Validator) Validate(ctx context.Context) Result {
	result, _ := v.validateFlight.Do(ctx, func(ctx context.Context) (Result, error) {
		return v.validate(ctx), nil
	})
	return result
}

// Revalidate replays the identity check for a session adopted while the
// backend was unreachable. Reports whether the session is now confirmed.
// Sync cycles call this so a client that booted offline recovers on its own
// once connectivity returns.
func (v *Validator) Revalidate(ctx context.Context) bool {
	v.mu.RLock()
	session := v.session
	v.mu.RUnlock()
	if session != nil && session.Validated {
		return true
	}
	return v.Validate(ctx).Valid
}

func (v *Validator) validate(ctx context.Context) Result {
	// Step 1: stored credential, primary slot then legacy fallback.
	// No credential means redirect without ever touching the network.
	token, err := v.creds.Load(ctx)
	if err != nil {
		if !errors.Is(err, shared.ErrNoCredential) {
			v.logger.Error("credential read failed", zap.Error(err))
		}
		v.setNotReady()
		_ = v.bus.Publish(ctx, syncdomain.NewSessionRedirectEvent(ReasonNoToken, v.cfg.EntryPath))
		return Result{Valid: false, Reason: ReasonNoToken}
	}

	// Step 2: wait for the first probe to complete, bounded. An unready
	// monitor is a slow start, not an auth failure: keep the credential.
	waitCtx, cancel := context.WithTimeout(ctx, v.cfg.ValidateTimeout)
	defer cancel()
	if err := v.gate.WaitReady(waitCtx); err != nil {
		v.logger.Warn("connectivity not ready before validation", zap.Error(err))
		return v.degrade(ctx, token, ReasonNetwork)
	}

	// Step 3: identity check with the bearer credential
	checkCtx, cancelCheck := context.WithTimeout(ctx, v.cfg.ValidateTimeout)
	defer cancelCheck()
	user, err := v.client.Me(checkCtx, token)

	if shared.IsRouteUnavailable(err) && v.cfg.RetryOnRouteMissing {
		// The identity route may be missing because this device was
		// never announced. Remount once, then retry the original call.
		v.logger.Warn("identity route unavailable, remounting")
		if mountErr := v.client.Mount(checkCtx, token); mountErr != nil {
			v.logger.Warn("remount failed", zap.Error(mountErr))
		}
		user, err = v.client.Me(checkCtx, token)
	}

	switch {
	case err == nil:
		return v.adopt(ctx, syncdomain.NewValidatedSession(token, user))

	case shared.IsAuthRejected(err) || shared.IsRouteUnavailable(err):
		// Terminal for this credential: destroy it and send the UI to
		// the entry page.
		v.logger.Info("credential rejected, clearing", zap.Error(err))
		if clearErr := v.creds.Clear(ctx); clearErr != nil {
			v.logger.Error("credential clear failed", zap.Error(clearErr))
		}
		v.setNotReady()
		reason := ReasonAuthRejected
		if shared.IsRouteUnavailable(err) {
			reason = ReasonRouteUnavailable
		}
		_ = v.bus.Publish(ctx, syncdomain.NewSessionRedirectEvent(reason, v.cfg.EntryPath))
		return Result{Valid: false, Reason: reason}

	default:
		// Transient network trouble: keep the credential, keep the UI
		// alive on last-known identity, leave readiness unconfirmed.
		v.logger.Warn("identity check inconclusive", zap.Error(err))
		return v.degrade(ctx, token, ReasonNetwork)
	}
}

// adopt installs a validated session, marks auth ready and broadcasts it
func (v *Validator) adopt(ctx context.Context, s *syncdomain.Session) Result {
	v.mu.Lock()
	v.session = s
	v.ready = true
	v.mu.Unlock()

	if err := v.creds.StoreLastUser(ctx, s.Profile); err != nil {
		v.logger.Warn("failed to persist identity", zap.Error(err))
	}
	v.persistMirror(ctx)

	v.logger.Info("session validated", zap.String("user_id", s.UserID))
	_ = v.bus.Publish(ctx, syncdomain.NewAuthReadyEvent(s.UserID, true))

	user := s.Profile
	return Result{Valid: true, User: &user}
}

// degrade constructs an unconfirmed session for UI continuity. Readiness
// stays false so callers know authentication is unconfirmed.
func (v *Validator) degrade(ctx context.Context, token, reason string) Result {
	user, _ := v.creds.LastUser(ctx)
	degraded := syncdomain.NewDegradedSession(token, user)

	v.mu.Lock()
	v.session = degraded
	v.mu.Unlock()
	v.persistMirror(ctx)

	result := Result{Valid: false, Reason: reason}
	if user.ID != "" {
		u := user
		result.User = &u
	}
	return result
}

// StartReadyFallback arms the hard ceiling: if validation has not resolved
// in time and a credential exists, mark ready anyway on a degraded session
// rather than leaving the UI on an indefinite loading screen.
func (v *Validator) StartReadyFallback(ctx context.Context) {
	v.fallbackOnce.Do(func() {
		go func() {
			timer := time.NewTimer(v.cfg.ReadyCeiling)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			if v.Ready() {
				return
			}
			token, err := v.creds.Load(ctx)
			if err != nil {
				_ = v.bus.Publish(ctx, syncdomain.NewSessionRedirectEvent(ReasonNoToken, v.cfg.EntryPath))
				return
			}
			v.logger.Warn("validation ceiling hit, forcing degraded readiness")
			v.degrade(ctx, token, ReasonNetwork)
			v.mu.Lock()
			v.ready = true
			session := v.session
			v.mu.Unlock()
			v.persistMirror(ctx)
			_ = v.bus.Publish(ctx, syncdomain.NewAuthReadyEvent(session.UserID, false))
		}()
	})
}

// AdoptGrant installs the session produced by login, register or refresh
// and persists the credential to both slots.
func (v *Validator) AdoptGrant(ctx context.Context, grant *syncdomain.AuthGrant) (*syncdomain.Session, error) {
	if err := v.creds.Store(ctx, grant.Token); err != nil {
		return nil, err
	}
	result := v.adopt(ctx, syncdomain.NewValidatedSession(grant.Token, grant.User))
	if !result.Valid {
		return nil, shared.ErrInvalidState
	}
	return v.Session(), nil
}

// RefreshIfNeeded exchanges a near-expiry token for a fresh one. Called by
// the scheduler; transient failures are left for the next cycle.
func (v *Validator) RefreshIfNeeded(ctx context.Context) error {
	s := v.Session()
	if s == nil || !s.Validated || !s.ExpiresSoon(v.cfg.RefreshWindow) {
		return nil
	}
	grant, err := v.client.Refresh(ctx, s.Token)
	if err != nil {
		if shared.IsAuthRejected(err) {
			v.logger.Info("refresh rejected, clearing credential")
			_ = v.creds.Clear(ctx)
			v.setNotReady()
			_ = v.bus.Publish(ctx, syncdomain.NewSessionRedirectEvent(ReasonAuthRejected, v.cfg.EntryPath))
		}
		return err
	}
	_, err = v.AdoptGrant(ctx, grant)
	return err
}

// Logout invalidates the token remotely (best-effort) and destroys all
// local session state.
func (v *Validator) Logout(ctx context.Context) {
	s := v.Session()
	if s != nil {
		if err := v.client.Logout(ctx, s.Token); err != nil {
			v.logger.Debug("remote logout failed", zap.Error(err))
		}
	}
	if err := v.creds.Clear(ctx); err != nil {
		v.logger.Error("credential clear failed", zap.Error(err))
	}
	v.mu.Lock()
	v.session = nil
	v.ready = false
	v.mu.Unlock()
	v.persistMirror(ctx)
	_ = v.bus.Publish(ctx, syncdomain.NewSessionRedirectEvent("logout", v.cfg.EntryPath))
}

// Session returns a copy of the current session, nil when absent
func (v *Validator) Session() *syncdomain.Session {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil
	}
	clone := *v.session
	return &clone
}

// Ready reports whether protected content may render
func (v *Validator) Ready() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ready
}

// ActiveUserID returns the owner for cache and queue scoping, empty when
// no session exists.
func (v *Validator) ActiveUserID() string {
	s := v.Session()
	if s == nil {
		return ""
	}
	return s.UserID
}

func (v *Validator) setNotReady() {
	v.mu.Lock()
	v.session = nil
	v.ready = false
	v.mu.Unlock()
}

// authSnapshot is the restart-visible mirror of auth state
type authSnapshot struct {
	UserID    string `json:"user_id,omitempty"`
	Validated bool   `json:"validated"`
	Ready     bool   `json:"ready"`
}

func (v *Validator) persistMirror(ctx context.Context) {
	if v.mirror == nil {
		return
	}
	v.mu.RLock()
	snap := authSnapshot{Ready: v.ready}
	if v.session != nil {
		snap.UserID = v.session.UserID
		snap.Validated = v.session.Validated
	}
	v.mu.RUnlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := v.mirror.Set(ctx, syncdomain.StateKeyAuthSnapshot, string(raw)); err != nil {
		v.logger.Warn("failed to mirror auth snapshot", zap.Error(err))
	}
}
