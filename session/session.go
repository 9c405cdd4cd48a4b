// Package session implements the Session & Token Manager (C12): token
// issuance/authentication, a per-device sliding-window rate limiter, and
// the maintenance-window / insecure-auto-auth gates.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/soho-iot/zerotrust/config"
	"github.com/soho-iot/zerotrust/validate"
)

// DefaultTTL is the session inactivity timeout, per spec §4.12.
const DefaultTTL = 300 * time.Second

// DefaultRateLimitCount and DefaultRateLimitWindow are the sliding-window
// packet budget, per spec §4.12.
const (
	DefaultRateLimitCount  = 60
	DefaultRateLimitWindow = 60 * time.Second
)

// defaultIssuanceRate and defaultIssuanceBurst bound the rate of Issue
// calls across all devices, independent of the per-device sliding-window
// data-rate limit enforced in Authenticate: this guards the Identity Store
// and CA against an onboarding storm (many MACs requesting a token at
// once), not a single device's packet rate.
const (
	defaultIssuanceRate  = 5
	defaultIssuanceBurst = 10
)

// Reason is the machine-readable rejection reason returned by Authenticate.
type Reason string

const (
	ReasonOK                 Reason = ""
	ReasonUnknownSession     Reason = "unknown_session"
	ReasonTokenMismatch      Reason = "token_mismatch"
	ReasonExpired            Reason = "expired"
	ReasonRateLimitExceeded  Reason = "rate_limit_exceeded"
	ReasonMaintenanceWindow  Reason = "maintenance_window"
	ReasonDeviceNotEligible  Reason = "device_not_eligible"
)

// DeviceEligibility is the narrow capability used to decide whether
// issue(device_id, mac) is permitted, per spec §4.12 step 1.
type DeviceEligibility interface {
	IsActive(deviceID string) bool
	IsApprovedPending(mac string) bool
}

type record struct {
	token        string
	lastActivity time.Time
	window       *slidingWindow
}

// Manager is the Session & Token Manager (C12).
type Manager struct {
	eligibility       DeviceEligibility
	maintenanceWindow config.MaintenanceWindow
	ttl               time.Duration
	rateLimitCount    int
	rateLimitWindow   time.Duration
	allowInsecureAuto bool
	staticAllowList   map[string]bool
	issuanceLimiter   *rate.Limiter

	mu       sync.Mutex
	sessions map[string]*record
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithTTL overrides the default session TTL.
func WithTTL(ttl time.Duration) Option { return func(m *Manager) { m.ttl = ttl } }

// WithRateLimit overrides the default sliding-window rate limit.
func WithRateLimit(count int, window time.Duration) Option {
	return func(m *Manager) { m.rateLimitCount, m.rateLimitWindow = count, window }
}

// WithInsecureAutoAuth enables auto-admission of well-formed new MACs,
// gated off by default per spec §4.12's closing paragraph.
func WithInsecureAutoAuth(enabled bool) Option {
	return func(m *Manager) { m.allowInsecureAuto = enabled }
}

// WithStaticAllowList seeds the deployment-configurable fallback allow-list.
func WithStaticAllowList(deviceIDs []string) Option {
	return func(m *Manager) {
		for _, id := range deviceIDs {
			m.staticAllowList[id] = true
		}
	}
}

// WithIssuanceRateLimit overrides the default global token-issuance rate.
func WithIssuanceRateLimit(r rate.Limit, burst int) Option {
	return func(m *Manager) { m.issuanceLimiter = rate.NewLimiter(r, burst) }
}

// New constructs a Manager.
func New(eligibility DeviceEligibility, maintenanceWindow config.MaintenanceWindow, opts ...Option) *Manager {
	m := &Manager{
		eligibility:       eligibility,
		maintenanceWindow: maintenanceWindow,
		ttl:               DefaultTTL,
		rateLimitCount:    DefaultRateLimitCount,
		rateLimitWindow:   DefaultRateLimitWindow,
		staticAllowList:   make(map[string]bool),
		issuanceLimiter:   rate.NewLimiter(defaultIssuanceRate, defaultIssuanceBurst),
		sessions:          make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue generates a session token for device_id, per spec §4.12 step 1-3.
func (m *Manager) Issue(deviceID, mac string) (string, error) {
	eligible := m.eligibility.IsActive(deviceID) || m.staticAllowList[deviceID] || m.eligibility.IsApprovedPending(mac)
	if !eligible && m.allowInsecureAuto {
		normalized, err := validate.NormalizeMAC(mac)
		eligible = err == nil && validate.IsValidMAC(normalized)
	}
	if !eligible {
		return "", errNotEligible
	}
	if !m.issuanceLimiter.Allow() {
		return "", errIssuanceRateLimited
	}

	token := uuid.NewString()
	m.mu.Lock()
	m.sessions[deviceID] = &record{token: token, lastActivity: time.Now().UTC(), window: newSlidingWindow(m.rateLimitWindow)}
	m.mu.Unlock()
	return token, nil
}

// Authenticate validates a plain `authenticate(device_id, token)` check:
// record existence, token match, and TTL only, per spec §4.12 step 1-3 (P6,
// S2). It does not apply the rate limit or maintenance-window gate — those
// only apply to a data submission; see Submit. On success it refreshes
// last_activity.
func (m *Manager) Authenticate(deviceID, token string) Reason {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, reason := m.lookupAndValidate(deviceID, token)
	if reason != ReasonOK {
		return reason
	}
	rec.lastActivity = time.Now().UTC()
	return ReasonOK
}

// Submit validates a data submission: the same record/token/TTL checks as
// Authenticate, plus the per-device sliding-window rate limit and the
// maintenance-window gate, per spec §4.12's "on each data submission"
// paragraph. On success it refreshes last_activity.
func (m *Manager) Submit(deviceID, token string) Reason {
	if m.maintenanceWindow.Contains(time.Now()) {
		return ReasonMaintenanceWindow
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, reason := m.lookupAndValidate(deviceID, token)
	if reason != ReasonOK {
		return reason
	}
	now := time.Now().UTC()
	if !rec.window.allow(now, m.rateLimitCount) {
		return ReasonRateLimitExceeded
	}
	rec.lastActivity = now
	return ReasonOK
}

// lookupAndValidate checks record existence, token match, and TTL. The
// caller must hold m.mu.
func (m *Manager) lookupAndValidate(deviceID, token string) (*record, Reason) {
	rec, ok := m.sessions[deviceID]
	if !ok {
		return nil, ReasonUnknownSession
	}
	if rec.token != token {
		return nil, ReasonTokenMismatch
	}
	if time.Now().UTC().Sub(rec.lastActivity) > m.ttl {
		return nil, ReasonExpired
	}
	return rec, ReasonOK
}

// errNotEligible is returned by Issue when none of the eligibility paths in
// spec §4.12 step 1 are satisfied.
var errNotEligible = &eligibilityError{}

type eligibilityError struct{}

func (*eligibilityError) Error() string { return "device not eligible for session issuance" }

// errIssuanceRateLimited is returned by Issue when the global issuance
// limiter is exhausted.
var errIssuanceRateLimited = &issuanceRateLimitError{}

type issuanceRateLimitError struct{}

func (*issuanceRateLimitError) Error() string { return "token issuance rate limit exceeded" }
