// Package supervisor implements the Supervisor (C13): startup order,
// worker pool, hydration, and shutdown for every other component, per
// spec §4.13 and §5.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/soho-iot/zerotrust/adapter"
	"github.com/soho-iot/zerotrust/admission"
	"github.com/soho-iot/zerotrust/anomaly"
	"github.com/soho-iot/zerotrust/attestation"
	"github.com/soho-iot/zerotrust/breakglass"
	"github.com/soho-iot/zerotrust/ca"
	"github.com/soho-iot/zerotrust/config"
	"github.com/soho-iot/zerotrust/flowstats"
	"github.com/soho-iot/zerotrust/honeypot"
	"github.com/soho-iot/zerotrust/identity"
	"github.com/soho-iot/zerotrust/logging"
	"github.com/soho-iot/zerotrust/mlpredict"
	"github.com/soho-iot/zerotrust/notification"
	"github.com/soho-iot/zerotrust/onboarding"
	"github.com/soho-iot/zerotrust/orchestrate"
	"github.com/soho-iot/zerotrust/policy"
	"github.com/soho-iot/zerotrust/profiler"
	"github.com/soho-iot/zerotrust/ruleinstaller"
	"github.com/soho-iot/zerotrust/session"
	"github.com/soho-iot/zerotrust/trust"
)

// Supervisor owns the full component graph and its background workers.
type Supervisor struct {
	cfg config.Config

	Identity  *identity.BoltStore
	CA        *ca.CA
	Admission *admission.BoltStore
	Onboard   *onboarding.Service

	Profiler     *profiler.Profiler
	FlowStats    *flowstats.Aggregator
	Anomalies    *anomaly.Detector
	Trust        *trust.Scorer
	Attestation  *attestation.Scheduler
	Adapter      *adapter.Adapter
	Orchestrator *orchestrate.Orchestrator
	Sessions     *session.Manager

	Grants           breakglass.Store
	BreakglassPolicy breakglass.Policy

	installer ruleinstaller.Installer
	predictor mlpredict.Predictor
	honeypot  honeypot.LogSource
	logger    logging.Logger
	notifier  notification.Notifier
	switchIDs []string

	mu            sync.Mutex
	threatRecords map[string][]honeypot.ThreatRecord // key: sourceIP|eventType
	acted         map[string]bool                    // key: deviceID|timestamp(unixnano)|type
	lastHoneypot  time.Time
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithInstaller overrides the default no-op Rule Installer.
func WithInstaller(i ruleinstaller.Installer) Option {
	return func(s *Supervisor) { s.installer = i }
}

// WithPredictor overrides the default no-op ML Predictor.
func WithPredictor(p mlpredict.Predictor) Option {
	return func(s *Supervisor) { s.predictor = p }
}

// WithHoneypot overrides the default no-op Honeypot Log Source.
func WithHoneypot(h honeypot.LogSource) Option {
	return func(s *Supervisor) { s.honeypot = h }
}

// WithLogger overrides the default no-op structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithNotifier overrides the default no-op operator notifier.
func WithNotifier(n notification.Notifier) Option {
	return func(s *Supervisor) { s.notifier = n }
}

// WithSwitchIDs sets the set of southbound switch identifiers the flow
// poller (W3) requests counters from.
func WithSwitchIDs(ids []string) Option {
	return func(s *Supervisor) { s.switchIDs = ids }
}

// WithBreakglassStore overrides the default in-process quarantine-override
// store and policy.
func WithBreakglassStore(store breakglass.Store, policy breakglass.Policy) Option {
	return func(s *Supervisor) {
		s.Grants = store
		s.BreakglassPolicy = policy
	}
}

// New performs the startup sequence of spec §4.13 steps 1-6: open C1 and
// migrate, initialize C2, open C3, construct C8 and hydrate from C1,
// construct C5/C6/C7/C9/C10/C11/C12, and register C10 as a listener on C8.
// It does not start background workers; call Run for that.
func New(cfg config.Config, opts ...Option) (*Supervisor, error) {
	s := &Supervisor{
		cfg:              cfg,
		installer:        ruleinstaller.NoopInstaller{},
		predictor:        mlpredict.NoopPredictor{},
		honeypot:         honeypot.NoopLogSource{},
		logger:           logging.NopLogger{},
		notifier:         notification.NoopNotifier{},
		Grants:           breakglass.NewMemoryStore(),
		BreakglassPolicy: breakglass.DefaultPolicy(),
		threatRecords:    make(map[string][]honeypot.ThreatRecord),
		acted:            make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("supervisor: create data dir: %w", err)
	}

	identityStore, err := identity.Open(filepath.Join(cfg.DataDir, "identity.db"))
	if err != nil {
		return nil, fmt.Errorf("supervisor: open identity store: %w", err)
	}
	s.Identity = identityStore

	certAuthority, err := ca.Open(filepath.Join(cfg.DataDir, "ca"))
	if err != nil {
		return nil, fmt.Errorf("supervisor: open CA: %w", err)
	}
	s.CA = certAuthority

	admissionQueue, err := admission.Open(filepath.Join(cfg.DataDir, "admission.db"))
	if err != nil {
		return nil, fmt.Errorf("supervisor: open admission queue: %w", err)
	}
	s.Admission = admissionQueue

	s.Trust = trust.New(identityStore)
	if err := s.Trust.Hydrate(); err != nil {
		return nil, fmt.Errorf("supervisor: hydrate trust scorer: %w", err)
	}

	s.Profiler = profiler.New(identityStore, cfg.ProfilingDuration)
	s.FlowStats = flowstats.New(s.installer, identityStore)
	s.Anomalies = anomaly.New()
	s.Attestation = attestation.New(certAuthority, s.Trust, cfg.Cadences.Attestation)

	macs := macIndex{store: identityStore}
	s.Adapter = adapter.New(s.installer, macs)
	s.Orchestrator = orchestrate.New(s.installer, s.Trust, s.Anomalies, macs)

	if err := cfg.MaintenanceWindow.Resolve(); err != nil {
		return nil, fmt.Errorf("supervisor: resolve maintenance window: %w", err)
	}
	elig := eligibility{devices: identityStore, queue: admissionQueue, grants: s.Grants}
	s.Sessions = session.New(elig, cfg.MaintenanceWindow,
		session.WithTTL(cfg.SessionTTL),
		session.WithRateLimit(cfg.RateLimitPerWindow, cfg.RateLimitWindow),
		session.WithInsecureAutoAuth(cfg.AllowInsecureAutoAuth),
	)

	watcher, err := newWatcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("supervisor: construct link-layer watcher: %w", err)
	}
	s.Onboard = onboarding.NewService(watcher, admissionQueue, identityStore, certAuthority, s.Profiler, s.logger)
	if err := s.Onboard.Hydrate(); err != nil {
		return nil, fmt.Errorf("supervisor: hydrate admission service: %w", err)
	}

	// C10 listens on C8: every accepted trust-score change is mapped to an
	// enforcement action and applied via the Rule Installer (§4.10).
	s.Trust.RegisterListener(s.Adapter.OnTrustChange)
	s.Trust.RegisterListener(s.notifyOnTrustChange)

	if err := s.hydrateDevices(); err != nil {
		return nil, fmt.Errorf("supervisor: hydrate devices: %w", err)
	}

	return s, nil
}

// hydrateDevices implements spec §4.13's hydration rule: for every device
// in C1 with status=active or a non-null cert_ref, populate in-memory
// state without re-issuing credentials.
func (s *Supervisor) hydrateDevices() error {
	devices, err := s.Identity.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		if err := s.Trust.EnsureDevice(d.DeviceID); err != nil {
			return err
		}
		if d.Status != identity.StatusActive && d.CertRef == "" {
			continue
		}
		s.Attestation.Register(d.DeviceID, d.CertRef)
		s.Attestation.Heartbeat(d.DeviceID)
	}
	return nil
}

func (s *Supervisor) notifyOnTrustChange(deviceID string, old, newScore int, reason string) {
	bucket := trust.BucketOf(newScore)
	if bucket != trust.BucketUntrusted && bucket != trust.BucketSuspicious {
		return
	}
	evt := notification.NewEvent(notification.EventTrustDropped, deviceID, "supervisor", reason, time.Now().UTC(), map[string]any{
		"old_score": old,
		"new_score": newScore,
	})
	_ = s.notifier.Notify(context.Background(), evt)
}

// Close closes every owned store. Safe to call after Run returns.
func (s *Supervisor) Close() error {
	var firstErr error
	if err := s.Admission.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Identity.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// macIndex resolves a device_id to its MAC through the Identity Store,
// satisfying adapter.MACLookup and orchestrate.MACLookup without either
// package importing identity directly.
type macIndex struct {
	store identity.Store
}

func (m macIndex) MACOf(deviceID string) (string, bool) {
	d, err := m.store.GetDevice(deviceID)
	if err != nil || d == nil {
		return "", false
	}
	return d.MAC, true
}

// eligibility answers session.DeviceEligibility through the Identity Store,
// the Pending Admission Queue, and the quarantine-override grant store: a
// quarantined device with a currently-active breakglass grant is treated
// as eligible, per spec.md §4.12's operator escape hatch.
type eligibility struct {
	devices identity.Store
	queue   admission.Store
	grants  breakglass.Store
}

func (e eligibility) IsActive(deviceID string) bool {
	d, err := e.devices.GetDevice(deviceID)
	if err != nil || d == nil {
		return false
	}
	if d.Status == identity.StatusActive {
		return true
	}
	return d.Status == identity.StatusQuarantined && hasActiveGrant(e.grants, deviceID)
}

// hasActiveGrant reports whether deviceID has any non-expired active
// breakglass grant, regardless of which operator issued it.
func hasActiveGrant(store breakglass.Store, deviceID string) bool {
	if store == nil {
		return false
	}
	events, err := store.ListByDevice(deviceID)
	if err != nil {
		return false
	}
	now := time.Now().UTC()
	for _, e := range events {
		if e.Status == breakglass.StatusActive && now.Before(e.ExpiresAt) {
			return true
		}
	}
	return false
}

func (e eligibility) IsApprovedPending(mac string) bool {
	p, err := e.queue.GetByMAC(mac)
	return err == nil && p != nil && p.Status == admission.StatusApproved
}

// policyInputFromBaseline adapts a finalized Behavioral Baseline into the
// Policy Generator's narrow input shape (§3 Ownership: jointly owned by
// C1/C10).
func policyInputFromBaseline(b *identity.Baseline) policy.BaselineInput {
	dests := make([]string, 0, len(b.TopDestinations))
	for _, d := range b.TopDestinations {
		dests = append(dests, d.Key)
	}
	return policy.BaselineInput{
		DeviceID:        b.DeviceID,
		MeanPPS:         b.MeanPPS,
		MeanBPS:         b.MeanBPS,
		TopDestinations: dests,
	}
}
