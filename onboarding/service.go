package onboarding

import (
	"context"
	"sync"
	"time"

	"github.com/soho-iot/zerotrust/admission"
	"github.com/soho-iot/zerotrust/ca"
	cperrors "github.com/soho-iot/zerotrust/errors"
	"github.com/soho-iot/zerotrust/identity"
	"github.com/soho-iot/zerotrust/logging"
	"github.com/soho-iot/zerotrust/validate"
)

// CertIssuer is the narrow CA capability the Admission Service depends on,
// satisfied by *ca.CA.
type CertIssuer interface {
	Issue(deviceID, mac string, validity time.Duration) (*ca.Credential, error)
}

// Profiler is the narrow C5 capability invoked on successful onboarding.
type Profiler interface {
	Begin(deviceID string)
}

// Service is the Admission Service (C4).
type Service struct {
	watcher   Watcher
	queue     admission.Store
	identity  identity.Store
	ca        CertIssuer
	profiler  Profiler
	logger    logging.Logger

	mu      sync.Mutex
	known   map[string]bool // normalized MAC -> known (active, revoked, or non-terminal pending)
}

// NewService constructs the Admission Service. Call Hydrate before the
// first PollOnce to seed the known-MAC set from the Identity Store and
// Pending Admission Queue per spec §4.4.
func NewService(watcher Watcher, queue admission.Store, store identity.Store, issuer CertIssuer, profiler Profiler, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Service{
		watcher:  watcher,
		queue:    queue,
		identity: store,
		ca:       issuer,
		profiler: profiler,
		logger:   logger,
		known:    make(map[string]bool),
	}
}

// Hydrate seeds the known-MAC set from current Identity Store and Pending
// Admission Queue contents, per spec §4.4's dedup-against-local-known-set
// requirement.
func (s *Service) Hydrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.identity.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.Status == identity.StatusActive || d.Status == identity.StatusRevoked {
			s.known[d.MAC] = true
		}
	}

	rows, err := s.queue.ListAll("")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if !r.Status.IsTerminal() {
			s.known[r.MAC] = true
		}
	}
	return nil
}

// PollOnce runs one admission-poller tick (W1): fetches fresh MACs from the
// watcher and enqueues any unknown ones into the Pending Admission Queue.
func (s *Service) PollOnce(ctx context.Context) error {
	macs, err := s.watcher.PollMACs(ctx)
	if err != nil {
		return err
	}

	for _, raw := range macs {
		mac, err := validate.NormalizeMAC(raw)
		if err != nil {
			continue // malformed MAC: reject at the edge, never crash (ValidationError policy)
		}

		s.mu.Lock()
		isKnown := s.known[mac]
		s.mu.Unlock()
		if isKnown {
			continue
		}

		deviceID, err := NewDeviceIDGenerator(s.candidateExists).Generate(mac)
		if err != nil {
			continue
		}

		if err := s.queue.Enqueue(mac, deviceID, "", ""); err != nil {
			if cperrors.Is(err, cperrors.ClassConflict) {
				continue
			}
			return err
		}

		s.mu.Lock()
		s.known[mac] = true
		s.mu.Unlock()

		s.logger.LogAdmissionEvent(logging.AdmissionEventEntry{
			Timestamp: time.Now().UTC(), MAC: mac, DeviceID: deviceID, Status: string(admission.StatusPending),
		})
	}
	return nil
}

func (s *Service) candidateExists(id string) bool {
	if _, err := s.identity.GetDevice(id); err == nil {
		return true
	}
	rows, err := s.queue.ListAll("")
	if err != nil {
		return false
	}
	for _, r := range rows {
		if r.DeviceIDCandidate == id {
			return true
		}
	}
	return false
}

// ApproveAndOnboard drives C2.issue -> C1.add_device -> C5.begin(device_id)
// and marks the pending row onboarded, per spec §4.4. On rejection
// (Reject), no identity artifacts are created.
func (s *Service) ApproveAndOnboard(ctx context.Context, mac, notes string) (*identity.Device, error) {
	if err := s.queue.Approve(mac, notes); err != nil {
		return nil, err
	}

	row, err := s.queue.GetByMAC(mac)
	if err != nil {
		return nil, err
	}

	cred, err := s.ca.Issue(row.DeviceIDCandidate, mac, 0)
	if err != nil {
		return nil, err
	}

	if err := s.identity.AddDevice(row.DeviceIDCandidate, mac, cred.CertRef, cred.KeyRef, row.DeviceType, row.DeviceInfo, fingerprint(mac, row.DeviceType, row.DetectedAt)); err != nil {
		return nil, err
	}

	if err := s.queue.MarkOnboarded(mac); err != nil {
		return nil, err
	}

	if s.profiler != nil {
		s.profiler.Begin(row.DeviceIDCandidate)
	}

	s.logger.LogAdmissionEvent(logging.AdmissionEventEntry{
		Timestamp: time.Now().UTC(), MAC: mac, DeviceID: row.DeviceIDCandidate, Status: string(admission.StatusOnboarded),
	})

	return s.identity.GetDevice(row.DeviceIDCandidate)
}

// Reject moves the pending row to rejected; no credential or identity rows
// are created.
func (s *Service) Reject(mac, notes string) error {
	return s.queue.Reject(mac, notes)
}
