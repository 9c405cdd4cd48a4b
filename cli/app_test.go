package cli

import (
	"errors"

	"github.com/soho-iot/zerotrust/admission"
	"github.com/soho-iot/zerotrust/identity"
	"github.com/soho-iot/zerotrust/trust"
)

type fakeAdmission struct {
	byMAC    map[string]*admission.PendingAdmission
	approved []string
	rejected []string
}

func newFakeAdmission() *fakeAdmission {
	return &fakeAdmission{byMAC: map[string]*admission.PendingAdmission{}}
}

func (f *fakeAdmission) GetByMAC(mac string) (*admission.PendingAdmission, error) {
	p, ok := f.byMAC[mac]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

func (f *fakeAdmission) Approve(mac, notes string) error {
	if _, ok := f.byMAC[mac]; !ok {
		return errors.New("not found")
	}
	f.approved = append(f.approved, mac)
	return nil
}

func (f *fakeAdmission) Reject(mac, notes string) error {
	if _, ok := f.byMAC[mac]; !ok {
		return errors.New("not found")
	}
	f.rejected = append(f.rejected, mac)
	return nil
}

func (f *fakeAdmission) ListPending() ([]*admission.PendingAdmission, error) {
	var out []*admission.PendingAdmission
	for _, p := range f.byMAC {
		out = append(out, p)
	}
	return out, nil
}

type fakeDevices struct {
	byID map[string]*identity.Device
}

func (f *fakeDevices) GetDevice(deviceID string) (*identity.Device, error) {
	d, ok := f.byID[deviceID]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

type fakeTrust struct {
	scores map[string]int
	hist   map[string][]trust.HistoryRow
}

func (f *fakeTrust) Score(deviceID string) (int, bool) {
	s, ok := f.scores[deviceID]
	return s, ok
}

func (f *fakeTrust) History(deviceID string) []trust.HistoryRow {
	return f.hist[deviceID]
}
