package admission

import (
	"encoding/json"
	"fmt"
	"time"

	cperrors "github.com/soho-iot/zerotrust/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPending = []byte("pending")
	bucketHistory = []byte("admission_history")
)

// Store is the Pending Admission Queue (C3) operation set, per spec §4.3.
type Store interface {
	Enqueue(mac, deviceIDCandidate, deviceType, deviceInfo string) error
	Approve(mac, notes string) error
	Reject(mac, notes string) error
	MarkOnboarded(mac string) error
	GetByMAC(mac string) (*PendingAdmission, error)
	ListPending() ([]*PendingAdmission, error)
	ListAll(status PendingStatus) ([]*PendingAdmission, error)
	History(mac string, limit int) ([]HistoryRow, error)
}

// BoltStore implements Store on an embedded bbolt file, sharing the same
// on-disk conventions as identity.BoltStore.
type BoltStore struct {
	db *bolt.DB
}

// Open opens (creating if absent) the pending admission queue at path.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, cperrors.Storage("open_failed", fmt.Sprintf("opening admission queue at %s", path), err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPending); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketHistory)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, cperrors.Storage("bucket_init_failed", "initializing admission queue buckets", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func appendHistory(tx *bolt.Tx, mac string, status PendingStatus, notes string) error {
	history := tx.Bucket(bucketHistory)
	seq, err := history.NextSequence()
	if err != nil {
		return err
	}
	row := HistoryRow{Timestamp: time.Now().UTC(), MAC: mac, Status: status, Notes: notes}
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("%s\x00%020d", mac, seq))
	return history.Put(key, raw)
}

// Enqueue adds a new row. Duplicate iff a non-terminal row already exists
// for the MAC, per spec §4.3.
func (s *BoltStore) Enqueue(mac, deviceIDCandidate, deviceType, deviceInfo string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pending := tx.Bucket(bucketPending)
		if raw := pending.Get([]byte(mac)); raw != nil {
			var existing PendingAdmission
			if err := json.Unmarshal(raw, &existing); err == nil && !existing.Status.IsTerminal() {
				return cperrors.Conflict(cperrors.ReasonDuplicatePending, fmt.Sprintf("mac %s already has a non-terminal pending row", mac))
			}
		}

		now := time.Now().UTC()
		row := PendingAdmission{
			MAC:               mac,
			DeviceIDCandidate: deviceIDCandidate,
			DetectedAt:        now,
			Status:            StatusPending,
			PendingAt:         now,
			DeviceType:        deviceType,
			DeviceInfo:        deviceInfo,
		}
		raw, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := pending.Put([]byte(mac), raw); err != nil {
			return err
		}
		return appendHistory(tx, mac, StatusPending, "")
	})
}

func getTx(pending *bolt.Bucket, mac string) (*PendingAdmission, error) {
	raw := pending.Get([]byte(mac))
	if raw == nil {
		return nil, cperrors.NotFound("pending_not_found", fmt.Sprintf("no pending admission for mac %s", mac))
	}
	var row PendingAdmission
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// transition applies a status change enforcing the state machine; noop-true
// return values satisfy the idempotence properties (I2) for already-actioned
// terminal-adjacent transitions named in the docstring of each caller.
func (s *BoltStore) transition(mac string, from []PendingStatus, to PendingStatus, notes string, stampOnboarded bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pending := tx.Bucket(bucketPending)
		row, err := getTx(pending, mac)
		if err != nil {
			return err
		}

		if row.Status == to {
			return nil // idempotent no-op
		}

		allowed := false
		for _, f := range from {
			if row.Status == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return cperrors.Conflict("invalid_transition", fmt.Sprintf("cannot move mac %s from %s to %s", mac, row.Status, to))
		}

		row.Status = to
		now := time.Now().UTC()
		if to == StatusApproved || to == StatusRejected {
			row.DecidedAt = &now
		}
		if stampOnboarded {
			row.OnboardedAt = &now
		}
		if notes != "" {
			row.AdminNotes = notes
		}

		raw, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := pending.Put([]byte(mac), raw); err != nil {
			return err
		}
		return appendHistory(tx, mac, to, notes)
	})
}

// Approve moves a pending row to approved. A no-op returning success if the
// row is already approved (I2).
func (s *BoltStore) Approve(mac, notes string) error {
	return s.transition(mac, []PendingStatus{StatusPending}, StatusApproved, notes, false)
}

// Reject moves a pending row to rejected (terminal).
func (s *BoltStore) Reject(mac, notes string) error {
	return s.transition(mac, []PendingStatus{StatusPending}, StatusRejected, notes, false)
}

// MarkOnboarded moves an approved row to onboarded (terminal).
func (s *BoltStore) MarkOnboarded(mac string) error {
	return s.transition(mac, []PendingStatus{StatusApproved}, StatusOnboarded, "", true)
}

func (s *BoltStore) GetByMAC(mac string) (*PendingAdmission, error) {
	var row *PendingAdmission
	err := s.db.View(func(tx *bolt.Tx) error {
		r, err := getTx(tx.Bucket(bucketPending), mac)
		if err != nil {
			return err
		}
		row = r
		return nil
	})
	return row, err
}

func (s *BoltStore) ListPending() ([]*PendingAdmission, error) {
	return s.ListAll(StatusPending)
}

// ListAll returns every row, or only those matching status if status != "".
func (s *BoltStore) ListAll(status PendingStatus) ([]*PendingAdmission, error) {
	var rows []*PendingAdmission
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPending).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row PendingAdmission
			if err := json.Unmarshal(v, &row); err != nil {
				continue
			}
			if status == "" || row.Status == status {
				rows = append(rows, &row)
			}
		}
		return nil
	})
	return rows, err
}

// History returns up to limit audit rows for mac (or all MACs if mac == ""),
// newest first.
func (s *BoltStore) History(mac string, limit int) ([]HistoryRow, error) {
	var rows []HistoryRow
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketHistory).Cursor()
		var all []HistoryRow
		if mac != "" {
			prefix := []byte(mac + "\x00")
			for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
				var row HistoryRow
				if err := json.Unmarshal(v, &row); err == nil {
					all = append(all, row)
				}
			}
		} else {
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var row HistoryRow
				if err := json.Unmarshal(v, &row); err == nil {
					all = append(all, row)
				}
			}
		}
		for i := len(all) - 1; i >= 0; i-- {
			rows = append(rows, all[i])
			if limit > 0 && len(rows) >= limit {
				break
			}
		}
		return nil
	})
	return rows, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
