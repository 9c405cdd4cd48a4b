package identity

import (
	"encoding/json"
	"fmt"
	"time"

	cperrors "github.com/soho-iot/zerotrust/errors"
	"github.com/soho-iot/zerotrust/policy"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketDevices      = []byte("devices")
	bucketMACIndex     = []byte("mac_index")
	bucketBaselines    = []byte("baselines")
	bucketPolicies     = []byte("policies")
	bucketTrustHistory = []byte("trust_history")
	bucketSchemaMeta   = []byte("schema_meta")
)

const currentSchemaVersion = 1

// Store is the Identity Store (C1) operation set named in spec §4.1.
// Implementations must allow concurrent reads during a write; writes are
// serialized (bbolt permits exactly one writer transaction at a time, which
// satisfies the per-device-or-single-writer requirement with room to spare).
type Store interface {
	AddDevice(id, mac, certRef, keyRef, deviceType, deviceInfo, fingerprint string) error
	GetDevice(id string) (*Device, error)
	GetDeviceByMAC(mac string) (*Device, error)
	GetDeviceByIP(ip string) (*Device, error)
	ListDevices() ([]*Device, error)
	UpdateStatus(id string, status Status) error
	UpdateIP(id, ip string) error
	TouchLastSeen(id string) error
	SaveBaseline(id string, b *Baseline) error
	GetBaseline(id string) (*Baseline, error)
	SavePolicy(id string, p *policy.Policy) error
	GetPolicy(id string) (*policy.Policy, error)
	SaveTrust(id string, score int, reason string) error
	LoadAllTrust() (map[string]int, error)
	Close() error
}

// BoltStore implements Store on an embedded bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// Open opens (creating if absent) a BoltStore at path and runs schema
// migration, per spec §4.1 step 1 and §4.13 startup step 1.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, cperrors.Storage("open_failed", fmt.Sprintf("opening identity store at %s", path), err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketMACIndex, bucketBaselines, bucketPolicies, bucketTrustHistory, bucketSchemaMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, cperrors.Storage("bucket_init_failed", "initializing identity store buckets", err)
	}

	s := &BoltStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate adds missing columns with their defaults, per spec §4.1: any
// device record predating a schema field gets trust_score=70, ip=null,
// fingerprint=null filled in on open.
func (s *BoltStore) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketSchemaMeta)
		var version int
		if raw := meta.Get([]byte("version")); raw != nil {
			version = int(raw[0])
		}
		if version >= currentSchemaVersion {
			return nil
		}

		devices := tx.Bucket(bucketDevices)
		c := devices.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			raw := map[string]interface{}{}
			if err := json.Unmarshal(v, &raw); err != nil {
				continue
			}
			changed := false
			if _, ok := raw["trust_score"]; !ok {
				raw["trust_score"] = DefaultTrustScore
				changed = true
			}
			if _, ok := raw["ip"]; !ok {
				raw["ip"] = ""
				changed = true
			}
			if _, ok := raw["fingerprint"]; !ok {
				raw["fingerprint"] = ""
				changed = true
			}
			if changed {
				newV, err := json.Marshal(raw)
				if err != nil {
					return err
				}
				if err := devices.Put(k, newV); err != nil {
					return err
				}
			}
		}
		return meta.Put([]byte("version"), []byte{byte(currentSchemaVersion)})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// AddDevice inserts or re-inserts a device. On re-insert, first_seen and the
// existing trust_score are preserved per spec §4.1. Fails with Conflict if
// the MAC is already bound to a different active device.
func (s *BoltStore) AddDevice(id, mac, certRef, keyRef, deviceType, deviceInfo, fingerprint string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		devices := tx.Bucket(bucketDevices)
		macIndex := tx.Bucket(bucketMACIndex)

		if existingID := macIndex.Get([]byte(mac)); existingID != nil && string(existingID) != id {
			if existing, err := getDeviceTx(devices, string(existingID)); err == nil && existing.Status == StatusActive {
				return cperrors.Conflict(cperrors.ReasonMACCollision, fmt.Sprintf("mac %s already bound to active device %s", mac, existing.DeviceID))
			}
		}

		now := time.Now().UTC()
		dev := Device{
			DeviceID:    id,
			MAC:         mac,
			CertRef:     certRef,
			KeyRef:      keyRef,
			Status:      StatusActive,
			DeviceType:  deviceType,
			DeviceInfo:  deviceInfo,
			Fingerprint: fingerprint,
			FirstSeen:   now,
			LastSeen:    now,
			TrustScore:  DefaultTrustScore,
		}

		if existing, err := getDeviceTx(devices, id); err == nil {
			dev.FirstSeen = existing.FirstSeen
			dev.TrustScore = existing.TrustScore
			dev.IP = existing.IP
		}

		raw, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		if err := devices.Put([]byte(id), raw); err != nil {
			return err
		}
		return macIndex.Put([]byte(mac), []byte(id))
	})
}

func getDeviceTx(devices *bolt.Bucket, id string) (*Device, error) {
	raw := devices.Get([]byte(id))
	if raw == nil {
		return nil, cperrors.NotFound("device_not_found", fmt.Sprintf("device %s not found", id))
	}
	var dev Device
	if err := json.Unmarshal(raw, &dev); err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *BoltStore) GetDevice(id string) (*Device, error) {
	var dev *Device
	err := s.db.View(func(tx *bolt.Tx) error {
		d, err := getDeviceTx(tx.Bucket(bucketDevices), id)
		if err != nil {
			return err
		}
		dev = d
		return nil
	})
	return dev, err
}

func (s *BoltStore) GetDeviceByMAC(mac string) (*Device, error) {
	var dev *Device
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketMACIndex).Get([]byte(mac))
		if id == nil {
			return cperrors.NotFound("device_not_found", fmt.Sprintf("no device for mac %s", mac))
		}
		d, err := getDeviceTx(tx.Bucket(bucketDevices), string(id))
		if err != nil {
			return err
		}
		dev = d
		return nil
	})
	return dev, err
}

func (s *BoltStore) GetDeviceByIP(ip string) (*Device, error) {
	var dev *Device
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDevices).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var d Device
			if err := json.Unmarshal(v, &d); err != nil {
				continue
			}
			if d.IP == ip {
				dev = &d
				return nil
			}
		}
		return cperrors.NotFound("device_not_found", fmt.Sprintf("no device with ip %s", ip))
	})
	return dev, err
}

func (s *BoltStore) ListDevices() ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDevices).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var d Device
			if err := json.Unmarshal(v, &d); err != nil {
				continue
			}
			devices = append(devices, &d)
		}
		return nil
	})
	return devices, err
}

func (s *BoltStore) mutateDevice(id string, mutate func(*Device)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		devices := tx.Bucket(bucketDevices)
		dev, err := getDeviceTx(devices, id)
		if err != nil {
			return err
		}
		mutate(dev)
		raw, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		return devices.Put([]byte(id), raw)
	})
}

func (s *BoltStore) UpdateStatus(id string, status Status) error {
	return s.mutateDevice(id, func(d *Device) { d.Status = status })
}

func (s *BoltStore) UpdateIP(id, ip string) error {
	return s.mutateDevice(id, func(d *Device) { d.IP = ip })
}

func (s *BoltStore) TouchLastSeen(id string) error {
	now := time.Now().UTC()
	return s.mutateDevice(id, func(d *Device) { d.LastSeen = now })
}

func (s *BoltStore) SaveBaseline(id string, b *Baseline) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBaselines).Put([]byte(id), raw)
	})
}

func (s *BoltStore) GetBaseline(id string) (*Baseline, error) {
	var b Baseline
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBaselines).Get([]byte(id))
		if raw == nil {
			return cperrors.NotFound("baseline_not_found", fmt.Sprintf("no baseline for device %s", id))
		}
		return json.Unmarshal(raw, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BoltStore) SavePolicy(id string, p *policy.Policy) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPolicies).Put([]byte(id), raw)
	})
}

func (s *BoltStore) GetPolicy(id string) (*policy.Policy, error) {
	var p policy.Policy
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPolicies).Get([]byte(id))
		if raw == nil {
			return cperrors.NotFound("policy_not_found", fmt.Sprintf("no policy for device %s", id))
		}
		return json.Unmarshal(raw, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveTrust writes the current score onto the device record and appends a
// history row, per spec §4.1 and the append-only/strictly-ordered invariants
// (I5, P3).
func (s *BoltStore) SaveTrust(id string, score int, reason string) error {
	now := time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		devices := tx.Bucket(bucketDevices)
		dev, err := getDeviceTx(devices, id)
		if err != nil {
			return err
		}
		dev.TrustScore = score
		raw, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		if err := devices.Put([]byte(id), raw); err != nil {
			return err
		}

		history := tx.Bucket(bucketTrustHistory)
		seq, err := history.NextSequence()
		if err != nil {
			return err
		}
		row := TrustHistoryRow{Timestamp: now, Score: score, Reason: reason}
		rowRaw, err := json.Marshal(row)
		if err != nil {
			return err
		}
		key := []byte(fmt.Sprintf("%s\x00%020d", id, seq))
		return history.Put(key, rowRaw)
	})
}

// LoadAllTrust returns the current score for every device, used at startup
// hydration (spec §4.8).
func (s *BoltStore) LoadAllTrust() (map[string]int, error) {
	scores := map[string]int{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDevices).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var d Device
			if err := json.Unmarshal(v, &d); err != nil {
				continue
			}
			scores[string(k)] = d.TrustScore
		}
		return nil
	})
	return scores, err
}

// TrustHistory returns the append-only history rows for a device, oldest first.
func (s *BoltStore) TrustHistory(id string) ([]TrustHistoryRow, error) {
	var rows []TrustHistoryRow
	prefix := []byte(id + "\x00")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTrustHistory).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var row TrustHistoryRow
			if err := json.Unmarshal(v, &row); err != nil {
				continue
			}
			rows = append(rows, row)
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
