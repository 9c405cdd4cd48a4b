package ca

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenCreatesCAMaterial(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.caCert == nil || c.caKey == nil {
		t.Fatal("expected CA cert/key to be populated")
	}
	if !c.caCert.IsCA {
		t.Error("expected generated certificate to have CA:true")
	}
}

func TestOpenReloadsExistingMaterial(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}

	c2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if c1.caCert.SerialNumber.Cmp(c2.caCert.SerialNumber) != 0 {
		t.Error("expected the same CA material to be reloaded, not regenerated")
	}
}

func TestIssueAndVerify(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	cred, err := c.Issue("DEV_AA_BB_CC_X1Y2Z3", "AA:BB:CC:00:00:01", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if filepath.Base(cred.CertRef) != "DEV_AA_BB_CC_X1Y2Z3_cert.pem" {
		t.Errorf("unexpected cert filename: %s", cred.CertRef)
	}

	if !c.Verify(cred.CertRef) {
		t.Error("expected freshly issued certificate to verify")
	}
}

func TestVerifyFailsForMissingFile(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.Verify(filepath.Join(dir, "nope_cert.pem")) {
		t.Error("expected verify to fail for nonexistent file")
	}
}

func TestRevokeRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cred, err := c.Issue("DEV_AA_BB_CC_X1Y2Z3", "AA:BB:CC:00:00:01", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := c.Revoke(cred.DeviceID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if c.Verify(cred.CertRef) {
		t.Error("expected verify to fail after revocation")
	}

	// Idempotent: revoking again on an already-revoked device is a no-op (I3).
	if err := c.Revoke(cred.DeviceID); err != nil {
		t.Fatalf("second Revoke should be a no-op, got: %v", err)
	}
}

func TestIssueRespectsValidityWindow(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cred, err := c.Issue("DEV_AA_BB_CC_X1Y2Z3", "AA:BB:CC:00:00:01", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !c.Verify(cred.CertRef) {
		t.Error("expected a cert within its validity window to verify")
	}
}
