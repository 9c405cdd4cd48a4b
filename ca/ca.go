// Package ca implements the Certificate Authority (C2): a self-managed CA
// that issues and verifies per-device X.509 credentials. There is no
// idiomatic third-party replacement for crypto/x509 in this corpus or the
// wider Go ecosystem for self-signed CA issuance — see DESIGN.md for the
// stdlib justification.
package ca

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"time"

	cperrors "github.com/soho-iot/zerotrust/errors"
)

const (
	caKeyBits       = 2048
	caValidityDays  = 3650
	deviceKeyBits   = 2048
	defaultValidity = 365 * 24 * time.Hour
)

// CA is the Certificate Authority (C2).
type CA struct {
	dir        string
	caCert     *x509.Certificate
	caKey      *rsa.PrivateKey
}

// Open initializes the CA rooted at dir. If no CA material exists, it
// generates a 2048-bit RSA key and a 10-year self-signed CA:true
// certificate and persists both. Startup is rejected if material exists
// but is unreadable or malformed, per spec §4.2.
func Open(dir string) (*CA, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, cperrors.Storage("ca_dir_failed", "creating CA directory", err)
	}

	certPath := filepath.Join(dir, "ca_cert.pem")
	keyPath := filepath.Join(dir, "ca_key.pem")

	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)

	c := &CA{dir: dir}

	if os.IsNotExist(certErr) && os.IsNotExist(keyErr) {
		if err := c.createCA(certPath, keyPath); err != nil {
			return nil, err
		}
		return c, nil
	}

	cert, err := loadCertificate(certPath)
	if err != nil {
		return nil, cperrors.Storage("ca_cert_malformed", "loading CA certificate", err)
	}
	key, err := loadPrivateKey(keyPath)
	if err != nil {
		return nil, cperrors.Storage("ca_key_malformed", "loading CA key", err)
	}
	c.caCert = cert
	c.caKey = key
	return c, nil
}

func (c *CA) createCA(certPath, keyPath string) error {
	key, err := rsa.GenerateKey(rand.Reader, caKeyBits)
	if err != nil {
		return cperrors.Storage("ca_keygen_failed", "generating CA key", err)
	}

	serial, err := newSerial()
	if err != nil {
		return err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "SOHO IoT CA",
			Organization: []string{"SOHO IoT Zero Trust CA"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(0, 0, caValidityDays),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return cperrors.Storage("ca_cert_create_failed", "creating self-signed CA certificate", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return err
	}

	if err := writePEM(certPath, "CERTIFICATE", der); err != nil {
		return err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	if err := writePEM(keyPath, "PRIVATE KEY", keyDER); err != nil {
		return err
	}

	c.caCert = cert
	c.caKey = key
	return nil
}

// Credential is a (certificate, private key) pair bound to exactly one device.
type Credential struct {
	DeviceID string
	CertRef  string
	KeyRef   string
}

// Issue generates a device key and a certificate signed by the CA, with
// common name = device_id and the MAC embedded as a SAN URI. Persists both
// under stable filenames derived from device_id, per spec §4.2.
func (c *CA) Issue(deviceID, mac string, validity time.Duration) (*Credential, error) {
	if validity <= 0 {
		validity = defaultValidity
	}

	key, err := rsa.GenerateKey(rand.Reader, deviceKeyBits)
	if err != nil {
		return nil, cperrors.Storage("device_keygen_failed", "generating device key", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	macURI, err := url.Parse(fmt.Sprintf("urn:iot-device-mac:%s", mac))
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: deviceID},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		URIs:         []*url.URL{macURI},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, c.caCert, &key.PublicKey, c.caKey)
	if err != nil {
		return nil, cperrors.Storage("device_cert_create_failed", "signing device certificate", err)
	}

	certPath := filepath.Join(c.dir, deviceID+"_cert.pem")
	keyPath := filepath.Join(c.dir, deviceID+"_key.pem")

	if err := writePEM(certPath, "CERTIFICATE", der); err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	if err := writePEM(keyPath, "PRIVATE KEY", keyDER); err != nil {
		return nil, err
	}

	return &Credential{DeviceID: deviceID, CertRef: certPath, KeyRef: keyPath}, nil
}

// Verify returns true iff the certificate at certRef chains to the CA and
// the current time is within its validity window.
func (c *CA) Verify(certRef string) bool {
	cert, err := loadCertificate(certRef)
	if err != nil {
		return false
	}

	pool := x509.NewCertPool()
	pool.AddCert(c.caCert)
	opts := x509.VerifyOptions{Roots: pool, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny}}
	if _, err := cert.Verify(opts); err != nil {
		return false
	}

	now := time.Now()
	return !now.Before(cert.NotBefore) && now.Before(cert.NotAfter)
}

// Revoke deletes the persisted cert/key files for deviceID. No CRL is
// published for the LAN scope; the Identity Store marks the device revoked
// separately (spec §4.2).
func (c *CA) Revoke(deviceID string) error {
	certPath := filepath.Join(c.dir, deviceID+"_cert.pem")
	keyPath := filepath.Join(c.dir, deviceID+"_key.pem")

	for _, p := range []string{certPath, keyPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return cperrors.Storage("revoke_failed", fmt.Sprintf("removing %s", p), err)
		}
	}
	return nil
}

func newSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, cperrors.Storage("serial_generation_failed", "generating certificate serial", err)
	}
	return serial, nil
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return cperrors.Storage("pem_write_failed", fmt.Sprintf("writing %s", path), err)
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	return x509.ParseCertificate(block.Bytes)
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key in %s is not an RSA key", path)
	}
	return rsaKey, nil
}
