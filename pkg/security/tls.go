// Package security provides optional transport-level HTTPS/mTLS for the
// aggregation server and its clients, adapted from the teacher's gRPC
// mTLS manager (pkg/security/mtls.go) to net/http's tls.Config. It secures
// the channel only; it never asserts which ClientID a connection belongs
// to — identity authentication is assumed to be handled upstream of this
// package.
package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/ishaileshpant/secureagg-fl/pkg/config"
)

// Manager generates and loads the certificates an aggregator or client
// needs for optional mutual TLS.
type Manager struct {
	cfg     config.TLSConfig
	certDir string

	serverCert tls.Certificate
	clientCert tls.Certificate
	caCert     *x509.Certificate
}

// NewManager builds a Manager for cfg, generating self-signed development
// certificates under certDir when cfg.AutoGenerateCert is set, then
// loading whatever certificates cfg points at.
func NewManager(cfg config.TLSConfig, certDir string) (*Manager, error) {
	m := &Manager{cfg: cfg, certDir: certDir}

	if !cfg.Enabled {
		return m, nil
	}

	if cfg.AutoGenerateCert {
		if err := m.generate(); err != nil {
			return nil, fmt.Errorf("security: generating certificates: %w", err)
		}
	}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("security: loading certificates: %w", err)
	}
	return m, nil
}

// ServerTLSConfig returns the tls.Config an http.Server should use, or nil
// if TLS is disabled (the server then serves plain HTTP).
func (m *Manager) ServerTLSConfig() *tls.Config {
	if !m.cfg.Enabled {
		return nil
	}
	return &tls.Config{
		Certificates: []tls.Certificate{m.serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    m.pool(),
		MinVersion:   tls.VersionTLS12,
	}
}

// ClientTLSConfig returns the tls.Config an http.Client transport should
// use, or nil if TLS is disabled.
func (m *Manager) ClientTLSConfig() *tls.Config {
	if !m.cfg.Enabled {
		return nil
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{m.clientCert},
		RootCAs:      m.pool(),
		ServerName:   m.cfg.ServerName,
		MinVersion:   tls.VersionTLS12,
	}
	if m.cfg.InsecureSkipTLS {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

func (m *Manager) pool() *x509.CertPool {
	if m.caCert == nil {
		return nil
	}
	pool := x509.NewCertPool()
	pool.AddCert(m.caCert)
	return pool
}

func (m *Manager) generate() error {
	if err := os.MkdirAll(m.certDir, 0755); err != nil {
		return fmt.Errorf("creating cert dir: %w", err)
	}
	if err := m.generateCA(); err != nil {
		return fmt.Errorf("generating CA: %w", err)
	}
	if err := m.generateLeaf("server", x509.ExtKeyUsageServerAuth, 2); err != nil {
		return fmt.Errorf("generating server cert: %w", err)
	}
	if err := m.generateLeaf("client", x509.ExtKeyUsageClientAuth, 3); err != nil {
		return fmt.Errorf("generating client cert: %w", err)
	}
	return nil
}

func (m *Manager) generateCA() error {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"SecureAgg-FL"},
			CommonName:   "SecureAgg-FL CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}
	return writeKeyPair(m.certDir, "ca", der, priv)
}

func (m *Manager) generateLeaf(name string, usage x509.ExtKeyUsage, serial int64) error {
	caCert, caKey, err := m.loadCA()
	if err != nil {
		return err
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			Organization: []string{"SecureAgg-FL"},
			CommonName:   fmt.Sprintf("SecureAgg-FL %s", name),
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{usage},
	}
	if usage == x509.ExtKeyUsageServerAuth {
		template.IPAddresses = []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
		template.DNSNames = []string{"localhost"}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, caCert, &priv.PublicKey, caKey)
	if err != nil {
		return err
	}
	return writeKeyPair(m.certDir, name, der, priv)
}

func writeKeyPair(dir, name string, der []byte, priv *rsa.PrivateKey) error {
	certOut, err := os.Create(filepath.Join(dir, name+".crt"))
	if err != nil {
		return err
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return err
	}

	keyBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}
	keyOut, err := os.Create(filepath.Join(dir, name+".key"))
	if err != nil {
		return err
	}
	defer keyOut.Close()
	return pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})
}

func (m *Manager) loadCA() (*x509.Certificate, interface{}, error) {
	certPEM, err := os.ReadFile(filepath.Join(m.certDir, "ca.crt"))
	if err != nil {
		return nil, nil, err
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, nil, fmt.Errorf("decoding CA certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, err
	}

	keyPEM, err := os.ReadFile(filepath.Join(m.certDir, "ca.key"))
	if err != nil {
		return nil, nil, err
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("decoding CA private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

func (m *Manager) load() error {
	caPath := m.cfg.CAPath
	if caPath == "" {
		caPath = filepath.Join(m.certDir, "ca.crt")
	}
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("reading CA certificate: %w", err)
	}
	block, _ := pem.Decode(caPEM)
	if block == nil {
		return fmt.Errorf("decoding CA certificate")
	}
	m.caCert, err = x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("parsing CA certificate: %w", err)
	}

	serverCertPath, serverKeyPath := m.cfg.CertPath, m.cfg.KeyPath
	if serverCertPath == "" {
		serverCertPath = filepath.Join(m.certDir, "server.crt")
	}
	if serverKeyPath == "" {
		serverKeyPath = filepath.Join(m.certDir, "server.key")
	}
	m.serverCert, err = tls.LoadX509KeyPair(serverCertPath, serverKeyPath)
	if err != nil {
		return fmt.Errorf("loading server certificate: %w", err)
	}

	clientCertPath := filepath.Join(m.certDir, "client.crt")
	clientKeyPath := filepath.Join(m.certDir, "client.key")
	m.clientCert, err = tls.LoadX509KeyPair(clientCertPath, clientKeyPath)
	if err != nil {
		return fmt.Errorf("loading client certificate: %w", err)
	}
	return nil
}
