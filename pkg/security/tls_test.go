package security

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/ishaileshpant/secureagg-fl/pkg/config"
)

func TestManagerAutoGenerateCert(t *testing.T) {
	tempDir := t.TempDir()

	cfg := config.TLSConfig{
		Enabled:          true,
		AutoGenerateCert: true,
		ServerName:       "test-server",
		InsecureSkipTLS:  true,
	}

	m, err := NewManager(cfg, tempDir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	expectedFiles := []string{"ca.crt", "ca.key", "server.crt", "server.key", "client.crt", "client.key"}
	for _, file := range expectedFiles {
		filePath := filepath.Join(tempDir, file)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			t.Errorf("expected certificate file %s was not created", file)
		}
	}

	if cfg := m.ServerTLSConfig(); cfg == nil {
		t.Error("ServerTLSConfig() returned nil with TLS enabled")
	}
	if cfg := m.ClientTLSConfig(); cfg == nil {
		t.Error("ClientTLSConfig() returned nil with TLS enabled")
	}
}

func TestManagerDisabledTLS(t *testing.T) {
	m, err := NewManager(config.TLSConfig{Enabled: false}, "")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if cfg := m.ServerTLSConfig(); cfg != nil {
		t.Error("ServerTLSConfig() should be nil when TLS is disabled")
	}
	if cfg := m.ClientTLSConfig(); cfg != nil {
		t.Error("ClientTLSConfig() should be nil when TLS is disabled")
	}
}

func TestManagerServerConfigRequiresClientCerts(t *testing.T) {
	tempDir := t.TempDir()
	cfg := config.TLSConfig{Enabled: true, AutoGenerateCert: true, InsecureSkipTLS: true}

	m, err := NewManager(cfg, tempDir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	serverCfg := m.ServerTLSConfig()
	if serverCfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Fatalf("ClientAuth = %v, want RequireAndVerifyClientCert", serverCfg.ClientAuth)
	}
	if serverCfg.ClientCAs == nil {
		t.Error("expected ClientCAs pool to be populated from the generated CA")
	}
}
