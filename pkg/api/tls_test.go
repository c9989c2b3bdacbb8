package api

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelfSignedServerTLS(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	require.NoError(t, GenerateSelfSignedCert(certPath, keyPath, []string{"ledger.local", "10.1.2.3"}, time.Hour))

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := ServerTLSConfig(TLSParams{CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)
	require.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	require.Equal(t, tls.NoClientCert, cfg.ClientAuth)

	mtls, err := ServerTLSConfig(TLSParams{CertFile: certPath, KeyFile: keyPath, ClientCAFile: certPath})
	require.NoError(t, err)
	require.Equal(t, tls.RequireAndVerifyClientCert, mtls.ClientAuth)
}

func TestServerTLSConfigErrors(t *testing.T) {
	_, err := ServerTLSConfig(TLSParams{CertFile: "missing.pem", KeyFile: "missing.key"})
	require.Error(t, err)

	require.Error(t, ValidateTLSConfig(nil))
	require.Error(t, ValidateTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	require.Error(t, ValidateTLSConfig(&tls.Config{MinVersion: tls.VersionTLS13}))
}
