package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCert writes a self-signed certificate for cn and returns the cert
// and key paths.
func writeCert(t *testing.T, dir, cn string) (certFile, keyFile string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{Organization: []string{"EmPOWER"}, CommonName: cn},
		DNSNames:              []string{"localhost"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, cn+".pem")
	keyFile = filepath.Join(dir, cn+".key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), 0o600))
	return certFile, keyFile
}

func TestLoadServerConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "localhost")

	tests := []struct {
		name    string
		cfg     ServerConfig
		wantNil bool
		wantErr bool
	}{
		{"disabled", ServerConfig{}, true, false},
		{"tls 1.3", ServerConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.3"}, false, false},
		{"missing cert", ServerConfig{Enabled: true, CertFile: filepath.Join(dir, "none.pem"), KeyFile: keyFile}, true, true},
		{"missing client ca", ServerConfig{
			Enabled: true, CertFile: certFile, KeyFile: keyFile,
			ClientCAFiles: []string{filepath.Join(dir, "none.pem")},
		}, true, true},
		{"invalid client ca", ServerConfig{
			Enabled: true, CertFile: certFile, KeyFile: keyFile,
			ClientCAFiles: []string{keyFile},
		}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadServerConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantNil, cfg == nil)
		})
	}
}

func TestServerClientAuthModes(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "localhost")

	cfg, err := LoadServerConfig(ServerConfig{
		Enabled: true, CertFile: certFile, KeyFile: keyFile, ClientCAFiles: []string{certFile},
	})
	require.NoError(t, err)
	assert.Equal(t, tls.VerifyClientCertIfGiven, cfg.ClientAuth)
	assert.NotNil(t, cfg.ClientCAs)
	assert.Nil(t, cfg.VerifyPeerCertificate)

	cfg, err = LoadServerConfig(ServerConfig{
		Enabled: true, CertFile: certFile, KeyFile: keyFile, ClientCAFiles: []string{certFile},
		RequireClientCert: true, AllowedClientCNs: []string{"ops"},
	})
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
	assert.NotNil(t, cfg.VerifyPeerCertificate)
}

func TestVerifyAllowedClientCN(t *testing.T) {
	leaf := &x509.Certificate{Subject: pkix.Name{CommonName: "ops"}}
	assert.NoError(t, verifyAllowedClientCN([][]*x509.Certificate{{leaf}}, []string{"admin", "ops"}))
	assert.Error(t, verifyAllowedClientCN([][]*x509.Certificate{{leaf}}, []string{"admin"}))
	assert.Error(t, verifyAllowedClientCN(nil, []string{"ops"}))
}

func TestLoadClientConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "client")

	cfg, err := LoadClientConfig(ClientConfig{})
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = LoadClientConfig(ClientConfig{Enabled: true, CAFiles: []string{certFile}, CertFile: certFile, KeyFile: keyFile})
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	_, err = LoadClientConfig(ClientConfig{Enabled: true, CertFile: certFile, KeyFile: filepath.Join(dir, "none.key")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, ServerConfig{}.Validate())
	assert.Error(t, ServerConfig{Enabled: true}.Validate())
	assert.Error(t, ServerConfig{Enabled: true, CertFile: "c", KeyFile: "k", RequireClientCert: true}.Validate())
	assert.Error(t, ServerConfig{Enabled: true, CertFile: "c", KeyFile: "k", MinVersion: "1.1"}.Validate())
	assert.NoError(t, ServerConfig{Enabled: true, CertFile: "c", KeyFile: "k", MinVersion: "1.3"}.Validate())

	assert.NoError(t, ClientConfig{Enabled: true}.Validate())
	assert.Error(t, ClientConfig{Enabled: true, CertFile: "c"}.Validate())
}

func TestHandshake(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "localhost")

	serverCfg, err := LoadServerConfig(ServerConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile})
	require.NoError(t, err)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = serverCfg
	srv.StartTLS()
	defer srv.Close()

	clientCfg, err := LoadClientConfig(ClientConfig{Enabled: true, CAFiles: []string{certFile}})
	require.NoError(t, err)
	clientCfg.ServerName = "localhost"
	transport := &http.Transport{TLSClientConfig: clientCfg}
	defer transport.CloseIdleConnections()

	resp, err := (&http.Client{Transport: transport}).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
