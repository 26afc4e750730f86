// Package tlsutil builds crypto/tls configurations for the northbound
// listeners and the event export client.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// ServerConfig is the TLS section of an HTTP listener.
type ServerConfig struct {
	Enabled    bool   `json:"enabled"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	MinVersion string `json:"min_version,omitempty"` // "1.2" or "1.3"

	// Client certificates. Without CA files they are not requested.
	ClientCAFiles     []string `json:"client_ca_files,omitempty"`
	RequireClientCert bool     `json:"require_client_cert,omitempty"`
	AllowedClientCNs  []string `json:"allowed_client_cns,omitempty"`
}

// ClientConfig is the TLS section of an outbound connection. The system
// pool is always trusted; CAFiles are added to it.
type ClientConfig struct {
	Enabled            bool     `json:"enabled"`
	CAFiles            []string `json:"ca_files,omitempty"`
	CertFile           string   `json:"cert_file,omitempty"`
	KeyFile            string   `json:"key_file,omitempty"`
	MinVersion         string   `json:"min_version,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty"`
}

// Validate checks that the referenced files are named.
func (c ServerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "tlsutil", "Validate", "cert_file and key_file are required")
	}
	if c.RequireClientCert && len(c.ClientCAFiles) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "tlsutil", "Validate", "require_client_cert needs client_ca_files")
	}
	return validVersion(c.MinVersion)
}

// Validate checks that a client certificate comes with its key.
func (c ClientConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "tlsutil", "Validate", "cert_file and key_file go together")
	}
	return validVersion(c.MinVersion)
}

func validVersion(v string) error {
	switch v {
	case "", "1.2", "1.3":
		return nil
	}
	return errors.WrapInvalid(fmt.Errorf("min_version %q", v), "tlsutil", "Validate", "tls version")
}

// LoadServerConfig returns nil when TLS is disabled.
func LoadServerConfig(cfg ServerConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerConfig", "load certificate")
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
	}
	if len(cfg.ClientCAFiles) == 0 {
		return tlsConfig, nil
	}

	clientCAs := x509.NewCertPool()
	if err := appendCAs(clientCAs, cfg.ClientCAFiles); err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerConfig", "client CAs")
	}
	tlsConfig.ClientCAs = clientCAs
	tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	if cfg.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	if len(cfg.AllowedClientCNs) > 0 {
		allowed := cfg.AllowedClientCNs
		tlsConfig.VerifyPeerCertificate = func(_ [][]byte, chains [][]*x509.Certificate) error {
			return verifyAllowedClientCN(chains, allowed)
		}
	}
	return tlsConfig, nil
}

// LoadClientConfig returns nil when TLS is disabled.
func LoadClientConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	if err := appendCAs(rootCAs, cfg.CAFiles); err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "root CAs")
	}
	tlsConfig := &tls.Config{
		RootCAs:    rootCAs,
		MinVersion: parseTLSVersion(cfg.MinVersion),
		// operator choice, for lab brokers with self-signed certificates
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func appendCAs(pool *x509.CertPool, files []string) error {
	for _, file := range files {
		pem, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read CA file %s: %w", file, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("no PEM certificates in %s", file)
		}
	}
	return nil
}

func verifyAllowedClientCN(chains [][]*x509.Certificate, allowedCNs []string) error {
	if len(chains) == 0 || len(chains[0]) == 0 {
		return fmt.Errorf("no verified certificate chains")
	}
	cn := chains[0][0].Subject.CommonName
	for _, allowed := range allowedCNs {
		if cn == allowed {
			return nil
		}
	}
	return fmt.Errorf("client certificate CN %q not in allowed list", cn)
}

// parseTLSVersion defaults to TLS 1.2.
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
