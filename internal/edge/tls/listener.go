package tls

import (
	"crypto/tls"
	"fmt"
	"net"
	"path/filepath"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
)

// CreateTLSListener creates a TLS-wrapped TCP listener with the specified certificate and key.
// It enforces TLS 1.2 as the minimum version.
func CreateTLSListener(address, certFile, keyFile string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	tcpListener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP listener: %w", err)
	}

	return tls.NewListener(tcpListener, tlsConfig), nil
}

// ListenerFromConfig binds the HTTPS listener described by cfg.
// Relative certificate paths are taken relative to configDir.
func ListenerFromConfig(cfg configtypes.TLSConfig, configDir string) (net.Listener, error) {
	return CreateTLSListener(cfg.Listen, resolvePath(configDir, cfg.CertFile), resolvePath(configDir, cfg.KeyFile))
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
