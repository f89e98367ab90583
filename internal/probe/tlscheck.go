package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// Handshaker verifies the certificate served at host:port.
type Handshaker interface {
	Handshake(ctx context.Context, host, port string) error
}

// tlsHandshaker completes a verifying TLS handshake and closes the connection.
type tlsHandshaker struct {
	cfg Config
}

func (h tlsHandshaker) Handshake(ctx context.Context, host, port string) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.TLSTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: h.cfg.TLSTimeout},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    h.cfg.RootCAs,
			MinVersion: tls.VersionTLS12,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("tls handshake %s: %w", host, err)
	}
	return conn.Close()
}
