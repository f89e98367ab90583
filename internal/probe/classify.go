package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// Error labels stored on the report.
const (
	ErrTextNoURL      = "No URL provided"
	ErrTextTimeout    = "Timeout"
	ErrTextConnection = "Connection failed (DNS or Server down)"
)

// classify maps a fetch error to the report error text. known is false when
// the error is neither a timeout nor a connection failure.
func classify(err error) (text string, known bool) {
	if isTimeout(err) {
		return ErrTextTimeout, true
	}
	if isConnectionFailure(err) {
		return ErrTextConnection, true
	}
	return err.Error(), false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionFailure(err error) bool {
	var (
		dnsErr *net.DNSError
		opErr  *net.OpError
	)
	return errors.As(err, &dnsErr) ||
		errors.As(err, &opErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
