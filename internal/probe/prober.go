// Package probe fetches a business website and derives the technical and
// contact signals used for lead scoring. Every phase appends a line to the
// report's operator log.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/logging"
	"github.com/JakeFAU/leadscan/internal/metrics"
	"github.com/JakeFAU/leadscan/internal/policy/ratelimit"
)

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config controls probe behavior.
type Config struct {
	UserAgent  string
	Timeout    time.Duration
	TLSTimeout time.Duration
	// RootCAs overrides the system pool for both fetches and the handshake.
	RootCAs *x509.CertPool
}

// Prober implements lead.Prober on top of colly and crypto/tls.
type Prober struct {
	cfg               Config
	verifiedTransport *http.Transport
	insecureTransport *http.Transport
	handshaker        Handshaker
	limiter           *ratelimit.Limiter
	logger            *zap.Logger
}

// Option customizes a Prober.
type Option func(*Prober)

// WithLimiter paces fetches per host.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(p *Prober) {
		p.limiter = l
	}
}

// WithHandshaker replaces the TLS certificate check.
func WithHandshaker(h Handshaker) Option {
	return func(p *Prober) {
		if h != nil {
			p.handshaker = h
		}
	}
}

// New builds a Prober.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Prober {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TLSTimeout <= 0 {
		cfg.TLSTimeout = 5 * time.Second
	}
	p := &Prober{
		cfg: cfg,
		verifiedTransport: newHTTPTransport(&tls.Config{
			RootCAs:    cfg.RootCAs,
			MinVersion: tls.VersionTLS12,
		}),
		insecureTransport: newHTTPTransport(&tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // retry path after a failed verification
		}),
		handshaker: tlsHandshaker{cfg: cfg},
		logger:     logging.Component(logger, "probe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe analyzes rawURL. It never returns an error: failures are classified
// into the report's Error field and log.
func (p *Prober) Probe(ctx context.Context, rawURL string) lead.AnalysisReport {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		metrics.ObserveProbe("", "no_url", 0)
		return lead.AnalysisReport{Error: ErrTextNoURL}
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "http://" + rawURL
	}

	report := lead.AnalysisReport{URL: rawURL}
	report.Logf("📡 Connecting to %s...", rawURL)

	start := time.Now()
	current, certFailed, err := p.fetchVerified(ctx, rawURL, false)
	elapsed := time.Since(start)
	if err != nil {
		p.recordFailure(&report, rawURL, err)
		metrics.ObserveProbe(rawURL, "error", elapsed)
		return report
	}
	if certFailed {
		report.Logf("⚠️ SSL certificate verification failed during fetch")
	}
	report.LoadTimeMs = elapsed.Milliseconds()

	if current.StatusCode == http.StatusNotFound {
		current, certFailed = p.rootFallback(ctx, rawURL, current, certFailed, &report)
	}

	report.Exists = true
	report.StatusCode = current.StatusCode
	report.FinalURL = current.URL
	report.SSLFetchFailed = certFailed
	report.Logf("✅ Status: %d | Speed: %dms", current.StatusCode, report.LoadTimeMs)

	p.checkSSL(ctx, &report)

	if current.StatusCode == http.StatusOK {
		if err := analyzeContent(current.Body, &report); err != nil {
			p.recordFailure(&report, rawURL, err)
		}
	}

	metrics.ObserveProbe(rawURL, "ok", elapsed)
	return report
}

// rootFallback retries scheme://host/ after a 404 on a deep link.
func (p *Prober) rootFallback(
	ctx context.Context,
	rawURL string,
	current page,
	certFailed bool,
	report *lead.AnalysisReport,
) (page, bool) {
	report.Logf("❌ Deep link returned 404. Trying root...")
	parsed, err := url.Parse(rawURL)
	if err != nil {
		p.logger.Warn("root domain fallback failed", zap.String("url", rawURL), zap.Error(err))
		return current, certFailed
	}
	root := parsed.Scheme + "://" + parsed.Host + "/"
	if root == rawURL {
		return current, certFailed
	}

	rootPage, rootCertFailed, err := p.fetchVerified(ctx, root, certFailed)
	if err != nil {
		p.logger.Warn("root domain fallback failed", zap.String("url", root), zap.Error(err))
		report.Logf("⚠️ Root domain fallback failed: %v", err)
		return current, certFailed
	}
	if rootPage.StatusCode != http.StatusOK {
		report.Logf("❌ Root domain failed (%d).", rootPage.StatusCode)
		return current, certFailed
	}
	if rootCertFailed {
		report.Logf("✅ Root domain found (SSL issues).")
		return rootPage, true
	}
	report.Logf("✅ Root domain found.")
	return rootPage, certFailed
}

// checkSSL decides SSLActive from the final URL. A certificate failure seen
// during the fetch wins over the handshake, which is then skipped.
func (p *Prober) checkSSL(ctx context.Context, report *lead.AnalysisReport) {
	final, err := url.Parse(report.FinalURL)
	if err != nil || final.Scheme != "https" {
		report.Logf("🔓 SSL: Not Secure (HTTP)")
		return
	}
	if report.SSLFetchFailed {
		report.SSLActive = false
		report.Logf("🔴 SSL: Invalid/Self-Signed Certificate")
		return
	}
	port := final.Port()
	if port == "" {
		port = "443"
	}
	if err := p.handshaker.Handshake(ctx, final.Hostname(), port); err != nil {
		p.logger.Debug("ssl check failed", zap.String("host", final.Hostname()), zap.Error(err))
		report.SSLActive = false
		report.Logf("🔴 SSL: Certificate Verification Failed")
		return
	}
	report.SSLActive = true
	report.Logf("🟢 SSL: Valid Certificate")
}

func (p *Prober) recordFailure(report *lead.AnalysisReport, rawURL string, err error) {
	text, known := classify(err)
	report.Error = text
	if known {
		report.Logf("❌ %s", text)
	} else {
		report.Logf("💥 Unexpected error: %s", text)
	}
	p.logger.Info("probe failed", zap.String("url", rawURL), zap.String("reason", text), zap.Error(err))
}
