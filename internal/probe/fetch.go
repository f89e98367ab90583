package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// page is one fetched document.
type page struct {
	URL        string
	StatusCode int
	Body       []byte
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetch performs a single GET through a fresh collector. insecure disables
// certificate verification.
func (p *Prober) fetch(ctx context.Context, rawURL string, insecure bool) (page, error) {
	if err := p.limiter.Wait(ctx, rawURL); err != nil {
		return page{}, err
	}

	var (
		result   page
		fetchErr error
	)
	collector := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.UserAgent(p.cfg.UserAgent),
	)
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(p.cfg.Timeout)
	if insecure {
		collector.WithTransport(p.insecureTransport)
	} else {
		collector.WithTransport(p.verifiedTransport)
	}
	p.configureCollectorHooks(collector, &result, &fetchErr)

	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return page{}, err
	}
	return result, nil
}

func (p *Prober) configureCollectorHooks(hooks collectorHooks, result *page, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("visit %s: %w", rawURL, *fetchErr)
		}
		return nil
	}
}

// fetchVerified fetches with certificate verification unless insecure is
// already set, retrying once without verification on a certificate failure.
// certFailed reports whether that retry happened.
func (p *Prober) fetchVerified(ctx context.Context, rawURL string, insecure bool) (page, bool, error) {
	if insecure {
		pg, err := p.fetch(ctx, rawURL, true)
		return pg, false, err
	}
	pg, err := p.fetch(ctx, rawURL, false)
	if err == nil {
		return pg, false, nil
	}
	if !isCertificateError(err) {
		return page{}, false, err
	}
	pg, err = p.fetch(ctx, rawURL, true)
	return pg, true, err
}

func isCertificateError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidCert  x509.CertificateInvalidError
		systemRoots  x509.SystemRootsError
		insecureAlgo x509.InsecureAlgorithmError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &systemRoots) ||
		errors.As(err, &insecureAlgo)
}

func newHTTPTransport(tlsConfig *tls.Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
