package fhir

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/types"
)

// referencePattern matches FHIR references in the format "ResourceType/id".
var referencePattern = regexp.MustCompile(`^[A-Z][a-zA-Z]+/[a-zA-Z0-9\-\.]+$`)

const maxDocumentBytes = 10 << 20

// Resolver fetches referenced documents from a FHIR server
type Resolver struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithHTTPClient replaces the HTTP client built from the TLS settings
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = client
	}
}

// NewResolver creates a resolver for baseURL. Certificate verification is on
// unless insecureSkipVerify is set.
func NewResolver(baseURL string, insecureSkipVerify bool, log *logger.Logger, opts ...ResolverOption) (*Resolver, error) {
	if baseURL == "" {
		return nil, types.NewConfigurationError("FHIR server URL is required", nil)
	}

	if insecureSkipVerify {
		log.WithComponent("resolver").WithField("fhir_server", baseURL).
			Warn("TLS certificate verification is DISABLED for the FHIR server; do not use outside a demo network")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // explicit opt-in via fhir.insecure_skip_verify
	}

	r := &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: transport},
		logger:  log,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Resolve performs a single GET of <base>/<reference> and returns the body
func (r *Resolver) Resolve(ctx context.Context, reference string) ([]byte, error) {
	if !referencePattern.MatchString(reference) {
		return nil, types.NewResolutionError(reference, "malformed reference", nil)
	}

	target := r.baseURL + "/" + reference
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, types.NewResolutionError(reference, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/fhir+json")

	entry := r.logger.WithContext(ctx).WithFields(logrus.Fields{
		"component": "resolver",
		"reference": reference,
		"url":       target,
	})

	resp, err := r.client.Do(req)
	if err != nil {
		entry.WithError(err).Error("FHIR request failed")
		return nil, types.NewResolutionError(reference, "FHIR request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		entry.WithField("status_code", resp.StatusCode).Warn("FHIR server returned an error status")
		rerr := types.NewResolutionError(reference, fmt.Sprintf("FHIR server returned status %d", resp.StatusCode), nil)
		rerr.Details["status_code"] = resp.StatusCode
		return nil, rerr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		entry.WithError(err).Error("Failed to read FHIR response body")
		return nil, types.NewResolutionError(reference, "failed to read FHIR response body", err)
	}

	entry.WithField("status_code", resp.StatusCode).Debug("FHIR reference resolved")
	return body, nil
}
