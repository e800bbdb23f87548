package interfaces

import (
	"context"

	"github.com/LinuxForHealth/connect-contracts/pkg/fhir"
)

// EligibilityChecker defines the entry points shared by every host of the eligibility flow
type EligibilityChecker interface {
	// Configure applies a {nats_server, fhir_server} JSON blob
	Configure(ctx context.Context, data []byte) error

	// Check evaluates a CoverageEligibilityRequest document and publishes the response
	Check(ctx context.Context, document []byte) (*fhir.CoverageEligibilityResponse, error)
}

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	Allow(key string) bool
}
