package eligibility

import (
	"time"

	"github.com/google/uuid"

	"github.com/LinuxForHealth/connect-contracts/pkg/fhir"
)

const (
	DispositionInforce    = "Policy is currently in effect."
	DispositionNotInforce = "Policy is not in effect."

	OutcomeComplete = "complete"
	StatusActive    = "active"
	DefaultPurpose  = "validation"
)

// responseNamespace scopes the name-based UUIDs of composed responses
var responseNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://linuxforhealth.org/fhir/CoverageEligibilityResponse"))

// ResponseID derives the response id from the request id. Every host that
// evaluates the same request publishes under the same deduplication key.
func ResponseID(requestID string) string {
	return uuid.NewSHA1(responseNamespace, []byte(requestID)).String()
}

// ComposerOption configures a Composer
type ComposerOption func(*Composer)

// WithClock overrides the clock used for the created date
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) {
		c.now = now
	}
}

// Composer builds CoverageEligibilityResponse documents
type Composer struct {
	identifierBase string
	now            func() time.Time
}

// NewComposer creates a composer whose response identifiers live under identifierBase
func NewComposer(identifierBase string, opts ...ComposerOption) *Composer {
	c := &Composer{
		identifierBase: identifierBase,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the response for request with the given outcome
func (c *Composer) Compose(request *fhir.CoverageEligibilityRequest, inforce bool) *fhir.CoverageEligibilityResponse {
	disposition := DispositionNotInforce
	if inforce {
		disposition = DispositionInforce
	}

	purpose := []string{DefaultPurpose}
	if len(request.Purpose) > 0 {
		purpose = append([]string(nil), request.Purpose...)
	}

	response := &fhir.CoverageEligibilityResponse{
		ResourceType: string(fhir.KindCoverageEligibilityResponse),
		ID:           ResponseID(request.ID),
		Status:       StatusActive,
		Purpose:      purpose,
		Patient:      fhir.Reference{Reference: request.Patient.Reference},
		Created:      c.now().UTC().Format(dateLayout),
		Request:      fhir.Reference{Reference: fhir.FormatReference(fhir.KindCoverageEligibilityRequest, request.ID)},
		Outcome:      OutcomeComplete,
		Disposition:  disposition,
		Insurer:      fhir.Reference{Reference: request.Insurer.Reference},
		Insurance: []fhir.ResponseInsurance{{
			Coverage: fhir.Reference{Reference: request.CoverageReference()},
			Inforce:  inforce,
		}},
	}

	if c.identifierBase != "" {
		response.Identifier = []fhir.Identifier{{
			System: c.identifierBase,
			Value:  c.identifierBase + request.ID,
		}}
	}

	return response
}
