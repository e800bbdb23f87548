package fhir

import "strings"

// Kind is the resourceType tag of one of the recognized FHIR resources
type Kind string

const (
	KindCoverage                    Kind = "Coverage"
	KindCoverageEligibilityRequest  Kind = "CoverageEligibilityRequest"
	KindCoverageEligibilityResponse Kind = "CoverageEligibilityResponse"
	KindOrganization                Kind = "Organization"
	KindPatient                     Kind = "Patient"
)

// Kinds lists every recognized resource kind
func Kinds() []Kind {
	return []Kind{
		KindCoverage,
		KindCoverageEligibilityRequest,
		KindCoverageEligibilityResponse,
		KindOrganization,
		KindPatient,
	}
}

// Resource is implemented by the decoded form of each recognized kind.
// The set of implementations is closed to this package.
type Resource interface {
	Kind() Kind
	isResource()
}

// Reference represents a FHIR Reference datatype
type Reference struct {
	Reference string `json:"reference"`
	Display   string `json:"display,omitempty"`
}

// Period represents a FHIR Period datatype
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Identifier represents a FHIR Identifier datatype
type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value"`
}

// Patient is opaque to the eligibility rule beyond its existence
type Patient struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
}

// Organization is the insurer; opaque beyond its existence
type Organization struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Coverage holds the payor, subscriber and active period of an insurance policy
type Coverage struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id,omitempty"`
	Status       string      `json:"status,omitempty"`
	Subscriber   Reference   `json:"subscriber"`
	Beneficiary  *Reference  `json:"beneficiary,omitempty"`
	Payor        []Reference `json:"payor"`
	Period       Period      `json:"period"`
}

// CoverageEligibilityRequest asks whether a patient's coverage is in force
type CoverageEligibilityRequest struct {
	ResourceType string             `json:"resourceType"`
	ID           string             `json:"id"`
	Status       string             `json:"status,omitempty"`
	Purpose      []string           `json:"purpose,omitempty"`
	Patient      Reference          `json:"patient"`
	Created      string             `json:"created"`
	Insurer      Reference          `json:"insurer"`
	Insurance    []RequestInsurance `json:"insurance"`
}

// RequestInsurance names the coverage to check
type RequestInsurance struct {
	Focal    *bool     `json:"focal,omitempty"`
	Coverage Reference `json:"coverage"`
}

// CoverageReference returns insurance[0].coverage.reference, or "" when absent
func (r *CoverageEligibilityRequest) CoverageReference() string {
	if len(r.Insurance) == 0 {
		return ""
	}
	return r.Insurance[0].Coverage.Reference
}

// CoverageEligibilityResponse carries the eligibility result
type CoverageEligibilityResponse struct {
	ResourceType string              `json:"resourceType"`
	ID           string              `json:"id"`
	Identifier   []Identifier        `json:"identifier,omitempty"`
	Status       string              `json:"status"`
	Purpose      []string            `json:"purpose"`
	Patient      Reference           `json:"patient"`
	Created      string              `json:"created"`
	Request      Reference           `json:"request"`
	Outcome      string              `json:"outcome"`
	Disposition  string              `json:"disposition,omitempty"`
	Insurer      Reference           `json:"insurer"`
	Insurance    []ResponseInsurance `json:"insurance"`
}

// ResponseInsurance reports whether the checked coverage is in force
type ResponseInsurance struct {
	Coverage Reference `json:"coverage"`
	Inforce  bool      `json:"inforce"`
}

// EventID returns the identifier used as the message deduplication key
func (r *CoverageEligibilityResponse) EventID() string {
	return r.ID
}

// Inforce returns insurance[0].inforce, false when absent
func (r *CoverageEligibilityResponse) Inforce() bool {
	if len(r.Insurance) == 0 {
		return false
	}
	return r.Insurance[0].Inforce
}

func (*Patient) Kind() Kind                     { return KindPatient }
func (*Organization) Kind() Kind                { return KindOrganization }
func (*Coverage) Kind() Kind                    { return KindCoverage }
func (*CoverageEligibilityRequest) Kind() Kind  { return KindCoverageEligibilityRequest }
func (*CoverageEligibilityResponse) Kind() Kind { return KindCoverageEligibilityResponse }

func (*Patient) isResource()                     {}
func (*Organization) isResource()                {}
func (*Coverage) isResource()                    {}
func (*CoverageEligibilityRequest) isResource()  {}
func (*CoverageEligibilityResponse) isResource() {}

// FormatReference builds a relative reference such as "Patient/001"
func FormatReference(kind Kind, id string) string {
	return string(kind) + "/" + id
}

// ReferenceKind returns the resource kind prefix of a relative reference
func ReferenceKind(reference string) string {
	kind, _, _ := strings.Cut(reference, "/")
	return kind
}
