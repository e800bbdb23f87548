package fhir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/types"
)

const (
	requestJSON = `{
		"resourceType": "CoverageEligibilityRequest",
		"id": "R1",
		"status": "active",
		"purpose": ["validation"],
		"patient": {"reference": "Patient/1"},
		"created": "2021-06-15",
		"insurer": {"reference": "Organization/1"},
		"insurance": [{"coverage": {"reference": "Coverage/1"}}]
	}`

	coverageJSON = `{
		"resourceType": "Coverage",
		"id": "1",
		"status": "active",
		"subscriber": {"reference": "Patient/1"},
		"payor": [{"reference": "Organization/1"}],
		"period": {"start": "2021-01-01", "end": "2021-12-31"}
	}`

	responseJSON = `{
		"resourceType": "CoverageEligibilityResponse",
		"id": "0c8a4f5e-1f7e-5b1e-9d0a-3c2b1a000001",
		"status": "active",
		"purpose": ["validation"],
		"patient": {"reference": "Patient/1"},
		"created": "2021-06-15",
		"request": {"reference": "CoverageEligibilityRequest/R1"},
		"outcome": "complete",
		"disposition": "Policy is currently in effect.",
		"insurer": {"reference": "Organization/1"},
		"insurance": [{"coverage": {"reference": "Coverage/1"}, "inforce": true}]
	}`
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(logger.Discard())
	require.NoError(t, err)
	return v
}

func TestValidator_AcceptsEveryKind(t *testing.T) {
	v := newTestValidator(t)

	docs := map[Kind]string{
		KindPatient:                     `{"resourceType": "Patient", "id": "1"}`,
		KindOrganization:                `{"resourceType": "Organization", "id": "1", "name": "Acme Health"}`,
		KindCoverage:                    coverageJSON,
		KindCoverageEligibilityRequest:  requestJSON,
		KindCoverageEligibilityResponse: responseJSON,
	}

	for kind, doc := range docs {
		t.Run(string(kind), func(t *testing.T) {
			resource, err := v.Validate(kind, []byte(doc))
			require.NoError(t, err)
			assert.Equal(t, kind, resource.Kind())
		})
	}
}

func TestValidator_DecodesRequest(t *testing.T) {
	v := newTestValidator(t)

	resource, err := v.Validate(KindCoverageEligibilityRequest, []byte(requestJSON))
	require.NoError(t, err)

	req, ok := resource.(*CoverageEligibilityRequest)
	require.True(t, ok)
	assert.Equal(t, "R1", req.ID)
	assert.Equal(t, "Patient/1", req.Patient.Reference)
	assert.Equal(t, "Organization/1", req.Insurer.Reference)
	assert.Equal(t, "Coverage/1", req.CoverageReference())
	assert.Equal(t, "2021-06-15", req.Created)
}

func TestValidator_UnsupportedKind(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate(Kind("Claim"), []byte(`{"resourceType": "Claim"}`))
	assert.True(t, types.IsType(err, types.ErrorTypeUnsupportedKind))

	_, err = v.ValidateResource([]byte(`{"resourceType": "ExplanationOfBenefit"}`))
	assert.True(t, types.IsType(err, types.ErrorTypeUnsupportedKind))

	_, err = v.ValidateResource([]byte(`{"id": "no-tag"}`))
	assert.True(t, types.IsType(err, types.ErrorTypeUnsupportedKind))
}

func TestValidator_MissingRequiredField(t *testing.T) {
	v := newTestValidator(t)

	cases := map[string]struct {
		kind Kind
		doc  string
	}{
		"request without insurer": {KindCoverageEligibilityRequest, `{
			"resourceType": "CoverageEligibilityRequest", "id": "R1",
			"patient": {"reference": "Patient/1"}, "created": "2021-06-15",
			"insurance": [{"coverage": {"reference": "Coverage/1"}}]}`},
		"request with empty insurance": {KindCoverageEligibilityRequest, `{
			"resourceType": "CoverageEligibilityRequest", "id": "R1",
			"patient": {"reference": "Patient/1"}, "created": "2021-06-15",
			"insurer": {"reference": "Organization/1"}, "insurance": []}`},
		"coverage without period end": {KindCoverage, `{
			"resourceType": "Coverage", "subscriber": {"reference": "Patient/1"},
			"payor": [{"reference": "Organization/1"}], "period": {"start": "2021-01-01"}}`},
		"coverage without payor": {KindCoverage, `{
			"resourceType": "Coverage", "subscriber": {"reference": "Patient/1"},
			"period": {"start": "2021-01-01", "end": "2021-12-31"}}`},
		"response without inforce": {KindCoverageEligibilityResponse, `{
			"resourceType": "CoverageEligibilityResponse", "id": "x", "status": "active",
			"purpose": ["validation"], "patient": {"reference": "Patient/1"}, "created": "2021-06-15",
			"request": {"reference": "CoverageEligibilityRequest/R1"}, "outcome": "complete",
			"insurer": {"reference": "Organization/1"}, "insurance": [{"coverage": {"reference": "Coverage/1"}}]}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(tc.kind, []byte(tc.doc))
			require.Error(t, err)
			assert.True(t, types.IsType(err, types.ErrorTypeValidation))

			var verr *types.Error
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Details["issues"])
		})
	}
}

func TestValidator_WrongResourceTypeForKind(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate(KindCoverage, []byte(`{"resourceType": "Patient", "id": "1"}`))
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
}

func TestValidator_MalformedDate(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate(KindCoverageEligibilityRequest, []byte(`{
		"resourceType": "CoverageEligibilityRequest", "id": "R1",
		"patient": {"reference": "Patient/1"}, "created": "15/06/2021",
		"insurer": {"reference": "Organization/1"},
		"insurance": [{"coverage": {"reference": "Coverage/1"}}]}`))
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
}

func TestValidator_NotJSON(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate(KindPatient, []byte(`not json`))
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
}
