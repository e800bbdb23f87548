package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LinuxForHealth/connect-contracts/pkg/fhir"
	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
)

func testRequest(created string) *fhir.CoverageEligibilityRequest {
	return &fhir.CoverageEligibilityRequest{
		ResourceType: "CoverageEligibilityRequest",
		ID:           "R1",
		Patient:      fhir.Reference{Reference: "Patient/1"},
		Created:      created,
		Insurer:      fhir.Reference{Reference: "Organization/1"},
		Insurance:    []fhir.RequestInsurance{{Coverage: fhir.Reference{Reference: "Coverage/1"}}},
	}
}

func testCoverage(payor, subscriber, start, end string) *fhir.Coverage {
	return &fhir.Coverage{
		ResourceType: "Coverage",
		ID:           "1",
		Subscriber:   fhir.Reference{Reference: subscriber},
		Payor:        []fhir.Reference{{Reference: payor}},
		Period:       fhir.Period{Start: start, End: end},
	}
}

var (
	testPatient = &fhir.Patient{ResourceType: "Patient", ID: "1"}
	testInsurer = &fhir.Organization{ResourceType: "Organization", ID: "1"}
)

func TestEvaluator_Conjuncts(t *testing.T) {
	e := NewEvaluator(logger.Discard())

	tests := []struct {
		name     string
		coverage *fhir.Coverage
		created  string
		expected bool
	}{
		{"all conjuncts hold", testCoverage("Organization/1", "Patient/1", "2021-01-01", "2021-12-31"), "2021-06-15", true},
		{"payor differs", testCoverage("Organization/2", "Patient/1", "2021-01-01", "2021-12-31"), "2021-06-15", false},
		{"subscriber differs", testCoverage("Organization/1", "Patient/2", "2021-01-01", "2021-12-31"), "2021-06-15", false},
		{"outside period", testCoverage("Organization/1", "Patient/1", "2021-01-01", "2021-12-31"), "2022-01-01", false},
		{"payor and subscriber differ", testCoverage("Organization/2", "Patient/2", "2021-01-01", "2021-12-31"), "2021-06-15", false},
		{"payor differs outside period", testCoverage("Organization/2", "Patient/1", "2021-01-01", "2021-12-31"), "2020-06-15", false},
		{"subscriber differs outside period", testCoverage("Organization/1", "Patient/2", "2021-01-01", "2021-12-31"), "2020-06-15", false},
		{"nothing holds", testCoverage("Organization/2", "Patient/2", "2021-01-01", "2021-12-31"), "2020-06-15", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Evaluate(testRequest(tt.created), testPatient, testInsurer, tt.coverage))
		})
	}
}

func TestEvaluator_PeriodBoundaries(t *testing.T) {
	e := NewEvaluator(logger.Discard())
	coverage := testCoverage("Organization/1", "Patient/1", "2021-01-01", "2021-12-31")

	tests := []struct {
		created  string
		expected bool
	}{
		{"2021-01-01", true},
		{"2021-12-31", true},
		{"2020-12-31", false},
		{"2022-01-01", false},
		{"2021-12-31T23:59:59Z", true},
		{"2021-06-15T08:00:00+10:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.created, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Evaluate(testRequest(tt.created), testPatient, testInsurer, coverage))
		})
	}
}

func TestEvaluator_SingleDayPeriod(t *testing.T) {
	e := NewEvaluator(logger.Discard())
	coverage := testCoverage("Organization/1", "Patient/1", "2021-03-01", "2021-03-01")

	assert.True(t, e.Evaluate(testRequest("2021-03-01"), testPatient, testInsurer, coverage))
	assert.False(t, e.Evaluate(testRequest("2021-03-02"), testPatient, testInsurer, coverage))
}

func TestEvaluator_FailsClosed(t *testing.T) {
	e := NewEvaluator(logger.Discard())
	coverage := testCoverage("Organization/1", "Patient/1", "2021-01-01", "2021-12-31")

	assert.False(t, e.Evaluate(nil, testPatient, testInsurer, coverage))
	assert.False(t, e.Evaluate(testRequest("2021-06-15"), nil, testInsurer, coverage))
	assert.False(t, e.Evaluate(testRequest("2021-06-15"), testPatient, nil, coverage))
	assert.False(t, e.Evaluate(testRequest("2021-06-15"), testPatient, testInsurer, nil))

	noPayor := testCoverage("Organization/1", "Patient/1", "2021-01-01", "2021-12-31")
	noPayor.Payor = nil
	assert.False(t, e.Evaluate(testRequest("2021-06-15"), testPatient, testInsurer, noPayor))

	assert.False(t, e.Evaluate(testRequest("15/06/2021"), testPatient, testInsurer, coverage))
	assert.False(t, e.Evaluate(testRequest("2021-06-15"), testPatient, testInsurer,
		testCoverage("Organization/1", "Patient/1", "2021-01-01", "not-a-date")))
}

func TestEvaluator_InvertedPeriodIsEmpty(t *testing.T) {
	e := NewEvaluator(logger.Discard())
	coverage := testCoverage("Organization/1", "Patient/1", "2021-12-31", "2021-01-01")

	assert.False(t, e.Evaluate(testRequest("2021-06-15"), testPatient, testInsurer, coverage))
	assert.False(t, e.Evaluate(testRequest("2021-12-31"), testPatient, testInsurer, coverage))
}
