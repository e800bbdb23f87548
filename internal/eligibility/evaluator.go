package eligibility

import (
	"fmt"
	"time"

	"github.com/LinuxForHealth/connect-contracts/pkg/fhir"
	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
)

const dateLayout = "2006-01-02"

// Evaluator applies the coverage matching rule
type Evaluator struct {
	logger *logger.Logger
}

// NewEvaluator creates a new evaluator
func NewEvaluator(log *logger.Logger) *Evaluator {
	return &Evaluator{logger: log}
}

// Evaluate reports whether coverage is in force for the request. It is true only
// when the coverage payor is the request insurer, the coverage subscriber is the
// request patient, and the request creation date lies within the coverage period,
// both ends inclusive. Any missing document or unparsable date yields false.
func (e *Evaluator) Evaluate(request *fhir.CoverageEligibilityRequest, patient *fhir.Patient, insurer *fhir.Organization, coverage *fhir.Coverage) bool {
	if request == nil || patient == nil || insurer == nil || coverage == nil {
		return false
	}
	entry := e.logger.WithRequestID(request.ID).WithField("component", "evaluator")

	if len(coverage.Payor) == 0 {
		entry.Debug("Coverage has no payor")
		return false
	}

	payorMatches := coverage.Payor[0].Reference == request.Insurer.Reference
	subscriberMatches := coverage.Subscriber.Reference == request.Patient.Reference

	inPeriod, err := withinPeriod(request.Created, coverage.Period)
	if err != nil {
		entry.WithError(err).Warn("Could not compare request date with coverage period")
		return false
	}

	entry.WithFields(map[string]interface{}{
		"payor_matches":      payorMatches,
		"subscriber_matches": subscriberMatches,
		"in_period":          inPeriod,
	}).Debug("Evaluated coverage conjuncts")

	return payorMatches && subscriberMatches && inPeriod
}

// withinPeriod reports whether created falls in [period.Start, period.End].
// A period whose start is after its end contains no dates.
func withinPeriod(created string, period fhir.Period) (bool, error) {
	day, err := parseDate(created)
	if err != nil {
		return false, fmt.Errorf("created: %w", err)
	}
	start, err := parseDate(period.Start)
	if err != nil {
		return false, fmt.Errorf("period.start: %w", err)
	}
	end, err := parseDate(period.End)
	if err != nil {
		return false, fmt.Errorf("period.end: %w", err)
	}
	if start.After(end) {
		return false, fmt.Errorf("period starts %s after it ends %s", period.Start, period.End)
	}

	return !day.Before(start) && !day.After(end), nil
}

// parseDate reads a FHIR date, or the date part of a dateTime, as UTC midnight
func parseDate(value string) (time.Time, error) {
	if len(value) > len(dateLayout) && value[len(dateLayout)] == 'T' {
		value = value[:len(dateLayout)]
	}
	return time.ParseInLocation(dateLayout, value, time.UTC)
}
