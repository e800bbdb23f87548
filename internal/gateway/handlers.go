package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LinuxForHealth/connect-contracts/pkg/types"
)

// handleHealth serves the aggregated health report
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.health.HTTPHandler()(w, r)
}

// metricsHandler exposes the registered collectors
func (s *Service) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

// handleConfigure applies a {nats_server, fhir_server} blob
func (s *Service) handleConfigure(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.checker.Configure(r.Context(), body); err != nil {
		if types.IsType(err, types.ErrorTypeConfiguration) {
			s.writeErrorWithStatus(w, http.StatusBadRequest, err)
			return
		}
		s.writeError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{
		"message": "configuration applied",
	})
}

// handleEligibility evaluates a CoverageEligibilityRequest. Publication is
// asynchronous to the caller, so a composed response is answered with 202.
func (s *Service) handleEligibility(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	response, err := s.checker.Check(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/fhir+json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.WithComponent("gateway").WithError(err).Error("Failed to encode JSON response")
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "failed to read request body", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return body, nil
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithComponent("gateway").WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes err as a structured error response
func (s *Service) writeError(w http.ResponseWriter, err error) {
	typed := asTypedError(err)
	s.writeJSONResponse(w, getStatusCode(typed.Type), typed)
}

// writeErrorWithStatus writes err with an explicit status code
func (s *Service) writeErrorWithStatus(w http.ResponseWriter, statusCode int, err error) {
	s.writeJSONResponse(w, statusCode, asTypedError(err))
}

func asTypedError(err error) *types.Error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}
	return types.NewInternalError(types.ErrCodeInternalError, err.Error(), nil)
}

// writeErrorResponse writes an error response for a gateway-level failure
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, &types.Error{
		Type:    types.ErrorTypeInternal,
		Code:    http.StatusText(statusCode),
		Message: message,
	})
}

// getStatusCode maps error types to HTTP status codes
func getStatusCode(errorType types.ErrorType) int {
	switch errorType {
	case types.ErrorTypeValidation, types.ErrorTypeUnsupportedKind:
		return http.StatusBadRequest
	case types.ErrorTypeConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
