package fhir

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/types"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Issue is one schema violation found in a document
type Issue struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// Validator checks documents against the schema of their resource kind
type Validator struct {
	schemas map[Kind]*gojsonschema.Schema
	logger  *logger.Logger
}

// NewValidator compiles the embedded schema of every recognized kind
func NewValidator(log *logger.Logger) (*Validator, error) {
	v := &Validator{
		schemas: make(map[Kind]*gojsonschema.Schema, len(Kinds())),
		logger:  log,
	}

	for _, kind := range Kinds() {
		raw, err := schemaFS.ReadFile("schemas/" + string(kind) + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("failed to read %s schema: %w", kind, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", kind, err)
		}
		v.schemas[kind] = schema
	}

	return v, nil
}

// ParseKind maps a resourceType tag onto a recognized kind
func ParseKind(tag string) (Kind, error) {
	switch Kind(tag) {
	case KindCoverage, KindCoverageEligibilityRequest, KindCoverageEligibilityResponse, KindOrganization, KindPatient:
		return Kind(tag), nil
	default:
		return "", types.NewUnsupportedKindError(tag)
	}
}

// newResource returns an empty variant for kind
func newResource(kind Kind) (Resource, error) {
	switch kind {
	case KindCoverage:
		return &Coverage{}, nil
	case KindCoverageEligibilityRequest:
		return &CoverageEligibilityRequest{}, nil
	case KindCoverageEligibilityResponse:
		return &CoverageEligibilityResponse{}, nil
	case KindOrganization:
		return &Organization{}, nil
	case KindPatient:
		return &Patient{}, nil
	default:
		return nil, types.NewUnsupportedKindError(string(kind))
	}
}

// Validate checks document against the schema for kind and decodes it
func (v *Validator) Validate(kind Kind, document []byte) (Resource, error) {
	resource, err := newResource(kind)
	if err != nil {
		v.logger.WithComponent("validator").WithField("kind", kind).Warn("Unsupported resource kind")
		return nil, err
	}

	result, err := v.schemas[kind].Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, fmt.Sprintf("%s document is not valid JSON", kind), map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
	}

	if !result.Valid() {
		issues := make([]Issue, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, Issue{Field: desc.Field(), Description: desc.Description()})
		}
		v.logger.WithComponent("validator").WithFields(map[string]interface{}{
			"kind":   kind,
			"issues": issues,
		}).Warn("Document failed schema validation")

		return nil, types.NewValidationError(types.ErrCodeValidationFailed, fmt.Sprintf("%s document failed schema validation", kind), map[string]interface{}{
			"kind":   string(kind),
			"issues": issues,
		})
	}

	if err := json.Unmarshal(document, resource); err != nil {
		return nil, types.NewValidationError(types.ErrCodeValidationFailed, fmt.Sprintf("%s document could not be decoded", kind), map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
	}

	return resource, nil
}

// ValidateResource reads the resourceType tag of document and validates it as that kind
func (v *Validator) ValidateResource(document []byte) (Resource, error) {
	var tag struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(document, &tag); err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "document is not a JSON object", map[string]interface{}{
			"error": err.Error(),
		})
	}

	kind, err := ParseKind(tag.ResourceType)
	if err != nil {
		v.logger.WithComponent("validator").WithField("kind", tag.ResourceType).Warn("Unsupported resource kind")
		return nil, err
	}

	return v.Validate(kind, document)
}
