package eligibility

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LinuxForHealth/connect-contracts/internal/messaging"
	"github.com/LinuxForHealth/connect-contracts/pkg/config"
	"github.com/LinuxForHealth/connect-contracts/pkg/fhir"
	"github.com/LinuxForHealth/connect-contracts/pkg/interfaces"
	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/monitoring"
	"github.com/LinuxForHealth/connect-contracts/pkg/types"
)

var _ interfaces.EligibilityChecker = (*Service)(nil)

// Resolver fetches a FHIR document by relative reference
type Resolver interface {
	Resolve(ctx context.Context, reference string) ([]byte, error)
}

// EventPublisher announces composed responses
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event messaging.Event)
	SetConnection(conn messaging.Connection)
}

// ResolverFactory builds the resolver for a configuration
type ResolverFactory func(cfg *config.Config) (Resolver, error)

// ConnectionFactory builds the message-bus connection for a configuration
type ConnectionFactory func(cfg *config.Config) messaging.Connection

// Option configures a Service
type Option func(*Service)

// WithResolverFactory overrides how resolvers are built
func WithResolverFactory(f ResolverFactory) Option {
	return func(s *Service) { s.newResolver = f }
}

// WithConnectionFactory overrides how message-bus connections are built
func WithConnectionFactory(f ConnectionFactory) Option {
	return func(s *Service) { s.newConnection = f }
}

// WithPublisher replaces the publisher built from the connection factory
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithComposer replaces the default composer
func WithComposer(c *Composer) Option {
	return func(s *Service) { s.composer = c }
}

// Service runs the eligibility flow: validate, resolve, evaluate, compose, publish
type Service struct {
	mu        sync.RWMutex
	cfg       *config.Config
	resolver  Resolver
	publisher EventPublisher

	validator *fhir.Validator
	evaluator *Evaluator
	composer  *Composer

	newResolver   ResolverFactory
	newConnection ConnectionFactory

	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
	tracing *monitoring.TracingManager
}

// NewService creates an eligibility service. When cfg already names a FHIR
// server the resolver is built immediately; otherwise Configure must be called.
func NewService(cfg *config.Config, log *logger.Logger, metrics *monitoring.MetricsCollector, tracing *monitoring.TracingManager, opts ...Option) (*Service, error) {
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector(nil)
	}
	if tracing == nil {
		tracing = monitoring.NewTracingManager(nil)
	}

	validator, err := fhir.NewValidator(log)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to build validator", err)
	}

	s := &Service{
		cfg:       cfg,
		validator: validator,
		evaluator: NewEvaluator(log),
		composer:  NewComposer(cfg.Eligibility.IdentifierBase),
		logger:    log,
		metrics:   metrics,
		tracing:   tracing,
	}
	s.newResolver = func(cfg *config.Config) (Resolver, error) {
		return fhir.NewResolver(cfg.FHIR.Server, cfg.FHIR.InsecureSkipVerify, log)
	}
	s.newConnection = func(cfg *config.Config) messaging.Connection {
		return messaging.NewJetStreamConnection(messaging.JetStreamOptions{
			Server:       cfg.NATS.Server,
			NkeySeedFile: cfg.NATS.NkeySeedFile,
			CAFile:       cfg.NATS.CAFile,
			Name:         cfg.NATS.ClientName,
		})
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.publisher == nil {
		s.publisher = messaging.NewPublisher(s.newConnection(cfg), log, metrics, tracing)
	}

	if cfg.FHIR.Server != "" {
		resolver, err := s.newResolver(cfg)
		if err != nil {
			return nil, err
		}
		s.resolver = resolver
	}

	return s, nil
}

// Configure applies a {nats_server, fhir_server} blob, replacing the resolver
// and the message-bus connection
func (s *Service) Configure(ctx context.Context, data []byte) error {
	ic, err := config.ParseInstanceConfig(data)
	if err != nil {
		s.metrics.RecordRejected("configuration")
		return types.NewConfigurationError("invalid instance configuration", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg.Apply(ic)
	resolver, err := s.newResolver(cfg)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.resolver = resolver
	s.publisher.SetConnection(s.newConnection(cfg))

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"component":   "service",
		"nats_server": cfg.NATS.Server,
		"fhir_server": cfg.FHIR.Server,
	}).Info("Instance configured")

	return nil
}

// Configured reports whether a FHIR server has been set
func (s *Service) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver != nil
}

// Check evaluates a CoverageEligibilityRequest document and publishes the
// response. Only inbound validation failures and composition defects are
// returned as errors; resolution failures produce an inforce=false response.
func (s *Service) Check(ctx context.Context, document []byte) (*fhir.CoverageEligibilityResponse, error) {
	started := time.Now()

	resource, err := s.validator.ValidateResource(document)
	if err != nil {
		if types.IsType(err, types.ErrorTypeUnsupportedKind) {
			s.metrics.RecordRejected("unsupported_kind")
		} else {
			s.metrics.RecordRejected("validation")
		}
		return nil, err
	}
	request, ok := resource.(*fhir.CoverageEligibilityRequest)
	if !ok {
		s.metrics.RecordRejected("validation")
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("expected a %s document, got %s", fhir.KindCoverageEligibilityRequest, resource.Kind()), map[string]interface{}{
				"kind": string(resource.Kind()),
			})
	}

	ctx = context.WithValue(ctx, logger.RequestIDKey, request.ID)
	ctx, span := s.tracing.StartEligibilitySpan(ctx, request.ID)
	defer span.End()

	s.mu.RLock()
	resolver, subject := s.resolver, s.cfg.NATS.Subject
	s.mu.RUnlock()

	if resolver == nil {
		s.metrics.RecordRejected("unconfigured")
		err := types.NewConfigurationError("FHIR server is not configured", nil)
		monitoring.RecordError(span, err)
		return nil, err
	}

	inforce := s.evaluate(ctx, resolver, request)

	response := s.composer.Compose(request, inforce)
	if err := s.validateResponse(response); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Composed response failed validation")
		monitoring.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordEvaluation(inforce, time.Since(started).Seconds())
	s.logger.Eligibility(ctx, request.ID, inforce, map[string]interface{}{
		"response_id": response.ID,
		"patient":     request.Patient.Reference,
		"insurer":     request.Insurer.Reference,
		"coverage":    request.CoverageReference(),
	})

	if subject == "" {
		subject = config.DefaultSubject
	}
	s.publisher.Publish(ctx, subject, response)

	return response, nil
}

// resolved holds the three documents the rule needs
type resolved struct {
	patient  *fhir.Patient
	insurer  *fhir.Organization
	coverage *fhir.Coverage
}

// evaluate resolves the referenced documents concurrently and applies the rule.
// Any resolution or validation failure fails closed.
func (s *Service) evaluate(ctx context.Context, resolver Resolver, request *fhir.CoverageEligibilityRequest) bool {
	var docs resolved

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.resolve(gctx, resolver, fhir.KindPatient, request.Patient.Reference)
		if err == nil {
			docs.patient = r.(*fhir.Patient)
		}
		return err
	})
	g.Go(func() error {
		r, err := s.resolve(gctx, resolver, fhir.KindOrganization, request.Insurer.Reference)
		if err == nil {
			docs.insurer = r.(*fhir.Organization)
		}
		return err
	})
	g.Go(func() error {
		r, err := s.resolve(gctx, resolver, fhir.KindCoverage, request.CoverageReference())
		if err == nil {
			docs.coverage = r.(*fhir.Coverage)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Reference resolution failed; coverage treated as not in force")
		return false
	}

	return s.evaluator.Evaluate(request, docs.patient, docs.insurer, docs.coverage)
}

// resolve fetches reference and validates it as kind
func (s *Service) resolve(ctx context.Context, resolver Resolver, kind fhir.Kind, reference string) (fhir.Resource, error) {
	ctx, span := s.tracing.StartResolveSpan(ctx, reference)
	defer span.End()

	if got := fhir.ReferenceKind(reference); got != string(kind) {
		err := types.NewResolutionError(reference, fmt.Sprintf("reference does not point to a %s", kind), nil)
		s.metrics.RecordResolution(string(kind), false)
		monitoring.RecordError(span, err)
		return nil, err
	}

	document, err := resolver.Resolve(ctx, reference)
	if err != nil {
		s.metrics.RecordResolution(string(kind), false)
		monitoring.RecordError(span, err)
		return nil, err
	}

	resource, err := s.validator.Validate(kind, document)
	if err != nil {
		s.metrics.RecordResolution(string(kind), false)
		monitoring.RecordError(span, err)
		return nil, fmt.Errorf("resolved %s: %w", reference, err)
	}

	s.metrics.RecordResolution(string(kind), true)
	return resource, nil
}

// validateResponse round-trips response through the validator
func (s *Service) validateResponse(response *fhir.CoverageEligibilityResponse) error {
	document, err := json.Marshal(response)
	if err != nil {
		return types.NewInternalError(types.ErrCodeResponseInvalid, "failed to encode response", err)
	}
	if _, err := s.validator.Validate(fhir.KindCoverageEligibilityResponse, document); err != nil {
		return types.NewInternalError(types.ErrCodeResponseInvalid, "composed response is not a valid CoverageEligibilityResponse", err)
	}
	return nil
}
