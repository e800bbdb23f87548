package messaging

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/monitoring"
	"github.com/LinuxForHealth/connect-contracts/pkg/types"
)

// maxResends bounds the automatic resends after a closed connection
const maxResends = 1

// Publish outcomes recorded in metrics
const (
	StatusPublished = "published"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// Event is a message with a stable identity used for deduplication
type Event interface {
	EventID() string
}

// State is the connection state seen by the Publisher
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Publisher delivers events with at most one automatic resend. Callers get no
// delivery signal back; outcomes are logged and counted.
type Publisher struct {
	mu      sync.Mutex
	conn    Connection
	state   State
	resends int

	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
	tracing *monitoring.TracingManager
}

// NewPublisher creates a publisher owning conn
func NewPublisher(conn Connection, log *logger.Logger, metrics *monitoring.MetricsCollector, tracing *monitoring.TracingManager) *Publisher {
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector(nil)
	}
	if tracing == nil {
		tracing = monitoring.NewTracingManager(nil)
	}
	return &Publisher{
		conn:    conn,
		state:   StateDisconnected,
		logger:  log,
		metrics: metrics,
		tracing: tracing,
	}
}

// Publish serializes event and publishes it to subject
func (p *Publisher) Publish(ctx context.Context, subject string, event Event) {
	entry := p.logger.WithContext(ctx).WithField("component", "publisher")

	payload, err := json.Marshal(event)
	if err != nil {
		entry.WithError(err).Error("Failed to serialize event")
		p.metrics.RecordPublish(StatusFailed)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := p.tracing.StartPublishSpan(ctx, subject, event.EventID())
	defer span.End()

	for attempt := 1; ; attempt++ {
		err := p.publishOnce(ctx, subject, payload, event.EventID())
		p.logger.Publish(ctx, subject, event.EventID(), attempt, err)
		if err == nil {
			p.resends = 0
			p.metrics.RecordPublish(StatusPublished)
			return
		}
		monitoring.RecordError(span, err)

		if !types.IsType(err, types.ErrorTypePublishConnectionClosed) {
			p.metrics.RecordPublish(StatusFailed)
			return
		}

		p.conn.Reset()
		p.state = StateDisconnected

		if p.resends >= maxResends {
			entry.WithField("event_id", event.EventID()).Error("Connection closed again after resend; dropping event")
			p.metrics.RecordPublish(StatusAbandoned)
			return
		}
		p.resends++
		p.metrics.RecordResend()
	}
}

// publishOnce connects when needed and performs one publish
func (p *Publisher) publishOnce(ctx context.Context, subject string, payload []byte, dedupID string) error {
	if p.state != StateConnected {
		p.state = StateConnecting
		if err := p.conn.Connect(ctx); err != nil {
			p.state = StateDisconnected
			return err
		}
		p.state = StateConnected
	}

	return p.conn.Publish(ctx, subject, payload, dedupID)
}

// SetConnection replaces the connection, dropping the current one
func (p *Publisher) SetConnection(conn Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		p.conn.Reset()
	}
	p.conn = conn
	p.state = StateDisconnected
	p.resends = 0
}

// State returns the current connection state
func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
