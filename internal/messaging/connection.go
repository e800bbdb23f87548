package messaging

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/LinuxForHealth/connect-contracts/pkg/types"
)

// Connection is the message-bus client owned by a Publisher
type Connection interface {
	// Connect establishes the connection; a no-op when already connected.
	Connect(ctx context.Context) error
	// Publish sends data to subject with dedupID as the deduplication key.
	Publish(ctx context.Context, subject string, data []byte, dedupID string) error
	// Reset drops the connection handle.
	Reset()
}

// JetStreamOptions holds the NATS endpoint and pre-provisioned key material
type JetStreamOptions struct {
	Server       string
	NkeySeedFile string
	CAFile       string
	Name         string
}

// JetStreamConnection publishes to NATS JetStream using nkey authentication
type JetStreamConnection struct {
	opts JetStreamOptions
	nc   *nats.Conn
	js   nats.JetStreamContext
}

// NewJetStreamConnection creates a disconnected JetStream connection
func NewJetStreamConnection(opts JetStreamOptions) *JetStreamConnection {
	return &JetStreamConnection{opts: opts}
}

// Connect dials the server. Client-side reconnect is disabled so that a lost
// connection is reported to the Publisher as closed.
func (c *JetStreamConnection) Connect(ctx context.Context) error {
	if c.nc != nil && !c.nc.IsClosed() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return types.NewPublishError(false, "", err)
	}
	if c.opts.Server == "" {
		return types.NewConfigurationError("NATS server URL is required", nil)
	}

	options := []nats.Option{nats.NoReconnect()}
	if c.opts.Name != "" {
		options = append(options, nats.Name(c.opts.Name))
	}
	if c.opts.NkeySeedFile != "" {
		nkey, err := nats.NkeyOptionFromSeed(c.opts.NkeySeedFile)
		if err != nil {
			return types.NewConfigurationError("failed to load NATS nkey seed", err)
		}
		options = append(options, nkey)
	}
	if c.opts.CAFile != "" {
		options = append(options, nats.RootCAs(c.opts.CAFile))
	}

	nc, err := nats.Connect(c.opts.Server, options...)
	if err != nil {
		return types.NewPublishError(false, "", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return types.NewPublishError(false, "", err)
	}

	c.nc = nc
	c.js = js
	return nil
}

// Publish sends data with the JetStream Nats-Msg-Id header set to dedupID
func (c *JetStreamConnection) Publish(ctx context.Context, subject string, data []byte, dedupID string) error {
	if c.js == nil {
		return types.NewPublishError(true, subject, nats.ErrConnectionClosed)
	}

	pubOpts := []nats.PubOpt{nats.MsgId(dedupID)}
	if _, ok := ctx.Deadline(); ok {
		pubOpts = append(pubOpts, nats.Context(ctx))
	}

	if _, err := c.js.Publish(subject, data, pubOpts...); err != nil {
		return types.NewPublishError(isConnectionClosed(err), subject, err)
	}
	return nil
}

// Reset closes and drops the connection handle
func (c *JetStreamConnection) Reset() {
	if c.nc != nil {
		c.nc.Close()
	}
	c.nc = nil
	c.js = nil
}

func isConnectionClosed(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionDraining)
}
