package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

const (
	DefaultConnectTimeout = 5 * time.Second

	resubscribeMin = 500 * time.Millisecond
	resubscribeMax = 30 * time.Second
)

type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration // 0 = DefaultConnectTimeout
}

// Client is the event bus shared by every whatspy node. The WebSocket hub
// publishes tenant events on it and receives the events of its peers.
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

// NewClient connects and pings the server. The caller owns Close.
func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
		Password:    cfg.Password,
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := &Client{inner: inner, keyPrefix: normalizePrefix(cfg.KeyPrefix)}
	if err := c.Ping(ctx); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey at %s (timeout: %v): %w", cfg.Address, timeout, err)
	}

	logrus.WithField("address", cfg.Address).Info("[VALKEY] Connected")
	return c, nil
}

func normalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return prefix
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key joins parts under the configured prefix: Key("ws", "events") -> "whatspy:ws:events"
func (c *Client) Key(parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(c.keyPrefix, ":")
	}
	return c.keyPrefix + strings.Join(parts, ":")
}

// Ping is also used as the /api/health probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	cmd := c.inner.B().Publish().Channel(channel).Message(string(payload)).Build()
	return c.inner.Do(ctx, cmd).Error()
}

// Subscribe calls fn for every message on channel until ctx is cancelled.
// A dropped subscription is re-established with exponential backoff, so the
// only error returned is ctx.Err().
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error {
	return resubscribe(ctx, channel, func(ctx context.Context) error {
		// Receive recicla el comando; se construye en cada intento
		cmd := c.inner.B().Subscribe().Channel(channel).Build()
		return c.inner.Receive(ctx, cmd, func(msg valkeylib.PubSubMessage) {
			fn([]byte(msg.Message))
		})
	})
}

func resubscribe(ctx context.Context, channel string, receive func(ctx context.Context) error) error {
	wait := resubscribeMin

	for {
		started := time.Now()
		err := receive(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// una suscripción que duró un rato reinicia el backoff
		if time.Since(started) > resubscribeMax {
			wait = resubscribeMin
		}
		logrus.WithField("channel", channel).WithError(err).Warnf("[VALKEY] Subscription lost, retrying in %v", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > resubscribeMax {
		return resubscribeMax
	}
	return d
}
