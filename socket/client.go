package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultReplyPrefix = "/portal/replies/"
)

// ErrNoResponder is returned when nobody is subscribed to the request topic.
var ErrNoResponder = errors.New("socket: no responder for topic")

// Options configures a Client.
type Options struct {
	// ReplyPrefix is prepended to the request id to form the private reply channel.
	ReplyPrefix string
	// Timeout applies to requests that do not carry their own.
	Timeout time.Duration
	Logger  *log.Logger
}

// Client performs request/response exchanges over Redis pub/sub.
type Client struct {
	redis       *redis.Client
	replyPrefix string
	timeout     time.Duration
	logger      *log.Logger
}

// NewClient creates a Client publishing through rc.
func NewClient(rc *redis.Client, opts Options) *Client {
	if opts.ReplyPrefix == "" {
		opts.ReplyPrefix = DefaultReplyPrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Client{redis: rc, replyPrefix: opts.ReplyPrefix, timeout: opts.Timeout, logger: opts.Logger}
}

// Request publishes req on its topic and waits for the matching reply.
func (c *Client) Request(ctx context.Context, req Request) (json.RawMessage, error) {
	payload, err := sonic.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("socket: encode payload: %w", err)
	}
	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	id := uuid.NewString()
	env := envelope{
		ID:        id,
		Topic:     req.Topic,
		ReplyTo:   c.replyPrefix + id,
		TimeoutMs: timeout.Milliseconds(),
		Payload:   payload,
	}
	data, err := sonic.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("socket: encode envelope: %w", err)
	}

	// Subscribe before publishing so a fast responder cannot reply into the void.
	sub := c.redis.Subscribe(ctx, env.ReplyTo)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("socket: subscribe %s: %w", env.ReplyTo, err)
	}
	replies := sub.Channel()

	receivers, err := c.redis.Publish(ctx, req.Topic, data).Result()
	if err != nil {
		return nil, fmt.Errorf("socket: publish %s: %w", req.Topic, err)
	}
	if receivers == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoResponder, req.Topic)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("%w after %s on %s", ErrTimeout, timeout, req.Topic)
		case msg, ok := <-replies:
			if !ok {
				return nil, fmt.Errorf("socket: reply channel for %s closed", req.Topic)
			}
			var rep reply
			if err := sonic.UnmarshalString(msg.Payload, &rep); err != nil {
				c.logger.WithFields(log.Fields{"topic": req.Topic, "id": id}).WithError(err).Warn("unable to parse reply")
				continue
			}
			if rep.ID != id {
				continue
			}
			if rep.Error != "" {
				return nil, &RemoteError{Topic: req.Topic, Message: rep.Error}
			}
			return rep.Payload, nil
		}
	}
}
