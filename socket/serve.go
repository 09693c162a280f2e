package socket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// HandlerFunc answers one request. The returned value is encoded as the reply payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Serve answers requests published on topic until ctx is cancelled.
func Serve(ctx context.Context, rc *redis.Client, topic string, h HandlerFunc, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	for {
		sub := rc.Subscribe(ctx, topic)
		ch := sub.Channel()
	loop:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop
				}
				respond(ctx, rc, topic, msg.Payload, h, logger)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.WithField("topic", topic).Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func respond(ctx context.Context, rc *redis.Client, topic, raw string, h HandlerFunc, logger *log.Logger) {
	var env envelope
	if err := sonic.UnmarshalString(raw, &env); err != nil {
		logger.WithField("topic", topic).WithError(err).Warn("unable to parse request")
		return
	}
	if env.ID == "" || env.ReplyTo == "" {
		logger.WithField("topic", topic).Warn("request without id or reply channel")
		return
	}

	hctx := ctx
	if env.TimeoutMs > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, time.Duration(env.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	rep := reply{ID: env.ID}
	result, err := h(hctx, env.Payload)
	if err != nil {
		rep.Error = err.Error()
	} else if data, encErr := sonic.Marshal(result); encErr != nil {
		rep.Error = "encode reply: " + encErr.Error()
	} else {
		rep.Payload = data
	}

	data, err := sonic.Marshal(rep)
	if err != nil {
		logger.WithFields(log.Fields{"topic": topic, "id": env.ID}).WithError(err).Error("encode reply")
		return
	}
	if err := rc.Publish(ctx, env.ReplyTo, data).Err(); err != nil {
		logger.WithFields(log.Fields{"topic": topic, "id": env.ID}).WithError(err).Error("unable to publish reply")
	}
}
