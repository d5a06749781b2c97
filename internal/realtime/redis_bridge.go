package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPattern = "goldenbell:rooms:*"
	channelPrefix  = "goldenbell:rooms:"
	publishTimeout = 5 * time.Second
)

// bridgePayload is the envelope published to Redis for cross-instance
// broadcast. Origin identifies the publishing instance so it can skip
// its own messages on the way back.
type bridgePayload struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

// LocalBroadcaster receives messages that originated on other instances.
// Satisfied by ws.Hub.
type LocalBroadcaster interface {
	BroadcastLocal(room string, data []byte)
}

// RedisBridge fans websocket broadcasts out across server instances over
// Redis pub/sub, one channel per room.
type RedisBridge struct {
	client     *redis.Client
	instanceID string
	logger     *zap.Logger
	cancel     context.CancelFunc
}

// NewRedisBridge creates the bridge. Call Run to start consuming.
func NewRedisBridge(client *redis.Client, logger *zap.Logger) *RedisBridge {
	return &RedisBridge{
		client:     client,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

// Publish sends an already-encoded websocket message to the room's channel.
func (b *RedisBridge) Publish(room string, data []byte) error {
	body, err := json.Marshal(bridgePayload{
		Origin: b.instanceID,
		Room:   room,
		Data:   data,
		At:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, channelPrefix+room, body).Err()
}

// Run subscribes to every room channel and forwards foreign-origin messages
// to the local hub until Close is called.
func (b *RedisBridge) Run(hub LocalBroadcaster) error {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	pubsub := b.client.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p bridgePayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					b.logger.Warn("bridge payload malformed", zap.Error(err))
					continue
				}
				if p.Origin == b.instanceID {
					continue
				}
				hub.BroadcastLocal(p.Room, p.Data)
			}
		}
	}()
	b.logger.Info("redis bridge running", zap.String("instance", b.instanceID))
	return nil
}

// Close stops the subscription loop.
func (b *RedisBridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}
