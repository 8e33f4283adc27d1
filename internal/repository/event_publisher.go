package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

// EventPublisher pushes workflow events to Redis pub/sub. Every event is addressed to a single
// (user, role) channel; there is no broadcast channel.
type EventPublisher struct {
	client *redis.Client
	prefix string
}

// NewEventPublisher constructs a publisher writing to "<prefix>:<user>:<role>" channels.
func NewEventPublisher(client *redis.Client, prefix string) *EventPublisher {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "points:events"
	}
	return &EventPublisher{client: client, prefix: prefix}
}

// Channel returns the channel a (user, role) pair subscribes to.
func (p *EventPublisher) Channel(userID, role string) string {
	return fmt.Sprintf("%s:%s:%s", p.prefix, userID, role)
}

// Publish serialises the event and publishes it to its addressee's channel.
func (p *EventPublisher) Publish(ctx context.Context, event models.Event) error {
	if p.client == nil {
		return nil
	}
	if event.TargetUserID == "" || event.TargetRole == "" {
		return fmt.Errorf("publish %s: missing addressee", event.Type)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, p.Channel(event.TargetUserID, event.TargetRole), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Type, err)
	}
	return nil
}
