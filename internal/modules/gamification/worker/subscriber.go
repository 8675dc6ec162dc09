// Package worker consumes platform events published on redis.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	gamificationDto "pivoine.art/gamification/internal/modules/gamification/dto"
	gamification "pivoine.art/gamification/internal/modules/gamification/service"
	"pivoine.art/gamification/pkg/logger"
	"pivoine.art/gamification/pkg/metrics"
	"pivoine.art/gamification/pkg/validator"
)

const sourceRedis = "redis"

// Dispatcher is the part of the engine the subscriber drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev gamification.Event)
}

// EventSubscriber reads events from one pub/sub channel and dispatches them
// one at a time, in publish order.
type EventSubscriber struct {
	client     *redis.Client
	channel    string
	dispatcher Dispatcher
	metrics    *metrics.Manager
	log        logger.Logger
}

func NewEventSubscriber(client *redis.Client, channel string, dispatcher Dispatcher, m *metrics.Manager, log logger.Logger) *EventSubscriber {
	return &EventSubscriber{
		client:     client,
		channel:    channel,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log.Named("events.subscriber"),
	}
}

// Run blocks until ctx is done or the subscription is closed.
func (s *EventSubscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// wait for the subscription confirmation so failures surface here
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.log.Info("listening for events", logger.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("event subscription closed")
			}
			s.handleMessage(ctx, msg.Payload)
		}
	}
}

func (s *EventSubscriber) handleMessage(ctx context.Context, payload string) {
	var req gamificationDto.EventRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		s.log.Warn("discarding malformed event", logger.Err(err))
		return
	}
	if err := validator.Struct(req); err != nil {
		s.log.Warn("discarding invalid event",
			logger.String("type", req.Type),
			logger.String("reason", validator.FormatValidationError(err)))
		return
	}

	ev, err := gamification.EventFromRequest(req)
	if err != nil {
		s.log.Warn("discarding invalid event", logger.Err(err))
		return
	}

	s.metrics.EventReceived(ev.Type, sourceRedis)
	s.dispatcher.Dispatch(ctx, ev)
}
