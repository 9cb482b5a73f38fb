package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sprinklerprep/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// CompletionStream holds one entry per finished game, of any mode.
	CompletionStream = "sprinklerprep:completions"
	// CompletionGroup is the consumer group that writes completions to the
	// progress store. Each entry goes to exactly one member.
	CompletionGroup = "progress"

	payloadField = "event"
	streamMaxLen = 10000
)

type CompletionEvent struct {
	EventID    string            `json:"eventId"`
	InstanceID string            `json:"instanceId"`
	Completion models.Completion `json:"completion"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Handler consumes completions delivered by a Subscriber.
type Handler interface {
	RecordCompletion(ctx context.Context, c models.Completion) error
}

// Publisher appends completions to CompletionStream. An entry stays in the
// stream until a group member acknowledges it, so completions published while
// no subscriber is connected are delivered later.
type Publisher struct {
	rdb        *redis.Client
	instanceID string
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb, instanceID: uuid.New().String()[:8]}
}

func (p *Publisher) InstanceID() string { return p.instanceID }

// RecordCompletion adds c to CompletionStream.
func (p *Publisher) RecordCompletion(ctx context.Context, c models.Completion) error {
	data, err := json.Marshal(CompletionEvent{
		EventID:    uuid.NewString(),
		InstanceID: p.instanceID,
		Completion: c,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: CompletionStream,
		MaxLen: streamMaxLen,
		Values: map[string]any{payloadField: string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append completion event: %w", err)
	}
	return nil
}

// Subscriber is one member of CompletionGroup.
type Subscriber struct {
	rdb      *redis.Client
	handler  Handler
	logger   *zap.Logger
	ready    chan struct{}
	consumer string

	block      time.Duration
	retryDelay time.Duration
	// pending is set when this consumer holds unacknowledged entries that
	// should be read again before new ones.
	pending bool
}

func NewSubscriber(rdb *redis.Client, handler Handler, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		rdb:        rdb,
		handler:    handler,
		logger:     logger,
		ready:      make(chan struct{}),
		consumer:   uuid.New().String()[:8],
		block:      time.Second,
		retryDelay: time.Second,
		pending:    true,
	}
}

// WithConsumer names this member of the group. A name that is stable across
// restarts (the host name) lets a restarted instance pick up the entries it
// had read but not yet recorded.
func (s *Subscriber) WithConsumer(name string) *Subscriber {
	if name != "" {
		s.consumer = name
	}
	return s
}

// Ready is closed once the consumer group exists.
func (s *Subscriber) Ready() <-chan struct{} { return s.ready }

// Run reads CompletionStream until ctx is cancelled. Redis errors are logged
// and retried, so a dropped connection only delays delivery.
func (s *Subscriber) Run(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, CompletionStream, CompletionGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", CompletionGroup, err)
	}
	close(s.ready)
	s.logger.Info("consuming completion events",
		zap.String("stream", CompletionStream),
		zap.String("consumer", s.consumer))

	for {
		if ctx.Err() != nil {
			return nil
		}
		start := ">"
		if s.pending {
			start = "0"
		}
		streams, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    CompletionGroup,
			Consumer: s.consumer,
			Streams:  []string{CompletionStream, start},
			Count:    32,
			Block:    s.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			// a blocking read timed out, or nothing is pending
			s.pending = false
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("failed to read completion events", zap.Error(err))
			s.wait(ctx)
			continue
		}

		var messages []redis.XMessage
		for _, st := range streams {
			messages = append(messages, st.Messages...)
		}
		if s.pending && len(messages) == 0 {
			s.pending = false
			continue
		}
		if failed := s.process(ctx, messages); failed {
			s.pending = true
			s.wait(ctx)
		}
	}
}

func (s *Subscriber) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.retryDelay):
	}
}

// process records messages and acknowledges the ones that are done with. It
// reports whether any were left pending for a retry.
func (s *Subscriber) process(ctx context.Context, messages []redis.XMessage) bool {
	failed := false
	for _, msg := range messages {
		if !s.handle(ctx, msg) {
			failed = true
			continue
		}
		if err := s.rdb.XAck(ctx, CompletionStream, CompletionGroup, msg.ID).Err(); err != nil {
			s.logger.Warn("failed to acknowledge completion event", zap.String("id", msg.ID), zap.Error(err))
		}
	}
	return failed
}

// handle reports whether msg can be acknowledged. Malformed entries are
// acknowledged and dropped; a failing handler leaves the entry pending.
func (s *Subscriber) handle(ctx context.Context, msg redis.XMessage) bool {
	payload, _ := msg.Values[payloadField].(string)
	var ev CompletionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.logger.Warn("failed to unmarshal completion event", zap.String("id", msg.ID), zap.Error(err))
		return true
	}
	if ev.Completion.UserID == "" {
		s.logger.Warn("dropping completion event without user", zap.String("event_id", ev.EventID))
		return true
	}
	if err := s.handler.RecordCompletion(ctx, ev.Completion); err != nil {
		s.logger.Error("failed to record completion",
			zap.String("event_id", ev.EventID),
			zap.String("user_id", ev.Completion.UserID),
			zap.Error(err))
		return false
	}
	s.logger.Debug("recorded completion",
		zap.String("event_id", ev.EventID),
		zap.String("user_id", ev.Completion.UserID),
		zap.String("mode", string(ev.Completion.Mode)))
	return true
}
