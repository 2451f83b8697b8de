package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"clipshare/logging"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis channel every event is published on.
const Channel = "events"

type HandlerFunc func(data map[string]interface{})

// envelope is the wire format: {"event": name, "data": {...}}.
type envelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

type PubSub struct {
	client *redis.Client
}

func NewPubSub(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

// Publish an event
func (ps *PubSub) Publish(ctx context.Context, event string, data map[string]interface{}) error {
	bytes, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	return ps.client.Publish(ctx, Channel, bytes).Err()
}

// Subscription delivers one event type to a handler until closed.
type Subscription struct {
	sub  *redis.PubSub
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

// Subscribe calls handler for every event named event. It returns once Redis has
// confirmed the subscription, so nothing published afterwards is missed. Delivery
// stops when ctx is cancelled or Close is called.
func (ps *PubSub) Subscribe(ctx context.Context, event string, handler HandlerFunc) (*Subscription, error) {
	sub := ps.client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	s := &Subscription{sub: sub}
	ch := sub.Channel()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var payload envelope
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					logging.ErrorLogger.Printf("Decode error on %s: %v", Channel, err)
					continue
				}
				if payload.Event == event && payload.Data != nil {
					handler(payload.Data)
				}
			case <-ctx.Done():
				_ = s.close()
				return
			}
		}
	}()
	return s, nil
}

// Close unsubscribes and waits for the delivery goroutine to return.
func (s *Subscription) Close() error {
	err := s.close()
	s.wg.Wait()
	return err
}

func (s *Subscription) close() error {
	s.once.Do(func() { s.err = s.sub.Close() })
	return s.err
}
