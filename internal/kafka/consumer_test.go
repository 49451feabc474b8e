package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"delivery-pricing/internal/config"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

func newQuietLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func zoneUpdatedMessage(t *testing.T, city string) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(models.ZoneUpdatedData{ZoneID: uuid.New(), City: city})
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	value, err := json.Marshal(models.Event{ID: uuid.New(), Type: models.EventTypeZoneUpdated, Timestamp: time.Now(), Data: data})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "delivery-zones", Value: value}
}

type idleGroup struct {
	consumeCount int32
}

func (g *idleGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	atomic.AddInt32(&g.consumeCount, 1)
	<-ctx.Done()
	return ctx.Err()
}
func (g *idleGroup) Errors() <-chan error      { ch := make(chan error); close(ch); return ch }
func (g *idleGroup) Close() error              { return nil }
func (g *idleGroup) Pause(map[string][]int32)  {}
func (g *idleGroup) Resume(map[string][]int32) {}
func (g *idleGroup) PauseAll()                 {}
func (g *idleGroup) ResumeAll()                {}

type recordingSession struct {
	ctx    context.Context
	marked int
}

func (s *recordingSession) Claims() map[string][]int32                                               { return nil }
func (s *recordingSession) MemberID() string                                                         { return "" }
func (s *recordingSession) GenerationID() int32                                                      { return 0 }
func (s *recordingSession) MarkOffset(topic string, partition int32, offset int64, metadata string)  {}
func (s *recordingSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {}
func (s *recordingSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string)                 { s.marked++ }
func (s *recordingSession) Commit()                                                                  {}
func (s *recordingSession) Context() context.Context                                                 { return s.ctx }

type chanClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *chanClaim) Topic() string                            { return "delivery-zones" }
func (c *chanClaim) Partition() int32                         { return 0 }
func (c *chanClaim) InitialOffset() int64                     { return 0 }
func (c *chanClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *chanClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestConsumer_DispatchesZoneUpdated(t *testing.T) {
	c := newGroupConsumer(&idleGroup{}, []string{"delivery-zones"}, newQuietLogger())

	var city string
	c.RegisterHandler(models.EventTypeZoneUpdated, func(ctx context.Context, event *models.Event) error {
		var data models.ZoneUpdatedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		city = data.City
		return nil
	})

	if err := c.processMessage(zoneUpdatedMessage(t, "Архангельск")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if city != "Архангельск" {
		t.Fatalf("expected city passed to handler, got %q", city)
	}
	if c.Handler(models.EventTypeZoneUpdated) == nil || c.Handler(models.EventTypeOrderFinalized) != nil {
		t.Fatalf("expected only the zone handler registered")
	}
}

func TestConsumer_ProcessMessage_Outcomes(t *testing.T) {
	finalized, _ := json.Marshal(models.Event{ID: uuid.New(), Type: models.EventTypeOrderFinalized})

	cases := []struct {
		name    string
		value   []byte
		handler EventHandler
		wantErr bool
	}{
		{"no handler for type", finalized, nil, false},
		{"handler fails", finalized, func(context.Context, *models.Event) error { return errors.New("boom") }, true},
		{"invalid json", []byte("not json"), nil, true},
	}
	for _, tc := range cases {
		c := &Consumer{log: newQuietLogger()}
		if tc.handler != nil {
			c.RegisterHandler(models.EventTypeOrderFinalized, tc.handler)
		}
		err := c.processMessage(&sarama.ConsumerMessage{Topic: "orders", Value: tc.value})
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: wantErr=%v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestConsumer_ConsumeClaim_MarksEveryMessage(t *testing.T) {
	c := newGroupConsumer(&idleGroup{}, []string{"delivery-zones"}, newQuietLogger())
	calls := 0
	c.RegisterHandler(models.EventTypeZoneUpdated, func(context.Context, *models.Event) error {
		calls++
		return nil
	})

	msgs := make(chan *sarama.ConsumerMessage, 3)
	msgs <- zoneUpdatedMessage(t, "Москва")
	msgs <- &sarama.ConsumerMessage{Topic: "delivery-zones", Value: []byte("{broken")}
	msgs <- zoneUpdatedMessage(t, "Казань")
	close(msgs)

	session := &recordingSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, &chanClaim{msgs: msgs}); err != nil {
		t.Fatalf("consume claim: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 handled events, got %d", calls)
	}
	if session.marked != 3 {
		t.Fatalf("a broken message must not block the partition, marked %d", session.marked)
	}
}

func TestConsumer_ConsumeClaim_ReturnsWhenSessionEnds(t *testing.T) {
	c := newGroupConsumer(&idleGroup{}, []string{"delivery-zones"}, newQuietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.ConsumeClaim(&recordingSession{ctx: ctx}, &chanClaim{msgs: make(chan *sarama.ConsumerMessage)})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("consume claim did not return after session end")
	}
}

func TestConsumer_StartStop(t *testing.T) {
	group := &idleGroup{}
	c := newGroupConsumer(group, []string{"delivery-zones"}, newQuietLogger())

	if err := c.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if atomic.LoadInt32(&group.consumeCount) == 0 {
		t.Fatalf("expected Consume called")
	}
}

func TestConsumer_NilSafety(t *testing.T) {
	var c *Consumer
	if err := c.Start(); err == nil {
		t.Fatalf("expected error starting nil consumer")
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("expected nil stopping nil consumer, got %v", err)
	}
	if err := (&Consumer{}).Setup(nil); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := (&Consumer{}).Cleanup(nil); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestNewConsumer_Error(t *testing.T) {
	cfg := &config.KafkaConfig{Brokers: []string{"localhost:0"}, GroupID: "pricing", Topics: config.Topics{Zones: "delivery-zones"}}
	if _, err := NewConsumer(cfg, newQuietLogger()); err == nil {
		t.Fatalf("expected error creating consumer")
	}
}
