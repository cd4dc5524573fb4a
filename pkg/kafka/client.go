package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Well-known topic names.
const (
	TopicRideDeleted    = "ride.deleted"
	TopicRideJoined     = "ride.joined"
	TopicProfileUpdated = "profile.updated"
)

// Publisher is the write side of the client, kept small so services can be
// handed a fake in tests.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// Client wraps Kafka operations. Writers are created lazily, one per topic.
type Client struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafkago.Writer
}

// NewClient returns a Client for the given brokers.
func NewClient(brokers []string) *Client {
	return &Client{brokers: brokers, writers: make(map[string]*kafkago.Writer)}
}

// EnsureTopics creates topics if they don't already exist, retrying until a
// broker answers.
func (c *Client) EnsureTopics(ctx context.Context, topics ...string) error {
	if len(c.brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}
	for attempt := 1; attempt <= 20; attempt++ {
		conn, err := kafkago.DialContext(ctx, "tcp", c.brokers[0])
		if err != nil {
			logrus.WithError(err).WithField("attempt", attempt).Warn("kafka not ready, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		configs := make([]kafkago.TopicConfig, len(topics))
		for i, t := range topics {
			configs[i] = kafkago.TopicConfig{
				Topic:             t,
				NumPartitions:     3,
				ReplicationFactor: 1,
			}
		}

		err = conn.CreateTopics(configs...)
		conn.Close()
		if err != nil {
			logrus.WithError(err).Info("topic creation returned (may already exist)")
		}
		logrus.WithField("topics", topics).Info("kafka topics ensured")
		return nil
	}
	return fmt.Errorf("kafka: could not connect after 20 attempts")
}

// Publish sends a JSON-serialised message to a topic.
func (c *Client) Publish(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", topic, err)
	}
	return c.writer(topic).WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: data,
	})
}

func (c *Client) writer(topic string) *kafkago.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.writers[topic]
	if !ok {
		w = &kafkago.Writer{
			Addr:     kafkago.TCP(c.brokers...),
			Topic:    topic,
			Balancer: &kafkago.Hash{},
		}
		c.writers[topic] = w
	}
	return w
}

// Subscribe starts a background goroutine that reads from a topic until ctx
// is cancelled. Handler errors are logged and the message is skipped.
func (c *Client) Subscribe(ctx context.Context, topic, groupID string, handler func([]byte) error) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  c.brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	log := logrus.WithFields(logrus.Fields{"topic": topic, "group": groupID})

	go func() {
		defer r.Close()
		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("kafka read error")
				time.Sleep(time.Second)
				continue
			}
			if err := handler(msg.Value); err != nil {
				log.WithError(err).Error("kafka handler error")
			}
		}
	}()
}

// Close flushes and closes all writers.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for topic, w := range c.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("kafka: close writer %s: %w", topic, err)
		}
		delete(c.writers, topic)
	}
	return firstErr
}
