package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterIsCachedPerTopic(t *testing.T) {
	c := NewClient([]string{"localhost:9092"})

	a := c.writer(TopicRideDeleted)
	b := c.writer(TopicRideDeleted)
	other := c.writer(TopicRideJoined)

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.Equal(t, TopicRideJoined, other.Topic)
	require.NoError(t, c.Close())
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	c := NewClient([]string{"localhost:9092"})

	err := c.Publish(context.Background(), TopicProfileUpdated, "u1", make(chan int))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: marshal profile.updated")
}

func TestEnsureTopicsNeedsBrokers(t *testing.T) {
	err := NewClient(nil).EnsureTopics(context.Background(), TopicRideDeleted)
	assert.EqualError(t, err, "kafka: no brokers configured")
}
