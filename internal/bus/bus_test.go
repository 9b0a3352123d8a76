package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe_DeliversInOrder(t *testing.T) {
	topic := New[int](4, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, topic.Publish(ctx, i))
	}

	ch := topic.Subscribe()
	for i := 0; i < 4; i++ {
		assert.Equal(t, i, <-ch)
	}
}

func TestPublish_BlocksWhenFullUntilCancel(t *testing.T) {
	topic := New[int](1, nil)
	ctx := context.Background()
	require.NoError(t, topic.Publish(ctx, 1))

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := topic.Publish(cancelCtx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAck_DecrementsDepth(t *testing.T) {
	topic := New[int](2, nil)
	ctx := context.Background()
	require.NoError(t, topic.Publish(ctx, 1))
	assert.Equal(t, int64(1), topic.depth.Load())
	<-topic.Subscribe()
	topic.Ack()
	assert.Equal(t, int64(0), topic.depth.Load())
}
