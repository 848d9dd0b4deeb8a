package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopPriority(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Push(&Task{ID: "1", Retailer: "assai"}))
	require.NoError(t, q.Push(&Task{ID: "2", Retailer: "cometa", Priority: 5}))
	require.NoError(t, q.Push(&Task{ID: "3", Retailer: "atacadao"}))
	assert.Equal(t, 3, q.Size())

	var order []string
	for i := 0; i < 3; i++ {
		task, err := q.Pop(ctx)
		require.NoError(t, err)
		order = append(order, task.ID)
	}
	assert.Equal(t, []string{"2", "1", "3"}, order)
	assert.Equal(t, 0, q.Size())
}

func TestPushRejectsDuplicateRetailer(t *testing.T) {
	q := NewInMemoryQueue()

	require.NoError(t, q.Push(&Task{ID: "1", Retailer: "assai"}))
	assert.ErrorIs(t, q.Push(&Task{ID: "2", Retailer: "assai"}), ErrDuplicate)

	_, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.NoError(t, q.Push(&Task{ID: "3", Retailer: "assai"}))
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := NewInMemoryQueue()
	got := make(chan *Task, 1)

	go func() {
		task, err := q.Pop(context.Background())
		if err == nil {
			got <- task
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(&Task{ID: "late", Retailer: "gbarbosa"}))

	select {
	case task := <-got:
		assert.Equal(t, "late", task.ID)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestPopHonoursContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseDrainsThenFails(t *testing.T) {
	q := NewInMemoryQueue()
	require.NoError(t, q.Push(&Task{ID: "1", Retailer: "assai"}))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Push(&Task{ID: "2", Retailer: "cometa"}), ErrQueueClosed)

	task, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", task.ID)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}
