package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler stores the "partition/offset" payloads it sees, in handling order.
type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	fail func(payload string) error
}

func (h *recordingHandler) Topic() string { return "records" }

func (h *recordingHandler) Handle(_ context.Context, data []byte) error {
	p := string(data)
	h.mu.Lock()
	h.seen = append(h.seen, p)
	h.mu.Unlock()
	if h.fail != nil {
		return h.fail(p)
	}
	return nil
}

func (h *recordingHandler) payloads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func newTestConsumer(t *testing.T, h MessageHandler, opts ...ConsumerOption) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil, append([]ConsumerOption{WithConsumerBrokers([]string{"localhost:9092"})}, opts...)...)
	require.NoError(t, err)
	c.RegisterHandler(h)
	return c
}

func testMessage(partition int, offset int64) *message {
	return &message{
		topic: "records",
		km: kafka.Message{
			Topic:     "records",
			Partition: partition,
			Offset:    offset,
			Value:     []byte(fmt.Sprintf("%d/%d", partition, offset)),
		},
	}
}

func TestConsumerKeepsPartitionOrder(t *testing.T) {
	h := &recordingHandler{}
	c := newTestConsumer(t, h, WithConsumerWorkers(4), WithConsumerBufferSize(16))
	c.startWorkers()

	const partitions, perPartition = 3, 5000
	for o := int64(0); o < perPartition; o++ {
		for p := 0; p < partitions; p++ {
			require.True(t, c.dispatch(testMessage(p, o)))
		}
	}
	c.closeQueues()
	c.wg.Wait()

	seen := h.payloads()
	require.Len(t, seen, partitions*perPartition)

	next := make(map[int]int64)
	for _, s := range seen {
		var p int
		var o int64
		_, err := fmt.Sscanf(s, "%d/%d", &p, &o)
		require.NoError(t, err)
		require.Equal(t, next[p], o, "partition %d handled out of offset order", p)
		next[p] = o + 1
	}
}

func TestConsumerHaltsPartitionAfterUncommittedFailure(t *testing.T) {
	h := &recordingHandler{fail: func(p string) error {
		if p == "0/0" {
			return errors.New("store down")
		}
		return nil
	}}
	c := newTestConsumer(t, h, WithConsumerWorkers(1), WithConsumerRetry(0, time.Millisecond, time.Millisecond))
	c.startWorkers()

	require.True(t, c.dispatch(testMessage(0, 0)))
	require.True(t, c.dispatch(testMessage(0, 1)))
	require.True(t, c.dispatch(testMessage(1, 0)))
	c.closeQueues()
	c.wg.Wait()

	assert.Equal(t, []string{"0/0", "1/0"}, h.payloads())
}

func TestConsumerStopDuringBackoffHaltsPartition(t *testing.T) {
	failed := make(chan struct{}, 1)
	h := &recordingHandler{fail: func(p string) error {
		if p == "0/0" {
			select {
			case failed <- struct{}{}:
			default:
			}
			return errors.New("store down")
		}
		return nil
	}}
	c := newTestConsumer(t, h, WithConsumerWorkers(1), WithConsumerRetry(5, time.Second, time.Second))
	c.startWorkers()

	require.True(t, c.dispatch(testMessage(0, 0)))
	require.True(t, c.dispatch(testMessage(0, 1)))
	require.True(t, c.dispatch(testMessage(1, 0)))

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}
	close(c.stopChan)
	c.closeQueues()
	c.wg.Wait()

	assert.Equal(t, []string{"0/0", "1/0"}, h.payloads())
}

func TestConsumerRetriesHandlerPanic(t *testing.T) {
	calls := 0
	h := &recordingHandler{fail: func(string) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return nil
	}}
	c := newTestConsumer(t, h, WithConsumerWorkers(1), WithConsumerRetry(2, time.Millisecond, time.Millisecond))
	c.startWorkers()

	require.True(t, c.dispatch(testMessage(0, 0)))
	require.True(t, c.dispatch(testMessage(0, 1)))
	c.closeQueues()
	c.wg.Wait()

	assert.Equal(t, []string{"0/0", "0/0", "0/1"}, h.payloads())
}
