package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OddsPulse/internal/repository"
	"OddsPulse/pkg/metrics"
)

type compactCounter struct {
	*repository.MemoryRecordStore
	calls atomic.Int32
	err   error
}

func (c *compactCounter) Compact(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestScheduler_CompactNow(t *testing.T) {
	store := &compactCounter{MemoryRecordStore: repository.NewMemoryRecordStore()}
	s := NewScheduler(store, metrics.Nop{}, time.Second, nil)

	require.NoError(t, s.CompactNow(context.Background()))
	assert.Equal(t, int32(1), store.calls.Load())

	store.err = errors.New("disk full")
	assert.Error(t, s.CompactNow(context.Background()))
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(repository.NewMemoryRecordStore(), metrics.Nop{}, 0, nil)
	assert.Error(t, s.Register("not a cron"))
	// five fields are rejected: the parser expects seconds
	assert.Error(t, s.Register("30 4 * * *"))
	require.NoError(t, s.Register("0 30 4 * * *"))
}

func TestScheduler_RunsJob(t *testing.T) {
	store := &compactCounter{MemoryRecordStore: repository.NewMemoryRecordStore()}
	s := NewScheduler(store, metrics.Nop{}, time.Second, nil)
	require.NoError(t, s.Register("* * * * * *"))

	s.Start()
	assert.Eventually(t, func() bool { return store.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
