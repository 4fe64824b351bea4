package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChainOrder(t *testing.T) {
	var calls []string
	mk := func(name string) ConsumerHook {
		return HookFuncsForTest{
			before: func() { calls = append(calls, "before:"+name) },
			after:  func() { calls = append(calls, "after:"+name) },
		}
	}

	chain := NewHookChain(mk("a"), nil, mk("b"))
	ctx, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.NoError(t, err)
	chain.AfterHandle(ctx, "t", kafka.Message{}, nil, nil)

	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, calls)
}

func TestHookChainRecoversPanic(t *testing.T) {
	chain := NewHookChain(HookFuncsForTest{before: func() { panic("boom") }})

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "ERR_PANIC", he.Code)

	assert.NotPanics(t, func() {
		NewHookChain(HookFuncsForTest{after: func() { panic("again") }}).
			AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
	})
}

func TestTraceHookCopiesHeader(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: TraceIDHeader, Value: []byte("abc")}}}

	ctx, _, _, err := TraceHook{}.BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceIDFromContext(ctx))

	_, ok := ctx.Value(CtxStartTime).(time.Time)
	assert.True(t, ok)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 200*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestPermanentUnwraps(t *testing.T) {
	base := errors.New("bad json")
	err := Permanent(base)
	assert.ErrorIs(t, err, base)
	assert.Nil(t, Permanent(nil))
}

type HookFuncsForTest struct {
	NoopHook
	before func()
	after  func()
}

func (h HookFuncsForTest) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.before != nil {
		h.before()
	}
	return ctx, km, data, nil
}

func (h HookFuncsForTest) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.after != nil {
		h.after()
	}
}
