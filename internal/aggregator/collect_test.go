package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

func TestCollect_PreservesOrder(t *testing.T) {
	var adapters []quote.Adapter
	// later adapters finish first
	for i, name := range []string{"a", "b", "c", "d"} {
		delay := time.Duration(40-10*i) * time.Millisecond
		a := quote.NewStaticAdapter(name, 0, 0)
		a.Delay = delay
		a.Err = assert.AnError
		adapters = append(adapters, a)
	}

	got := Collect(context.Background(), adapters, &quote.Request{AmountIn: "1"}, testLogger())

	require.Len(t, got, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, name, got[i].Aggregator)
		assert.True(t, got[i].Failed)
	}
}

func TestCollect_IsolatesFailures(t *testing.T) {
	panicking := &funcAdapter{name: "panics", fn: func(context.Context, *quote.Request) (*quote.RawQuote, error) {
		panic("nil map")
	}}
	empty := &funcAdapter{name: "empty", fn: func(context.Context, *quote.Request) (*quote.RawQuote, error) {
		return nil, nil
	}}
	garbage := &funcAdapter{name: "garbage", fn: func(context.Context, *quote.Request) (*quote.RawQuote, error) {
		return quote.Succeeded("garbage", "12.5e3", quote.Gas(1), []string{"x"}), nil
	}}
	selfFailed := &funcAdapter{name: "self-failed", fn: func(context.Context, *quote.Request) (*quote.RawQuote, error) {
		q := quote.Succeeded("self-failed", "10", quote.Gas(1), []string{"x"})
		q.Failed = true
		return q, nil
	}}
	renamed := &funcAdapter{name: "odos-split-4", fn: func(context.Context, *quote.Request) (*quote.RawQuote, error) {
		return quote.Succeeded("odos", "10", quote.Gas(1), nil), nil
	}}

	got := Collect(context.Background(),
		[]quote.Adapter{panicking, empty, garbage, selfFailed, renamed},
		&quote.Request{AmountIn: "1"}, testLogger())

	require.Len(t, got, 5)
	for _, q := range got[:4] {
		assert.True(t, q.Failed, q.Aggregator)
		assert.Nil(t, q.AmountOut, q.Aggregator)
		assert.Nil(t, q.GasUsed, q.Aggregator)
		assert.Nil(t, q.Sources, q.Aggregator)
		assert.Nil(t, q.Simulation, q.Aggregator)
	}
	assert.Equal(t, []string{"panics", "empty", "garbage", "self-failed"},
		[]string{got[0].Aggregator, got[1].Aggregator, got[2].Aggregator, got[3].Aggregator})

	assert.False(t, got[4].Failed)
	assert.Equal(t, "odos-split-4", got[4].Aggregator)
}

type namelessAdapter struct{}

func (namelessAdapter) Name() string { panic("name not configured") }

func (namelessAdapter) Quote(context.Context, *quote.Request) (*quote.RawQuote, error) {
	return quote.Succeeded("", "7", nil, nil), nil
}

func TestCollect_PanickingName(t *testing.T) {
	erroring := quote.NewStaticAdapter("erroring", 0, 0)
	erroring.Err = assert.AnError

	var got []*quote.RawQuote
	require.NotPanics(t, func() {
		got = Collect(context.Background(),
			[]quote.Adapter{erroring, namelessAdapter{}},
			&quote.Request{AmountIn: "1"}, testLogger())
	})

	require.Len(t, got, 2)
	assert.Equal(t, "erroring", got[0].Aggregator)
	assert.True(t, got[0].Failed)
	assert.Equal(t, "adapter-1", got[1].Aggregator)
	assert.False(t, got[1].Failed)
	require.NotNil(t, got[1].AmountOut)
	assert.Equal(t, "7", *got[1].AmountOut)
}

func TestCollect_RunsConcurrently(t *testing.T) {
	var adapters []quote.Adapter
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		a := quote.NewStaticAdapter(name, 0, 0)
		a.Delay = 100 * time.Millisecond
		a.Err = assert.AnError
		adapters = append(adapters, a)
	}

	start := time.Now()
	got := Collect(context.Background(), adapters, &quote.Request{AmountIn: "1"}, testLogger())

	assert.Len(t, got, 5)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestCollect_Empty(t *testing.T) {
	got := Collect(context.Background(), nil, &quote.Request{}, testLogger())
	assert.Empty(t, got)
}
