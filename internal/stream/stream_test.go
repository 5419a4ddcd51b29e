package stream_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/srg/btflow/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCollect(t *testing.T) {
	t.Run("collects values in order", func(t *testing.T) {
		got, err := stream.Collect(stream.Of(1, 2, 3))

		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, got)
	})

	t.Run("empty stream", func(t *testing.T) {
		got, err := stream.Collect(stream.Empty[int]())

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("returns terminal error", func(t *testing.T) {
		got, err := stream.Collect(stream.Fail[int](errBoom))

		require.ErrorIs(t, err, errBoom)
		assert.Empty(t, got)
	})
}

func TestFilter(t *testing.T) {
	even := stream.Filter(stream.Of(1, 2, 3, 4), func(v int) (bool, error) {
		return v%2 == 0, nil
	})

	got, err := stream.Collect(even)

	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, got)
}

func TestFilter_ErrorShortCircuits(t *testing.T) {
	var seen []int
	s := stream.Filter(stream.Of(1, 2, 3), func(v int) (bool, error) {
		seen = append(seen, v)
		if v == 2 {
			return false, errBoom
		}
		return true, nil
	})

	got, err := stream.Collect(s)

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []int{1}, got)
	assert.Equal(t, []int{1, 2}, seen, "no value after the failing one MUST be pulled")
}

func TestMap(t *testing.T) {
	s := stream.Map(stream.Of(1, 2, 3), func(v int) (string, bool, error) {
		return strconv.Itoa(v * 10), v != 2, nil
	})

	got, err := stream.Collect(s)

	require.NoError(t, err)
	assert.Equal(t, []string{"10", "30"}, got)
}

func TestMap_PropagatesUpstreamError(t *testing.T) {
	calls := 0
	s := stream.Map(stream.Fail[int](errBoom), func(v int) (int, bool, error) {
		calls++
		return v, true, nil
	})

	_, err := stream.Collect(s)

	require.ErrorIs(t, err, errBoom)
	assert.Zero(t, calls)
}

func TestOnEach(t *testing.T) {
	var seen []int
	s := stream.OnEach(stream.Of(1, 2), func(v int) error {
		seen = append(seen, v)
		return nil
	})

	got, err := stream.Collect(s)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestOnStart_RunsBeforeUpstream(t *testing.T) {
	var order []string
	upstream := stream.Stream[int](func(yield func(int, error) bool) {
		order = append(order, "upstream")
		yield(1, nil)
	})

	s := stream.OnStart(upstream, func() { order = append(order, "start") })
	assert.Empty(t, order, "nothing MUST run before the stream is consumed")

	_, err := stream.Collect(s)

	require.NoError(t, err)
	assert.Equal(t, []string{"start", "upstream"}, order)
}

func TestOnCompletion(t *testing.T) {
	tests := []struct {
		name    string
		source  stream.Stream[int]
		abandon bool
		wantErr error
	}{
		{name: "normal completion", source: stream.Of(1, 2)},
		{name: "failure", source: stream.Fail[int](errBoom), wantErr: errBoom},
		{name: "abandoned by consumer", source: stream.Of(1, 2, 3), abandon: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := 0
			var gotErr error
			s := stream.OnCompletion(tt.source, func(err error) {
				runs++
				gotErr = err
			})

			for range s {
				if tt.abandon {
					break
				}
			}

			assert.Equal(t, 1, runs, "completion hook MUST run exactly once")
			if tt.wantErr != nil {
				assert.ErrorIs(t, gotErr, tt.wantErr)
			} else {
				assert.NoError(t, gotErr)
			}
		})
	}
}

func TestAbandon_StopsUpstream(t *testing.T) {
	released := false
	upstream := stream.Stream[int](func(yield func(int, error) bool) {
		defer func() { released = true }()
		for i := 0; ; i++ {
			if !yield(i, nil) {
				return
			}
		}
	})

	var got []int
	for v, err := range stream.Map(upstream, func(v int) (int, bool, error) { return v, true, nil }) {
		require.NoError(t, err)
		got = append(got, v)
		if len(got) == 3 {
			break
		}
	}

	assert.Equal(t, []int{0, 1, 2}, got)
	assert.True(t, released, "upstream MUST release resources when abandoned")
}
