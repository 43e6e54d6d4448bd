package audiostore

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetSetGet(t *testing.T) {
	s := New()
	s.Reset(3)
	require.Equal(t, 3, s.Len())
	require.Zero(t, s.CompletedCount())

	require.NoError(t, s.Set(1, Result{Audio: []byte("wav"), Format: "wav", SampleRate: 24000, Channels: 1}))
	r, ok, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("wav"), r.Audio)

	_, ok, err = s.Get(0)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, s.CompletedCount())

	s.Reset(2)
	require.Equal(t, 2, s.Len())
	require.Zero(t, s.CompletedCount())
}

func TestIndexError(t *testing.T) {
	s := New()
	s.Reset(2)

	for _, i := range []int{-1, 2, 10} {
		err := s.Set(i, Result{})
		var idxErr *IndexError
		require.True(t, errors.As(err, &idxErr), "index %d", i)
		require.Equal(t, i, idxErr.Index)
		require.Equal(t, 2, idxErr.Len)

		_, _, err = s.Get(i)
		require.ErrorAs(t, err, &idxErr)
		require.ErrorAs(t, s.MarkFailed(i, "x"), &idxErr)
	}
}

func TestMarkFailedClearsResult(t *testing.T) {
	s := New()
	s.Reset(1)
	require.NoError(t, s.Set(0, Result{Audio: []byte{1}}))
	require.NoError(t, s.MarkFailed(0, "model crashed"))

	_, ok, err := s.Get(0)
	require.NoError(t, err)
	require.False(t, ok)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.False(t, snap[0].Ready)
	require.Equal(t, "model crashed", snap[0].Failure)
}

func TestSnapshotOmitsAudio(t *testing.T) {
	s := New()
	s.Reset(2)
	require.NoError(t, s.Set(0, Result{Audio: []byte{1, 2}, Format: "wav", SampleRate: 8000, Channels: 1, Duration: 0.5}))

	snap := s.Snapshot()
	require.True(t, snap[0].Ready)
	require.Nil(t, snap[0].Result.Audio)
	require.Equal(t, 0.5, snap[0].Result.Duration)
	require.Nil(t, snap[1].Result)

	r, _, _ := s.Get(0)
	require.Equal(t, []byte{1, 2}, r.Audio)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	s.Reset(64)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Set(i, Result{Audio: []byte{byte(i)}})
			_ = s.CompletedCount()
		}(i)
	}
	wg.Wait()
	require.Equal(t, 64, s.CompletedCount())
}
