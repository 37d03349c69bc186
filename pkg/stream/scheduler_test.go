package stream

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/streamfs/pkg/source"
)

// fakeStore is an in-memory source.Store that counts ReadAt calls and can
// inject read failures.
type fakeStore struct {
	data      []byte
	readCalls atomic.Int64
	failAfter int64 // fail reads once readCalls exceeds this (0 = never)
	readErr   error
}

func newFakeStore(size int) *fakeStore {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return &fakeStore{data: data}
}

func (f *fakeStore) Stat(ctx context.Context, key string) (source.Resource, error) {
	return source.Resource{
		Key:         key,
		Size:        int64(len(f.data)),
		ContentType: "application/octet-stream",
		ModTime:     time.Now(),
	}, nil
}

func (f *fakeStore) ReadAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	calls := f.readCalls.Add(1)
	if f.failAfter > 0 && calls > f.failAfter {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, errors.New("injected read failure")
	}

	if off >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(p, f.data[off:])
	return n, nil
}

func (f *fakeStore) WriteAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:], p)
	return len(p), nil
}

func (f *fakeStore) Remove(ctx context.Context, key string) error { return nil }
func (f *fakeStore) HealthCheck(ctx context.Context) error        { return nil }
func (f *fakeStore) Backend() string                              { return "fake" }
func (f *fakeStore) Close() error                                 { return nil }

func fullRange(size int64) ResolvedRange {
	return ResolvedRange{Start: 0, End: size - 1, Size: size}
}

func TestScheduler_ChunksCoverRangeInOrder(t *testing.T) {
	store := newFakeStore(2500)
	sched := NewScheduler(store, "res", fullRange(2500), 1000)
	defer sched.Close()

	ctx := context.Background()
	var got bytes.Buffer
	var seqs []int
	var offsets []int64

	for {
		chunk, ok, err := sched.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		seqs = append(seqs, chunk.Seq)
		offsets = append(offsets, chunk.Offset)
		got.Write(chunk.Data)
	}

	assert.Equal(t, []int{0, 1, 2}, seqs)
	assert.Equal(t, []int64{0, 1000, 2000}, offsets)
	assert.Equal(t, store.data, got.Bytes())
	// Last chunk is the remainder, not a full chunk.
	assert.Equal(t, int64(3), store.readCalls.Load())
}

func TestScheduler_ExactMultipleOfChunkSize(t *testing.T) {
	store := newFakeStore(2000)
	sched := NewScheduler(store, "res", fullRange(2000), 1000)
	defer sched.Close()

	ctx := context.Background()
	count := 0
	total := 0
	for {
		chunk, ok, err := sched.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
		total += len(chunk.Data)
	}

	assert.Equal(t, 2, count)
	assert.Equal(t, 2000, total)
}

func TestScheduler_SubRange(t *testing.T) {
	store := newFakeStore(1000)
	rng := ResolvedRange{Start: 100, End: 349, Size: 1000, Partial: true}
	sched := NewScheduler(store, "res", rng, 100)
	defer sched.Close()

	ctx := context.Background()
	var got bytes.Buffer
	for {
		chunk, ok, err := sched.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got.Write(chunk.Data)
	}

	assert.Equal(t, store.data[100:350], got.Bytes())
}

func TestScheduler_LazyReads(t *testing.T) {
	store := newFakeStore(10000)
	sched := NewScheduler(store, "res", fullRange(10000), 1000)
	defer sched.Close()

	// No read happens before the first pull.
	assert.Equal(t, int64(0), store.readCalls.Load())

	_, ok, err := sched.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// Exactly one read per pull, nothing fetched ahead.
	assert.Equal(t, int64(1), store.readCalls.Load())
}

func TestScheduler_ReadFailure(t *testing.T) {
	store := newFakeStore(5000)
	store.failAfter = 2
	sched := NewScheduler(store, "res", fullRange(5000), 1000)
	defer sched.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, ok, err := sched.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, ok, err := sched.Next(ctx)
	assert.False(t, ok)

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, int64(2000), readErr.Offset)

	// The scheduler stays exhausted after a failure.
	_, ok, err = sched.Next(ctx)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestScheduler_ContextCancelled(t *testing.T) {
	store := newFakeStore(5000)
	sched := NewScheduler(store, "res", fullRange(5000), 1000)
	defer sched.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := sched.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_ShortReadEndsSequence(t *testing.T) {
	// Resource shrank after Stat: the range says 2000 bytes but the store
	// only has 1500.
	store := newFakeStore(1500)
	sched := NewScheduler(store, "res", fullRange(2000), 1000)
	defer sched.Close()

	ctx := context.Background()
	total := 0
	for {
		chunk, ok, err := sched.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		total += len(chunk.Data)
	}

	assert.Equal(t, 1500, total)
}

func TestScheduler_Remaining(t *testing.T) {
	store := newFakeStore(3000)
	sched := NewScheduler(store, "res", fullRange(3000), 1000)
	defer sched.Close()

	assert.Equal(t, int64(3000), sched.Remaining())

	_, _, err := sched.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), sched.Remaining())
}
