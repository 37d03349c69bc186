package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/streamfs/pkg/source"
)

func newTestSession() *Session {
	return NewSession("req-1", source.Resource{Key: "res", Size: 1000})
}

func TestSession_HappyPath(t *testing.T) {
	sess := newTestSession()
	assert.Equal(t, StateInit, sess.State())

	require.NoError(t, sess.SetRange(ResolvedRange{Start: 0, End: 999, Size: 1000}))
	assert.Equal(t, StateRangeParsed, sess.State())

	require.NoError(t, sess.StartStreaming())
	assert.Equal(t, StateStreaming, sess.State())

	sess.Advance(500)
	sess.Advance(500)
	assert.Equal(t, int64(1000), sess.BytesStreamed())

	require.NoError(t, sess.Complete())
	assert.Equal(t, StateCompleted, sess.State())
	assert.True(t, sess.State().Terminal())
}

func TestSession_FailBeforeRange(t *testing.T) {
	sess := newTestSession()
	sess.Fail(ErrInvalidRange)

	assert.Equal(t, StateFailed, sess.State())
	assert.ErrorIs(t, sess.Err(), ErrInvalidRange)
}

func TestSession_CancelWhileStreaming(t *testing.T) {
	sess := newTestSession()
	require.NoError(t, sess.SetRange(ResolvedRange{Start: 0, End: 999, Size: 1000}))
	require.NoError(t, sess.StartStreaming())

	sess.Cancel()
	assert.Equal(t, StateCancelled, sess.State())
	assert.True(t, sess.Cancelled())
}

func TestSession_EmptyRangeCompletesWithoutStreaming(t *testing.T) {
	// An empty resource never enters StateStreaming.
	sess := NewSession("req-2", source.Resource{Key: "empty"})
	require.NoError(t, sess.SetRange(ResolvedRange{Start: 0, End: -1, Size: 0}))
	require.NoError(t, sess.Complete())

	assert.Equal(t, StateCompleted, sess.State())
}

func TestSession_InvalidTransitions(t *testing.T) {
	sess := newTestSession()

	// Cannot stream before the range resolves.
	err := sess.StartStreaming()
	assert.ErrorIs(t, err, ErrSessionState)

	// Cannot complete from init.
	err = sess.Complete()
	assert.ErrorIs(t, err, ErrSessionState)
}

func TestSession_TerminalStatesStick(t *testing.T) {
	sess := newTestSession()
	require.NoError(t, sess.SetRange(ResolvedRange{Start: 0, End: 999, Size: 1000}))
	require.NoError(t, sess.StartStreaming())
	require.NoError(t, sess.Complete())

	// Neither cancel nor fail override a terminal outcome.
	sess.Cancel()
	assert.Equal(t, StateCompleted, sess.State())

	sess.Fail(errors.New("too late"))
	assert.Equal(t, StateCompleted, sess.State())
	assert.NoError(t, sess.Err())
}

func TestSession_StartStreamingIdempotent(t *testing.T) {
	sess := newTestSession()
	require.NoError(t, sess.SetRange(ResolvedRange{Start: 0, End: 999, Size: 1000}))
	require.NoError(t, sess.StartStreaming())
	require.NoError(t, sess.StartStreaming())

	assert.Equal(t, StateStreaming, sess.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "range_parsed", StateRangeParsed.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "failed", StateFailed.String())
}

func TestNewSession_GeneratesID(t *testing.T) {
	a := NewSession("", source.Resource{Key: "k", Size: 10})
	b := NewSession("", source.Resource{Key: "k", Size: 10})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	c := NewSession("req-1", source.Resource{Key: "k", Size: 10})
	assert.Equal(t, "req-1", c.ID)
}
