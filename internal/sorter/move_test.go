package sorter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(store *fakeStore) (*MoveEngine, *[]time.Duration) {
	var sleeps []time.Duration

	e := NewMoveEngine(store, NewResolver(store, nil, slogDiscard()), slogDiscard())
	e.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}

	return e, &sleeps
}

func TestMoveUsesNativeMove(t *testing.T) {
	t.Parallel()

	store := newFakeStore("INBOX", "Folders/Bills")
	store.move = true
	uid := store.deliver("INBOX", rawMessage("Invoice", "Amount due"))

	e, _ := newEngine(store)
	res := e.Move(context.Background(), uid, "INBOX", "Bills")

	assert.Equal(t, Moved, res.Outcome)
	assert.Equal(t, "Folders/Bills", res.Destination)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, store.moveCalls)
	assert.Zero(t, store.copyCalls)
	assert.Empty(t, store.uids("INBOX"))
	assert.Len(t, store.uids("Folders/Bills"), 1)
}

func TestMoveFallsBackToCopy(t *testing.T) {
	t.Parallel()

	store := newFakeStore("INBOX", "Folders/Bills")
	uid := store.deliver("INBOX", rawMessage("Invoice", "Amount due"))

	e, sleeps := newEngine(store)
	res := e.Move(context.Background(), uid, "INBOX", "Folders/Bills")

	assert.Equal(t, Moved, res.Outcome)
	assert.Zero(t, store.moveCalls)
	assert.Equal(t, 1, store.copyCalls)
	assert.Empty(t, store.uids("INBOX"))
	assert.Len(t, store.uids("Folders/Bills"), 1)
	assert.Empty(t, *sleeps)
}

func TestMoveFailedNativeMoveStillCopies(t *testing.T) {
	t.Parallel()

	store := newFakeStore("INBOX", "Folders/Bills")
	store.move = true
	store.moveErr = errors.New("NO [TRYCREATE] move failed")
	uid := store.deliver("INBOX", rawMessage("Invoice", "Amount due"))

	e, _ := newEngine(store)
	res := e.Move(context.Background(), uid, "INBOX", "Folders/Bills")

	assert.Equal(t, Moved, res.Outcome)
	assert.Equal(t, 1, store.moveCalls)
	assert.Equal(t, 1, store.copyCalls)
}

func TestMoveCopyTriesOtherCandidates(t *testing.T) {
	t.Parallel()

	store := newFakeStore("INBOX", "Folders/Bills", "folders/bills")
	store.copyReject = map[string]bool{"Folders/Bills": true}
	uid := store.deliver("INBOX", rawMessage("Invoice", "Amount due"))

	e, _ := newEngine(store)
	res := e.Move(context.Background(), uid, "INBOX", "Folders/Bills")

	require.Equal(t, Moved, res.Outcome)
	assert.Equal(t, "folders/bills", res.Destination)
}

func TestMoveRetryBound(t *testing.T) {
	t.Parallel()

	store := newFakeStore("INBOX", "Folders/Bills")
	store.copyReject = map[string]bool{"Folders/Bills": true}
	uid := store.deliver("INBOX", rawMessage("Invoice", "Amount due"))

	e, sleeps := newEngine(store)
	e.Delay = 5 * time.Millisecond

	res := e.Move(context.Background(), uid, "INBOX", "Folders/Bills")

	assert.Equal(t, MarkedOnlyMoveFailed, res.Outcome)
	assert.Equal(t, DefaultMoveAttempts, res.Attempts)
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, *sleeps)
	assert.Equal(t, []uint32{uid}, store.uids("INBOX"), "message stays in source")
	assert.NotContains(t, store.flagsOf("INBOX", uid), imap.DeletedFlag)
}

func TestMoveUnresolvedDestination(t *testing.T) {
	t.Parallel()

	store := newFakeStore("INBOX")
	uid := store.deliver("INBOX", rawMessage("Invoice", "Amount due"))

	e, _ := newEngine(store)
	res := e.Move(context.Background(), uid, "INBOX", "Folders/Bills")

	assert.Equal(t, MarkedOnlyNoDestination, res.Outcome)
	assert.Zero(t, res.Attempts)
	assert.Zero(t, store.copyCalls)
	assert.Empty(t, store.created, "destination folders are never created during a move")
}

func TestMovePartialIsNotRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(*fakeStore)
	}{
		{
			name:    "store-deleted-fails",
			prepare: func(s *fakeStore) { s.deleteFlagErr = errors.New("NO store failed") },
		},
		{
			name:    "expunge-fails",
			prepare: func(s *fakeStore) { s.expungeErr = errors.New("NO expunge failed") },
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore("INBOX", "Folders/Bills")
			tc.prepare(store)
			uid := store.deliver("INBOX", rawMessage("Invoice", "Amount due"))

			e, sleeps := newEngine(store)
			res := e.Move(context.Background(), uid, "INBOX", "Folders/Bills")

			assert.Equal(t, MarkedOnlyMoveFailed, res.Outcome)
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, 1, store.copyCalls)
			assert.Empty(t, *sleeps)
			assert.Len(t, store.uids("Folders/Bills"), 1, "exactly one copy exists")
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestMoveSourceUnavailable(t *testing.T) {
	t.Parallel()

	store := newFakeStore("Folders/Bills")

	e, _ := newEngine(store)
	res := e.Move(context.Background(), 1, "INBOX", "Folders/Bills")

	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, "source folder unavailable", res.Reason)
}

func TestMoveCancelledDuringRetry(t *testing.T) {
	t.Parallel()

	store := newFakeStore("INBOX", "Folders/Bills")
	store.copyReject = map[string]bool{"Folders/Bills": true}
	uid := store.deliver("INBOX", rawMessage("Invoice", "Amount due"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := newEngine(store)
	res := e.Move(ctx, uid, "INBOX", "Folders/Bills")

	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, "cancelled", res.Reason)
	assert.Equal(t, 2, res.Attempts)
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
