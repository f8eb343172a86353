package sorter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap"
)

const (
	DefaultMoveAttempts = 3
	DefaultRetryDelay   = 2 * time.Second
)

// MoveEngine relocates one message to a resolved destination, using MOVE
// when the server advertises it and COPY + \Deleted + EXPUNGE otherwise.
type MoveEngine struct {
	store    Store
	resolver *Resolver
	log      *slog.Logger

	Attempts int
	Delay    time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
}

func NewMoveEngine(store Store, resolver *Resolver, log *slog.Logger) *MoveEngine {
	return &MoveEngine{
		store:    store,
		resolver: resolver,
		log:      log,
		Attempts: DefaultMoveAttempts,
		Delay:    DefaultRetryDelay,
		Sleep:    sleepContext,
	}
}

// attemptResult is what one pass of the move protocol achieved.
type attemptResult int

const (
	attemptFailed attemptResult = iota
	attemptMoved
	attemptPartial
)

// Move runs the move protocol for uid. It never returns an error: every
// failure is folded into the returned Result's Outcome.
//
//	Fetched -> Resolved | Unresolved
//	Resolved -> attempt 1..n -> Moved | Exhausted
func (e *MoveEngine) Move(ctx context.Context, uid uint32, source, label string) Result {
	res := Result{UID: uid, Folder: source}
	log := e.log.With("uid", uid, "folder", source, "label", label)

	dest := e.resolver.Resolve(label)
	if !dest.OK {
		res.Outcome = MarkedOnlyNoDestination
		res.Reason = fmt.Sprintf("destination folder %q not found", label)
		log.Warn("Destination folder does not exist, marking message as processed without moving it")
		return res
	}
	res.Destination = dest.Folder

	if err := ensureSelected(e.store, source); err != nil {
		res.Outcome = Skipped
		res.Reason = "source folder unavailable"
		log.Error("Failed to select source folder", "error", err)
		return res
	}

	targets := e.copyTargets(label, dest.Folder)

	for attempt := 1; attempt <= e.Attempts; attempt++ {
		res.Attempts = attempt

		if attempt > 1 {
			log.Warn("Retrying move", "attempt", attempt, "delay", e.Delay)

			if err := e.Sleep(ctx, e.Delay); err != nil {
				res.Outcome = Skipped
				res.Reason = "cancelled"
				return res
			}

			if err := ensureSelected(e.store, source); err != nil {
				log.Error("Failed to reselect source folder", "attempt", attempt, "error", err)
				continue
			}
		}

		switch outcome, target, reason := e.attempt(uid, targets); outcome {
		case attemptMoved:
			res.Outcome = Moved
			res.Destination = target
			log.Info("Moved message", "destination", target, "attempt", attempt)
			return res
		case attemptPartial:
			// The copy exists; retrying would only duplicate it.
			res.Outcome = MarkedOnlyMoveFailed
			res.Destination = target
			res.Reason = reason
			log.Error("Message copied but not removed from source", "destination", target, "reason", reason)
			return res
		}
	}

	res.Outcome = MarkedOnlyMoveFailed
	res.Reason = fmt.Sprintf("copy failed after %d attempts", e.Attempts)
	log.Error("Failed to move message, leaving it in place", "destination", dest.Folder, "attempts", e.Attempts)

	return res
}

func (e *MoveEngine) attempt(uid uint32, targets []string) (attemptResult, string, string) {
	if e.store.SupportsMove() {
		err := e.store.Move(uid, targets[0])
		if err == nil {
			return attemptMoved, targets[0], ""
		}

		e.log.Debug("MOVE failed, falling back to copy", "uid", uid, "error", err)
	}

	copied := ""
	for _, target := range targets {
		if err := e.store.Copy(uid, target); err != nil {
			e.log.Debug("Failed to copy message", "uid", uid, "target", target, "error", err)
			continue
		}

		copied = target
		break
	}

	if copied == "" {
		return attemptFailed, "", ""
	}

	if err := e.store.AddFlags(uid, imap.DeletedFlag); err != nil {
		return attemptPartial, copied, fmt.Sprintf("copied but not flagged deleted: %v", err)
	}

	if err := e.store.Expunge(uid); err != nil {
		return attemptPartial, copied, fmt.Sprintf("copied but not expunged: %v", err)
	}

	return attemptMoved, copied, ""
}

// copyTargets puts the resolved folder first and keeps the remaining
// candidates as fallbacks, since COPY syntax can differ from SELECT syntax.
func (e *MoveEngine) copyTargets(label, resolved string) []string {
	targets := []string{resolved}
	for _, c := range e.resolver.Candidates(label) {
		if c != resolved {
			targets = append(targets, c)
		}
	}

	return targets
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
