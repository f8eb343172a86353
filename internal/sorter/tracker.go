package sorter

import (
	"fmt"
	"log/slog"
	"strings"
)

// DefaultProcessedFlag is the IMAP keyword set on every handled message.
const DefaultProcessedFlag = "PROCESSED"

// Tracker keeps idempotence state in the mailbox itself: handled messages
// carry a keyword and the unprocessed query excludes it. No local state is
// kept, so a crashed run is simply re-run.
type Tracker struct {
	store         Store
	flag          string
	skipProcessed bool
	log           *slog.Logger
}

func NewTracker(store Store, flag string, skipProcessed bool, log *slog.Logger) *Tracker {
	if flag == "" {
		flag = DefaultProcessedFlag
	}

	return &Tracker{store: store, flag: flag, skipProcessed: skipProcessed, log: log}
}

// Mark flags uid in folder as processed.
func (t *Tracker) Mark(folder string, uid uint32) error {
	if err := ensureSelected(t.store, folder); err != nil {
		return fmt.Errorf("failed to mark %d as processed: %w", uid, err)
	}

	if err := t.store.AddFlags(uid, t.flag); err != nil {
		return fmt.Errorf("failed to mark %d as processed: %w", uid, err)
	}

	t.log.Debug("Marked message as processed", "uid", uid, "folder", folder, "flag", t.flag)
	return nil
}

// Unprocessed selects folder and returns up to limit UIDs, oldest first,
// that do not carry the processed flag. With skipProcessed disabled every
// message is returned.
func (t *Tracker) Unprocessed(folder string, limit int) ([]uint32, error) {
	count, err := t.store.Select(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", folder, err)
	}
	if count == 0 {
		return nil, nil
	}

	var uids []uint32
	if t.skipProcessed {
		uids, err = t.searchUnflagged()
	} else {
		uids, err = t.store.Search(nil)
	}
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	return uids, nil
}

func (t *Tracker) searchUnflagged() ([]uint32, error) {
	uids, err := t.store.Search([]string{t.flag})
	if err == nil {
		return uids, nil
	}

	// Some servers reject keyword search; filter on fetched flags instead.
	t.log.Warn("Failed to search with KEYWORD criteria, filtering flags locally", "error", err)

	all, err := t.store.Search(nil)
	if err != nil {
		return nil, err
	}

	flags, err := t.store.Flags(all)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, 0, len(all))
	for _, uid := range all {
		if !hasFlag(flags[uid], t.flag) {
			out = append(out, uid)
		}
	}

	return out, nil
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}

	return false
}
