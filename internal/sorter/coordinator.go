package sorter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/meko-christian/mail-sorter/internal/config"
	"github.com/meko-christian/mail-sorter/internal/oracle"
)

// ErrTooLarge marks a message skipped because of the size ceiling.
var ErrTooLarge = errors.New("message exceeds size limit")

// Classifier assigns one of categories to an email.
type Classifier interface {
	Classify(ctx context.Context, email oracle.Email, categories []string) (string, error)
}

// Pacer bounds how fast batches are issued against the server.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Options controls one sweep.
type Options struct {
	Folders            []string
	BatchSize          int
	MaxPerRun          int
	MaxSizeKB          int
	IncludeAttachments bool
	SkipProcessed      bool
	DryRun             bool
	ProcessedFlag      string
	RetryDelay         time.Duration
	Prefixes           []string
}

// OptionsFromConfig maps the processing section of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	p := cfg.Processing

	return Options{
		Folders:            p.Folders,
		BatchSize:          p.BatchSize,
		MaxPerRun:          p.MaxEmailsPerRun,
		MaxSizeKB:          p.MaxEmailSizeKB,
		IncludeAttachments: p.IncludeAttachments,
		SkipProcessed:      p.SkipProcessed,
		DryRun:             p.DryRun,
		ProcessedFlag:      p.ProcessedFlag,
		RetryDelay:         p.RetryDelay,
		Prefixes:           cfg.FolderPrefixes,
	}
}

// Coordinator runs one sweep over the configured source folders. It owns the
// IMAP session for the duration of Run.
type Coordinator struct {
	Dial       func() (Store, error)
	Classifier Classifier
	Categories config.Categories
	Options    Options
	Pacer      Pacer
	Log        *slog.Logger

	NewRunID func() string
	Sleep    func(ctx context.Context, d time.Duration) error
}

func NewCoordinator(cfg config.Config, dial func() (Store, error), classifier Classifier, log *slog.Logger) *Coordinator {
	limit := rate.Inf
	if d := cfg.Processing.BatchDelay; d > 0 {
		limit = rate.Every(d)
	}

	return &Coordinator{
		Dial:       dial,
		Classifier: classifier,
		Categories: cfg.Categories,
		Options:    OptionsFromConfig(cfg),
		Pacer:      rate.NewLimiter(limit, 1),
		Log:        log,
		NewRunID:   uuid.NewString,
		Sleep:      sleepContext,
	}
}

// run is the per-sweep state.
type run struct {
	*Coordinator
	ctx      context.Context
	log      *slog.Logger
	store    Store
	resolver *Resolver
	engine   *MoveEngine
	tracker  *Tracker
	summary  *Summary
}

// Run performs one sweep. Only a connection failure or cancellation returns
// an error; every other failure is recorded in the summary.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: c.NewRunID()}
	log := c.Log.With("run_id", summary.RunID)

	store, err := c.Dial()
	if err != nil {
		log.Error("Failed to connect to IMAP server", "error", err)
		return summary, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := store.Logout(); err != nil {
			log.Warn("Failed to log out", "error", err)
		}
	}()

	if c.Options.DryRun {
		log.Info("Running in dry run mode, emails will be classified but not moved")
	}

	resolver := NewResolver(store, c.Options.Prefixes, log)

	engine := NewMoveEngine(store, resolver, log)
	if c.Options.RetryDelay > 0 {
		engine.Delay = c.Options.RetryDelay
	}
	if c.Sleep != nil {
		engine.Sleep = c.Sleep
	}

	r := &run{
		Coordinator: c,
		ctx:         ctx,
		log:         log,
		store:       store,
		resolver:    resolver,
		engine:      engine,
		tracker:     NewTracker(store, c.Options.ProcessedFlag, c.Options.SkipProcessed, log),
		summary:     &summary,
	}

	r.preflight()

	for _, folder := range c.Options.Folders {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		// A zero budget means no cap.
		remaining := 0
		if c.Options.MaxPerRun > 0 {
			remaining = c.Options.MaxPerRun - summary.Processed
			if remaining <= 0 {
				log.Info("Reached maximum emails per run", "max", c.Options.MaxPerRun)
				break
			}
		}

		if err := r.folder(folder, remaining); err != nil {
			return summary, err
		}
	}

	log.Info("Processing complete",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"moved", summary.Count(Moved),
		"no_destination", summary.Count(MarkedOnlyNoDestination),
		"move_failed", summary.Count(MarkedOnlyMoveFailed),
		"skipped", summary.Count(Skipped),
	)

	return summary, nil
}

// preflight resolves every category folder once so missing folders are
// reported up front. It also warms the resolver cache.
func (r *run) preflight() {
	for _, cat := range r.Categories.All() {
		if res := r.resolver.Resolve(cat.Folder); !res.OK {
			r.log.Warn("Destination folder does not exist, emails will be classified but not moved",
				"category", cat.Name, "folder", cat.Folder)
		}
	}
}

func (r *run) folder(folder string, limit int) error {
	log := r.log.With("folder", folder)
	log.Info("Processing folder")

	uids, err := r.tracker.Unprocessed(folder, limit)
	if err != nil {
		log.Error("Failed to get unprocessed emails", "error", err)
		return nil
	}

	log.Info("Found unprocessed emails", "count", len(uids))

	size := r.Options.BatchSize
	if size <= 0 {
		size = len(uids)
	}

	for start := 0; start < len(uids); start += size {
		if err := r.Pacer.Wait(r.ctx); err != nil {
			return err
		}

		end := min(start+size, len(uids))
		for _, uid := range uids[start:end] {
			if err := r.ctx.Err(); err != nil {
				return err
			}

			res := r.message(folder, uid)
			r.summary.Results = append(r.summary.Results, res)
		}
	}

	return nil
}

func (r *run) message(folder string, uid uint32) Result {
	log := r.log.With("uid", uid, "folder", folder)

	msg, err := r.fetch(folder, uid)
	if err != nil {
		log.Warn("Skipping email", "error", err)
		return Result{UID: uid, Folder: folder, Outcome: Skipped, Reason: err.Error()}
	}

	category, err := r.classify(msg, log)
	if err != nil {
		// Shutdown during classification; the answer is not a verdict.
		log.Info("Run cancelled, leaving email unprocessed", "error", err)
		return Result{UID: uid, Folder: folder, Subject: msg.Subject, Outcome: Skipped, Reason: "cancelled"}
	}

	dest, _ := r.Categories.Resolve(category)

	var res Result
	if r.Options.DryRun {
		res = Result{UID: uid, Folder: folder, Outcome: DryRun, Destination: dest.Folder}
		if resolved := r.resolver.Resolve(dest.Folder); resolved.OK {
			res.Destination = resolved.Folder
		}
		log.Info("Dry run, email would be moved", "subject", msg.Subject, "from", msg.Sender,
			"category", dest.Name, "destination", res.Destination)
	} else {
		res = r.engine.Move(r.ctx, uid, folder, dest.Folder)
	}

	res.Subject = msg.Subject
	res.Category = dest.Name

	if res.Outcome.needsMark() {
		if err := r.tracker.Mark(folder, uid); err != nil {
			log.Error("Failed to mark email as processed", "error", err)
		} else {
			res.Marked = true
		}
	}

	// Skipped messages stay unmarked and are not counted against the cap.
	if res.Outcome != Skipped {
		r.summary.Processed++
	}

	switch res.Outcome {
	case Moved, DryRun, MarkedOnlyNoDestination:
		r.summary.Succeeded++
	}

	return res
}

// fetch checks RFC822.SIZE before downloading so oversized messages are never
// transferred.
func (r *run) fetch(folder string, uid uint32) (Message, error) {
	if err := ensureSelected(r.store, folder); err != nil {
		return Message{}, fmt.Errorf("failed to select %s: %w", folder, err)
	}

	if r.Options.MaxSizeKB > 0 {
		size, err := r.store.Size(uid)
		if err != nil {
			return Message{}, fmt.Errorf("failed to read size: %w", err)
		}

		if limit := int64(r.Options.MaxSizeKB) * 1024; int64(size) > limit {
			return Message{}, fmt.Errorf("%w: %d KB > %d KB", ErrTooLarge, size/1024, r.Options.MaxSizeKB)
		}
	}

	raw, err := r.store.Fetch(uid)
	if err != nil {
		return Message{}, fmt.Errorf("failed to fetch email: %w", err)
	}

	return ParseMessage(uid, folder, raw, r.Options.IncludeAttachments), nil
}

// classify degrades oracle errors and unknown labels to the fallback
// category, reported here as an empty name. It fails only when the run was
// cancelled.
func (r *run) classify(msg Message, log *slog.Logger) (string, error) {
	category, err := r.Classifier.Classify(r.ctx, msg.Email(), r.Categories.Names())
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	if err != nil {
		log.Warn("Classification failed, using fallback category",
			"fallback", r.Categories.Fallback().Name, "error", err)
		return "", nil
	}

	if _, ok := r.Categories.Get(category); !ok {
		log.Warn("Unknown category, using fallback category", "category", category,
			"fallback", r.Categories.Fallback().Name)
		return "", nil
	}

	log.Info("Classified email", "subject", msg.Subject, "category", category)
	return category, nil
}
