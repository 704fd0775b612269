package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"labtriage/internal/analysis"
	"labtriage/internal/config"
	"labtriage/internal/logging"
	"labtriage/internal/notes"
	"labtriage/internal/notifications"
	"labtriage/internal/policy"
	"labtriage/internal/queue"
	"labtriage/internal/services"
)

// ErrInvariant marks errors that stop a pass.
var ErrInvariant = services.ErrInvariant

// Reasoner is the text-in/text-out reasoning capability shared by both steps.
type Reasoner interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// Analyzer produces a judgment for one item. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, item *queue.Item) analysis.Result
}

// Drafter produces a clinical note from a judgment.
type Drafter interface {
	Draft(ctx context.Context, item *queue.Item, result analysis.Result) (notes.Note, error)
}

// NoteWriter persists a drafted note and returns its path.
type NoteWriter interface {
	Write(item *queue.Item, result analysis.Result, note notes.Note) (string, error)
}

// Engine runs triage passes against the store.
type Engine struct {
	cfg       *config.Config
	store     *queue.Store
	analyzer  Analyzer
	drafter   Drafter
	writer    NoteWriter
	notifier  notifications.Service
	heartbeat *HeartbeatMonitor
	lock      *PassLock
	base      *slog.Logger
	logger    *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier replaces the notifier built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(e *Engine) {
		if notifier != nil {
			e.notifier = notifier
		}
	}
}

// WithAnalyzer replaces the analysis step.
func WithAnalyzer(analyzer Analyzer) Option {
	return func(e *Engine) {
		if analyzer != nil {
			e.analyzer = analyzer
		}
	}
}

// WithPolicySource reads policy text from source instead of the policy file.
func WithPolicySource(source policy.Source, reasoner Reasoner) Option {
	return func(e *Engine) {
		if source != nil && reasoner != nil {
			e.analyzer = analysis.NewStep(reasoner, source, e.cfg.AnalysisTimeout(), e.base)
		}
	}
}

// WithNoteWriter replaces the note file writer.
func WithNoteWriter(writer NoteWriter) Option {
	return func(e *Engine) {
		if writer != nil {
			e.writer = writer
		}
	}
}

// NewEngine wires both steps to reasoner and the policy file from cfg.
func NewEngine(cfg *config.Config, store *queue.Store, reasoner Reasoner, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		cfg:       cfg,
		store:     store,
		analyzer:  analysis.NewStep(reasoner, policy.NewFileSource(cfg.Paths.PolicyFile), cfg.AnalysisTimeout(), logger),
		drafter:   notes.NewDrafter(reasoner, cfg.DraftTimeout(), logger),
		writer:    notes.NewWriter(cfg.Paths.NotesDir),
		notifier:  notifications.NewService(cfg),
		heartbeat: NewHeartbeatMonitor(store, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout()),
		lock:      NewPassLock(cfg.PassLockPath()),
		base:      logger,
		logger:    logging.NewComponentLogger(logger, "workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one pass over every actionable item. The returned error is nil
// unless the pass lock is held elsewhere, the store cannot be read, the
// context is cancelled, or an invariant was violated.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	return e.runLocked(ctx, func(ctx context.Context) ([]*queue.Item, error) {
		return e.store.ListActionable(ctx)
	})
}

// RunItems executes a pass whose snapshot holds only the given ids, in the
// order first given; repeated ids are analyzed once. Unknown ids fail with
// ErrNotFound before the pass starts; terminal items fail with ErrValidation.
func (e *Engine) RunItems(ctx context.Context, ids ...string) (Summary, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return Summary{}, services.Wrap(services.ErrValidation, "workflow", "run items", "at least one item id is required", nil)
	}
	for _, id := range ids {
		item, err := e.store.GetByID(ctx, id)
		if err != nil {
			return Summary{}, err
		}
		if item == nil {
			return Summary{}, services.Wrap(services.ErrNotFound, "workflow", "run items", fmt.Sprintf("work item %s not found", id), nil)
		}
		if !item.Status.Actionable() {
			return Summary{}, services.Wrap(services.ErrValidation, "workflow", "run items",
				fmt.Sprintf("work item %s is %s; retry it before analyzing again", id, item.Status.Label()), nil)
		}
	}
	return e.runLocked(ctx, func(ctx context.Context) ([]*queue.Item, error) {
		items := make([]*queue.Item, 0, len(ids))
		for _, id := range ids {
			item, err := e.store.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if item != nil && item.Status.Actionable() {
				items = append(items, item)
			}
		}
		return items, nil
	})
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

type fetchFunc func(context.Context) ([]*queue.Item, error)

func (e *Engine) runLocked(ctx context.Context, fetch fetchFunc) (Summary, error) {
	if err := e.lock.Acquire(); err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := e.lock.Release(); err != nil {
			logging.WarnWithContext(e.logger, "failed to release pass lock", "pass_lock_release_failed",
				logging.Error(err),
				logging.String("lock", e.lock.Path()),
				logging.String(logging.FieldImpact, "the next pass may report a pass in progress"),
				logging.String(logging.FieldErrorHint, "remove the lock file if no labtriage process is running"),
			)
		}
	}()

	passID := uuid.NewString()
	ctx = services.WithPassID(ctx, passID)
	summary, err := e.runPass(ctx, passID, fetch)
	if err != nil && errors.Is(err, ErrInvariant) {
		e.notifyError(ctx, err, "triage pass")
	}
	if err == nil {
		e.notifyPassComplete(ctx, summary)
	}
	return summary, err
}

func (e *Engine) runPass(ctx context.Context, passID string, fetch fetchFunc) (Summary, error) {
	logger := logging.WithContext(ctx, e.logger)
	summary := newSummary(passID)
	state := State{Phase: PhaseStart}
	p := &pass{id: passID, seen: make(map[string]struct{})}

	for state.Phase != PhaseEnd {
		if err := ctx.Err(); err != nil {
			summary.finish(state)
			e.abandonCurrent(ctx, p, state)
			return summary, err
		}

		var (
			update Update
			err    error
		)
		switch state.Phase {
		case PhaseStart:
			update = Update{Phase: PhaseFetching}
		case PhaseFetching:
			update, err = e.fetch(ctx, state, fetch)
		case PhaseDeciding:
			update = Update{Phase: shouldContinue(state)}
		case PhaseAnalyzing:
			update, err = e.analyze(ctx, p, state)
		case PhaseDrafting:
			var outcome Outcome
			update, outcome, err = e.draft(ctx, p, state)
			if err == nil {
				summary.record(outcome)
			}
		default:
			err = invariantError("advance", fmt.Sprintf("unknown phase %q", state.Phase))
		}
		if err != nil {
			summary.finish(state)
			e.abandonCurrent(ctx, p, state)
			if errors.Is(err, ErrInvariant) {
				logging.ErrorWithContext(logger, "triage pass stopped", "invariant_violation",
					append(logging.ErrorAttrs(err), logging.Alert("invariant_violation"))...)
			}
			return summary, err
		}

		before := len(state.Queue)
		next := state.Apply(update)
		if state.Phase == PhaseDrafting && len(next.Queue) != before-1 {
			summary.finish(next)
			e.abandonCurrent(ctx, p, state)
			err := invariantError("dequeue", fmt.Sprintf("queue went from %d to %d items after drafting", before, len(next.Queue)))
			logging.ErrorWithContext(logger, "triage pass stopped", "invariant_violation",
				append(logging.ErrorAttrs(err), logging.Alert("invariant_violation"))...)
			return summary, err
		}
		state = next
	}

	summary.finish(state)
	logger.Info("triage pass complete",
		logging.String(logging.FieldEventType, "pass_complete"),
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// fetch loads the pass snapshot. A populated state is returned unchanged.
func (e *Engine) fetch(ctx context.Context, state State, fetch fetchFunc) (Update, error) {
	if state.Fetched || len(state.Queue) > 0 {
		return Update{Phase: PhaseDeciding}, nil
	}
	logger := logging.WithContext(ctx, e.logger)
	if err := e.heartbeat.ReclaimStaleItems(ctx); err != nil {
		logging.WarnWithContext(logger, "reclaim stale items failed; stuck items may remain", "heartbeat_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "items claimed by a crashed pass are skipped until reclaimed"),
		)
	}
	items, err := fetch(ctx)
	if err != nil {
		return Update{}, fmt.Errorf("fetch work items: %w", err)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	logger.Info("work items fetched",
		logging.String(logging.FieldEventType, "queue_snapshot"),
		logging.Int("count", len(items)),
		logging.String("item_ids", strings.Join(ids, ",")),
	)
	return Update{
		Phase:        PhaseDeciding,
		Queue:        items,
		ReplaceQueue: true,
		Fetched:      true,
		Messages:     []string{fmt.Sprintf("fetched %d work items", len(items))},
	}, nil
}

func invariantError(operation, message string) error {
	return services.Wrap(ErrInvariant, "workflow", operation, message, nil)
}

var (
	_ Analyzer   = (*analysis.Step)(nil)
	_ Drafter    = (*notes.Drafter)(nil)
	_ NoteWriter = (*notes.Writer)(nil)
)
