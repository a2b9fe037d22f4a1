package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	"go.uber.org/zap"
)

const defaultBatchPacing = 1500 * time.Millisecond

var (
	errMissingAssets = errors.New("generation: asset generator is required")
	// ErrBatchRunning rejects a second batch start for a deck already running.
	ErrBatchRunning = errors.New("generation: batch already running for this deck")
)

// BatchProgress is the externally observable state of one deck's batch run.
type BatchProgress struct {
	Running   bool `json:"running"`
	Processed int  `json:"processed"`
	Total     int  `json:"total"`
}

// RunResult summarizes a finished batch run.
type RunResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchEvents receives progress and per-slide notifications during a run.
// Nil fields are skipped.
type BatchEvents struct {
	Progress      func(deckID string, progress BatchProgress)
	SlideResolved func(deckID string, record slides.SlideRecord)
}

// RunnerConfig configures the batch scheduler.
type RunnerConfig struct {
	Assets *AssetGenerator
	// Pacing is the fixed wait between consecutive items. The external service
	// penalizes bursts, so the run trades wall-clock time for success rate.
	Pacing time.Duration
	Sleep  sleepFunc
	Events BatchEvents
	Logger *zap.Logger
}

// Runner drives asset generation for every slide in a deck that is missing
// one. Items are processed strictly sequentially from a snapshot taken at
// start; slides added during a run wait for the next run. Individual failures
// are absorbed: the missing asset URL itself marks the slide as retryable.
type Runner struct {
	assets *AssetGenerator
	pacing time.Duration
	sleep  sleepFunc
	events BatchEvents
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]*BatchProgress
}

// NewRunner constructs a batch Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Assets == nil {
		return nil, errMissingAssets
	}
	pacing := cfg.Pacing
	if pacing <= 0 {
		pacing = defaultBatchPacing
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = contextSleep
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		assets: cfg.Assets,
		pacing: pacing,
		sleep:  sleep,
		events: cfg.Events,
		logger: logger,
		states: make(map[string]*BatchProgress),
	}, nil
}

// Progress reports the current batch state for a deck.
func (r *Runner) Progress(deckID string) BatchProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.states[deckID]; ok {
		return *state
	}
	return BatchProgress{}
}

// Run executes one batch over the deck. Starting while a run is active for the
// same deck returns ErrBatchRunning. An empty work set completes immediately.
// Cancelling ctx stops the loop between items, never mid-call; by every exit
// path the running flag is cleared and progress reset.
func (r *Runner) Run(ctx context.Context, cred gateway.Credential, deck *slides.Deck) (RunResult, error) {
	snapshot := deck.Store.MissingAssets()
	if err := r.acquire(deck.ID, len(snapshot)); err != nil {
		return RunResult{}, err
	}
	return r.run(ctx, cred, deck, snapshot)
}

// Start takes the deck's running guard before returning, so a rejected second
// start is observed synchronously, then executes the run in the background.
// The returned channel delivers the final result and is then closed.
func (r *Runner) Start(ctx context.Context, cred gateway.Credential, deck *slides.Deck) (<-chan RunResult, error) {
	snapshot := deck.Store.MissingAssets()
	if err := r.acquire(deck.ID, len(snapshot)); err != nil {
		return nil, err
	}
	done := make(chan RunResult, 1)
	go func() {
		defer close(done)
		result, err := r.run(ctx, cred, deck, snapshot)
		if err != nil {
			r.logger.Warn("batch run stopped early",
				zap.String("deck_id", deck.ID),
				zap.Error(err))
		}
		done <- result
	}()
	return done, nil
}

// acquire claims the running flag for the deck or reports ErrBatchRunning.
func (r *Runner) acquire(deckID string, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.states[deckID]; ok && state.Running {
		return ErrBatchRunning
	}
	r.states[deckID] = &BatchProgress{Running: true, Total: total}
	return nil
}

// run owns the guard its caller acquired and releases it on every exit path.
func (r *Runner) run(ctx context.Context, cred gateway.Credential, deck *slides.Deck, snapshot []slides.SlideRecord) (RunResult, error) {
	defer func() {
		r.mu.Lock()
		delete(r.states, deck.ID)
		r.mu.Unlock()
		r.publishProgress(deck.ID, BatchProgress{})
	}()

	result := RunResult{Total: len(snapshot)}
	if len(snapshot) == 0 {
		r.logger.Info("batch run has nothing to do", zap.String("deck_id", deck.ID))
		return result, nil
	}

	r.logger.Info("batch run started",
		zap.String("deck_id", deck.ID),
		zap.Int("total", len(snapshot)))

	for i, record := range snapshot {
		if err := ctx.Err(); err != nil {
			r.logger.Info("batch run cancelled",
				zap.String("deck_id", deck.ID),
				zap.Int("processed", i))
			return result, err
		}

		_, err := r.assets.Generate(ctx, cred, deck, AssetRequest{
			SlideID: record.ID,
			Mode:    ModeFullSlide,
			Prompt:  record.AssetPrompt,
		})
		if err != nil {
			// Suppressed: one failing slide must not abort the rest.
			result.Failed++
			r.logger.Warn("batch item failed",
				zap.String("deck_id", deck.ID),
				zap.String("slide_id", record.ID),
				zap.Error(err))
		} else {
			result.Succeeded++
			if resolved, ok := deck.Store.Get(record.ID); ok && r.events.SlideResolved != nil {
				r.events.SlideResolved(deck.ID, resolved)
			}
		}

		processed := i + 1
		r.mu.Lock()
		if state, ok := r.states[deck.ID]; ok {
			state.Processed = processed
		}
		r.mu.Unlock()
		r.publishProgress(deck.ID, BatchProgress{Running: true, Processed: processed, Total: len(snapshot)})

		if i < len(snapshot)-1 {
			if err := r.sleep(ctx, r.pacing); err != nil {
				return result, err
			}
		}
	}

	r.logger.Info("batch run finished",
		zap.String("deck_id", deck.ID),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (r *Runner) publishProgress(deckID string, progress BatchProgress) {
	if r.events.Progress != nil {
		r.events.Progress(deckID, progress)
	}
}
