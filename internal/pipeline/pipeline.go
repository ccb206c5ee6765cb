// Package pipeline is the image intake pipeline shared by the upscaler and
// the face filter: normalize, decode, process, publish.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/andresmejia3/imagedrop/internal/decode"
	"github.com/andresmejia3/imagedrop/internal/normalize"
	"github.com/andresmejia3/imagedrop/internal/publish"
	"github.com/andresmejia3/imagedrop/internal/types"
	"github.com/andresmejia3/imagedrop/internal/utils"
)

// Processor turns a decoded image into a result. One processor is bound to a
// pipeline for its whole lifetime.
type Processor interface {
	Name() string
	ArtifactPrefix() string
	Process(ctx context.Context, img *types.DecodedImage) (*types.ProcessingResult, error)
}

// Presenter is the port to whatever surface shows the pipeline to the user.
// The pipeline never touches presentation elements directly.
type Presenter interface {
	ShowLoading(loading bool)
	HideResult()
	ShowResult(res *types.Result)
	Notify(message string)
}

// Recorder persists a summary of every finished run.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// Run is the ledger entry for one submission.
type Run struct {
	ID           uuid.UUID
	Tool         string
	Filename     string
	DeclaredType string
	Digest       string
	State        types.UIState
	FailureStage string
	Artifact     string
	Width        int
	Height       int
	StartedAt    time.Time
	Duration     time.Duration
}

// Options wires a pipeline. Transcoder, Processor and Presenter are required.
type Options struct {
	Transcoder normalize.Transcoder
	Processor  Processor
	Presenter  Presenter
	Recorder   Recorder
	Logger     *slog.Logger
	Decode     func(*types.NormalizedBlob) (*types.DecodedImage, error)
}

// Pipeline runs at most one submission at a time. Submissions that arrive
// while a run is in flight are dropped with ErrBusy.
type Pipeline struct {
	transcoder normalize.Transcoder
	processor  Processor
	presenter  Presenter
	recorder   Recorder
	logger     *slog.Logger
	decode     func(*types.NormalizedBlob) (*types.DecodedImage, error)

	inflight atomic.Bool

	mu      sync.Mutex
	state   types.UIState
	loading bool
	current *types.Result
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		transcoder: opts.Transcoder,
		processor:  opts.Processor,
		presenter:  opts.Presenter,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		decode:     opts.Decode,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.decode == nil {
		p.decode = decode.Decode
	}
	return p
}

// Tool names the bound processor.
func (p *Pipeline) Tool() string { return p.processor.Name() }

// State returns the current UI state.
func (p *Pipeline) State() types.UIState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Loading reports whether the loading indicator is on.
func (p *Pipeline) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Current returns the last published result. It survives later runs, failed
// or not, until a new result replaces it.
func (p *Pipeline) Current() *types.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnFileSubmitted is the single entry point for every surface. A nil file is
// an empty selection and does nothing.
func (p *Pipeline) OnFileSubmitted(ctx context.Context, file *types.SourceFile) error {
	if file == nil {
		return nil
	}
	if !p.inflight.CompareAndSwap(false, true) {
		p.logger.Warn("submission dropped while another run is in flight", "tool", p.Tool(), "file", file.Name)
		return ErrBusy
	}
	defer p.inflight.Store(false)

	run := Run{
		ID:           uuid.New(),
		Tool:         p.Tool(),
		Filename:     file.Name,
		DeclaredType: file.Type,
		Digest:       utils.Digest(file.Data),
		StartedAt:    time.Now(),
	}

	p.enterLoading()
	// Clearing the indicator is always the last thing a run does.
	defer p.setLoading(false)

	res, err := p.run(ctx, file)
	run.Duration = time.Since(run.StartedAt)

	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			run.FailureStage = f.Stage.String()
		}
		p.logger.Error("pipeline run failed", "tool", run.Tool, "file", file.Name, "type", file.Type, "stage", run.FailureStage, "error", err)

		p.mu.Lock()
		p.state = types.StateError
		p.mu.Unlock()
		run.State = types.StateError

		p.presenter.Notify(UserMessage)
		p.record(ctx, run)
		return err
	}

	p.presenter.ShowResult(res)
	p.mu.Lock()
	p.current = res
	p.state = types.StateResultReady
	p.mu.Unlock()

	run.State = types.StateResultReady
	run.Artifact = res.Artifact.Filename
	run.Width, run.Height = res.Artifact.Width, res.Artifact.Height
	p.logger.Info("pipeline run finished", "tool", run.Tool, "file", file.Name, "artifact", run.Artifact, "duration", run.Duration)

	p.record(ctx, run)
	return nil
}

func (p *Pipeline) run(ctx context.Context, file *types.SourceFile) (*types.Result, error) {
	blob, err := normalize.Normalize(ctx, p.transcoder, file)
	if err != nil {
		return nil, &Failure{Stage: StageNormalize, Err: err}
	}

	img, err := p.decode(blob)
	if err != nil {
		return nil, &Failure{Stage: StageDecode, Err: err}
	}

	out, err := p.processor.Process(ctx, img)
	if err != nil {
		return nil, &Failure{Stage: StageProcess, Err: err}
	}

	art, err := publish.Artifact(out, publish.Filename(p.processor.ArtifactPrefix(), file.Name))
	if err != nil {
		return nil, &Failure{Stage: StagePublish, Err: err}
	}

	return &types.Result{Original: img, Output: out, Artifact: art}, nil
}

func (p *Pipeline) enterLoading() {
	p.mu.Lock()
	p.state = types.StateLoading
	p.loading = true
	p.mu.Unlock()

	p.presenter.HideResult()
	p.presenter.ShowLoading(true)
}

func (p *Pipeline) setLoading(on bool) {
	p.mu.Lock()
	p.loading = on
	p.mu.Unlock()
	p.presenter.ShowLoading(on)
}

// record is best effort: a ledger outage never fails a run.
func (p *Pipeline) record(ctx context.Context, run Run) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("failed to record run", "id", run.ID, "error", err)
	}
}
