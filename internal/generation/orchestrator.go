// Package generation owns the single current course document and the one
// generation task that may produce it. All mutation of the document flows
// through the orchestrator; readers get snapshots.
package generation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/abaykopenov/llm-scorm/internal/course"
	"github.com/abaykopenov/llm-scorm/internal/llm"
	"github.com/abaykopenov/llm-scorm/internal/scorm"
)

var (
	// ErrAlreadyRunning rejects a generation request while one is active.
	// Requests are rejected, not queued: two concurrent generations would
	// race on the single current document.
	ErrAlreadyRunning = errors.New("generation: already running")

	// ErrNoDocument indicates an operation that needs a current document
	// before one exists.
	ErrNoDocument = errors.New("generation: no course document loaded")
)

// Phase is the lifecycle state of the generation task.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Progress milestones reported while a generation runs.
const (
	pctAccepted   = 5
	pctRequesting = 15
	pctValidating = 70
	pctDone       = 100
)

// Generator produces a course document for a request. Satisfied by
// llm.Client.
type Generator interface {
	GenerateCourse(ctx context.Context, req *llm.Request) (*course.Document, error)
}

// GeneratorFactory builds a Generator from the current settings snapshot.
// Called once per accepted generation so settings edits apply to the next
// run without a restart.
type GeneratorFactory func(ctx context.Context) (Generator, error)

// Builder produces a package artifact from a document. Satisfied by
// scorm.Builder.
type Builder interface {
	Build(ctx context.Context, doc *course.Document) (*scorm.Artifact, error)
}

// Snapshot is the externally visible generation state.
type Snapshot struct {
	Phase   Phase
	Percent int
	Message string
	Course  *course.Document
	Error   string
}

// Generating reports whether a task is active.
func (s Snapshot) Generating() bool {
	return s.Phase == PhaseRunning
}

// Orchestrator serializes generation and document mutation. At most one
// generation task runs at a time; the current document is replaced
// atomically and never mutated in place.
type Orchestrator struct {
	factory GeneratorFactory
	builder Builder
	baseCtx context.Context
	logger  *slog.Logger

	mu      sync.Mutex
	phase   Phase
	percent int
	message string
	errMsg  string
	doc     *course.Document
}

// New creates an orchestrator. baseCtx bounds background generation work;
// pass the lifecycle coordinator's context so shutdown cancels in-flight
// LLM calls.
func New(baseCtx context.Context, factory GeneratorFactory, builder Builder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		factory: factory,
		builder: builder,
		baseCtx: baseCtx,
		logger:  logger.With("system", "generation"),
		phase:   PhaseIdle,
	}
}

// Start accepts a generation request and returns immediately; the LLM call
// runs detached. A request is rejected with ErrAlreadyRunning while a task
// is active and with llm.ErrInvalidRequest when its parameters are bad.
func (o *Orchestrator) Start(req llm.Request) error {
	if err := req.Normalize(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.phase == PhaseRunning {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	// Accepting a new request clears any previous terminal task.
	o.phase = PhaseRunning
	o.percent = pctAccepted
	o.message = "Generation started"
	o.errMsg = ""
	o.mu.Unlock()

	o.logger.Info("generation accepted", "topic", req.Topic, "shape", req.Shape().String())
	go o.run(req)

	return nil
}

func (o *Orchestrator) run(req llm.Request) {
	ctx := o.baseCtx

	o.setProgress(pctRequesting, "Requesting course from language model")

	generator, err := o.factory(ctx)
	if err != nil {
		o.fail(err)
		return
	}

	doc, err := generator.GenerateCourse(ctx, &req)
	if err != nil {
		o.fail(err)
		return
	}

	o.setProgress(pctValidating, "Validating course structure")
	if err := doc.Validate(); err != nil {
		o.fail(err)
		return
	}

	o.mu.Lock()
	o.doc = doc
	o.phase = PhaseSucceeded
	o.percent = pctDone
	o.message = "Course ready"
	o.mu.Unlock()

	o.logger.Info("generation succeeded", "title", doc.Title)
}

func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	o.phase = PhaseFailed
	o.errMsg = err.Error()
	o.message = "Generation failed"
	o.mu.Unlock()

	o.logger.Warn("generation failed", "error", err)
}

// setProgress advances the reported percentage; it never moves backwards.
func (o *Orchestrator) setProgress(pct int, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase != PhaseRunning {
		return
	}
	if pct > o.percent {
		o.percent = pct
	}
	o.message = msg
}

// Status returns the current task snapshot. The course is a deep copy and
// only present once a document exists.
func (o *Orchestrator) Status() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Snapshot{
		Phase:   o.phase,
		Percent: o.percent,
		Message: o.message,
		Course:  o.doc.Clone(),
		Error:   o.errMsg,
	}
}

// Current returns a deep copy of the current document.
func (o *Orchestrator) Current() (*course.Document, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.doc == nil {
		return nil, ErrNoDocument
	}
	return o.doc.Clone(), nil
}

// LoadDocument replaces the current document with an externally supplied
// one. The document is validated first; on rejection the current document
// is untouched.
func (o *Orchestrator) LoadDocument(doc *course.Document) (*course.Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase == PhaseRunning {
		return nil, ErrAlreadyRunning
	}

	o.doc = doc.Clone()
	o.phase = PhaseSucceeded
	o.percent = pctDone
	o.message = "Course loaded"
	o.errMsg = ""

	return o.doc.Clone(), nil
}

// UpdateDocument replaces the current document and immediately rebuilds the
// package, so edits never leave a stale artifact behind. Returns the new
// document and the fresh artifact.
func (o *Orchestrator) UpdateDocument(ctx context.Context, doc *course.Document) (*course.Document, *scorm.Artifact, error) {
	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}

	o.mu.Lock()
	if o.phase == PhaseRunning {
		o.mu.Unlock()
		return nil, nil, ErrAlreadyRunning
	}
	o.doc = doc.Clone()
	snapshot := o.doc.Clone()
	o.mu.Unlock()

	artifact, err := o.builder.Build(ctx, snapshot)
	if err != nil {
		return nil, nil, err
	}

	return snapshot, artifact, nil
}

// BuildCurrent builds a package from the current document.
func (o *Orchestrator) BuildCurrent(ctx context.Context) (*scorm.Artifact, error) {
	doc, err := o.Current()
	if err != nil {
		return nil, err
	}
	return o.builder.Build(ctx, doc)
}

// MapHTTPStatus translates orchestrator and downstream errors onto HTTP
// status codes for the API layer.
func MapHTTPStatus(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrAlreadyRunning):
		return 409
	case errors.Is(err, ErrNoDocument):
		return 404
	case errors.Is(err, llm.ErrInvalidRequest):
		return 400
	case errors.Is(err, course.ErrInvalidDocument):
		return 422
	case errors.Is(err, llm.ErrUpstreamUnavailable):
		return 502
	case errors.Is(err, llm.ErrUpstreamMalformed):
		return 502
	case errors.Is(err, scorm.ErrBuild):
		return 500
	default:
		return 500
	}
}
