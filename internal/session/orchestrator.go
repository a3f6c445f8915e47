// Package session sequences the artifact lifecycle — probe, acquire if
// missing, activate — and exposes chat generation once the engine is ready.
// It is the single coordination point between the download, engine, and
// chatlog packages; HTTP handlers talk to it through small methods and never
// touch those packages directly.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gemmad/internal/artifact"
	"gemmad/internal/chatlog"
	"gemmad/internal/download"
	"gemmad/internal/engine"
	"gemmad/pkg/types"
)

// State names the phase of the artifact lifecycle the session is in.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateChecking      State = "checking"
	StateDownloading   State = "downloading"
	StateActivating    State = "activating"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Fetcher acquires the artifact from its remote source. Satisfied by
// *download.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, src, dest string, onProgress download.ProgressFunc) error
}

// Engine is the inference lifecycle surface the orchestrator drives.
// Satisfied by *engine.Bridge.
type Engine interface {
	Activate(path string) error
	Generate(ctx context.Context, prompt, imagePath string) (string, error)
	Deactivate()
}

// Config wires an Orchestrator. Location, SourceURL, Fetcher, Engine, and
// Log are required; Publisher defaults to a no-op.
type Config struct {
	Location  artifact.Location
	SourceURL string
	Fetcher   Fetcher
	Engine    Engine
	Log       *chatlog.Store
	Publisher EventPublisher
}

// Orchestrator owns the session state machine. State only moves forward
// through checking → downloading → activating → ready; failed is re-entered
// from any in-flight phase and left only via Retry. ready is terminal for
// the process lifetime.
type Orchestrator struct {
	loc     artifact.Location
	src     string
	fetcher Fetcher
	engine  Engine
	log     *chatlog.Store
	pub     EventPublisher

	mu         sync.Mutex
	state      State
	reason     string
	reasonCode string
	progress   types.DownloadProgress
	retries    uint64

	// runCh is a single-slot guard: holding the token means a lifecycle
	// sequence is in flight.
	runCh chan struct{}

	startedAt time.Time
}

// New constructs an Orchestrator in the uninitialized state.
func New(cfg Config) *Orchestrator {
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Orchestrator{
		loc:       cfg.Location,
		src:       cfg.SourceURL,
		fetcher:   cfg.Fetcher,
		engine:    cfg.Engine,
		log:       cfg.Log,
		pub:       pub,
		state:     StateUninitialized,
		runCh:     make(chan struct{}, 1),
		startedAt: time.Now(),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Ready reports whether generation requests are accepted.
func (o *Orchestrator) Ready() bool { return o.State() == StateReady }

// Run executes one full lifecycle sequence: probe the artifact, download it
// if absent, activate the engine. Blocking; callers run it on a background
// goroutine. Only one sequence may be in flight; a concurrent call fails
// fast. Running an already-ready session is a no-op.
func (o *Orchestrator) Run(ctx context.Context) error {
	select {
	case o.runCh <- struct{}{}:
	default:
		return ErrRunInFlight()
	}
	defer func() { <-o.runCh }()

	if o.State() == StateReady {
		return nil
	}
	return o.sequence(ctx, uuid.NewString())
}

// Retry restarts the lifecycle sequence after a failure. Accepted only in
// the failed state; the sequence runs on a fresh goroutine under ctx and the
// operation ID is returned immediately.
func (o *Orchestrator) Retry(ctx context.Context) (string, error) {
	select {
	case o.runCh <- struct{}{}:
	default:
		return "", ErrRunInFlight()
	}

	o.mu.Lock()
	if o.state != StateFailed {
		st := o.state
		o.mu.Unlock()
		<-o.runCh
		return "", ErrNotRetryable(string(st))
	}
	o.retries++
	o.reason = ""
	o.reasonCode = ""
	o.mu.Unlock()

	retriesTotal.Inc()
	opID := uuid.NewString()
	go func() {
		defer func() { <-o.runCh }()
		_ = o.sequence(ctx, opID)
	}()
	return opID, nil
}

// sequence runs checking → (downloading) → activating → ready. Caller must
// hold the run token.
func (o *Orchestrator) sequence(ctx context.Context, opID string) error {
	o.setState(opID, StateChecking)

	// A staging file from an interrupted download is garbage either way:
	// the fetch path rewrites it from scratch and the probe must not see it.
	if err := artifact.CleanStale(o.loc); err != nil {
		return o.fail(opID, err)
	}

	// The probe alone would accept a zero-byte file left by a crash;
	// requiring at least one byte closes that gap. The download path never
	// publishes partial files, so any non-empty artifact was fully fetched.
	if !artifact.NonEmpty(o.loc) {
		o.setState(opID, StateDownloading)
		err := o.fetcher.Fetch(ctx, o.src, o.loc.Path, func(p types.DownloadProgress) {
			o.observeProgress(opID, p)
		})
		if err != nil {
			return o.fail(opID, err)
		}
	}

	o.setState(opID, StateActivating)
	if err := o.engine.Activate(o.loc.Path); err != nil {
		return o.fail(opID, err)
	}
	o.setState(opID, StateReady)
	return nil
}

// Chat appends the user message, runs one generation, and appends and
// returns the assistant message. Accepted only in the ready state. A
// generation failure is scoped to this call: the session stays ready and the
// user message stays in the log.
func (o *Orchestrator) Chat(ctx context.Context, req types.ChatRequest) (types.Message, error) {
	if !o.Ready() {
		return types.Message{}, ErrNotReady(string(o.State()))
	}
	// Reject before persisting anything: an empty prompt must leave no trace.
	if strings.TrimSpace(req.Prompt) == "" {
		return types.Message{}, engine.ErrEmptyPrompt()
	}
	if _, err := o.log.Append(types.Message{
		Text:      req.Prompt,
		Sender:    types.SenderUser,
		ImagePath: req.ImagePath,
	}); err != nil {
		return types.Message{}, err
	}

	text, err := o.engine.Generate(ctx, req.Prompt, req.ImagePath)
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		return types.Message{}, err
	}
	generationsTotal.WithLabelValues("ok").Inc()

	return o.log.Append(types.Message{Text: text, Sender: types.SenderAssistant})
}

// Messages returns the persisted transcript in append order.
func (o *Orchestrator) Messages() []types.Message { return o.log.Messages() }

// Close releases the engine. Safe to call in any state, any number of times.
func (o *Orchestrator) Close() { o.engine.Deactivate() }

// Status reports a snapshot for GET /status.
func (o *Orchestrator) Status() types.StatusResponse {
	o.mu.Lock()
	st := o.state
	reason := o.reason
	code := o.reasonCode
	prog := o.progress
	retries := o.retries
	o.mu.Unlock()

	now := time.Now()
	return types.StatusResponse{
		State:          string(st),
		Reason:         reason,
		ReasonCode:     code,
		Progress:       prog,
		ArtifactPath:   o.loc.Path,
		ArtifactBytes:  artifact.Size(o.loc),
		MessageCount:   o.log.Len(),
		UptimeSeconds:  int64(now.Sub(o.startedAt).Seconds()),
		ServerTimeUnix: now.Unix(),
		RetriesTotal:   retries,
	}
}

func (o *Orchestrator) setState(opID string, st State) {
	o.mu.Lock()
	o.state = st
	o.mu.Unlock()
	o.pub.Publish(Event{Name: "session_state", OpID: opID, Fields: map[string]any{
		"state": string(st),
	}})
}

func (o *Orchestrator) fail(opID string, err error) error {
	code := reasonCode(err)
	o.mu.Lock()
	o.state = StateFailed
	o.reason = err.Error()
	o.reasonCode = code
	o.mu.Unlock()
	o.pub.Publish(Event{Name: "session_state", OpID: opID, Fields: map[string]any{
		"state":       string(StateFailed),
		"reason":      err.Error(),
		"reason_code": code,
	}})
	return err
}

func (o *Orchestrator) observeProgress(opID string, p types.DownloadProgress) {
	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()
	downloadBytesWritten.Set(float64(p.BytesWritten))
	downloadTotalBytes.Set(float64(p.TotalBytes))
	downloadPercent.Set(p.Percent)
	o.pub.Publish(Event{Name: "download_progress", OpID: opID, Fields: map[string]any{
		"bytes_written": p.BytesWritten,
		"total_bytes":   p.TotalBytes,
		"percent":       p.Percent,
	}})
}
