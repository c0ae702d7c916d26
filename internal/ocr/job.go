package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/folio/internal/stream"
)

// State is the top-level status of a job.
type State string

const (
	StateIdle             State = "idle"
	StateUploading        State = "uploading"
	StateUploadFailed     State = "upload_failed"
	StateReady            State = "ready"
	StateRunning          State = "running"
	StateCompletedSuccess State = "completed_success"
	StateCompletedError   State = "completed_error"
)

// Terminal reports whether the state is a completion state.
func (s State) Terminal() bool {
	return s == StateCompletedSuccess || s == StateCompletedError
}

// JobConfig configures a job.
type JobConfig struct {
	Logger *slog.Logger

	// TimerInterval overrides the elapsed timer's tick (default 1s).
	// Tests use a short interval.
	TimerInterval time.Duration
}

// Job tracks one upload-to-completion OCR run over a single document.
// Transitions are driven only by upload outcomes and stream events; the
// stream is consumed by a single goroutine in Run, so no two event
// applications ever interleave. State is still mutex-guarded because
// observers (progress display, timer) read from other goroutines.
type Job struct {
	mu         sync.Mutex
	id         string
	filename   string
	totalPages int
	state      State
	errMsg     string
	onChange   []func()

	pages  *PageTable
	timer  *Timer
	logger *slog.Logger
}

// NewJob creates an idle job.
func NewJob(cfg JobConfig) *Job {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		id:     uuid.New().String(),
		state:  StateIdle,
		pages:  NewPageTable(),
		timer:  NewTimer(cfg.TimerInterval),
		logger: logger,
	}
}

// ID returns the client-side run identifier.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

// State returns the current job state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the current error message, empty unless the job is in
// upload_failed or completed_error.
func (j *Job) Err() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errMsg
}

// Filename returns the server-assigned filename for the upload.
func (j *Job) Filename() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.filename
}

// TotalPages returns the page count the table is currently sized to.
func (j *Job) TotalPages() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.totalPages
}

// Pages returns a snapshot of the page status table.
func (j *Job) Pages() []PageState {
	return j.pages.Snapshot()
}

// PagesDone returns the number of pages in a terminal status.
func (j *Job) PagesDone() int {
	return j.pages.Done()
}

// Document returns the aggregated text derived from the page table.
func (j *Job) Document() string {
	return j.pages.Document()
}

// Elapsed returns whole seconds spent in the running state. The value
// freezes on completion.
func (j *Job) Elapsed() int {
	return j.timer.Seconds()
}

// OnChange registers a callback invoked after every state transition
// and page table mutation. Callbacks run on the goroutine that applied
// the change and must not block.
func (j *Job) OnChange(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onChange = append(j.onChange, fn)
}

func (j *Job) notify() {
	j.mu.Lock()
	callbacks := make([]func(), len(j.onChange))
	copy(callbacks, j.onChange)
	j.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// BeginUpload starts a new run: all state from any previous job is
// discarded and the job enters uploading. Rejected while a stream is
// being consumed; one client tracks one job at a time.
func (j *Job) BeginUpload() error {
	j.mu.Lock()
	if j.state == StateRunning || j.state == StateUploading {
		state := j.state
		j.mu.Unlock()
		return fmt.Errorf("cannot start upload while job is %s", state)
	}
	j.id = uuid.New().String()
	j.filename = ""
	j.totalPages = 0
	j.errMsg = ""
	j.state = StateUploading
	j.mu.Unlock()

	j.pages.Clear()
	j.timer.Stop()
	j.notify()
	return nil
}

// UploadSucceeded records the server-assigned filename and page count
// and moves the job to ready, sizing the page table.
func (j *Job) UploadSucceeded(filename string, totalPages int) error {
	j.mu.Lock()
	if j.state != StateUploading {
		state := j.state
		j.mu.Unlock()
		return fmt.Errorf("upload result in state %s", state)
	}
	j.filename = filename
	j.totalPages = totalPages
	j.state = StateReady
	j.mu.Unlock()

	j.pages.Init(totalPages)
	j.notify()
	return nil
}

// UploadFailed moves the job to upload_failed and clears the table.
func (j *Job) UploadFailed(err error) {
	j.mu.Lock()
	j.state = StateUploadFailed
	j.errMsg = err.Error()
	j.mu.Unlock()

	j.pages.Clear()
	j.notify()
}

// Start moves the job to running. Allowed from ready and from either
// completion state (re-run): page statuses and text reset to pending
// before any new event applies, and the timer restarts from zero.
func (j *Job) Start() error {
	j.mu.Lock()
	if j.state != StateReady && !j.state.Terminal() {
		state := j.state
		j.mu.Unlock()
		return fmt.Errorf("cannot start job in state %s", state)
	}
	j.errMsg = ""
	j.state = StateRunning
	j.mu.Unlock()

	j.pages.Reset()
	j.timer.Start()
	j.notify()
	return nil
}

// TransportFailed resolves a running job as failed when the stream
// could not be opened or was lost before any event resolved it.
func (j *Job) TransportFailed(err error) {
	j.mu.Lock()
	if j.state != StateRunning {
		j.mu.Unlock()
		return
	}
	j.mu.Unlock()
	j.fail(fmt.Sprintf("network error: %v", err))
}

// Run consumes the event stream until the job resolves. It returns once
// a terminal event is applied, the transport ends, or the transport
// fails; in every case the job is left in a completion state and the
// timer is frozen. After a fatal event the body is closed and no
// further frames are applied, even if already buffered.
func (j *Job) Run(ctx context.Context, body io.ReadCloser) error {
	defer body.Close()

	if j.State() != StateRunning {
		return fmt.Errorf("cannot consume stream in state %s", j.State())
	}

	dec := stream.NewDecoder(body, j.logger)
	for {
		if err := ctx.Err(); err != nil {
			j.fail(fmt.Sprintf("stream cancelled: %v", err))
			return err
		}

		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			// Transport ended without a summary or error having
			// resolved the job: resolve now from what we have.
			j.resolveFromTable("stream ended")
			return nil
		}
		if err != nil {
			j.fail(fmt.Sprintf("network error: %v", err))
			return fmt.Errorf("failed to read event stream: %w", err)
		}

		ev, perr := stream.ParseEvent(frame)
		if perr != nil {
			// Malformed frames are recovered locally; a single bad
			// frame must not abort the stream.
			j.logger.Warn("skipping malformed frame", "job_id", j.ID(), "error", perr)
			continue
		}

		if terminal := j.apply(ev); terminal {
			return nil
		}
	}
}

// apply dispatches one event. Returns true when the event resolved the
// job, which tells Run to stop reading.
func (j *Job) apply(ev stream.Event) bool {
	switch e := ev.(type) {
	case stream.Info:
		if e.Error != "" {
			j.fail(fmt.Sprintf("pipeline failed to start: %s", e.Error))
			return true
		}
		// The stream's page count is authoritative; resize if the
		// upload-time count disagreed.
		j.mu.Lock()
		resized := j.totalPages != e.TotalPages
		j.totalPages = e.TotalPages
		j.mu.Unlock()
		if resized {
			j.logger.Info("page count updated from stream", "job_id", j.ID(), "total_pages", e.TotalPages)
		}
		j.pages.Init(e.TotalPages)
		j.notify()

	case stream.PageEvent:
		j.pages.SetStatus(e.Page, PageStatus(e.Status))
		j.notify()

	case stream.PageResult:
		j.pages.SetResult(e.Page, PageStatus(e.Status), e.Text)
		j.notify()

	case stream.Summary:
		j.resolveSummary(e)
		return true

	case stream.ErrorEvent:
		msg := e.Message
		if e.Details != "" {
			j.logger.Debug("pipeline error details", "job_id", j.ID(), "details", e.Details)
		}
		j.fail(fmt.Sprintf("pipeline error: %s", msg))
		return true
	}
	return false
}

// resolveSummary classifies the final state from a summary event. A
// summary that reports failure or any page errors fails the job; a
// clean summary still fails if no text was extracted - "success with
// nothing" is an error from the caller's point of view.
func (j *Job) resolveSummary(s stream.Summary) {
	switch s.Status {
	case "error", "failed", "failure":
		j.fail(fmt.Sprintf("job failed: %s", s.Status))
		return
	}
	if s.TotalErrors > 0 {
		j.fail(fmt.Sprintf("completed with %d page error(s)", s.TotalErrors))
		return
	}
	j.resolveFromTable("completed")
}

// resolveFromTable resolves a still-running job from the aggregated
// text alone: non-empty means success, empty means error.
func (j *Job) resolveFromTable(reason string) {
	j.mu.Lock()
	if j.state != StateRunning {
		j.mu.Unlock()
		return
	}
	j.mu.Unlock()

	if j.pages.Document() == "" {
		j.fail(fmt.Sprintf("%s but no text was extracted", reason))
		return
	}
	j.complete()
}

func (j *Job) complete() {
	j.mu.Lock()
	j.state = StateCompletedSuccess
	j.mu.Unlock()

	j.timer.Stop()
	j.logger.Info("job completed", "job_id", j.ID(), "elapsed_seconds", j.Elapsed())
	j.notify()
}

func (j *Job) fail(msg string) {
	j.mu.Lock()
	j.state = StateCompletedError
	j.errMsg = msg
	j.mu.Unlock()

	j.timer.Stop()
	j.logger.Error("job failed", "job_id", j.ID(), "error", msg)
	j.notify()
}
