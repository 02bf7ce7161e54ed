package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cesardraw2/zeppelin/cfg"
	"github.com/cesardraw2/zeppelin/completion"
	"github.com/cesardraw2/zeppelin/db"
	"github.com/cesardraw2/zeppelin/executor"
	"github.com/cesardraw2/zeppelin/protocol"
	"github.com/cesardraw2/zeppelin/protocol/query"
	"github.com/cesardraw2/zeppelin/telemetry"
)

// Version is logged when an interpreter opens.
const Version = "0.1.0"

// DefaultQueueSize bounds submissions waiting for the worker.
const DefaultQueueSize = 128

// ErrNotOpen is returned for submissions to an interpreter that is not
// open (or already closed).
var ErrNotOpen = errors.New("interpreter is not open")

// Result is what a submission produces.
type Result struct {
	RunID string
	Code  protocol.Code
	Text  string

	// Outcome is nil for meta-commands and connection failures
	Outcome executor.Outcome
}

// Options for an interpreter beyond its profile
type Options struct {
	Completion     completion.Options
	CompletionOff  bool
	RefreshOnWrite bool
	QueueSize      int
}

// OptionsFromConfig builds options from the [completion] section.
func OptionsFromConfig(c cfg.CompletionConfiguration) Options {
	return Options{
		Completion: completion.Options{
			CacheSize:     c.CacheSize,
			MaxCandidates: c.MaxCandidates,
		},
		CompletionOff:  !c.Enabled,
		RefreshOnWrite: c.RefreshOnWrite,
	}
}

type job struct {
	ctx  context.Context
	text string
	done chan Result
}

// Interpreter runs SQL for one profile. Submissions are processed one at
// a time, in order, by a single worker goroutine; Cancel and Complete may
// be called from any goroutine.
type Interpreter struct {
	name    string
	opts    Options
	manager *db.Manager
	exec    *executor.Executor

	index atomic.Pointer[completion.Index]
	// handshake count the index was built on
	indexOpens atomic.Int64

	jobs     chan *job
	stopCh   chan struct{}
	doneCh   chan struct{}
	queued   atomic.Int64
	open     atomic.Bool
	stopOnce sync.Once
}

// New creates an interpreter for a profile. Nothing is opened until Open.
func New(profile cfg.InterpreterConfiguration, opts Options) (*Interpreter, error) {
	if profile.Name == "" {
		return nil, fmt.Errorf("interpreter name is required")
	}
	connCfg, err := db.ConfigFromProfile(profile)
	if err != nil {
		return nil, fmt.Errorf("interpreter %s: %w", profile.Name, err)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	manager := db.NewManager(connCfg)
	classifier, err := query.NewClassifier(manager.Dialect().Family, query.DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("interpreter %s: %w", profile.Name, err)
	}

	return &Interpreter{
		name:    profile.Name,
		opts:    opts,
		manager: manager,
		exec:    executor.New(classifier),
		jobs:    make(chan *job, opts.QueueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

func (it *Interpreter) Name() string {
	return it.name
}

func (it *Interpreter) Style() db.Style {
	return it.manager.Style()
}

// Manager exposes the connection manager.
func (it *Interpreter) Manager() *db.Manager {
	return it.manager
}

// Open starts the worker, then opens a connection to load the completion
// index and releases it per the connection style. A connection or
// metadata failure is logged; the interpreter still opens, retries the
// connection on the first statement and builds the index then.
func (it *Interpreter) Open(ctx context.Context) error {
	if !it.open.CompareAndSwap(false, true) {
		return nil
	}

	connCfg := it.manager.Config()
	log.Info().
		Str("interpreter", it.name).
		Str("version", Version).
		Str("driver", connCfg.Driver).
		Str("style", connCfg.Style.String()).
		Int("max_rows", connCfg.MaxRows).
		Msg("Opening SQL interpreter")

	go it.worker()

	if it.opts.CompletionOff {
		return nil
	}

	conn, err := it.manager.Acquire(ctx)
	if err != nil {
		log.Warn().Err(err).Str("interpreter", it.name).Msg("Connection unavailable at open, completion deferred to first connection")
		return nil
	}
	defer it.manager.Release(conn, false)

	it.buildIndex(ctx, conn)
	return nil
}

// Close stops the worker and closes the shared connection. The running
// statement is cancelled and pending submissions fail with ErrNotOpen.
func (it *Interpreter) Close() {
	it.stopOnce.Do(func() {
		close(it.stopCh)
		it.exec.Cancel()
		if it.open.Load() {
			<-it.doneCh
		}
		it.open.Store(false)
		it.manager.Shutdown()
		log.Info().Str("interpreter", it.name).Msg("SQL interpreter closed")
	})
}

// Interpret submits text and waits for its result. Text starting with ':'
// is a meta-command; anything else runs as one SQL statement.
func (it *Interpreter) Interpret(ctx context.Context, text string) Result {
	if !it.open.Load() {
		return notOpenResult()
	}

	j := &job{ctx: ctx, text: text, done: make(chan Result, 1)}
	select {
	case it.jobs <- j:
		it.queued.Add(1)
	case <-it.stopCh:
		return notOpenResult()
	case <-ctx.Done():
		return errorResult(uuid.NewString(), protocol.RenderFailure(ctx.Err().Error()))
	}

	select {
	case r := <-j.done:
		return r
	case <-it.doneCh:
		// The worker may have finished this job just before stopping
		select {
		case r := <-j.done:
			return r
		default:
			return notOpenResult()
		}
	}
}

// Cancel stops the statement currently executing, if any.
func (it *Interpreter) Cancel() bool {
	cancelled := it.exec.Cancel()
	log.Debug().Str("interpreter", it.name).Bool("cancelled", cancelled).Msg("Cancel requested")
	return cancelled
}

// Complete answers a completion query; independent of execution.
func (it *Interpreter) Complete(buffer string, cursor int) []string {
	return it.index.Load().Complete(buffer, cursor)
}

// Index returns the current completion index, nil when unavailable.
func (it *Interpreter) Index() *completion.Index {
	return it.index.Load()
}

// Stats implements telemetry.StatsProvider
func (it *Interpreter) Stats() telemetry.InterpreterStats {
	return telemetry.InterpreterStats{
		Queued:               int(it.queued.Load()),
		CompletionCandidates: it.index.Load().Size(),
		Connected:            it.manager.Connected(),
	}
}

func (it *Interpreter) worker() {
	defer close(it.doneCh)

	for {
		select {
		case <-it.stopCh:
			it.drain()
			return
		default:
		}

		select {
		case j := <-it.jobs:
			it.queued.Add(-1)
			j.done <- it.runJob(j)
		case <-it.stopCh:
			it.drain()
			return
		}
	}
}

// runJob runs j with a context that is also cancelled by Close.
func (it *Interpreter) runJob(j *job) Result {
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	go func() {
		select {
		case <-it.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return it.run(ctx, j.text)
}

func (it *Interpreter) drain() {
	for {
		select {
		case j := <-it.jobs:
			it.queued.Add(-1)
			j.done <- notOpenResult()
		default:
			return
		}
	}
}

func (it *Interpreter) run(ctx context.Context, text string) Result {
	runID := uuid.NewString()
	start := time.Now()

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, ":") {
		return it.meta(ctx, runID, trimmed)
	}

	conn, err := it.manager.Acquire(ctx)
	if err != nil {
		return errorResult(runID, protocol.RenderConnectionFailure(err.Error()))
	}
	defer it.manager.Release(conn, false)

	it.ensureIndex(ctx, conn)

	out := it.exec.Execute(ctx, conn.Conn(), executor.Request{
		SQL:     text,
		MaxRows: it.manager.Config().MaxRows,
	})

	if _, ok := out.(*executor.UpdateCount); ok && it.opts.RefreshOnWrite {
		if err := it.index.Load().RefreshSchema(ctx, conn.Conn()); err != nil {
			log.Warn().Err(err).Str("interpreter", it.name).Msg("Failed to refresh completion schema")
		}
	}

	code, rendered := protocol.Render(out)
	log.Debug().
		Str("interpreter", it.name).
		Str("run_id", runID).
		Str("outcome", executor.Kind(out)).
		Uint64("conn_id", conn.ID()).
		Dur("elapsed", time.Since(start)).
		Msg("Paragraph executed")

	return Result{RunID: runID, Code: code, Text: rendered, Outcome: out}
}

// ensureIndex builds the completion index when none is loaded yet, and
// rebuilds it after the shared connection was reopened.
func (it *Interpreter) ensureIndex(ctx context.Context, conn *db.ManagedConnection) {
	if it.opts.CompletionOff {
		return
	}
	if it.index.Load() != nil {
		if it.manager.Style() != db.StyleShared || it.indexOpens.Load() == it.manager.Opens() {
			return
		}
		log.Info().Str("interpreter", it.name).Msg("Connection reopened, rebuilding completion index")
	}
	it.buildIndex(ctx, conn)
}

// buildIndex replaces the completion index; on failure the interpreter
// runs with completion unavailable.
func (it *Interpreter) buildIndex(ctx context.Context, conn *db.ManagedConnection) error {
	opens := it.manager.Opens()
	idx, err := completion.Build(ctx, conn.Conn(), it.manager.Dialect().Family, it.opts.Completion)
	if err != nil {
		log.Warn().Err(err).Str("interpreter", it.name).Msg("Completion unavailable")
		it.index.Store(nil)
		return err
	}
	it.indexOpens.Store(opens)
	it.index.Store(idx)
	return nil
}

func errorResult(runID, text string) Result {
	return Result{RunID: runID, Code: protocol.CodeError, Text: text}
}

func notOpenResult() Result {
	return errorResult(uuid.NewString(), protocol.RenderFailure(ErrNotOpen.Error()))
}
