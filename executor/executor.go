package executor

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cesardraw2/zeppelin/protocol/query"
	"github.com/cesardraw2/zeppelin/telemetry"
)

// DefaultMaxRows applies when a request carries no row cap.
const DefaultMaxRows = 1000

// Querier is the part of *sql.Conn the executor needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Request is one statement submission.
type Request struct {
	SQL     string
	MaxRows int
}

// Executor runs one statement at a time and exposes a cancel handle for
// the statement in flight.
type Executor struct {
	classifier *query.Classifier
	handle     CancelHandle
}

// New creates an executor. A nil classifier routes by leading keyword only.
func New(classifier *query.Classifier) *Executor {
	return &Executor{classifier: classifier}
}

// Handle returns the executor's cancel capability.
func (e *Executor) Handle() *CancelHandle {
	return &e.handle
}

// Cancel stops the statement in flight, if any.
func (e *Executor) Cancel() bool {
	cancelled := e.handle.Cancel()
	if cancelled {
		telemetry.CancelsTotal.With("cancelled").Inc()
	} else {
		telemetry.CancelsTotal.With("idle").Inc()
	}
	return cancelled
}

// InFlight reports whether a statement is executing.
func (e *Executor) InFlight() bool {
	return e.handle.InFlight()
}

// Classify returns how req.SQL will be routed.
func (e *Executor) Classify(sql string) query.StatementCode {
	if e.classifier == nil {
		return query.ClassifyByKeyword(sql)
	}
	return e.classifier.Classify(sql)
}

// Execute runs req on conn. Row-producing statements are materialized up
// to the row cap; everything else reports an update count. Driver errors
// come back as *Failure, never as partial output. The statement context is
// cancelled and the cursor closed on every path.
func (e *Executor) Execute(ctx context.Context, conn Querier, req Request) Outcome {
	ctx, cancel := context.WithCancel(ctx)
	e.handle.arm(cancel)
	defer func() {
		e.handle.disarm()
		cancel()
	}()

	start := time.Now()
	code := e.Classify(req.SQL)

	var out Outcome
	if code.IsExec() {
		out = e.exec(ctx, conn, req, code)
	} else {
		out = e.query(ctx, conn, req, code)
	}

	kind := Kind(out)
	telemetry.StatementsTotal.With(kind).Inc()
	telemetry.StatementDurationSeconds.With(kind).Observe(time.Since(start).Seconds())
	log.Debug().
		Str("statement", code.String()).
		Str("outcome", kind).
		Dur("elapsed", time.Since(start)).
		Msg("Statement executed")
	return out
}

func (e *Executor) query(ctx context.Context, conn Querier, req Request, code query.StatementCode) Outcome {
	rows, err := conn.QueryContext(ctx, req.SQL)
	if err != nil {
		return failure(req, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return failure(req, err)
	}

	// Statements of unknown shape that return no columns ran as commands
	if len(cols) == 0 && !code.IsRowProducing() {
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			return failure(req, err)
		}
		return &UpdateCount{Count: -1}
	}

	maxRows := req.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	rs := &RowSet{Columns: cols, Rows: make([][]*string, 0)}
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if len(rs.Rows) >= maxRows {
			rs.Truncated = true
			break
		}
		if err := rows.Scan(dest...); err != nil {
			return failure(req, err)
		}

		row := make([]*string, len(cols))
		for i, v := range values {
			if v.Valid {
				s := v.String
				row[i] = &s
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return failure(req, err)
	}

	telemetry.RowsReturned.Observe(float64(len(rs.Rows)))
	if rs.Truncated {
		telemetry.RowSetsTruncatedTotal.Inc()
	}
	return rs
}

func (e *Executor) exec(ctx context.Context, conn Querier, req Request, code query.StatementCode) Outcome {
	res, err := conn.ExecContext(ctx, req.SQL)
	if err != nil {
		return failure(req, err)
	}

	switch {
	case code.IsDML():
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		telemetry.RowsAffected.Observe(float64(max(n, 0)))
		return &UpdateCount{Count: n}
	case code == query.StatementDDL || code == query.StatementDCL:
		return &UpdateCount{Count: 0}
	default:
		return &UpdateCount{Count: -1}
	}
}

func failure(req Request, err error) *Failure {
	execErr := &ExecutionError{SQL: req.SQL, Err: err}
	log.Debug().Err(err).Bool("cancelled", execErr.Cancelled()).Msg("Statement failed")
	return &Failure{Message: err.Error(), Err: execErr}
}
