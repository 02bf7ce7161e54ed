package executor

// Outcome is the result of one statement: exactly one of *RowSet,
// *UpdateCount or *Failure.
type Outcome interface {
	outcome()
}

// RowSet is a materialized result set. A nil cell is SQL NULL.
type RowSet struct {
	Columns []string
	Rows    [][]*string

	// Truncated is set when the statement had more rows than the cap.
	// The text protocol does not show it.
	Truncated bool
}

// UpdateCount is the number of affected rows, or -1 when the driver has no
// applicable count.
type UpdateCount struct {
	Count int64
}

// Failure carries the driver's error text.
type Failure struct {
	Message string
	Err     error
}

func (*RowSet) outcome()      {}
func (*UpdateCount) outcome() {}
func (*Failure) outcome()     {}

// Kind names the outcome variant for logs and metrics.
func Kind(o Outcome) string {
	switch o.(type) {
	case *RowSet:
		return "rows"
	case *UpdateCount:
		return "update"
	case *Failure:
		return "failure"
	}
	return "none"
}
