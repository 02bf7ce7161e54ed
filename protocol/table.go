package protocol

import (
	"fmt"
	"strings"

	"github.com/cesardraw2/zeppelin/executor"
)

// TableTag marks text the notebook renders as a table.
const TableTag = "%table "

const (
	failureHeader    = "Cannot execute statement."
	connectionHeader = "Cannot open connection."
)

// Code is the status of a rendered result.
type Code int

const (
	CodeSuccess Code = iota
	CodeError
)

func (c Code) String() string {
	if c == CodeError {
		return "ERROR"
	}
	return "SUCCESS"
}

// cellEscaper keeps the grid intact. It is lossy: a tab or line break
// inside a value becomes a single space and cannot be recovered.
var cellEscaper = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// RenderRowSet writes the tag, a tab-joined header line and one tab-joined
// line per row. Every line ends with a newline; NULL renders empty. The
// row set is rendered as given, truncation happens in the executor.
func RenderRowSet(rs *executor.RowSet) string {
	var b strings.Builder
	b.WriteString(TableTag)

	for i, col := range rs.Columns {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(cellEscaper.Replace(col))
	}
	b.WriteByte('\n')

	for _, row := range rs.Rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteByte('\t')
			}
			if cell != nil {
				b.WriteString(cellEscaper.Replace(*cell))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderUpdate returns the status line for an update count.
func RenderUpdate(count int64) string {
	if count < 0 {
		return "Command executed successfully."
	}
	return fmt.Sprintf("%d records affected.", count)
}

// RenderFailure returns the fixed failure line followed by the driver text.
func RenderFailure(msg string) string {
	return failureHeader + "\n" + msg + "\n"
}

// RenderConnectionFailure reports a connection that could not be opened.
func RenderConnectionFailure(msg string) string {
	return connectionHeader + "\n" + msg + "\n"
}

// Render converts an outcome to its protocol text.
func Render(out executor.Outcome) (Code, string) {
	switch o := out.(type) {
	case *executor.RowSet:
		return CodeSuccess, RenderRowSet(o)
	case *executor.UpdateCount:
		return CodeSuccess, RenderUpdate(o.Count)
	case *executor.Failure:
		return CodeError, RenderFailure(o.Message)
	default:
		return CodeError, RenderFailure(fmt.Sprintf("unexpected outcome %T", out))
	}
}
