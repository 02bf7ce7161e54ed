package interpreter

import (
	"context"
	"fmt"
	"strings"

	"github.com/cesardraw2/zeppelin/db"
	"github.com/cesardraw2/zeppelin/executor"
	"github.com/cesardraw2/zeppelin/protocol"
	"github.com/cesardraw2/zeppelin/telemetry"
)

// MetaNotKnown is the failure text for unrecognized meta-commands.
const MetaNotKnown = "Meta-command not known."

const metaHelp = `Meta-commands:
  :info            connection style, driver and row limit
  :tables [glob]   tables known to completion, optionally filtered
  :refresh         reload the completion index from the database
  :help            this text`

// meta runs a meta-command. Meta-commands never execute SQL.
func (it *Interpreter) meta(ctx context.Context, runID, text string) Result {
	fields := strings.Fields(text)
	name := strings.ToLower(strings.TrimPrefix(fields[0], ":"))
	args := fields[1:]

	switch name {
	case "info":
		telemetry.MetaCommandsTotal.With(name).Inc()
		return Result{RunID: runID, Code: protocol.CodeSuccess, Text: it.info()}

	case "tables":
		telemetry.MetaCommandsTotal.With(name).Inc()
		pattern := ""
		if len(args) > 0 {
			pattern = args[0]
		}
		names, err := it.index.Load().Match(pattern)
		if err != nil {
			return errorResult(runID, protocol.RenderFailure(err.Error()))
		}
		rs := &executor.RowSet{Columns: []string{"table_name"}, Rows: make([][]*string, 0, len(names))}
		for i := range names {
			rs.Rows = append(rs.Rows, []*string{&names[i]})
		}
		return Result{RunID: runID, Code: protocol.CodeSuccess, Text: protocol.RenderRowSet(rs)}

	case "refresh":
		telemetry.MetaCommandsTotal.With(name).Inc()
		conn, err := it.manager.Acquire(ctx)
		if err != nil {
			return errorResult(runID, protocol.RenderConnectionFailure(err.Error()))
		}
		defer it.manager.Release(conn, false)

		if err := it.buildIndex(ctx, conn); err != nil {
			return errorResult(runID, protocol.RenderFailure(err.Error()))
		}
		return Result{
			RunID: runID,
			Code:  protocol.CodeSuccess,
			Text:  fmt.Sprintf("Completion index refreshed: %d candidates.", it.index.Load().Size()),
		}

	case "help":
		telemetry.MetaCommandsTotal.With(name).Inc()
		return Result{RunID: runID, Code: protocol.CodeSuccess, Text: metaHelp}
	}

	telemetry.MetaCommandsTotal.With("unknown").Inc()
	return errorResult(runID, MetaNotKnown)
}

func (it *Interpreter) info() string {
	c := it.manager.Config()
	var b strings.Builder
	fmt.Fprintf(&b, "Using notebook connection: %t\n", c.Style == db.StyleShared)
	fmt.Fprintf(&b, "Connection style: %s\n", c.Style)
	fmt.Fprintf(&b, "Driver: %s\n", c.Driver)
	fmt.Fprintf(&b, "Max rows: %d", c.MaxRows)
	return b.String()
}
