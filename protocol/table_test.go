package protocol

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cesardraw2/zeppelin/executor"
)

func str(s string) *string { return &s }

func TestRenderRowSet(t *testing.T) {
	rs := &executor.RowSet{
		Columns: []string{"id", "name"},
		Rows: [][]*string{
			{str("1"), str("alice")},
			{str("2"), nil},
		},
	}

	require.Equal(t, "%table id\tname\n1\talice\n2\t\n", RenderRowSet(rs))
}

func TestRenderRowSet_EscapesCells(t *testing.T) {
	rs := &executor.RowSet{
		Columns: []string{"col\tone", "two"},
		Rows: [][]*string{
			{str("a\tb"), str("line1\nline2")},
			{str("cr\r\nlf"), str("plain")},
		},
	}

	got := RenderRowSet(rs)
	require.Equal(t, "%table col one\ttwo\na b\tline1 line2\ncr  lf\tplain\n", got)
}

func TestRenderRowSet_GridShape(t *testing.T) {
	nasty := []string{"", "x", "\t", "\n", "a\tb\nc", "\r\n\t", "ünïcode", "tab\tat\tend\t"}

	for cols := 1; cols <= 4; cols++ {
		for rows := 0; rows <= 5; rows++ {
			t.Run(fmt.Sprintf("%dx%d", cols, rows), func(t *testing.T) {
				rs := &executor.RowSet{}
				for c := 0; c < cols; c++ {
					rs.Columns = append(rs.Columns, nasty[c%len(nasty)]+"h")
				}
				for r := 0; r < rows; r++ {
					row := make([]*string, cols)
					for c := 0; c < cols; c++ {
						if (r+c)%5 != 0 {
							row[c] = str(nasty[(r*cols+c)%len(nasty)])
						}
					}
					rs.Rows = append(rs.Rows, row)
				}

				text := RenderRowSet(rs)
				require.True(t, strings.HasPrefix(text, TableTag))
				require.True(t, strings.HasSuffix(text, "\n"))

				lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(text, TableTag), "\n"), "\n")
				require.Len(t, lines, rows+1)
				for _, line := range lines {
					require.Len(t, strings.Split(line, "\t"), cols)
					require.NotContains(t, line, "\r")
				}
			})
		}
	}
}

func TestRenderRowSet_NoTruncation(t *testing.T) {
	rs := &executor.RowSet{Columns: []string{"n"}, Truncated: true}
	for i := 0; i < 5000; i++ {
		rs.Rows = append(rs.Rows, []*string{str(fmt.Sprint(i))})
	}

	text := RenderRowSet(rs)
	require.Equal(t, 5001, strings.Count(text, "\n"))
	require.NotContains(t, text, "more rows")
}

func TestRenderUpdate(t *testing.T) {
	require.Equal(t, "0 records affected.", RenderUpdate(0))
	require.Equal(t, "3 records affected.", RenderUpdate(3))
	require.Equal(t, "Command executed successfully.", RenderUpdate(-1))
}

func TestRenderFailure(t *testing.T) {
	require.Equal(t, "Cannot execute statement.\nno such table: t\n", RenderFailure("no such table: t"))
}

func TestRenderConnectionFailure(t *testing.T) {
	require.Equal(t, "Cannot open connection.\nlogin failed\n", RenderConnectionFailure("login failed"))
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		out  executor.Outcome
		code Code
		text string
	}{
		{"rows", &executor.RowSet{Columns: []string{"a"}, Rows: [][]*string{{str("1")}}}, CodeSuccess, "%table a\n1\n"},
		{"update", &executor.UpdateCount{Count: 2}, CodeSuccess, "2 records affected."},
		{"no count", &executor.UpdateCount{Count: -1}, CodeSuccess, "Command executed successfully."},
		{"failure", &executor.Failure{Message: "boom"}, CodeError, "Cannot execute statement.\nboom\n"},
		{"nil", nil, CodeError, "Cannot execute statement.\nunexpected outcome <nil>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, text := Render(tt.out)
			require.Equal(t, tt.code, code)
			require.Equal(t, tt.text, text)
		})
	}

	require.Equal(t, "SUCCESS", CodeSuccess.String())
	require.Equal(t, "ERROR", CodeError.String())
}
