package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	rqlitesql "github.com/rqlite/sql"
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/cesardraw2/zeppelin/db"
)

// DefaultCacheSize bounds the number of remembered classifications.
const DefaultCacheSize = 512

var returningPattern = regexp.MustCompile(`(?is)\b(RETURNING|OUTPUT\s+(INSERTED|DELETED))\b`)

var leadingKeywords = map[string]StatementCode{
	"SELECT":    StatementSelect,
	"VALUES":    StatementSelect,
	"TABLE":     StatementSelect,
	"SHOW":      StatementShow,
	"DESCRIBE":  StatementShow,
	"DESC":      StatementShow,
	"EXPLAIN":   StatementShow,
	"INSERT":    StatementInsert,
	"REPLACE":   StatementReplace,
	"UPDATE":    StatementUpdate,
	"DELETE":    StatementDelete,
	"MERGE":     StatementMerge,
	"TRUNCATE":  StatementDDL,
	"CREATE":    StatementDDL,
	"ALTER":     StatementDDL,
	"DROP":      StatementDDL,
	"RENAME":    StatementDDL,
	"COMMENT":   StatementDDL,
	"GRANT":     StatementDCL,
	"REVOKE":    StatementDCL,
	"DENY":      StatementDCL,
	"BEGIN":     StatementBegin,
	"START":     StatementBegin,
	"COMMIT":    StatementCommit,
	"END":       StatementCommit,
	"ROLLBACK":  StatementRollback,
	"SAVEPOINT": StatementSavepoint,
	"RELEASE":   StatementSavepoint,
	"SET":       StatementSet,
	"USE":       StatementUseDatabase,
	"VACUUM":    StatementAdmin,
	"REINDEX":   StatementAdmin,
	"ANALYZE":   StatementAdmin,
	"EXEC":      StatementCall,
	"EXECUTE":   StatementCall,
	"CALL":      StatementCall,
}

// Classifier decides, before execution, whether a statement produces rows
// or an update count. SQLite dialects parse with rqlite/sql, the rest with
// the vitess parser; text neither parser accepts falls back to its leading
// keyword.
type Classifier struct {
	family db.Family
	vitess *sqlparser.Parser
	cache  *lru.Cache[uint64, StatementCode]
}

// NewClassifier creates a classifier for the given dialect family.
func NewClassifier(family db.Family, cacheSize int) (*Classifier, error) {
	if cacheSize < 1 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[uint64, StatementCode](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create classification cache: %w", err)
	}

	c := &Classifier{family: family, cache: cache}
	if family != db.FamilySQLite {
		p, err := sqlparser.New(sqlparser.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to create sql parser: %w", err)
		}
		c.vitess = p
	}
	return c, nil
}

// Classify returns the statement code of sql.
func (c *Classifier) Classify(sql string) StatementCode {
	key := xxhash.Sum64String(sql)
	if code, ok := c.cache.Get(key); ok {
		return code
	}

	code := c.classify(sql)
	c.cache.Add(key, code)
	return code
}

func (c *Classifier) classify(sql string) StatementCode {
	code, ok := StatementUnknown, false
	if c.vitess != nil {
		code, ok = c.classifyVitess(sql)
	} else {
		code, ok = classifySQLite(sql)
	}
	if ok {
		return code
	}

	// DML with RETURNING / OUTPUT hands back rows
	code = ClassifyByKeyword(sql)
	if code.IsMutation() && returningPattern.MatchString(stripQuoted(sql)) {
		return StatementUnknown
	}
	return code
}

// classifySQLite classifies using the rqlite/sql AST
func classifySQLite(sql string) (StatementCode, bool) {
	parser := rqlitesql.NewParser(strings.NewReader(sql))
	astStmt, err := parser.ParseStatement()
	if err != nil {
		return StatementUnknown, false
	}

	switch s := astStmt.(type) {
	case *rqlitesql.InsertStatement:
		if s.ReturningClause != nil {
			return StatementUnknown, true
		}
		if s.InsertOrReplace.IsValid() || s.Replace.IsValid() {
			return StatementReplace, true
		}
		return StatementInsert, true
	case *rqlitesql.UpdateStatement:
		if s.ReturningClause != nil {
			return StatementUnknown, true
		}
		return StatementUpdate, true
	case *rqlitesql.DeleteStatement:
		if s.ReturningClause != nil {
			return StatementUnknown, true
		}
		return StatementDelete, true
	case *rqlitesql.SelectStatement:
		return StatementSelect, true
	case *rqlitesql.ExplainStatement:
		return StatementShow, true
	case *rqlitesql.CreateTableStatement, *rqlitesql.CreateIndexStatement,
		*rqlitesql.CreateViewStatement, *rqlitesql.CreateTriggerStatement,
		*rqlitesql.DropTableStatement, *rqlitesql.DropIndexStatement,
		*rqlitesql.DropViewStatement, *rqlitesql.DropTriggerStatement,
		*rqlitesql.AlterTableStatement:
		return StatementDDL, true
	case *rqlitesql.BeginStatement:
		return StatementBegin, true
	case *rqlitesql.CommitStatement:
		return StatementCommit, true
	case *rqlitesql.RollbackStatement:
		return StatementRollback, true
	case *rqlitesql.SavepointStatement, *rqlitesql.ReleaseStatement:
		return StatementSavepoint, true
	case *rqlitesql.AnalyzeStatement:
		return StatementAdmin, true
	}
	return StatementUnknown, false
}

// classifyVitess classifies using the vitess AST
func (c *Classifier) classifyVitess(sql string) (StatementCode, bool) {
	stmt, err := c.vitess.Parse(sql)
	if err != nil {
		return StatementUnknown, false
	}

	switch parsed := stmt.(type) {
	case *sqlparser.Insert:
		if parsed.Action == sqlparser.ReplaceAct {
			return StatementReplace, true
		}
		return StatementInsert, true
	case *sqlparser.Update:
		return StatementUpdate, true
	case *sqlparser.Delete:
		return StatementDelete, true
	case sqlparser.SelectStatement:
		return StatementSelect, true
	case *sqlparser.Show, *sqlparser.ExplainStmt, *sqlparser.ExplainTab:
		return StatementShow, true
	case *sqlparser.CreateDatabase, *sqlparser.DropDatabase, *sqlparser.AlterDatabase,
		*sqlparser.RenameTable, sqlparser.DDLStatement:
		return StatementDDL, true
	case *sqlparser.Use:
		return StatementUseDatabase, true
	case *sqlparser.Begin:
		return StatementBegin, true
	case *sqlparser.Commit:
		return StatementCommit, true
	case *sqlparser.Rollback:
		return StatementRollback, true
	case *sqlparser.Savepoint, *sqlparser.Release:
		return StatementSavepoint, true
	case *sqlparser.Set:
		return StatementSet, true
	case *sqlparser.CallProc:
		return StatementCall, true
	}
	return StatementUnknown, false
}

// ClassifyByKeyword classifies by the first keyword after leading comments
// and parentheses. WITH, PRAGMA and anything unrecognized are unknown.
func ClassifyByKeyword(sql string) StatementCode {
	word := strings.ToUpper(leadingWord(sql))
	if code, ok := leadingKeywords[word]; ok {
		return code
	}
	return StatementUnknown
}

func leadingWord(sql string) string {
	s := sql
	for {
		s = strings.TrimLeft(s, " \t\r\n(;")
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = s[idx+1:]
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return ""
			}
			s = s[idx+2:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				return s
			}
			return s[:end]
		}
	}
}

// stripQuoted blanks out string literals, quoted identifiers and comments
// so keyword matching only sees SQL tokens.
func stripQuoted(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	for i := 0; i < len(sql); {
		switch c := sql[i]; {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			j := i + 1
			for j < len(sql) {
				if sql[j] == closer {
					// doubled quote is an escaped quote
					if j+1 < len(sql) && sql[j+1] == closer && closer != ']' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			b.WriteByte(' ')
			i = j + 1
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			j := strings.IndexByte(sql[i:], '\n')
			if j < 0 {
				return b.String()
			}
			b.WriteByte(' ')
			i += j
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			j := strings.Index(sql[i+2:], "*/")
			if j < 0 {
				return b.String()
			}
			b.WriteByte(' ')
			i += j + 4
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
