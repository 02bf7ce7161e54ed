package db

import (
	"database/sql"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattn/go-sqlite3"
)

// SQLiteDriverName is the notebook SQLite driver: mattn/go-sqlite3 with
// REGEXP and a case-insensitive IREGEXP so paragraphs can filter text
// columns with `col REGEXP 'pattern'` or `iregexp('pattern', col)`.
const SQLiteDriverName = "sqlite3_notebook"

// patternCacheSize bounds compiled patterns; both functions run once per row.
const patternCacheSize = 128

var patterns *lru.Cache[string, *regexp.Regexp]

func init() {
	var err error
	patterns, err = lru.New[string, *regexp.Regexp](patternCacheSize)
	if err != nil {
		panic(err)
	}

	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("regexp", regexpMatch, true); err != nil {
				return err
			}
			return conn.RegisterFunc("iregexp", regexpMatchFold, true)
		},
	})
}

func regexpMatch(pattern, text string) (bool, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}

func regexpMatchFold(pattern, text string) (bool, error) {
	return regexpMatch("(?i)"+pattern, text)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Add(pattern, re)
	return re, nil
}
