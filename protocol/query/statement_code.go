package query

// StatementCode categorizes SQL statements for execution routing.
type StatementCode int

const (
	StatementUnknown StatementCode = iota // run as a query, decide by result columns
	StatementSelect
	StatementShow // SHOW, DESCRIBE, EXPLAIN
	StatementInsert
	StatementReplace
	StatementUpdate
	StatementDelete
	StatementMerge
	StatementDDL
	StatementDCL
	StatementBegin
	StatementCommit
	StatementRollback
	StatementSavepoint
	StatementSet
	StatementUseDatabase
	StatementAdmin
	StatementCall // stored procedures may or may not return rows
)

var statementNames = map[StatementCode]string{
	StatementUnknown:     "unknown",
	StatementSelect:      "select",
	StatementShow:        "show",
	StatementInsert:      "insert",
	StatementReplace:     "replace",
	StatementUpdate:      "update",
	StatementDelete:      "delete",
	StatementMerge:       "merge",
	StatementDDL:         "ddl",
	StatementDCL:         "dcl",
	StatementBegin:       "begin",
	StatementCommit:      "commit",
	StatementRollback:    "rollback",
	StatementSavepoint:   "savepoint",
	StatementSet:         "set",
	StatementUseDatabase: "use",
	StatementAdmin:       "admin",
	StatementCall:        "call",
}

func (t StatementCode) String() string {
	if name, ok := statementNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsRowProducing returns true if the statement always yields a result set.
func (t StatementCode) IsRowProducing() bool {
	return t == StatementSelect || t == StatementShow
}

// IsMutation returns true if the statement type can change data or schema.
func (t StatementCode) IsMutation() bool {
	switch t {
	case StatementInsert, StatementReplace, StatementUpdate, StatementDelete,
		StatementMerge, StatementDDL, StatementDCL, StatementAdmin:
		return true
	}
	return false
}

// IsExec returns true if the statement runs without a result set and
// reports an update count.
func (t StatementCode) IsExec() bool {
	switch t {
	case StatementUnknown, StatementCall, StatementSelect, StatementShow:
		return false
	}
	return true
}

// IsDML returns true if the driver's affected-row count is meaningful for
// the statement.
func (t StatementCode) IsDML() bool {
	switch t {
	case StatementInsert, StatementReplace, StatementUpdate, StatementDelete, StatementMerge:
		return true
	}
	return false
}
