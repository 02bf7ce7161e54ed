package completion

import (
	"strings"

	"github.com/cesardraw2/zeppelin/db"
)

// sqlKeywords are the reserved words shared by every dialect.
const sqlKeywords = `
ADD ALL ALTER AND ANY AS ASC AUTHORIZATION BEGIN BETWEEN BY CASCADE CASE CAST
CHECK COALESCE COLLATE COLUMN COMMIT CONSTRAINT CREATE CROSS CURRENT_DATE
CURRENT_TIME CURRENT_TIMESTAMP CURRENT_USER DATABASE DEFAULT DELETE DESC
DISTINCT DROP ELSE END ESCAPE EXCEPT EXISTS EXPLAIN FALSE FETCH FOREIGN FROM
FULL GRANT GROUP HAVING IN INDEX INNER INSERT INTERSECT INTO IS JOIN KEY LEFT
LIKE LIMIT NATURAL NOT NULL NULLIF OFFSET ON OR ORDER OUTER OVER PARTITION
PRIMARY REFERENCES REVOKE RIGHT ROLLBACK ROW ROWS SAVEPOINT SCHEMA SELECT SET
SOME TABLE THEN TO TRANSACTION TRIGGER TRUE TRUNCATE UNION UNIQUE UPDATE USER
USING VALUES VIEW WHEN WHERE WITH
AVG COUNT MAX MIN SUM
`

var dialectKeywords = map[db.Family]string{
	db.FamilySQLServer: `
BACKUP BREAK BROWSE BULK CHECKPOINT CLUSTERED CONTAINS CONTINUE DBCC DEALLOCATE
DECLARE DENY DISK DUMMY ERRLVL EXEC EXECUTE FILLFACTOR FREETEXT GOTO HOLDLOCK
IDENTITY IDENTITY_INSERT IF KILL LINENO MERGE NOCHECK NOCOUNT NOLOCK NONCLUSTERED
OFF OPENQUERY OPENROWSET OUTPUT PERCENT PIVOT PRINT PROC PROCEDURE RAISERROR
READTEXT RECONFIGURE RESTORE RETURN REVERT ROWCOUNT RULE SETUSER SHUTDOWN
STATISTICS TABLESAMPLE TEXTSIZE TOP TRAN TRY_CONVERT UNPIVOT UPDATETEXT WAITFOR
WHILE WRITETEXT GETDATE ISNULL NEWID CONVERT
`,
	db.FamilyMySQL: `
AUTO_INCREMENT CHANGE DATABASES DELAYED DESCRIBE DUPLICATE ENGINE FORCE
HIGH_PRIORITY IGNORE INTERVAL KILL LOCK LOW_PRIORITY MODIFY OPTIMIZE PROCESSLIST
REGEXP RENAME REPLACE SHOW SQL_CALC_FOUND_ROWS STRAIGHT_JOIN TABLES UNLOCK
UNSIGNED USE ZEROFILL IFNULL NOW CONCAT GROUP_CONCAT
`,
	db.FamilyPostgres: `
ANALYSE ANALYZE ARRAY ASYMMETRIC BOTH CONCURRENTLY DEFERRABLE DO FREEZE ILIKE
INITIALLY ISNULL LATERAL LEADING LOCALTIME LOCALTIMESTAMP NOTNULL ONLY PLACING
RETURNING SIMILAR SYMMETRIC TABLESAMPLE TRAILING VARIADIC VERBOSE WINDOW
COPY LISTEN NOTIFY VACUUM STRING_AGG NOW
`,
	db.FamilySQLite: `
ABORT ATTACH AUTOINCREMENT CONFLICT DETACH EACH FAIL GLOB IGNORE INDEXED INSTEAD
ISNULL NOTNULL PLAN PRAGMA QUERY RAISE RECURSIVE REGEXP REINDEX RELEASE RENAME
REPLACE RETURNING TEMP TEMPORARY VACUUM VIRTUAL WITHOUT IFNULL
`,
}

// keywordCatalogQueries return one column of reserved words on dialects
// that expose their grammar's word list.
var keywordCatalogQueries = map[db.Family]string{
	db.FamilyMySQL:    "SELECT WORD FROM information_schema.KEYWORDS WHERE RESERVED = 1",
	db.FamilyPostgres: "SELECT upper(word) FROM pg_get_keywords() WHERE catcode <> 'U'",
}

// StaticKeywords returns the built-in keyword list for family.
func StaticKeywords(family db.Family) []string {
	words := strings.Fields(sqlKeywords)
	words = append(words, strings.Fields(dialectKeywords[family])...)
	return words
}
