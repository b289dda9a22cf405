package query

import (
	"regexp"
	"strings"

	"schemap/internal/errs"
)

// forbiddenRe matches statement keywords that mutate data or schema. The
// word-boundary match is deliberately strict: a SELECT mentioning a column
// named "created" passes, one smuggling "; DROP TABLE" does not.
var forbiddenRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|MERGE|EXEC|EXECUTE|CALL|SET|COPY|VACUUM|INTO|OUTFILE)\b`)

// commentRe strips line and block comments before validation so keywords
// cannot hide inside them, and comments cannot hide keywords from us.
var commentRe = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?\*/`)

// EnsureReadOnly rejects any statement that is not a single plain SELECT.
func EnsureReadOnly(sql string) error {
	stripped := strings.TrimSpace(commentRe.ReplaceAllString(sql, " "))
	if stripped == "" {
		return errs.New(errs.ErrKindInvalidInput, "empty statement")
	}

	upper := strings.ToUpper(stripped)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return errs.New(errs.ErrKindInvalidInput, "only SELECT statements are allowed")
	}

	// A trailing semicolon is harmless; an interior one chains statements.
	if i := strings.IndexByte(stripped, ';'); i >= 0 && i != len(stripped)-1 {
		return errs.New(errs.ErrKindInvalidInput, "multiple statements are not allowed")
	}

	if m := forbiddenRe.FindString(stripped); m != "" {
		return errs.New(errs.ErrKindInvalidInput, "statement contains forbidden keyword: "+strings.ToUpper(m))
	}
	return nil
}
