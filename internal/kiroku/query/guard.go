// Package query executes model-proposed SQL under a strict read-only
// allow-list and shapes the result with visualization metadata.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotSelect is returned when the statement does not begin with SELECT.
var ErrNotSelect = errors.New("query: statement must begin with SELECT")

// forbiddenKeyword matches any mutating or DDL keyword as a whole word,
// case-insensitively.  Whole-word matching keeps column names like
// "created_at" or "update_count" from tripping the guard while still
// catching stacked statements ("SELECT ...; DROP TABLE ...").  Better a rare
// false rejection than one mutating statement reaching the store.
var forbiddenKeyword = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|GRANT|REVOKE)\b`)

// selectPrefix requires the statement to open with the whole word SELECT,
// tolerating leading whitespace.
var selectPrefix = regexp.MustCompile(`(?i)^\s*SELECT\b`)

// Guard checks a model-proposed statement against the read-only allow-list:
// it must begin with SELECT (leading whitespace tolerated) and must not
// contain any forbidden keyword anywhere. A violating statement never
// reaches the database.
func Guard(stmt string) error {
	if !selectPrefix.MatchString(stmt) {
		return ErrNotSelect
	}
	if m := forbiddenKeyword.FindString(stmt); m != "" {
		return fmt.Errorf("query: statement contains forbidden keyword %q", strings.ToUpper(m))
	}
	return nil
}
