package query

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Casers keep state and cannot be shared between goroutines.
func toUpper(s string) string { return cases.Upper(language.Und).String(s) }
func toLower(s string) string { return cases.Lower(language.Und).String(s) }

var (
	// Quoted literals, escaped forms first. Matching is non-greedy so a
	// literal ends at the first closing quote.
	literalRes = []*regexp.Regexp{
		regexp.MustCompile(`\\'.*?\\'`),
		regexp.MustCompile(`\\".*?\\"`),
		regexp.MustCompile(`'.*?'`),
		regexp.MustCompile(`".*?"`),
	}
	sleepRe     = regexp.MustCompile(`(?i)sleep\s*\(\s*\d+\s*\)`)
	benchmarkRe = regexp.MustCompile(`(?i)benchmark\s*\(\s*.+,.+\s*\)`)
)

// ValidClause reports whether a raw SQL fragment passes the injection
// guard. Quoted literals are masked out, then the remaining text must not
// contain a statement separator, the UNION keyword or a timing function.
//
// The guard is a denylist heuristic, not a SQL parser.
func ValidClause(clause string) bool {
	out := strings.TrimRight(clause, " ;")
	for _, re := range literalRes {
		out = re.ReplaceAllLiteralString(out, "{mask}")
	}
	if sleepRe.MatchString(out) || benchmarkRe.MatchString(out) {
		return false
	}
	return !strings.Contains(out, ";") && !strings.Contains(toLower(out), "union")
}

// operators that make a string a complete predicate.
var operators = []string{
	"=", "!=", "<", "<=", ">", ">=", "<=>",
	" LIKE ", " IS NULL", " IS NOT NULL", " BETWEEN ",
	" IN ", " IN(", " NOT(", " NOT (", " NOT IN ", " NOT IN(",
	" EXISTS (", " EXISTS(", " NOT EXISTS (", " NOT EXISTS(",
	" COALESCE(", " GREATEST(", " INTERVAL(", " LEAST(",
	"MATCH(", "MATCH (", "MAX(", "MIN(", "AVG(",
}

// conditional reports whether s is a raw predicate, that is, it contains
// one of the known operator tokens. Strings failing the injection guard
// return an InjectionError.
func conditional(s string) (bool, error) {
	if !ValidClause(s) {
		return false, injection(s)
	}
	u := toUpper(s)
	for _, op := range operators {
		if strings.Contains(u, op) {
			return true, nil
		}
	}
	return false, nil
}

// trimClause drops the trailing separators tolerated by ValidClause.
func trimClause(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " ;"))
}
