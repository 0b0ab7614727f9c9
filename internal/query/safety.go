package query

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnsafeSQL is returned when a generated statement fails the allow-list
var ErrUnsafeSQL = errors.New("unsafe sql generated")

// forbiddenKeywords are matched as substrings, so a literal containing one of them is
// rejected too
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "ATTACH", "DETACH",
	"PRAGMA", "VACUUM", "REINDEX", "REPLACE", "TRUNCATE",
}

// schemaQualifierRe catches references that would bypass the per-user table shadows,
// including quoted schema names such as "main". or [temp].
var schemaQualifierRe = regexp.MustCompile(`(?i)(?:\b(?:main|temp)\b|"\s*(?:main|temp)\s*"|\[\s*(?:main|temp)\s*\]|` +
	"`\\s*(?:main|temp)\\s*`" + `|'\s*(?:main|temp)\s*')\s*\.|\bsqlite_`)

// IsSafeSelect reports whether sql is a single SELECT statement free of mutating keywords
func IsSafeSelect(sql string) bool {
	s := strings.ToUpper(strings.TrimSpace(sql))
	if !strings.HasPrefix(s, "SELECT") {
		return false
	}
	for _, kw := range forbiddenKeywords {
		if strings.Contains(s, kw) {
			return false
		}
	}
	// A single trailing semicolon is tolerated, any other one chains statements
	if strings.Contains(strings.TrimSuffix(s, ";"), ";") {
		return false
	}
	return !schemaQualifierRe.MatchString(stripComments(s))
}
