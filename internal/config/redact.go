package config

import (
	"net/url"
	"regexp"
	"strings"
)

// passwordField matches the password of a key/value connection string, quoted
// or bare.
var passwordField = regexp.MustCompile(`(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S*)`)

// RedactDSN hides the password of a PostgreSQL connection string before it
// is logged or written to the compiled config snapshot. Both the URL form and
// the key/value form accepted by pgx are handled; anything else is returned
// unchanged.
func RedactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return passwordField.ReplaceAllString(dsn, "${1}xxxxx")
	}

	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}

	if _, ok := u.User.Password(); !ok {
		return dsn
	}

	return u.Redacted()
}
