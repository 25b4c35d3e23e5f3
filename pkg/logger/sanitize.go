package logger

import (
	"net/url"
	"strings"
)

// sensitiveParams are query keys whose presence redacts the whole query string
var sensitiveParams = map[string]struct{}{
	"pin":      {},
	"new_pin":  {},
	"code":     {},
	"token":    {},
	"secret":   {},
	"email":    {},
	"recovery": {},
}

// SanitizedEmail masks an email address for logging, keeping the first
// character of the mailbox and the top-level domain ("p*****@*******.com").
func SanitizedEmail(email string) string {
	mailbox, domain, ok := strings.Cut(email, "@")
	if !ok || mailbox == "" || domain == "" {
		return "[invalid-email]"
	}

	masked := mailbox[:1] + strings.Repeat("*", len(mailbox)-1)

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return masked + "@" + strings.Join(labels, ".")
}

// SanitizeQueryString reports whether rawQuery names a sensitive parameter.
// Unparseable queries are treated as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for key := range values {
		if _, ok := sensitiveParams[strings.ToLower(key)]; ok {
			return true
		}
	}
	return false
}
