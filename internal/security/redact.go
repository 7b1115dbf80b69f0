// Package security masks credentials before they reach logs or error
// messages.
package security

import (
	"regexp"
	"strings"
)

// sensitiveFields contains field names whose values are always masked.
var sensitiveFields = map[string]bool{
	"api_key":      true,
	"apikey":       true,
	"secret":       true,
	"password":     true,
	"token":        true,
	"access_token": true,
	"auth_token":   true,
	"bearer":       true,
}

// assignmentPattern matches key=value and key: value pairs, including URL
// query parameters such as ?token=abc.
var assignmentPattern = regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|access[_-]?token|auth[_-]?token|token|bearer)(\s*[=:]\s*["']?|\s+)([^\s"'&]+)`)

// keyPatterns match bare credentials with a recognizable prefix.
var keyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`), // OpenAI keys
}

// MaskCredential masks a credential, keeping a short prefix and suffix.
func MaskCredential(value string) string {
	switch {
	case len(value) == 0:
		return ""
	case len(value) <= 4:
		return strings.Repeat("*", len(value))
	case len(value) <= 8:
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// Redact masks every credential found in s.
func Redact(s string) string {
	s = assignmentPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := assignmentPattern.FindStringSubmatch(match)
		return m[1] + m[2] + MaskCredential(m[3])
	})
	for _, p := range keyPatterns {
		s = p.ReplaceAllStringFunc(s, MaskCredential)
	}
	return s
}

// RedactFields returns a copy of data with sensitive values masked. Keys
// may be dotted paths such as "kite.api_key"; the last segment decides.
func RedactFields(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		if isSensitiveField(k) {
			out[k] = MaskCredential(v)
		} else {
			out[k] = Redact(v)
		}
	}
	return out
}

func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	return sensitiveFields[key]
}

// RedactError returns err with credentials masked from its message. The
// wrapped error stays reachable through errors.Is and errors.As.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if redacted := Redact(msg); redacted != msg {
		return &redactedError{msg: redacted, err: err}
	}
	return err
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }
