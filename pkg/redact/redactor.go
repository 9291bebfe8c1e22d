// Package redact implements deterministic scrubbing of sensitive fields,
// headers, query parameters, and string patterns from captured requests
// before they are encrypted or persisted.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

// Placeholder is the replacement value for redacted fields.
const Placeholder = "[REDACTED]"

// Pattern is a regex applied to surviving string leaves of a body.
type Pattern struct {
	// Name identifies the pattern in configuration and logs.
	Name string

	// Regex is the pattern source. Invalid patterns are skipped at
	// construction time.
	Regex string

	// Replacement is substituted for every match. Empty means Placeholder.
	Replacement string
}

// Config enumerates what the redactor scrubs.
type Config struct {
	// HeaderNames are header names to blank, matched case-insensitively.
	HeaderNames []string

	// BodyFieldNames are map keys to blank wherever they appear in a
	// body, at any depth, matched case-insensitively. Matching keys are
	// replaced wholly and not descended into.
	BodyFieldNames []string

	// QueryParamNames are URL query parameter names to blank.
	QueryParamNames []string

	// RedactAuthorization always blanks the Authorization header,
	// regardless of HeaderNames.
	RedactAuthorization bool

	// Patterns are applied to string leaves that survive field redaction.
	Patterns []Pattern
}

// compiledPattern pairs a compiled regex with its replacement.
type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Redactor performs deterministic redaction. It is pure and side-effect
// free: inputs are never mutated, and well-formed input never causes an
// error or panic.
type Redactor struct {
	headerNames     map[string]bool
	bodyFieldNames  map[string]bool
	queryParamNames map[string]bool
	redactAuth      bool
	patterns        []compiledPattern
}

// New creates a Redactor from the given configuration. Patterns that do
// not compile are skipped.
func New(cfg Config) *Redactor {
	r := &Redactor{
		headerNames:     make(map[string]bool, len(cfg.HeaderNames)),
		bodyFieldNames:  make(map[string]bool, len(cfg.BodyFieldNames)),
		queryParamNames: make(map[string]bool, len(cfg.QueryParamNames)),
		redactAuth:      cfg.RedactAuthorization,
	}

	for _, name := range cfg.HeaderNames {
		r.headerNames[strings.ToLower(name)] = true
	}
	for _, name := range cfg.BodyFieldNames {
		r.bodyFieldNames[strings.ToLower(name)] = true
	}
	for _, name := range cfg.QueryParamNames {
		r.queryParamNames[strings.ToLower(name)] = true
	}

	for _, p := range cfg.Patterns {
		regex, err := regexp.Compile(p.Regex)
		if err != nil {
			continue
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = Placeholder
		}
		r.patterns = append(r.patterns, compiledPattern{
			name:        p.Name,
			regex:       regex,
			replacement: replacement,
		})
	}

	return r
}

// RedactHeaders returns a copy of headers with configured names blanked.
// Matching is case-insensitive on the header name.
func (r *Redactor) RedactHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}

	redacted := make(map[string]string, len(headers))
	for name, value := range headers {
		lower := strings.ToLower(name)
		if r.headerNames[lower] || (r.redactAuth && lower == "authorization") {
			redacted[name] = Placeholder
			continue
		}
		redacted[name] = value
	}
	return redacted
}

// RedactURL blanks configured query parameter values in rawURL.
// An unparseable URL is returned unchanged.
func (r *Redactor) RedactURL(rawURL string) string {
	if len(r.queryParamNames) == 0 {
		return rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := parsed.Query()
	changed := false
	for name, values := range query {
		if !r.queryParamNames[strings.ToLower(name)] {
			continue
		}
		for i := range values {
			values[i] = Placeholder
		}
		query[name] = values
		changed = true
	}
	if !changed {
		return rawURL
	}

	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// RedactBody recursively walks a JSON-shaped value (nil, string, number,
// bool, map, slice) and returns a redacted copy. Map keys matching a
// configured body field name are replaced wholly with Placeholder and not
// descended into. String leaves that survive get pattern substitution.
func (r *Redactor) RedactBody(body any) any {
	switch v := body.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			if r.bodyFieldNames[strings.ToLower(key)] {
				out[key] = Placeholder
				continue
			}
			out[key] = r.RedactBody(value)
		}
		return out

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = r.RedactBody(item)
		}
		return out

	case string:
		return r.applyPatterns(v)

	default:
		// Scalars (numbers, bools, nil) pass through unchanged.
		return v
	}
}

// applyPatterns runs every configured pattern over a string leaf.
func (r *Redactor) applyPatterns(value string) string {
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}
