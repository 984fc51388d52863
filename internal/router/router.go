// Package router implements the query guardrail that screens user queries
// before they reach the retrieval and generation pipeline.
//
// The router runs cheap local checks only: emptiness, length, and a
// data-driven table of disallowed patterns grouped by category. It never
// calls out to a model or the network, and a rejection is a normal
// control-flow outcome, not an error.
//
// Note: no filter is perfect. This catches common patterns but sophisticated
// attacks may bypass detection. Defense in depth (system prompt hardening,
// output filtering) is recommended.
package router

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category classifies why a query was rejected.
type Category string

const (
	// CategoryNone is set on allowed decisions.
	CategoryNone Category = ""

	// CategoryEmptyQuery flags empty or whitespace-only queries.
	CategoryEmptyQuery Category = "empty query"

	// CategoryTooLong flags queries exceeding the configured maximum length.
	CategoryTooLong Category = "query too long"

	// CategoryInstructionOverride flags prompt-injection phrases that try to
	// replace or discard prior instructions.
	CategoryInstructionOverride Category = "disallowed instructions"

	// CategoryDestructiveCommand flags shell or SQL fragments that destroy data.
	CategoryDestructiveCommand Category = "destructive command"

	// CategoryCredentialHarvest flags attempts to extract secrets.
	CategoryCredentialHarvest Category = "credential harvesting"

	// CategoryMalware flags requests referencing malicious software.
	CategoryMalware Category = "malware"
)

// Decision is the immutable outcome of inspecting one query.
type Decision struct {
	Allowed  bool
	Category Category
	Reason   string
}

// Rule pairs a compiled pattern with the category it detects.
// Rules are data, not code: extending the guardrail means appending a Rule,
// and each category can be unit-tested in isolation.
type Rule struct {
	Pattern  *regexp.Regexp
	Category Category
}

// DefaultMaxQueryLength bounds query size. Overly long queries are often
// associated with prompt-injection attempts that stuff instructions into
// the context window.
const DefaultMaxQueryLength = 2048

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	specs := []struct {
		pattern  string
		category Category
	}{
		{`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?|rules?)`, CategoryInstructionOverride},
		{`(?i)disregard\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?)`, CategoryInstructionOverride},
		{`(?i)forget\s+(all\s+)?(previous|above|prior)\s+(instructions?|context)`, CategoryInstructionOverride},
		{`(?i)system\s+prompt`, CategoryInstructionOverride},

		{`(?i)drop\s+table`, CategoryDestructiveCommand},
		{`(?i)truncate\s+table`, CategoryDestructiveCommand},
		{`(?i)delete\s+from`, CategoryDestructiveCommand},
		{`(?i)rm\s+-rf`, CategoryDestructiveCommand},
		{`(?i)format\s+c:\\`, CategoryDestructiveCommand},
		{`(?i)powershell`, CategoryDestructiveCommand},

		{`(?i)passwords?\b`, CategoryCredentialHarvest},
		{`(?i)api\s+keys?\b`, CategoryCredentialHarvest},

		{`(?i)malware`, CategoryMalware},
		{`(?i)backdoor`, CategoryMalware},
		{`(?i)\bvirus\b`, CategoryMalware},
	}

	rules := make([]Rule, 0, len(specs))
	for _, s := range specs {
		rules = append(rules, Rule{
			Pattern:  regexp.MustCompile(s.pattern),
			Category: s.category,
		})
	}
	return rules
}

// Router screens queries against a rule table. The zero value is not usable;
// construct with New. A nil *Router inspects everything as allowed, which is
// how the pipeline represents a disabled guardrail.
type Router struct {
	rules     []Rule
	maxLength int
	enabled   bool
}

// Option configures a Router.
type Option func(*Router)

// WithRules replaces the default rule table.
func WithRules(rules []Rule) Option {
	return func(r *Router) {
		r.rules = rules
	}
}

// WithMaxLength overrides DefaultMaxQueryLength. Non-positive values keep
// the default.
func WithMaxLength(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxLength = n
		}
	}
}

// WithEnabled toggles the guardrail. A disabled router short-circuits every
// query to an allowed decision without evaluating any check.
func WithEnabled(enabled bool) Option {
	return func(r *Router) {
		r.enabled = enabled
	}
}

// New creates a Router with the default rule table and length limit.
func New(opts ...Option) *Router {
	r := &Router{
		rules:     DefaultRules(),
		maxLength: DefaultMaxQueryLength,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Inspect evaluates a query and returns the guardrail decision.
// Checks run in order: emptiness, length, pattern table. The first failing
// check wins. Inspect has no side effects; the caller decides what to print
// and whether to halt.
func (r *Router) Inspect(query string) Decision {
	if r == nil || !r.enabled {
		return Decision{Allowed: true, Reason: "query router disabled"}
	}

	cleaned := strings.TrimSpace(query)
	if cleaned == "" {
		return Decision{
			Allowed:  false,
			Category: CategoryEmptyQuery,
			Reason:   "query is empty",
		}
	}

	if utf8.RuneCountInString(cleaned) > r.maxLength {
		return Decision{
			Allowed:  false,
			Category: CategoryTooLong,
			Reason:   fmt.Sprintf("query exceeds maximum length of %d characters; please shorten your question and try again", r.maxLength),
		}
	}

	normalized := normalizeQuery(cleaned)
	for _, rule := range r.rules {
		if rule.Pattern.MatchString(normalized) {
			return Decision{
				Allowed:  false,
				Category: rule.Category,
				Reason:   fmt.Sprintf("query rejected: detected potentially malicious intent (%s)", rule.Category),
			}
		}
	}

	return Decision{Allowed: true, Reason: "query accepted"}
}

// normalizeQuery prepares a query for pattern matching:
//   - strips zero-width and combining characters that evade detection
//   - maps all whitespace runs to a single space
func normalizeQuery(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
