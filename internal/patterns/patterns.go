/*
 * EmailHunter - Pattern Set
 */

// Package patterns compiles the domain parameterised email expressions used
// to recognise obfuscated renderings of local@domain in extracted text.
package patterns

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidPattern wraps compile failures of caller supplied expressions.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrEmptyDomain is returned when no target domain is given.
	ErrEmptyDomain = errors.New("empty domain")
)

// Style names one obfuscation of local@domain.
type Style string

const (
	StylePlain   Style = "plain"
	StyleBracket Style = "bracket_at"
	StyleSpelled Style = "spelled_at"
	StyleSpaced  Style = "spaced_at"
	StyleParen   Style = "paren_at"
	StyleCustom  Style = "custom"
)

const domainToken = "{domain}"

// localPart is the first capture group of every built-in template.
const localPart = `([A-Za-z0-9._%+-]+)`

var templates = []struct {
	style Style
	expr  string
}{
	{StylePlain, `\b` + localPart + `@` + domainToken + `\b`},
	{StyleBracket, localPart + ` \[at\] ` + domainToken},
	{StyleSpelled, localPart + ` at ` + domainToken},
	{StyleSpaced, localPart + `[ ]?@[ ]?` + domainToken},
	{StyleParen, localPart + `\(at\)` + domainToken},
}

// Pattern is one compiled obfuscation style.
type Pattern struct {
	Style Style
	re    *regexp.Regexp
}

func (p Pattern) String() string {
	return p.re.String()
}

// Set holds the ordered patterns for a single domain.
type Set struct {
	domain   string
	patterns []Pattern
}

// Compile builds the five obfuscation patterns for domain. The domain is
// quoted so that "." and friends match literally.
func Compile(domain string) (*Set, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, ErrEmptyDomain
	}

	quoted := regexp.QuoteMeta(domain)
	set := &Set{domain: domain}
	for _, t := range templates {
		re, err := regexp.Compile(strings.ReplaceAll(t.expr, domainToken, quoted))
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern: %w", t.style, err)
		}
		set.patterns = append(set.patterns, Pattern{Style: t.style, re: re})
	}
	return set, nil
}

// WithCustom appends a caller supplied broad extraction expression. A first
// capture group, if present, is taken as the local part and the match must
// mention @domain; otherwise the whole hit must be an address at domain.
func (s *Set) WithCustom(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("%w: email pattern %q: %v", ErrInvalidPattern, expr, err)
	}
	s.patterns = append(s.patterns, Pattern{Style: StyleCustom, re: re})
	return nil
}

// Domain returns the domain the set was compiled for.
func (s *Set) Domain() string {
	return s.domain
}

// Patterns returns the compiled patterns in match order.
func (s *Set) Patterns() []Pattern {
	out := make([]Pattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// FindAll runs every pattern over text and returns the distinct canonical
// emails (local@domain) in first-seen order.
func (s *Set) FindAll(text string) []string {
	seen := make(map[string]struct{})
	var emails []string

	for _, p := range s.patterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			email, ok := s.canonical(p.Style, m)
			if !ok {
				continue
			}
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
			emails = append(emails, email)
		}
	}
	return emails
}

// canonical turns a raw submatch into local@domain.
func (s *Set) canonical(style Style, m []string) (string, bool) {
	if style != StyleCustom {
		if len(m) < 2 || m[1] == "" {
			return "", false
		}
		return m[1] + "@" + s.domain, true
	}

	if len(m) > 1 && m[1] != "" && !strings.Contains(m[1], "@") {
		if !strings.Contains(m[0], "@"+s.domain) {
			return "", false
		}
		return m[1] + "@" + s.domain, true
	}
	local, domain, ok := SplitEmail(m[0])
	if !ok || domain != s.domain || local == "" {
		return "", false
	}
	return local + "@" + s.domain, true
}

// SplitEmail splits an address at its last "@".
func SplitEmail(email string) (local, domain string, ok bool) {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return "", "", false
	}
	return email[:i], email[i+1:], true
}

// UserPattern restricts matches by the shape of their local part. The whole
// local part must match, not a substring of it.
type UserPattern struct {
	expr string
	re   *regexp.Regexp
}

// CompileUser compiles expr with full-match semantics. An empty expression
// yields a nil pattern that matches nothing.
func CompileUser(expr string) (*UserPattern, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: user pattern %q: %v", ErrInvalidPattern, expr, err)
	}
	return &UserPattern{expr: expr, re: re}, nil
}

// MatchLocal reports whether local fully matches the pattern.
func (u *UserPattern) MatchLocal(local string) bool {
	if u == nil {
		return false
	}
	return u.re.MatchString(local)
}

// MatchEmail tests the local part of email.
func (u *UserPattern) MatchEmail(email string) bool {
	local, _, ok := SplitEmail(email)
	if !ok {
		return false
	}
	return u.MatchLocal(local)
}

func (u *UserPattern) String() string {
	if u == nil {
		return ""
	}
	return u.expr
}
