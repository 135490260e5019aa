// Package ignore resolves per-directory .gitignore scopes.
//
// A scope holds the patterns of every ancestor .gitignore followed by the
// directory's own patterns. Each pattern remembers the workspace-relative
// directory that declared it and only applies beneath that directory, so a
// single matcher can evaluate full workspace-relative paths. Later patterns
// override earlier ones and a leading "!" re-includes a path.
package ignore

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/temirov/contextkit/internal/utils"
)

const (
	commentPrefix  = "#"
	negationPrefix = "!"
	anchorPrefix   = "/"
	directorySlash = "/"
)

// Pattern is one .gitignore rule together with the directory that declared it.
type Pattern struct {
	// Directory is the workspace-relative directory holding the .gitignore, empty for the root.
	Directory string
	// Rule is the line as written, including a leading "!" or "/".
	Rule string
}

// String renders the pattern rooted at its directory, the leading "/" dropped and "!" kept.
func (pattern Pattern) String() string {
	isNegated := strings.HasPrefix(pattern.Rule, negationPrefix)
	body := strings.TrimPrefix(strings.TrimPrefix(pattern.Rule, negationPrefix), anchorPrefix)
	if pattern.Directory != "" {
		body = pattern.Directory + directorySlash + body
	}
	if isNegated {
		return negationPrefix + body
	}
	return body
}

func (pattern Pattern) compile() gitignore.Pattern {
	return gitignore.ParsePattern(pattern.Rule, utils.SplitPathSegments(pattern.Directory))
}

// Scope is an immutable, accumulated list of directory-scoped ignore patterns.
type Scope struct {
	patterns []Pattern
	matcher  gitignore.Matcher
}

// EmptyScope returns a scope that matches nothing.
func EmptyScope() *Scope {
	return &Scope{}
}

// NewScope compiles the provided patterns in evaluation order.
func NewScope(patterns []Pattern) *Scope {
	if len(patterns) == 0 {
		return EmptyScope()
	}
	copied := append([]Pattern(nil), patterns...)
	compiled := make([]gitignore.Pattern, 0, len(copied))
	for _, pattern := range copied {
		compiled = append(compiled, pattern.compile())
	}
	return &Scope{patterns: copied, matcher: gitignore.NewMatcher(compiled)}
}

// Extend returns a new scope with additional patterns appended after the receiver's.
// The receiver is returned unchanged when there is nothing to add.
func (scope *Scope) Extend(patterns []Pattern) *Scope {
	if len(patterns) == 0 {
		return scope
	}
	var existing []Pattern
	if scope != nil {
		existing = scope.patterns
	}
	combined := make([]Pattern, 0, len(existing)+len(patterns))
	combined = append(combined, existing...)
	combined = append(combined, patterns...)
	return NewScope(combined)
}

// Patterns returns the accumulated patterns in evaluation order, rendered rooted at their directory.
func (scope *Scope) Patterns() []string {
	if scope == nil {
		return nil
	}
	rendered := make([]string, 0, len(scope.patterns))
	for _, pattern := range scope.patterns {
		rendered = append(rendered, pattern.String())
	}
	return rendered
}

// IsEmpty reports whether the scope holds no patterns.
func (scope *Scope) IsEmpty() bool {
	return scope == nil || len(scope.patterns) == 0
}

// Matches reports whether the last matching pattern for relativePath is a non-negated one.
// Directory-only patterns such as "build/" apply when isDirectory is set and to everything below.
func (scope *Scope) Matches(relativePath string, isDirectory bool) bool {
	if scope.IsEmpty() || scope.matcher == nil {
		return false
	}
	segments := utils.SplitPathSegments(utils.ToPosix(relativePath))
	if len(segments) == 0 {
		return false
	}
	return scope.matcher.Match(segments, isDirectory)
}

// ParsePatterns parses .gitignore content declared in relativePrefix, the workspace-relative
// directory holding the file (empty for the root).
func ParsePatterns(content []byte, relativePrefix string) []Pattern {
	directory := strings.Trim(utils.ToPosix(relativePrefix), directorySlash)
	var patterns []Pattern
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		body := strings.TrimPrefix(strings.TrimPrefix(trimmedLine, negationPrefix), anchorPrefix)
		if body == "" {
			continue
		}
		patterns = append(patterns, Pattern{Directory: directory, Rule: trimmedLine})
	}
	return patterns
}
