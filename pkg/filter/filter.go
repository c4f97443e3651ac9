// Package filter decides which files belong to a collection, by name and
// by contained text.
package filter

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of content decisions kept when
// Rules.CacheSize is zero.
const DefaultCacheSize = 1024

// Rules configures a RuleSet.
type Rules struct {
	// IncludeNames are wildcard masks; a file must match one of them.
	// Empty or "*" includes every name.
	IncludeNames []string `yaml:"include_names"`

	// ExcludeNames are wildcard masks; a file matching any of them is excluded.
	ExcludeNames []string `yaml:"exclude_names"`

	// IncludeText requires the file to contain at least one of the strings.
	IncludeText []string `yaml:"include_text"`

	// ExcludeText excludes files containing any of the strings.
	ExcludeText []string `yaml:"exclude_text"`

	// CacheSize bounds the content decision cache.
	CacheSize int `yaml:"cache_size"`
}

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

// RuleSet is a compiled set of rules. It is safe for concurrent use.
type RuleSet struct {
	rules        Rules
	includeNames []glob.Glob
	excludeNames []glob.Glob
	cache        *lru.Cache[cacheKey, bool]
}

// New compiles rules.
func New(rules Rules) (*RuleSet, error) {
	if rules.CacheSize < 0 {
		return nil, ErrInvalidCacheSize
	}
	if rules.CacheSize == 0 {
		rules.CacheSize = DefaultCacheSize
	}

	rules.IncludeNames = normalizeMasks(rules.IncludeNames)
	rules.ExcludeNames = normalizeMasks(rules.ExcludeNames)

	includes, err := compilePatterns(rules.IncludeNames)
	if err != nil {
		return nil, err
	}
	excludes, err := compilePatterns(rules.ExcludeNames)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[cacheKey, bool](rules.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create content cache: %w", err)
	}

	return &RuleSet{
		rules:        rules,
		includeNames: includes,
		excludeNames: excludes,
		cache:        cache,
	}, nil
}

// MatchAll returns a RuleSet that accepts every existing regular file.
func MatchAll() *RuleSet {
	rs, err := New(Rules{})
	if err != nil {
		panic(err) // empty rules always compile
	}
	return rs
}

// Matches reports whether the file at path exists, is a regular file and
// satisfies the rules. Contents are only read when text rules are set; an
// unreadable file does not match.
func (r *RuleSet) Matches(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	if !r.MatchesName(path) {
		return false
	}
	if !r.HasContentRules() {
		return true
	}

	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if ok, cached := r.cache.Get(key); cached {
		return ok
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	ok := r.matchesContent(string(data))
	r.cache.Add(key, ok)
	return ok
}

// MatchesName applies only the name masks. The file system is not touched.
func (r *RuleSet) MatchesName(name string) bool {
	slashed := filepath.ToSlash(name)

	if len(r.includeNames) > 0 && !matchesAny(slashed, r.includeNames) {
		return false
	}
	return !matchesAny(slashed, r.excludeNames)
}

// HasContentRules reports whether Matches needs to read file contents.
func (r *RuleSet) HasContentRules() bool {
	return len(r.rules.IncludeText) > 0 || len(r.rules.ExcludeText) > 0
}

// CacheLen returns the number of cached content decisions.
func (r *RuleSet) CacheLen() int {
	return r.cache.Len()
}

// Rules returns the normalized rules.
func (r *RuleSet) Rules() Rules {
	return r.rules
}

// String describes the rules.
func (r *RuleSet) String() string {
	var b strings.Builder
	b.WriteString("file filter:\n")
	fmt.Fprintf(&b, "  include names: %s\n", describeMasks(r.rules.IncludeNames, "*"))
	fmt.Fprintf(&b, "  exclude names: %s\n", describeMasks(r.rules.ExcludeNames, "-"))
	fmt.Fprintf(&b, "  include files containing: %s\n", describeText(r.rules.IncludeText))
	fmt.Fprintf(&b, "  exclude files containing: %s\n", describeText(r.rules.ExcludeText))
	return b.String()
}

func (r *RuleSet) matchesContent(contents string) bool {
	if len(r.rules.IncludeText) > 0 && !containsAny(contents, r.rules.IncludeText) {
		return false
	}
	return !containsAny(contents, r.rules.ExcludeText)
}

// normalizeMasks drops empty masks and a leading slash. A lone "*" means
// no restriction.
func normalizeMasks(masks []string) []string {
	out := make([]string, 0, len(masks))
	for _, m := range masks {
		m = strings.TrimPrefix(strings.TrimSpace(m), "/")
		if m == "" || m == "*" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// compilePatterns compiles masks without a separator, so "*" also matches
// across directories: "*/WWW/*" covers everything below any WWW directory.
func compilePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, fmt.Errorf("%q: %w", pattern, err))
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// matchesAny checks the slash path, its base name and every path suffix,
// so relative masks such as "docs/*.md" apply to absolute paths. A "*" in
// such a mask also matches nested names like "docs/a/b.md".
func matchesAny(slashed string, globs []glob.Glob) bool {
	for _, g := range globs {
		if g.Match(slashed) || g.Match(path.Base(slashed)) {
			return true
		}
		for i := 0; i < len(slashed); i++ {
			if slashed[i] == '/' && g.Match(slashed[i+1:]) {
				return true
			}
		}
	}
	return false
}

func containsAny(contents string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(contents, n) {
			return true
		}
	}
	return false
}

func describeMasks(masks []string, none string) string {
	if len(masks) == 0 {
		return none
	}
	return strings.Join(masks, ", ")
}

func describeText(text []string) string {
	if len(text) == 0 {
		return "-"
	}
	quoted := make([]string, len(text))
	for i, t := range text {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return strings.Join(quoted, ", ")
}
