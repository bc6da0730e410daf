package blueprint

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strconv"
	"strings"
	"sync"

	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/models"
)

// RegexDelimiter wraps a path pattern that is a regular expression rather
// than an exact dot path, as in "/^links\.\d+\.id$/".
const RegexDelimiter = "/"

// Matcher maps the leaves found at Path to record references.
//
// Path is absolute from the record: it starts with the field name. Exactly
// one of Target and Content is set. With Target, a leaf holding a positive
// natural key is replaced by a surrogate id of that type. With Content, a
// string leaf is searched with each content rule in turn and only the first
// capture group of every match is replaced.
type Matcher struct {
	Path    string
	Target  models.TypeTag
	Content []ContentRule
}

// ContentRule finds ids of Target inside text. Capture group 1 of Pattern
// is the id.
type ContentRule struct {
	Pattern string
	Target  models.TypeTag
}

// MatchRules is an ordered list of matchers; the first matching path wins.
type MatchRules []Matcher

// Exact matches the leaf at path and substitutes ids of target.
func Exact(path string, target models.TypeTag) Matcher {
	return Matcher{Path: path, Target: target}
}

// Content searches the text at path with rules.
func Content(path string, rules ...ContentRule) Matcher {
	return Matcher{Path: path, Content: rules}
}

func (m MatchRules) validate() error {
	for _, mt := range m {
		if mt.Path == "" {
			return fmt.Errorf("%w: matcher without path", constants.ErrInvalidRuleShape)
		}
		if (mt.Target == "") == (len(mt.Content) == 0) {
			return fmt.Errorf("%w: matcher %q needs either a target or content rules", constants.ErrInvalidRuleShape, mt.Path)
		}
		if isRegex(mt.Path) {
			if _, err := compile(strings.Trim(mt.Path, RegexDelimiter)); err != nil {
				return fmt.Errorf("%w: matcher %q: %v", constants.ErrInvalidRuleShape, mt.Path, err)
			}
		}
		for _, c := range mt.Content {
			re, err := compile(c.Pattern)
			if err != nil {
				return fmt.Errorf("%w: content pattern %q: %v", constants.ErrInvalidRuleShape, c.Pattern, err)
			}
			if re.NumSubexp() < 1 || c.Target == "" {
				return fmt.Errorf("%w: content pattern %q needs a capture group and a target", constants.ErrInvalidRuleShape, c.Pattern)
			}
		}
	}
	return nil
}

// Find returns the first matcher whose path matches path.
func (m MatchRules) Find(path string) (Matcher, bool) {
	for _, mt := range m {
		if !isRegex(mt.Path) {
			if mt.Path == path {
				return mt, true
			}
			continue
		}
		re, err := compile(strings.Trim(mt.Path, RegexDelimiter))
		if err == nil && re.MatchString(path) {
			return mt, true
		}
	}
	return Matcher{}, false
}

// Issuer hands out the surrogate id for a natural key of a type.
type Issuer func(t models.TypeTag, naturalKey any) models.SurrogateID

// Anonymize rewrites one leaf for serialization. Non-positive and
// non-numeric keys are returned untouched.
func (m Matcher) Anonymize(leaf any, issue Issuer) (any, error) {
	if m.Target != "" {
		n, ok := models.PositiveKey(leaf)
		if !ok {
			return leaf, nil
		}
		return issue(m.Target, n).String(), nil
	}

	text, ok := leaf.(string)
	if !ok {
		return leaf, nil
	}
	for _, c := range m.Content {
		re, err := compile(c.Pattern)
		if err != nil {
			return nil, err
		}
		text = replaceGroup(re, text, func(token string) (string, bool) {
			n, ok := models.PositiveKey(token)
			if !ok {
				return "", false
			}
			return issue(c.Target, n).String(), true
		})
	}
	return text, nil
}

// Reference is one surrogate id found in a serialized leaf.
type Reference struct {
	Target models.TypeTag
	ID     models.SurrogateID
	// Exact is true when the whole leaf is the id, false when the id sits
	// inside surrounding text.
	Exact bool
	// Pattern is the content pattern that found the id.
	Pattern string
}

// References lists the surrogate ids a leaf carries, for deserialization.
// Content patterns are rewritten so that their first capture group matches
// surrogate ids with prefix instead of natural keys.
func (m Matcher) References(prefix string, leaf any) ([]Reference, error) {
	if m.Target != "" {
		id, ok := models.ParseSurrogateID(prefix, leaf)
		if !ok {
			return nil, nil
		}
		return []Reference{{Target: m.Target, ID: id, Exact: true}}, nil
	}

	text, ok := leaf.(string)
	if !ok {
		return nil, nil
	}
	var out []Reference
	seen := make(map[models.SurrogateID]bool)
	for _, c := range m.Content {
		re, err := compileForPrefix(c.Pattern, prefix)
		if err != nil {
			return nil, err
		}
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			id := models.SurrogateID(text[loc[2]:loc[3]])
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, Reference{Target: c.Target, ID: id, Pattern: c.Pattern})
		}
	}
	return out, nil
}

// ReplaceToken replaces every whole occurrence of token in text with value.
// An occurrence directly followed by a digit is part of a longer token and
// is left alone, so "@8" never touches "@80".
func ReplaceToken(text, token, value string) string {
	if token == "" {
		return text
	}
	var b strings.Builder
	rest := text
	for {
		i := strings.Index(rest, token)
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := i + len(token)
		b.WriteString(rest[:i])
		if end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			b.WriteString(token)
		} else {
			b.WriteString(value)
		}
		rest = rest[end:]
	}
}

// ReplaceMatches replaces token with value where it is capture group 1 of a
// match of the content pattern, compiled for surrogate ids with prefix. Text
// outside the matches is left alone.
func ReplaceMatches(text, pattern, prefix, token, value string) (string, error) {
	re, err := compileForPrefix(pattern, prefix)
	if err != nil {
		return "", err
	}
	return replaceGroup(re, text, func(found string) (string, bool) {
		return value, found == token
	}), nil
}

func isRegex(path string) bool {
	return len(path) > 2 && strings.HasPrefix(path, RegexDelimiter) && strings.HasSuffix(path, RegexDelimiter)
}

// replaceGroup rewrites capture group 1 of every match of re in text.
func replaceGroup(re *regexp.Regexp, text string, fn func(string) (string, bool)) string {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if len(loc) < 4 || loc[2] < 0 {
			continue
		}
		repl, ok := fn(text[loc[2]:loc[3]])
		if !ok {
			continue
		}
		b.WriteString(text[last:loc[2]])
		b.WriteString(repl)
		last = loc[3]
	}
	b.WriteString(text[last:])
	return b.String()
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*regexp.Regexp)
)

func compile(pattern string) (*regexp.Regexp, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if re, ok := cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	cache[pattern] = re
	return re, nil
}

// compileForPrefix swaps the body of capture group 1 for a pattern matching
// surrogate ids, keeping the rest of the expression as the context.
func compileForPrefix(pattern, prefix string) (*regexp.Regexp, error) {
	key := prefix + "\x00" + pattern
	cacheMu.Lock()
	re, ok := cache[key]
	cacheMu.Unlock()
	if ok {
		return re, nil
	}

	tree, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, err
	}
	idTree, err := syntax.Parse(regexp.QuoteMeta(prefix)+`[0-9]+`, syntax.Perl)
	if err != nil {
		return nil, err
	}
	if !swapGroup(tree, 1, idTree) {
		return nil, fmt.Errorf("%w: pattern %q has no capture group", constants.ErrInvalidRuleShape, pattern)
	}

	re, err = regexp.Compile(tree.String())
	if err != nil {
		return nil, err
	}
	cacheMu.Lock()
	cache[key] = re
	cacheMu.Unlock()
	return re, nil
}

func swapGroup(re *syntax.Regexp, group int, body *syntax.Regexp) bool {
	if re.Op == syntax.OpCapture && re.Cap == group {
		re.Sub = []*syntax.Regexp{body}
		return true
	}
	for _, sub := range re.Sub {
		if swapGroup(sub, group, body) {
			return true
		}
	}
	return false
}

// FormatID renders a real id for text substitution.
func FormatID(v any) string {
	if n, ok := models.Int64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}
