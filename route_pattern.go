package baseapp

import (
	"fmt"
	"regexp"
	"strings"
)

type captureKind int

const (
	captureModule captureKind = iota
	captureController
	captureAction
	captureParams
	captureInt
	captureNamed
)

// IDParam is the named parameter bound by the :int placeholder.
const IDParam = "id"

const segmentClass = `[a-zA-Z0-9_-]+`

// placeholders are matched together with their leading slash.
var placeholders = map[string]struct {
	expr string
	kind captureKind
}{
	"/:module":     {"/(" + segmentClass + ")", captureModule},
	"/:controller": {"/(" + segmentClass + ")", captureController},
	"/:action":     {"/(" + segmentClass + ")", captureAction},
	"/:int":        {"/([0-9]+)", captureInt},
	"/:params":     {"(/.*)?", captureParams},
}

type capture struct {
	kind captureKind
	name string
}

type compiledPattern struct {
	re       *regexp.Regexp
	captures []capture
}

// compilePattern turns a route pattern into an anchored regular expression.
//
// Supported syntax: literal text, /:module, /:controller, /:action, /:int,
// /:params (greedy remainder, last only), {name} and {name:regex} named
// segments, and [/]? for an optional slash.
func compilePattern(pattern string) (*compiledPattern, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidPattern, pattern)
	}

	var (
		expr     strings.Builder
		captures []capture
	)
	expr.WriteString("^")

	for i := 0; i < len(pattern); {
		rest := pattern[i:]
		switch {
		case strings.HasPrefix(rest, "[/]?"):
			expr.WriteString("/?")
			i += len("[/]?")

		case strings.HasPrefix(rest, "/:"):
			name := placeholderName(rest[1:])
			ph, ok := placeholders["/"+name]
			if !ok {
				return nil, fmt.Errorf("%w: unknown placeholder %q in %q", ErrInvalidPattern, name, pattern)
			}
			i += 1 + len(name)
			if ph.kind == captureParams && i != len(pattern) {
				return nil, fmt.Errorf("%w: :params must be last in %q", ErrInvalidPattern, pattern)
			}
			expr.WriteString(ph.expr)
			captures = append(captures, capture{kind: ph.kind})

		case rest[0] == '{':
			end := closingBrace(rest)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated '{' in %q", ErrInvalidPattern, pattern)
			}
			name, sub, _ := strings.Cut(rest[1:end], ":")
			if name == "" {
				return nil, fmt.Errorf("%w: empty parameter name in %q", ErrInvalidPattern, pattern)
			}
			if sub == "" {
				sub = "[^/]+"
			}
			if _, err := regexp.Compile(sub); err != nil {
				return nil, fmt.Errorf("%w: parameter %q: %w", ErrInvalidPattern, name, err)
			}
			expr.WriteString("(" + sub + ")")
			captures = append(captures, capture{kind: captureNamed, name: name})
			i += end + 1

		default:
			expr.WriteString(regexp.QuoteMeta(rest[:1]))
			i++
		}
	}
	expr.WriteString("$")

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
	}
	// Named segments may carry their own groups; those would shift indexes.
	if re.NumSubexp() != len(captures) {
		return nil, fmt.Errorf("%w: %q: nested groups are not allowed in named segments", ErrInvalidPattern, pattern)
	}
	return &compiledPattern{re: re, captures: captures}, nil
}

// placeholderName reads ":name" at the start of s.
func placeholderName(s string) string {
	end := 1
	for end < len(s) {
		c := s[end]
		if c == '/' || c == '[' || c == '{' {
			break
		}
		end++
	}
	return s[:end]
}

func closingBrace(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitParams(raw string) []any {
	params := make([]any, 0)
	for _, p := range strings.Split(raw, "/") {
		if p != "" {
			params = append(params, p)
		}
	}
	return params
}
