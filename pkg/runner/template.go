package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ErrEmptyTemplate is returned by [ParseTemplate] for a template without
// any words.
var ErrEmptyTemplate = errors.New("runner: empty command template")

// Template is a command line with {name} placeholders, e.g.
// "ffmpeg -y -i {in_file} {out_file}". It is split into words with shell
// quoting rules once, before substitution, so substituted values are never
// re-split on whitespace.
type Template struct {
	raw   string
	words []string
}

// ParseTemplate splits raw into words.
func ParseTemplate(raw string) (Template, error) {
	words, err := shellquote.Split(raw)
	if err != nil {
		return Template{}, fmt.Errorf("runner: parse template %q: %w", raw, err)
	}
	if len(words) == 0 {
		return Template{}, ErrEmptyTemplate
	}
	return Template{raw: raw, words: words}, nil
}

// String returns the template as given to [ParseTemplate].
func (t Template) String() string { return t.raw }

// Program returns the first word of the template.
func (t Template) Program() string { return t.words[0] }

// Uses reports whether the template contains the placeholder {name}.
func (t Template) Uses(name string) bool {
	return strings.Contains(t.raw, "{"+name+"}")
}

// Expand substitutes vars into every word and returns the command. The
// program may be replaced by program when non-empty, e.g. with a path
// resolved by [LocateExecutable].
func (t Template) Expand(program string, vars map[string]string) Command {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	words := make([]string, len(t.words))
	for i, w := range t.words {
		words[i] = r.Replace(w)
	}
	if program != "" {
		words[0] = program
	}
	return Command{Path: words[0], Args: words[1:]}
}
