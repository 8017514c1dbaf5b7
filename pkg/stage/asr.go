package stage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/audioflow/pkg/pipeline"
)

var errorLine = regexp.MustCompile(`(?m)^ERROR (.*)$`)

// ParseHypothesis extracts the recognised text for utteranceID from a Kaldi
// decoder's diagnostic output, where the decoder prints the hypothesis as a
// line "<utteranceID> <text>". A missing line yields an error wrapping
// [pipeline.ErrParse].
func ParseHypothesis(stderr, utteranceID string) (string, error) {
	re, err := regexp.Compile(`(?m)^` + regexp.QuoteMeta(utteranceID) + ` (.*)$`)
	if err != nil {
		return "", err
	}
	m := re.FindStringSubmatch(normalizeNewlines(stderr))
	if m == nil {
		return "", fmt.Errorf("%w: no hypothesis line for utterance %q", pipeline.ErrParse, utteranceID)
	}
	return m[1], nil
}

// ErrorLines returns the text of every "ERROR ..." line in a Kaldi
// decoder's diagnostic output.
func ErrorLines(stderr string) []string {
	var out []string
	for _, m := range errorLine.FindAllStringSubmatch(normalizeNewlines(stderr), -1) {
		out = append(out, m[1])
	}
	return out
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
