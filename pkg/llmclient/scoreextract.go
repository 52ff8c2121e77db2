package llmclient

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// scoreRegex matches a trailing integer, optionally signed, at the end
// of the last line of a raw-text critic response.
var scoreRegex = regexp.MustCompile(`([+-]?\d+)\s*$`)

// MaxScoreExtractionRetries bounds how many times the caller should
// re-prompt a raw-text backend that failed to end its response with a
// bare numeric score.
const MaxScoreExtractionRetries = 5

// ExtractScoreHint parses a raw-text Critic response whose last line is
// expected to be a standalone integer score, returning the score and
// the preceding analysis text. Backends that return structured
// ReviewFeedback directly skip this path entirely.
func ExtractScoreHint(text string) (score int, analysis string, err error) {
	text = strings.TrimRight(text, "\n\r ")
	if text == "" {
		return 0, "", fmt.Errorf("empty critic response")
	}

	lastNewline := strings.LastIndex(text, "\n")
	var lastLine string
	if lastNewline == -1 {
		lastLine = text
	} else {
		lastLine = text[lastNewline+1:]
	}

	match := scoreRegex.FindStringSubmatch(lastLine)
	if match == nil {
		return 0, "", fmt.Errorf("no numeric score found on last line: %q", lastLine)
	}

	score, err = strconv.Atoi(match[1])
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse score %q: %w", match[1], err)
	}

	if lastNewline == -1 {
		analysis = ""
	} else {
		analysis = text[:lastNewline]
	}
	return score, analysis, nil
}
