// Package scoring parses rubric scores out of recorded model responses.
package scoring

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	apperrors "github.com/promptops/batchrelay/internal/errors"
)

// responseTextExpr selects the generated text out of a decoded outcome record.
const responseTextExpr = "response.choices[0].message.content"

var (
	scorePattern  = regexp.MustCompile(`(\d+)\s*/\s*100`)
	strictPattern = regexp.MustCompile(`Score: (\d+)/100`)
)

// ParseScore extracts every "X/100" score from a response, tolerating spacing
// and case, and returns the average of the values in [0, 100]. ok is false
// when the text holds no valid score.
func ParseScore(text string) (float64, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0, false
	}
	var sum float64
	var n int
	for _, m := range scorePattern.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v < 0 || v > 100 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// FollowedFormat reports whether the response contains at least one score in
// the exact "Score: X/100" form the prompt asks for.
func FollowedFormat(text string) bool {
	return strictPattern.MatchString(strings.TrimSpace(text))
}

// ResponseText pulls the generated text out of one raw outcome log line.
// Header lines, failure records, and lines without a first choice yield
// ok=false; a line that is not JSON at all is an error.
func ResponseText(line []byte) (string, bool, error) {
	var record any
	if err := json.Unmarshal(line, &record); err != nil {
		return "", false, apperrors.MalformedRecord("outcome line is not valid JSON", err)
	}
	value, err := jmespath.Search(responseTextExpr, record)
	if err != nil {
		return "", false, apperrors.MalformedRecord("extracting response text", err)
	}
	text, ok := value.(string)
	if !ok {
		return "", false, nil
	}
	return text, true, nil
}
