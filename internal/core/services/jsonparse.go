package services

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// fencedBlock matches a markdown code fence with an optional language tag.
var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n?(.*?)\n?[ \t]*```")

var errNoJSON = errors.New("no JSON object in response")

// decodeModelJSON parses a JSON object out of a model response. The object
// may be bare, wrapped in a code fence, or surrounded by prose.
func decodeModelJSON(text string, v any) error {
	body := strings.TrimSpace(stripFence(text))
	if body == "" {
		return errNoJSON
	}
	if err := json.Unmarshal([]byte(body), v); err == nil {
		return nil
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return errNoJSON
	}
	return json.Unmarshal([]byte(body[start:end+1]), v)
}

// stripFence returns the contents of the first code fence, or the text
// unchanged when there is none.
func stripFence(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
