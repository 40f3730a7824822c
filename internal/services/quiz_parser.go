package services

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// rawItemSchema is the minimal shape an item must have before repair
const rawItemSchema = `{
	"type": "object",
	"required": ["type", "question"],
	"properties": {
		"type": {"type": "string", "minLength": 1},
		"question": {"type": "string", "minLength": 1}
	}
}`

var (
	compiledRawItemSchema = mustCompileSchema(rawItemSchema)
	fenceLine             = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z0-9_-]*[ \t]*$")
)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic("invalid raw quiz item schema: " + err.Error())
	}
	return s
}

// rawItem is a decoded model item with loosely typed fields
type rawItem map[string]interface{}

// StripCodeFences removes markdown fence lines (```json, ```) wherever they appear
func StripCodeFences(response string) string {
	return strings.TrimSpace(fenceLine.ReplaceAllString(StripThinking(response), ""))
}

// ExtractJSONArray finds the quiz array in free text: the whole text when it
// is an array, otherwise the first balanced [...] span that parses. It
// returns nil when there is none.
func ExtractJSONArray(response string) []json.RawMessage {
	text := StripCodeFences(response)
	if text == "" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil {
		for _, key := range []string{"quiz", "questions", "items"} {
			if raw, ok := wrapper[key]; ok && json.Unmarshal(raw, &items) == nil {
				return items
			}
		}
	}

	for start := strings.IndexByte(text, '['); start >= 0; {
		end := matchingBracket(text, start)
		if end < 0 {
			return nil
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &items); err == nil {
			return items
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil
}

// matchingBracket returns the index of the ']' closing the '[' at start,
// ignoring brackets inside JSON strings, or -1.
func matchingBracket(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseRawItems extracts the array and keeps the elements that pass the
// structural precheck. The second value counts the discarded elements.
func ParseRawItems(response string) ([]rawItem, int) {
	elements := ExtractJSONArray(response)
	items := make([]rawItem, 0, len(elements))
	discarded := 0

	for _, el := range elements {
		res, err := compiledRawItemSchema.Validate(gojsonschema.NewBytesLoader(el))
		if err != nil || !res.Valid() {
			discarded++
			continue
		}
		var item rawItem
		if err := json.Unmarshal(el, &item); err != nil {
			discarded++
			continue
		}
		items = append(items, item)
	}
	return items, discarded
}

// str returns the first non-empty string (or number rendered as text) under keys
func (r rawItem) str(keys ...string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// strs returns the list under the first present key, rendering scalars as text
func (r rawItem) strs(keys ...string) []string {
	for _, k := range keys {
		list, ok := r[k].([]interface{})
		if !ok {
			continue
		}
		out := make([]string, 0, len(list))
		for _, el := range list {
			switch v := el.(type) {
			case string:
				out = append(out, strings.TrimSpace(v))
			case float64:
				out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			case bool:
				out = append(out, strconv.FormatBool(v))
			}
		}
		return out
	}
	return nil
}

// index returns an integer under the first present key. Numeric strings count.
func (r rawItem) index(keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := r[k].(type) {
		case float64:
			return int(v), true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// indices returns the integer list under the first present key
func (r rawItem) indices(keys ...string) []int {
	for _, k := range keys {
		list, ok := r[k].([]interface{})
		if !ok {
			continue
		}
		out := make([]int, 0, len(list))
		for _, el := range list {
			switch v := el.(type) {
			case float64:
				out = append(out, int(v))
			case string:
				if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
					out = append(out, n)
				}
			}
		}
		return out
	}
	return nil
}

// boolean returns a truth value under the first present key
func (r rawItem) boolean(keys ...string) (bool, bool) {
	for _, k := range keys {
		switch v := r[k].(type) {
		case bool:
			return v, true
		case string:
			if b, ok := parseTruthLabel(v); ok {
				return b, true
			}
		}
	}
	return false, false
}
