package ini

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// KeyPolicy tells the parser which keys may legally appear more than once
// inside a section. A nil policy forbids repetition everywhere.
type KeyPolicy interface {
	AllowsRepeat(section, key string) bool
}

// Parse reads src into a Document. name is used only for error messages.
// The returned error, if any, is always a *MalformedInputError.
func Parse(name string, src []byte, policy KeyPolicy) (*Document, error) {
	doc := &Document{Name: name}
	occurrences := make(map[string]int)

	var current *Section
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if !utf8.Valid(raw) {
			return nil, malformed(name, lineNo, "invalid utf-8")
		}
		line := strings.TrimSpace(string(raw))
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		switch {
		case line == "":
			continue
		case line[0] == '#' || line[0] == ';':
			continue
		case line[0] == '[':
			end := strings.IndexByte(line, ']')
			if end < 0 {
				return nil, malformed(name, lineNo, "unterminated section header")
			}
			if rest := strings.TrimSpace(line[end+1:]); rest != "" {
				return nil, malformed(name, lineNo, fmt.Sprintf("unexpected text %q after section header", rest))
			}
			secName := normalize(line[1:end])
			if secName == "" {
				return nil, malformed(name, lineNo, "empty section name")
			}
			current = &Section{Name: secName, Index: occurrences[secName], Line: lineNo}
			occurrences[secName]++
			seen = make(map[string]bool)
			doc.Sections = append(doc.Sections, current)
		default:
			eq := strings.IndexByte(line, '=')
			if eq < 0 {
				return nil, malformed(name, lineNo, fmt.Sprintf("expected key = value, got %q", line))
			}
			key := normalize(line[:eq])
			if key == "" {
				return nil, malformed(name, lineNo, "empty key")
			}
			if current == nil {
				return nil, malformed(name, lineNo, fmt.Sprintf("key %q outside of any section", key))
			}
			if seen[key] && (policy == nil || !policy.AllowsRepeat(current.Name, key)) {
				return nil, malformed(name, lineNo, fmt.Sprintf("duplicate key %q in section [%s]", key, current.Name))
			}
			seen[key] = true
			current.Fields = append(current.Fields, &RawField{
				Key:   key,
				Value: strings.TrimSpace(line[eq+1:]),
				Line:  lineNo,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, malformed(name, lineNo+1, err.Error())
	}

	return doc, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func malformed(file string, line int, msg string) *MalformedInputError {
	return &MalformedInputError{File: file, Line: line, Msg: msg}
}
