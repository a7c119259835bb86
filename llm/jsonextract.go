package llm

import "strings"

// ExtractJSON returns the first balanced JSON object or array embedded in
// content. Model responses routinely wrap JSON in prose or markdown code
// fences; this scanner handles both, and is string-escape aware so braces
// inside JSON strings don't unbalance the count.
//
// The second result is false when no complete JSON value is found. Callers
// decide what that means: the salience scorer falls back to conservative
// defaults, the extractor treats it as a no-op.
func ExtractJSON(content string) (string, bool) {
	start := -1
	if i := fenceIndex(content); i >= 0 {
		start = firstJSONStart(content, i)
	}
	if start < 0 {
		start = firstJSONStart(content, 0)
	}
	if start < 0 {
		return "", false
	}
	if s, ok := scanBalanced(content, start); ok {
		return strings.TrimSpace(s), true
	}
	return "", false
}

// fenceIndex returns the position just past the first markdown code fence,
// or -1 if there is none.
func fenceIndex(content string) int {
	i := strings.Index(content, "```")
	if i < 0 {
		return -1
	}
	return i + 3
}

// firstJSONStart finds the first '{' at or after from, preferring objects
// over arrays, falling back to the first '['.
func firstJSONStart(s string, from int) int {
	if i := strings.IndexByte(s[from:], '{'); i >= 0 {
		return from + i
	}
	if i := strings.IndexByte(s[from:], '['); i >= 0 {
		return from + i
	}
	return -1
}

// scanBalanced walks from start counting braces and brackets, skipping
// string contents and escape sequences, and returns the complete value.
func scanBalanced(s string, start int) (string, bool) {
	braces, brackets := 0, 0
	inString, escaped := false, false

	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braces++
			}
		case '}':
			if !inString {
				braces--
				if braces == 0 && brackets == 0 {
					return s[start : i+1], true
				}
			}
		case '[':
			if !inString {
				brackets++
			}
		case ']':
			if !inString {
				brackets--
				if braces == 0 && brackets == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
