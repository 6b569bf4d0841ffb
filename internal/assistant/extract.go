package assistant

import "strings"

// ExtractQuery finds the first line of text containing "SELECT" in any case
// and returns that line and everything after it, trimmed. Text without such
// a line is returned unchanged.
//
// This is a line heuristic, not a parser: prose after the query is kept,
// and "select" in prose before the query starts the result early.
func ExtractQuery(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.Contains(strings.ToUpper(line), "SELECT") {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return text
}
