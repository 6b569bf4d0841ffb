package store

import "strings"

var readOnlyKeywords = map[string]bool{
	"SELECT":    true,
	"WITH":      true,
	"EXPLAIN":   true,
	"DESCRIBE":  true,
	"SHOW":      true,
	"SUMMARIZE": true,
	"VALUES":    true,
	"TABLE":     true,
}

// writeKeywords may not appear anywhere in a read-only statement, including
// inside a CTE or after EXPLAIN. Identifiers that collide with one of these
// must be double-quoted.
var writeKeywords = map[string]bool{
	"INSERT":     true,
	"UPDATE":     true,
	"DELETE":     true,
	"MERGE":      true,
	"UPSERT":     true,
	"DROP":       true,
	"CREATE":     true,
	"ALTER":      true,
	"TRUNCATE":   true,
	"ATTACH":     true,
	"DETACH":     true,
	"COPY":       true,
	"EXPORT":     true,
	"IMPORT":     true,
	"INSTALL":    true,
	"LOAD":       true,
	"PRAGMA":     true,
	"VACUUM":     true,
	"CHECKPOINT": true,
}

// IsReadOnly reports whether query is a single statement that starts with a
// read-only keyword and names no write keyword outside quotes and comments.
// A trailing semicolon is allowed. It is a fast reject only: Query also
// rolls back whatever the statement did.
func IsReadOnly(query string) bool {
	stmt, rest, _ := CutStatement(query)
	if strings.TrimSpace(rest) != "" {
		return false
	}

	words := bareWords(stmt)
	if len(words) == 0 || !readOnlyKeywords[words[0]] {
		return false
	}
	for _, w := range words[1:] {
		if writeKeywords[w] {
			return false
		}
	}
	return true
}

// CutStatement splits text at the first semicolon that is not inside a
// string literal, a quoted identifier or a comment. before is trimmed and
// excludes the semicolon; found reports whether one was seen.
func CutStatement(text string) (before, after string, found bool) {
	s := sqlScanner{src: text}
	for s.next() {
		if s.tok == ";" {
			return strings.TrimSpace(text[:s.start]), text[s.pos:], true
		}
	}
	return strings.TrimSpace(text), "", false
}

// bareWords returns the upper-cased unquoted words of stmt.
func bareWords(stmt string) []string {
	var words []string
	s := sqlScanner{src: stmt}
	for s.next() {
		if s.word {
			words = append(words, strings.ToUpper(s.tok))
		}
	}
	return words
}

// sqlScanner walks SQL text one token at a time. Literals, quoted
// identifiers and comments come back as single non-word tokens so that
// their contents never look like keywords or separators.
type sqlScanner struct {
	src   string
	pos   int
	start int
	tok   string
	word  bool
}

func (s *sqlScanner) next() bool {
	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}
	if s.pos >= len(s.src) {
		return false
	}

	s.start = s.pos
	s.word = false
	c := s.src[s.pos]
	switch {
	case c == '\'' || c == '"' || c == '`':
		s.skipQuoted(c)
	case c == '[':
		s.skipUntil("]")
	case c == '-' && strings.HasPrefix(s.src[s.pos:], "--"):
		s.skipUntil("\n")
	case c == '/' && strings.HasPrefix(s.src[s.pos:], "/*"):
		s.pos += 2
		s.skipUntil("*/")
	case isWordStart(c):
		for s.pos < len(s.src) && isWordPart(s.src[s.pos]) {
			s.pos++
		}
		s.word = true
	default:
		s.pos++
	}
	s.tok = s.src[s.start:s.pos]
	return true
}

// skipQuoted moves past a quoted span. A doubled quote is an escaped quote.
// An unterminated span runs to the end of the text.
func (s *sqlScanner) skipQuoted(q byte) {
	s.pos++
	for s.pos < len(s.src) {
		if s.src[s.pos] == q {
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == q {
				s.pos += 2
				continue
			}
			s.pos++
			return
		}
		s.pos++
	}
}

func (s *sqlScanner) skipUntil(end string) {
	if i := strings.Index(s.src[s.pos:], end); i >= 0 {
		s.pos += i + len(end)
		return
	}
	s.pos = len(s.src)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$'
}
