package qual

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes start at 1 so they never clash with parsly.EOF.
const (
	whitespaceCode = iota + 1
	wordCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	wordToken       = parsly.NewToken(wordCode, "Word", &wordMatcher{})
)

// wordMatcher matches a run of non-whitespace bytes
type wordMatcher struct{}

func (m *wordMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if isSpace(input[i]) {
			break
		}
		matched++
	}
	return matched
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// splitFormula splits a line into at most three fields: name, comparator and
// the verbatim remainder, so value lists keep their commas and spaces.
func splitFormula(line string) []string {
	cursor := parsly.NewCursor("formula", []byte(line), 0)
	var fields []string
	for len(fields) < 2 {
		matched := cursor.MatchAfterOptional(whitespaceToken, wordToken)
		if matched.Code != wordCode {
			return fields
		}
		fields = append(fields, matched.Text(cursor))
	}
	cursor.MatchOne(whitespaceToken)
	if cursor.Pos < cursor.InputSize {
		fields = append(fields, string(cursor.Input[cursor.Pos:]))
	}
	return fields
}
