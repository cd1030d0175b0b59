package nlp

import (
	"strings"
	"unicode"
)

// Mode is the route a request takes through the assistant.
type Mode string

const (
	// ModeQuery routes to the read-only text-to-SQL path.
	ModeQuery Mode = "query"
	// ModeAction routes to the mutation (text-to-actions) path.
	ModeAction Mode = "action"
)

// actionKeywords are the lexemes (with inflections) that signal mutation
// intent. The list is deliberately over-inclusive: a false positive only
// shows an empty confirmation screen, while a false negative would silently
// drop a mutation request — the worse failure — so the list favours recall.
var actionKeywords = map[string]struct{}{
	"add": {}, "adds": {}, "added": {}, "adding": {},
	"create": {}, "creates": {}, "created": {}, "creating": {},
	"new": {},
	"update": {}, "updates": {}, "updated": {}, "updating": {},
	"change": {}, "changes": {}, "changed": {}, "changing": {},
	"modify": {}, "modifies": {}, "modified": {}, "modifying": {},
	"mark": {}, "marks": {}, "marked": {}, "marking": {},
	"set": {}, "sets": {}, "setting": {},
	"delete": {}, "deletes": {}, "deleted": {}, "deleting": {},
	"remove": {}, "removes": {}, "removed": {}, "removing": {},
}

// ClassifyIntent decides whether text is a read-only analytics question or a
// mutation request. It is a pure function of its input: whole-word,
// case-insensitive matching against the action lexicon, no model call.
func ClassifyIntent(text string) Mode {
	for _, word := range tokenise(strings.ToLower(text)) {
		if _, ok := actionKeywords[word]; ok {
			return ModeAction
		}
	}
	return ModeQuery
}

// tokenise splits text into lowercase tokens of letters, digits, and
// hyphens, discarding punctuation so "delete," still matches.
func tokenise(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}
