package nlp_test

import (
	"testing"

	"github.com/kiroku-app/kiroku/internal/kiroku/nlp"
)

// TestClassifyIntent_ActionPhrases verifies mutation phrasings route to the
// action path, including inflections and punctuation-adjacent keywords.
func TestClassifyIntent_ActionPhrases(t *testing.T) {
	for _, text := range []string{
		"Add Dune Part 3, The Batman 2 to planned",
		"mark Inception as finished with 9/10",
		"Delete The Room from my list",
		"please remove everything I dropped last year",
		"I'm updating my rating for Dune",
		"SET the status of Severance to On Hold",
		"she added two films yesterday, log them",
	} {
		if got := nlp.ClassifyIntent(text); got != nlp.ModeAction {
			t.Errorf("ClassifyIntent(%q) = %q, want %q", text, got, nlp.ModeAction)
		}
	}
}

// TestClassifyIntent_QueryPhrases verifies analytics questions route to the
// query path.
func TestClassifyIntent_QueryPhrases(t *testing.T) {
	for _, text := range []string{
		"how many films did I finish this year?",
		"what is my average rating by genre",
		"which restaurants did I visit in March",
		"top 5 platforms by hours watched",
		"",
	} {
		if got := nlp.ClassifyIntent(text); got != nlp.ModeQuery {
			t.Errorf("ClassifyIntent(%q) = %q, want %q", text, got, nlp.ModeQuery)
		}
	}
}

// TestClassifyIntent_WholeWordsOnly verifies keywords embedded inside other
// words do not trigger the action path ("settings" is not "set").
func TestClassifyIntent_WholeWordsOnly(t *testing.T) {
	for _, text := range []string{
		"show my settings history",      // contains "set" as a prefix only
		"what did I watch in Maddington", // contains "add" inside a word
	} {
		if got := nlp.ClassifyIntent(text); got != nlp.ModeQuery {
			t.Errorf("ClassifyIntent(%q) = %q, want %q (no whole-word keyword)", text, got, nlp.ModeQuery)
		}
	}
}
