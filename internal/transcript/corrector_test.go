package transcript_test

import (
	"testing"

	"github.com/MrWong99/interviewcoach/internal/transcript"
)

// stubMatcher matches phrases from a fixed table.
type stubMatcher map[string]string

func (s stubMatcher) MatchPhrase(phrase string, _ []string) (string, float64, bool) {
	if kw, ok := s[phrase]; ok {
		return kw, 0.9, true
	}
	return phrase, 0, false
}

func TestCorrector_Correct(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector([]string{"Kubernetes", "Postgres", " "})

	tests := []struct {
		name  string
		input string
		want  string
		fixes int
	}{
		{"misspelled keyword", "we deployed kubernetis clusters.", "we deployed Kubernetes clusters.", 1},
		{"split keyword", "we moved to post gress last year", "we moved to Postgres last year", 1},
		{"punctuation kept", "Mostly kubernetis, honestly.", "Mostly Kubernetes, honestly.", 1},
		{"casing restored", "KUBERNETES", "Kubernetes", 1},
		{"already correct", "I love Postgres", "I love Postgres", 0},
		{"no keywords spoken", "I led a team of four", "I led a team of four", 0},
		{"empty", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, fixes := c.Correct(tt.input)
			if got != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if len(fixes) != tt.fixes {
				t.Errorf("Correct(%q) made %d corrections, want %d: %+v", tt.input, len(fixes), tt.fixes, fixes)
			}
		})
	}
}

func TestCorrector_ReportsSubstitution(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector([]string{"Kubernetes"})
	_, fixes := c.Correct("kubernetis")
	if len(fixes) != 1 {
		t.Fatalf("corrections = %+v, want 1", fixes)
	}
	f := fixes[0]
	if f.Original != "kubernetis" || f.Corrected != "Kubernetes" || f.Confidence < 0.8 {
		t.Errorf("correction = %+v", f)
	}
}

func TestCorrector_NoKeywords(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil)
	if got, fixes := c.Correct("kubernetis"); got != "kubernetis" || fixes != nil {
		t.Errorf("Correct = %q, %+v; want input unchanged", got, fixes)
	}
	if kws := c.Keywords(); len(kws) != 0 {
		t.Errorf("Keywords = %v, want none", kws)
	}
}

func TestCorrector_LongestPhraseWins(t *testing.T) {
	t.Parallel()

	m := stubMatcher{"react": "React", "react native": "React Native"}
	c := transcript.NewCorrector([]string{"React", "React Native"}, transcript.WithPhraseMatcher(m))

	got, fixes := c.Correct("I built it in react native last spring")
	if want := "I built it in React Native last spring"; got != want {
		t.Errorf("Correct = %q, want %q", got, want)
	}
	if len(fixes) != 1 || fixes[0].Original != "react native" {
		t.Errorf("corrections = %+v", fixes)
	}
}
