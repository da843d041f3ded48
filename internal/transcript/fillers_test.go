package transcript_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/interviewcoach/internal/transcript"
)

func TestFillerDetector_Find(t *testing.T) {
	t.Parallel()

	d := transcript.NewFillerDetector()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "mixed hesitations and phrases",
			text: "So, um, I basically led the team, you know, and uhh it was actually great. Hmmm.",
			want: []string{"um", "basically", "you know", "uh", "actually", "hm"},
		},
		{
			name: "elongated spellings",
			text: "Ummmm. Errr, mmhmm, uhmm",
			want: []string{"um", "er", "mhm", "uhm"},
		},
		{
			name: "fuzzy hesitation",
			text: "I think, ehm, yes",
			want: []string{"eh"},
		},
		{
			name: "real short words are not fillers",
			text: "I am here for her and he met me at the arm of the era",
			want: nil,
		},
		{
			name: "phrases need every token",
			text: "I know what I mean to do with this kind offer",
			want: []string{"i mean"},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := d.Find(tt.text)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Find(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFillerDetector_ExtraFillers(t *testing.T) {
	t.Parallel()

	d := transcript.NewFillerDetector(transcript.WithExtraFillers("at the end of the day", "like"))
	got := d.Find("Like, at the end of the day it shipped")
	want := []string{"like", "at the end of the day"}
	if !slices.Equal(got, want) {
		t.Errorf("Find = %q, want %q", got, want)
	}
	if n := len(d.Find("like like")); n != 2 {
		t.Errorf("found %d fillers in %q, want 2", n, "like like")
	}
}

func TestFillerDetector_StrictThreshold(t *testing.T) {
	t.Parallel()

	d := transcript.NewFillerDetector(transcript.WithHesitationThreshold(0.99))
	if got := d.Find("ehm"); len(got) != 0 {
		t.Errorf("expected fuzzy match to be rejected at 0.99, got %q", got)
	}
	if got := d.Find("ummm"); !slices.Equal(got, []string{"um"}) {
		t.Errorf("exact hesitation must still match, got %q", got)
	}
}

func TestWordCount(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"a b c d":                  4,
		"":                         0,
		"   ":                      0,
		"I led the team. It grew.": 6,
		"line\nbreak\ttab":         3,
	}
	for in, want := range tests {
		if got := transcript.WordCount(in); got != want {
			t.Errorf("WordCount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	got := transcript.Tokens("I'm  SURE, 'quoted' y'know - 42x!")
	want := []string{"i'm", "sure", "quoted", "y'know", "42x"}
	if !slices.Equal(got, want) {
		t.Errorf("Tokens = %q, want %q", got, want)
	}
}
