package stt_test

import (
	"testing"

	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
)

func TestBoosts(t *testing.T) {
	t.Parallel()

	got := stt.Boosts([]string{" Kubernetes ", "", "  ", "gRPC"})
	if len(got) != 2 {
		t.Fatalf("Boosts = %+v, want 2 entries", got)
	}
	if got[0].Keyword != "Kubernetes" || got[0].Boost != 1 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Keyword != "gRPC" {
		t.Errorf("second = %+v", got[1])
	}
	if n := len(stt.Boosts(nil)); n != 0 {
		t.Errorf("Boosts(nil) = %d entries", n)
	}
}
