package ocreval

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"DANGER HIGH VOLTAGE ,": "danger high voltage",
		"DANGER ,LIVE WIRES ,":  "danger live wires",
		"  Keep\tOut \n":        "keep out",
		"":                      "",
		",":                     "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCharacterErrorRate(t *testing.T) {
	tests := []struct {
		name     string
		ref, hyp string
		want     float64
	}{
		{"identical", "danger", "danger", 0},
		{"one substitution", "danger", "dangor", 1.0 / 6},
		{"missing text", "danger", "", 1},
		{"both empty", "", "", 0},
		{"unexpected text", "", "noise", 1},
		{"longer hypothesis", "ab", "abcd", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CharacterErrorRate(tt.ref, tt.hyp); !almostEqual(got, tt.want) {
				t.Errorf("CharacterErrorRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWordErrorRate(t *testing.T) {
	tests := []struct {
		name     string
		ref, hyp string
		want     float64
	}{
		{"identical", "danger high voltage", "danger high voltage", 0},
		{"one wrong word", "danger high voltage", "danger hlgh voltage", 1.0 / 3},
		{"one missing word", "danger high voltage", "danger voltage", 1.0 / 3},
		{"reordered", "live wires", "wires live", 1},
		{"inserted word", "danger live wires", "danger live live wires", 1.0 / 3},
		{"longer hypothesis", "danger", "danger high voltage", 2},
		{"repeated reference words", "live live wires", "live wires wires", 1.0 / 3},
		{"both empty", "", "", 0},
		{"nothing expected", "", "danger", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WordErrorRate(tt.ref, tt.hyp); !almostEqual(got, tt.want) {
				t.Errorf("WordErrorRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	ev := Evaluate("DANGER HIGH VOLTAGE ,", "Danger High Voltage")
	if ev.CER != 0 || ev.WER != 0 || ev.MatchScore != 100 {
		t.Errorf("exact match scored %+v", ev)
	}
	if ev.ExtractedText != "DANGER HIGH VOLTAGE ," || ev.ExpectedText != "Danger High Voltage" {
		t.Errorf("texts not preserved: %+v", ev)
	}

	ev = Evaluate("", "danger")
	if ev.CER != 1 || ev.MatchScore != 0 {
		t.Errorf("empty extraction scored %+v", ev)
	}

	ev = Evaluate("DANGOR ,", "danger")
	if !almostEqual(ev.CER, 0.1667) || !almostEqual(ev.MatchScore, 83.3333) {
		t.Errorf("single substitution scored %+v", ev)
	}
}
