// Package ocreval scores recognised text against a known transcription.
package ocreval

import (
	"math"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"

	"go-image-enricher/pkg/models"
)

// Evaluate compares extracted text with the expected transcription. Both sides are normalised
// first: case folded, line separators dropped, whitespace collapsed.
func Evaluate(extracted, expected string) models.OCREvaluation {
	hyp := Normalize(extracted)
	ref := Normalize(expected)

	cer := CharacterErrorRate(ref, hyp)
	return models.OCREvaluation{
		ExtractedText: extracted,
		ExpectedText:  expected,
		CER:           round(cer),
		WER:           round(WordErrorRate(ref, hyp)),
		MatchScore:    round(100 * (1 - math.Min(cer, 1))),
	}
}

// Normalize lowercases s, treats commas as word breaks and collapses runs of whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, ",", " "))
	return strings.Join(strings.Fields(s), " ")
}

// CharacterErrorRate is the edit distance between ref and hyp divided by the length of ref.
// An empty reference scores 0 against an empty hypothesis and 1 otherwise.
func CharacterErrorRate(ref, hyp string) float64 {
	n := len([]rune(ref))
	if n == 0 {
		if hyp == "" {
			return 0
		}
		return 1
	}
	return float64(levenshtein.Distance(ref, hyp)) / float64(n)
}

// WordErrorRate is the word-level edit distance between ref and hyp divided by the number of
// reference words.
func WordErrorRate(ref, hyp string) float64 {
	refWords := strings.Fields(ref)
	hypWords := strings.Fields(hyp)
	if len(refWords) == 0 {
		if len(hypWords) == 0 {
			return 0
		}
		return 1
	}

	rate, _ := wer.WER(refWords, hypWords)
	return rate
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
