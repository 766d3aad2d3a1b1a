package analyzer

import (
	"context"
	"strings"
	"time"

	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/internal/snapshot"
	"go-image-enricher/internal/vision"
	"go-image-enricher/pkg/models"
)

// OCRAnalyzer recognises text in an image and derives hazard sign flags from it.
type OCRAnalyzer struct {
	recognizer TextRecognizer
	opts       Options
}

// NewOCRAnalyzer creates an OCR analyzer backed by recognizer.
func NewOCRAnalyzer(recognizer TextRecognizer, opts Options) *OCRAnalyzer {
	return &OCRAnalyzer{recognizer: recognizer, opts: opts.withDefaults()}
}

func (a *OCRAnalyzer) Name() string { return NameOCR }

func (a *OCRAnalyzer) Analyze(ctx context.Context, src *snapshot.Source) Result[models.OCRFindings] {
	start := time.Now()

	img, err := src.Snapshot()
	if err != nil {
		return unavailable[models.OCRFindings](apperrors.NewInputError("failed to snapshot image", err), start)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	res, err := a.recognizer.RecognizeText(ctx, img, a.opts.OCRLanguage)
	if err != nil {
		return unavailable[models.OCRFindings](apperrors.ClassifyRemote("text recognition failed", err), start)
	}

	return available(DeriveOCRFindings(FlattenOCR(res)), start)
}

// FlattenOCR joins the recognised words in reading order: each word is followed by a space
// and each line by a comma.
func FlattenOCR(res *vision.OCRResult) string {
	if res == nil {
		return ""
	}
	var sb strings.Builder
	for _, region := range res.Regions {
		for _, line := range region.Lines {
			for _, word := range line.Words {
				sb.WriteString(word.Text)
				sb.WriteByte(' ')
			}
			sb.WriteByte(',')
		}
	}
	return sb.String()
}

// DeriveOCRFindings computes the hazard sign flags for text. Empty text yields no flags.
func DeriveOCRFindings(text string) models.OCRFindings {
	if text == "" {
		return models.OCRFindings{}
	}

	lower := strings.ToLower(text)
	has := func(s string) bool { return strings.Contains(lower, s) }

	danger := has("danger")
	return models.OCRFindings{
		Text:                  text,
		HasHighVoltageSign:    danger && has("high") && has("voltage"),
		HasLiveElectricalSign: danger && has("live") && (has("electrical") || has("equipment")),
		HasLiveWiresSign:      danger && has("live") && has("wires"),
	}
}
