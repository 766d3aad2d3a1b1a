// Package tesseract recognises text locally through libtesseract. It produces the same
// region/line/word structure as the remote OCR endpoint so the OCR analyzer can use either.
package tesseract

import (
	"context"
	"fmt"
	"io"

	"github.com/otiai10/gosseract/v2"

	"go-image-enricher/internal/vision"
)

// languages maps the two-letter codes used by the remote service to tesseract model names.
var languages = map[string]string{
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"nl": "nld",
	"pt": "por",
}

// Recognizer implements the analyzer's TextRecognizer with gosseract.
type Recognizer struct {
	clientFactory func() *gosseract.Client
}

// NewRecognizer constructs a tesseract-backed recognizer.
func NewRecognizer() *Recognizer {
	return &Recognizer{clientFactory: gosseract.NewClient}
}

type outcome struct {
	res *vision.OCRResult
	err error
}

// RecognizeText runs tesseract on the image. The engine call cannot be interrupted, so on
// cancellation the call returns ctx.Err() and the engine finishes in the background.
func (r *Recognizer) RecognizeText(ctx context.Context, img io.ReadSeeker, lang string) (*vision.OCRResult, error) {
	data, err := io.ReadAll(img)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := r.recognize(data, lang)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}

func (r *Recognizer) recognize(data []byte, lang string) (*vision.OCRResult, error) {
	c := r.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	model := Language(lang)
	if err := c.SetLanguage(model); err != nil {
		return nil, fmt.Errorf("set language %s: %w", model, err)
	}

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	res := BuildResult(boxes)
	res.Language = lang
	return res, nil
}

// Language returns the tesseract model name for a two-letter language code. Unknown codes are
// passed through unchanged.
func Language(code string) string {
	if model, ok := languages[code]; ok {
		return model
	}
	if code == "" {
		return languages["en"]
	}
	return code
}

type lineKey struct {
	par, line int
}

// BuildResult groups word boxes into regions by block and into lines by paragraph and line
// number, preserving reading order.
func BuildResult(boxes []gosseract.BoundingBox) *vision.OCRResult {
	res := &vision.OCRResult{}

	blockIndex := map[int]int{}
	lineIndex := map[int]map[lineKey]int{}

	for _, b := range boxes {
		if b.Word == "" {
			continue
		}

		ri, ok := blockIndex[b.BlockNum]
		if !ok {
			ri = len(res.Regions)
			blockIndex[b.BlockNum] = ri
			lineIndex[b.BlockNum] = map[lineKey]int{}
			res.Regions = append(res.Regions, vision.OCRRegion{})
		}
		region := &res.Regions[ri]

		key := lineKey{b.ParNum, b.LineNum}
		li, ok := lineIndex[b.BlockNum][key]
		if !ok {
			li = len(region.Lines)
			lineIndex[b.BlockNum][key] = li
			region.Lines = append(region.Lines, vision.OCRLine{})
		}
		region.Lines[li].Words = append(region.Lines[li].Words, vision.OCRWord{
			BoundingBox: fmt.Sprintf("%d,%d,%d,%d", b.Box.Min.X, b.Box.Min.Y, b.Box.Dx(), b.Box.Dy()),
			Text:        b.Word,
		})
	}
	return res
}
