package analyzer

import (
	"context"
	"io"

	"github.com/google/uuid"

	"go-image-enricher/internal/customvision"
	"go-image-enricher/internal/snapshot"
	"go-image-enricher/internal/vision"
)

// Analyzer derives one kind of finding from an image. Implementations never return an error:
// failures are carried in the Result.
type Analyzer[T any] interface {
	Name() string
	Analyze(ctx context.Context, src *snapshot.Source) Result[T]
}

// TextRecognizer reads printed text from an image.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, image io.ReadSeeker, language string) (*vision.OCRResult, error)
}

// SceneDescriber returns description tags and colour information for an image.
type SceneDescriber interface {
	DescribeScene(ctx context.Context, image io.ReadSeeker) (*vision.SceneAnalysis, error)
}

// ImageClassifier runs a trained custom classifier over an image.
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, projectID uuid.UUID, image io.ReadSeeker) (*customvision.ImagePrediction, error)
}
