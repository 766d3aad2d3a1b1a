package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/internal/logger"
	"go-image-enricher/internal/observer"
	"go-image-enricher/internal/snapshot"
	"go-image-enricher/pkg/models"
)

// Run identifies one pipeline invocation in logs and events.
type Run struct {
	ID    string
	Image string
}

// Outcome is the merged metadata plus the names of the analyzers that produced nothing.
type Outcome struct {
	Metadata    models.ImageMetadata
	Unavailable []string
	OCR         Result[models.OCRFindings]
}

// Aggregator fans an image out to the remote analyzers, extracts EXIF inline and merges the
// four results.
type Aggregator struct {
	ocr        Analyzer[models.OCRFindings]
	scene      Analyzer[models.SceneFindings]
	classifier Analyzer[models.ClassifierFindings]
	events     observer.Subject
}

// NewAggregator creates an aggregator. A nil events subject drops pipeline events.
func NewAggregator(
	ocr Analyzer[models.OCRFindings],
	scene Analyzer[models.SceneFindings],
	classifier Analyzer[models.ClassifierFindings],
	events observer.Subject,
) *Aggregator {
	if events == nil {
		events = observer.Discard{}
	}
	return &Aggregator{ocr: ocr, scene: scene, classifier: classifier, events: events}
}

// Enrich runs every analyzer over src and returns the merged metadata. The only error is an
// unreadable source; analyzer failures become sentinel values.
func (a *Aggregator) Enrich(ctx context.Context, run Run, src *snapshot.Source) (Outcome, error) {
	if _, err := src.Bytes(); err != nil {
		return Outcome{}, apperrors.NewInputError("failed to read image", err)
	}

	var (
		g          errgroup.Group
		ocrRes     Result[models.OCRFindings]
		sceneRes   Result[models.SceneFindings]
		classifRes Result[models.ClassifierFindings]
	)
	g.Go(func() error {
		ocrRes = guard(ctx, a.ocr, src)
		return nil
	})
	g.Go(func() error {
		sceneRes = guard(ctx, a.scene, src)
		return nil
	})
	g.Go(func() error {
		classifRes = guard(ctx, a.classifier, src)
		return nil
	})

	exifRes := a.extractEXIF(src)

	// goroutines never return an error
	_ = g.Wait()

	out := Outcome{
		Metadata: models.NewImageMetadata(
			ocrRes.ValueOrNil(),
			sceneRes.ValueOrNil(),
			classifRes.ValueOrNil(),
			exifRes.ValueOrNil(),
		),
		OCR: ocrRes,
	}

	a.report(ctx, run, NameOCR, ocrRes.Err, ocrRes.Duration, &out)
	a.report(ctx, run, NameScene, sceneRes.Err, sceneRes.Duration, &out)
	a.report(ctx, run, NameClassifier, classifRes.Err, classifRes.Duration, &out)
	a.report(ctx, run, NameEXIF, exifRes.Err, exifRes.Duration, &out)

	return out, nil
}

func (a *Aggregator) extractEXIF(src *snapshot.Source) Result[models.EXIFData] {
	img, err := src.Snapshot()
	if err != nil {
		return unavailable[models.EXIFData](apperrors.NewInputError("failed to snapshot image", err), time.Now())
	}
	return ExtractEXIF(img)
}

func (a *Aggregator) report(ctx context.Context, run Run, name string, err *apperrors.AppError, d time.Duration, out *Outcome) {
	entry := logger.ForImage(run.Image, run.ID).WithFields(logrus.Fields{
		"analyzer":    name,
		"duration_ms": d.Milliseconds(),
	})
	if err == nil {
		entry.Debug("Analyzer completed")
		return
	}

	out.Unavailable = append(out.Unavailable, name)
	entry.WithField("error_type", err.Type).WithError(err).Warn("Analyzer unavailable")
	a.events.NotifyObservers(ctx, observer.EnrichmentEvent{
		EventType:      observer.AnalyzerUnavailable,
		RunID:          run.ID,
		Image:          run.Image,
		Analyzer:       name,
		ErrorType:      string(err.Type),
		ProcessingTime: d,
		ErrorMessage:   err.Error(),
	})
}

// guard runs one analyzer and turns a panic into an unavailable result.
func guard[T any](ctx context.Context, an Analyzer[T], src *snapshot.Source) (res Result[T]) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = unavailable[T](apperrors.NewInternalError(fmt.Sprintf("%s analyzer panicked: %v", an.Name(), p), nil), start)
		}
	}()
	return an.Analyze(ctx, src)
}
