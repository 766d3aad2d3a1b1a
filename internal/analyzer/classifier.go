package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-image-enricher/internal/config"
	"go-image-enricher/internal/customvision"
	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/internal/snapshot"
	"go-image-enricher/pkg/models"
)

// ClassifierAnalyzer asks the custom classifier whether the image shows a transformer or a
// power pole.
type ClassifierAnalyzer struct {
	classifier ImageClassifier
	secrets    config.SecretsFunc
	opts       Options
}

// NewClassifierAnalyzer creates a classifier analyzer. The project id is read from secrets on
// every call.
func NewClassifierAnalyzer(classifier ImageClassifier, secrets config.SecretsFunc, opts Options) *ClassifierAnalyzer {
	return &ClassifierAnalyzer{classifier: classifier, secrets: secrets, opts: opts.withDefaults()}
}

func (a *ClassifierAnalyzer) Name() string { return NameClassifier }

func (a *ClassifierAnalyzer) Analyze(ctx context.Context, src *snapshot.Source) Result[models.ClassifierFindings] {
	start := time.Now()

	projectID, err := uuid.Parse(strings.TrimSpace(a.secrets().ProjectID))
	if err != nil {
		return unavailable[models.ClassifierFindings](apperrors.NewParseError("invalid classifier project id", err), start)
	}

	img, err := src.Snapshot()
	if err != nil {
		return unavailable[models.ClassifierFindings](apperrors.NewInputError("failed to snapshot image", err), start)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	res, err := a.classifier.ClassifyImage(ctx, projectID, img)
	if err != nil {
		return unavailable[models.ClassifierFindings](apperrors.ClassifyRemote("custom classification failed", err), start)
	}

	var preds []customvision.Prediction
	if res != nil {
		preds = res.Predictions
	}
	return available(ClassifierFindingsFrom(preds, a.opts), start)
}

// ClassifierFindingsFrom sets a flag when any prediction for its tag is strictly above the
// threshold.
func ClassifierFindingsFrom(preds []customvision.Prediction, opts Options) models.ClassifierFindings {
	var f models.ClassifierFindings
	for _, p := range preds {
		if p.Probability <= opts.ClassifierThreshold {
			continue
		}
		switch p.TagName {
		case opts.TransformerTag:
			f.ContainsTransformer = true
		case opts.PoleTag:
			f.ContainsPole = true
		}
	}
	return f
}
