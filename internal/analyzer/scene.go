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

// SceneAnalyzer extracts description tags and colours, and flags fire.
type SceneAnalyzer struct {
	describer SceneDescriber
	opts      Options
}

// NewSceneAnalyzer creates a scene tag analyzer backed by describer.
func NewSceneAnalyzer(describer SceneDescriber, opts Options) *SceneAnalyzer {
	return &SceneAnalyzer{describer: describer, opts: opts.withDefaults()}
}

func (a *SceneAnalyzer) Name() string { return NameScene }

func (a *SceneAnalyzer) Analyze(ctx context.Context, src *snapshot.Source) Result[models.SceneFindings] {
	start := time.Now()

	img, err := src.Snapshot()
	if err != nil {
		return unavailable[models.SceneFindings](apperrors.NewInputError("failed to snapshot image", err), start)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	res, err := a.describer.DescribeScene(ctx, img)
	if err != nil {
		return unavailable[models.SceneFindings](apperrors.ClassifyRemote("scene analysis failed", err), start)
	}

	return available(a.findings(res), start)
}

func (a *SceneAnalyzer) findings(res *vision.SceneAnalysis) models.SceneFindings {
	var f models.SceneFindings
	if res == nil {
		return f
	}

	f.Tags = strings.Join(res.Description.Tags, ",")
	f.DominantColours = strings.Join(res.Color.DominantColors, ",")
	if res.Color.AccentColor != "" {
		f.AccentColour = "#" + res.Color.AccentColor
	}
	f.IsOnFire = IsOnFire(res.Description.Tags, a.opts.FireTagWindow, a.opts.FireTags)
	return f
}

// IsOnFire reports whether any of the first window tags is one of fireTags.
func IsOnFire(tags []string, window int, fireTags []string) bool {
	if window < 0 {
		window = 0
	}
	if window < len(tags) {
		tags = tags[:window]
	}
	for _, tag := range tags {
		for _, fire := range fireTags {
			if tag == fire {
				return true
			}
		}
	}
	return false
}
