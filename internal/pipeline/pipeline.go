// Package pipeline drives the fetch → extract → detect → score → persist
// flow for scan targets.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carteakey/aidar/internal/detect"
	"github.com/carteakey/aidar/internal/extract"
	"github.com/carteakey/aidar/internal/model"
	"github.com/carteakey/aidar/internal/pattern"
	"github.com/carteakey/aidar/internal/resilience"
	"github.com/carteakey/aidar/internal/score"
	"github.com/carteakey/aidar/internal/store"
)

// Stage identifies where in the per-target pipeline an outcome was decided.
type Stage string

const (
	StagePending    Stage = "PENDING"
	StageFetching   Stage = "FETCHING"
	StageExtracting Stage = "EXTRACTING"
	StageDetecting  Stage = "DETECTING"
	StageScoring    Stage = "SCORING"
	StagePersisting Stage = "PERSISTING"

	// Terminal success stages. StageScored is reached when persistence was
	// not requested.
	StageScored    Stage = "SCORED"
	StagePersisted Stage = "PERSISTED"

	// StageSkipped marks targets filtered out before fetching.
	StageSkipped Stage = "SKIPPED"
)

// Outcome is the terminal state of one target's pipeline.
type Outcome struct {
	Target   string
	Identity model.Identity
	Stage    Stage
	Result   *model.Result
	Err      error
}

// Succeeded reports whether the target reached a terminal success stage.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && (o.Stage == StageScored || o.Stage == StagePersisted)
}

// Deps are the collaborators a Pipeline needs. Store may be nil when
// nothing will be persisted; Breakers may be nil to disable host breaking.
type Deps struct {
	Evaluator  *score.Evaluator
	Weights    pattern.Weights
	Thresholds score.Thresholds
	Web        extract.Extractor
	File       extract.Extractor
	Store      store.Store
	Breakers   *resilience.HostBreakers
}

// Pipeline runs the scan stages for single targets and batches.
type Pipeline struct {
	deps Deps

	// writeMu serializes persistence commits: the store is single-writer,
	// concurrent pipelines queue here.
	writeMu sync.Mutex
}

// New creates a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Evaluator == nil {
		return nil, eris.New("pipeline: evaluator is required")
	}
	if deps.Web == nil && deps.File == nil {
		return nil, eris.New("pipeline: at least one extractor is required")
	}
	return &Pipeline{deps: deps}, nil
}

// IdentityFor classifies a target as a URL or a local file path.
func IdentityFor(target string) model.Identity {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return model.NewURLIdentity(target)
	}
	return model.NewFileIdentity(target)
}

// Run executes the full pipeline for a single target. A failure at any
// stage produces an Outcome tagged with that stage; it never aborts
// sibling targets.
func (p *Pipeline) Run(ctx context.Context, target string, save bool) Outcome {
	id := IdentityFor(target)
	out := Outcome{Target: target, Identity: id, Stage: StagePending}
	log := zap.L().With(zap.String("target", target))

	ex, stage, err := p.extractTarget(ctx, id, target)
	if err != nil {
		out.Stage = stage
		out.Err = err
		log.Warn("pipeline: target failed",
			zap.String("stage", string(stage)),
			zap.String("class", resilience.ClassifyError(err)),
			zap.Error(err),
		)
		return out
	}

	out.Stage = StageDetecting
	doc := detect.NewDocument(ex.Text)
	results := p.deps.Evaluator.Evaluate(doc)

	out.Stage = StageScoring
	agg := score.Aggregate(results, p.deps.Weights, p.deps.Thresholds)

	res := &model.Result{
		Identity:       id,
		Title:          ex.Title,
		WordCount:      doc.WordCount,
		PatternResults: results,
		CategoryScores: agg.CategoryScores,
		Index:          agg.Index,
		Label:          agg.Label,
		PublishedDate:  ex.PublishedDate,
		ScannedAt:      time.Now().UTC(),
	}
	out.Result = res

	if !save || p.deps.Store == nil {
		out.Stage = StageScored
		return out
	}

	out.Stage = StagePersisting
	p.writeMu.Lock()
	_, err = p.deps.Store.SaveResult(ctx, res)
	p.writeMu.Unlock()
	if err != nil {
		out.Err = eris.Wrapf(err, "pipeline: persist %s", target)
		log.Error("pipeline: persist failed", zap.Error(err))
		return out
	}

	out.Stage = StagePersisted
	log.Info("pipeline: target persisted",
		zap.Int("index", res.Index),
		zap.String("label", string(res.Label)),
		zap.Int("word_count", res.WordCount),
	)
	return out
}

// extractTarget fetches and extracts, tagging failures with the stage they
// belong to.
func (p *Pipeline) extractTarget(ctx context.Context, id model.Identity, target string) (*extract.Extraction, Stage, error) {
	extractor := p.deps.File
	isURL := id.URL != ""
	if isURL {
		extractor = p.deps.Web
	}
	if extractor == nil {
		return nil, StageFetching, eris.Errorf("pipeline: no extractor for %s", target)
	}

	host := id.Domain()
	if isURL && p.deps.Breakers != nil {
		if err := p.deps.Breakers.Allow(host); err != nil {
			return nil, StageFetching, eris.Wrapf(err, "pipeline: %s", host)
		}
	}

	ex, err := extractor.Extract(ctx, target)

	if isURL && p.deps.Breakers != nil {
		p.deps.Breakers.Record(host, err)
	}

	if err != nil {
		var ee *extract.ExtractionError
		if errors.As(err, &ee) {
			return nil, StageExtracting, err
		}
		return nil, StageFetching, err
	}
	return ex, StageExtracting, nil
}
