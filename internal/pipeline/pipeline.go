package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"searchreporting/internal/export"
	"searchreporting/internal/extract"
	"searchreporting/internal/observability"
	"searchreporting/pkg/errors"
)

// ConversionsStage refreshes the staged conversions.
type ConversionsStage interface {
	Run(ctx context.Context) (int64, error)
}

// AdsStage appends the ads reports of every leaf account under root.
type AdsStage interface {
	Run(ctx context.Context, root string, from, to civil.Date) (*extract.AdsSummary, error)
}

// JoinStage rebuilds the final report over a window.
type JoinStage interface {
	Run(ctx context.Context, from, to civil.Date) error
}

// ExportStage publishes the offline conversion feed.
type ExportStage interface {
	Run(ctx context.Context) (*export.Result, error)
}

// Stages groups the steps of a run, in execution order.
type Stages struct {
	Conversions ConversionsStage
	Ads         AdsStage
	Join        JoinStage
	Export      ExportStage
}

// Request selects the root account and the ads window of a run.
type Request struct {
	Root string
	From civil.Date
	To   civil.Date
}

// StepResult records the outcome of one step.
type StepResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Summary describes a finished or aborted run.
type Summary struct {
	RunID          string
	Root           string
	From           civil.Date
	To             civil.Date
	ReportFrom     civil.Date
	ConversionRows int64
	Ads            *extract.AdsSummary
	Export         *export.Result
	Steps          []StepResult
	Duration       time.Duration
}

// Failed returns the first failed step, if any.
func (s *Summary) Failed() *StepResult {
	for i := range s.Steps {
		if s.Steps[i].Err != nil {
			return &s.Steps[i]
		}
	}
	return nil
}

// Pipeline runs the stages sequentially and stops at the first failure.
type Pipeline struct {
	stages      Stages
	reportSince civil.Date
	logger      *observability.Logger
}

// New creates a pipeline. The final report is rebuilt from reportSince up to
// the end of each requested window.
func New(stages Stages, reportSince civil.Date, logger *observability.Logger) *Pipeline {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Pipeline{
		stages:      stages,
		reportSince: reportSince,
		logger:      logger,
	}
}

// Run executes conversions, ads, join and export for req. The summary is
// returned even when a step fails.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Summary, error) {
	if req.Root == "" {
		return nil, errors.ValidationError("mcc", req.Root, "a root account id is required")
	}
	if req.To.Before(req.From) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "Start date is after end date").
			WithContext("from", req.From.String()).
			WithContext("to", req.To.String())
	}

	summary := &Summary{
		RunID:      uuid.New().String(),
		Root:       req.Root,
		From:       req.From,
		To:         req.To,
		ReportFrom: p.reportSince,
	}
	logger := p.logger.WithFields(map[string]interface{}{
		"run_id": summary.RunID,
		"mcc":    req.Root,
	})
	logger.InfoWithFields("Pipeline started", map[string]interface{}{
		"from": req.From.String(),
		"to":   req.To.String(),
	})

	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"conversions", func(ctx context.Context) error {
			rows, err := p.stages.Conversions.Run(ctx)
			summary.ConversionRows = rows
			return err
		}},
		{"ads", func(ctx context.Context) error {
			ads, err := p.stages.Ads.Run(ctx, req.Root, req.From, req.To)
			summary.Ads = ads
			return err
		}},
		{"join", func(ctx context.Context) error {
			return p.stages.Join.Run(ctx, p.reportSince, req.To)
		}},
		{"export", func(ctx context.Context) error {
			result, err := p.stages.Export.Run(ctx)
			summary.Export = result
			return err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		stepStart := time.Now()
		err := step.run(ctx)
		result := StepResult{Name: step.name, Duration: time.Since(stepStart), Err: err}
		summary.Steps = append(summary.Steps, result)

		if err != nil {
			fields := map[string]interface{}{"step": step.name}
			var appErr *errors.AppError
			if stderrors.As(err, &appErr) {
				for k, v := range appErr.Fields() {
					fields[k] = v
				}
			}
			logger.WithError(err).ErrorWithFields("Pipeline step failed", fields)
			return summary, err
		}
		logger.InfoWithFields("Pipeline step finished", map[string]interface{}{
			"step":     step.name,
			"duration": result.Duration.String(),
		})
	}

	logger.WithField("duration", time.Since(start).String()).Info("Pipeline finished")
	return summary, nil
}
