// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
	"github.com/ochairo/virsorter-runner/internal/domain/interfaces"
	"github.com/ochairo/virsorter-runner/internal/domain/services"
	"github.com/ochairo/virsorter-runner/internal/telemetry"
)

// Pipeline stages, used in errors, spans and metrics
const (
	StageValidate = "validate"
	StagePrepare  = "prepare"
	StageTool     = "tool"
	StageParse    = "parse"
	StageRender   = "render"
	StagePackage  = "package"
	StagePublish  = "publish"
)

const runDirPrefix = "run_"

// CommandBuilder turns run parameters into a tool invocation
type CommandBuilder interface {
	Build(params *entities.RunParameters) (*entities.CommandLine, error)
	BuildHelp() *entities.CommandLine
}

// ProcessRunner executes a tool invocation
type ProcessRunner interface {
	Run(ctx context.Context, cmd *entities.CommandLine, opts entities.RunOptions) (*entities.ProcessResult, error)
}

// OutputLocator knows where the tool leaves its results
type OutputLocator interface {
	OutputDir(workDir string) string
	SummaryPath(outputDir string) string
}

// SummaryParser reads the tool's summary table
type SummaryParser interface {
	ParseFile(path string) ([]*entities.SummaryRecord, error)
}

// ReportRenderer renders summary records as an HTML page
type ReportRenderer interface {
	Render(records []*entities.SummaryRecord, opts services.RenderOptions) (string, error)
}

// ArtifactPackager stages the HTML page and sequence archives
type ArtifactPackager interface {
	Package(ctx context.Context, outputDir, html string) (*entities.ReportBundle, error)
}

// ReportPublisher uploads and registers a staged report
type ReportPublisher interface {
	Publish(ctx context.Context, bundle *entities.ReportBundle, req services.PublishRequest) (*entities.ReportInfo, error)
}

// PipelineConfig holds configuration for the orchestrator
type PipelineConfig struct {
	ScratchDir  string
	ToolTimeout time.Duration
	// Now stamps the HTML report; nil leaves the report without a timestamp
	Now func() time.Time
}

// PipelineOrchestrator runs VirSorter and turns its output into a published report
type PipelineOrchestrator struct {
	builder   CommandBuilder
	runner    ProcessRunner
	locator   OutputLocator
	parser    SummaryParser
	renderer  ReportRenderer
	packager  ArtifactPackager
	publisher ReportPublisher
	config    PipelineConfig
	logger    interfaces.Logger

	tracer       trace.Tracer
	runs         metric.Int64Counter
	toolDuration metric.Float64Histogram
}

// NewPipelineOrchestrator creates a new pipeline orchestrator
func NewPipelineOrchestrator(
	builder CommandBuilder,
	runner ProcessRunner,
	locator OutputLocator,
	parser SummaryParser,
	renderer ReportRenderer,
	packager ArtifactPackager,
	publisher ReportPublisher,
	config PipelineConfig,
	logger interfaces.Logger,
) (*PipelineOrchestrator, error) {
	meter := telemetry.Meter()

	runs, err := meter.Int64Counter("virsorter.runs",
		metric.WithDescription("VirSorter pipeline runs by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	toolDuration, err := meter.Float64Histogram("virsorter.tool.duration",
		metric.WithDescription("Wall time of the VirSorter process"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &PipelineOrchestrator{
		builder:      builder,
		runner:       runner,
		locator:      locator,
		parser:       parser,
		renderer:     renderer,
		packager:     packager,
		publisher:    publisher,
		config:       config,
		logger:       interfaces.OrNoOp(logger),
		tracer:       telemetry.Tracer(),
		runs:         runs,
		toolDuration: toolDuration,
	}, nil
}

// RunResult contains the result of a pipeline run
type RunResult struct {
	RunID         string
	WorkDir       string
	Command       *entities.CommandLine
	Tool          *entities.ProcessResult
	Records       []*entities.SummaryRecord
	Bundle        *entities.ReportBundle
	Report        *entities.ReportInfo
	FailedStage   string
	TotalDuration time.Duration
	Success       bool
	Error         error
}

// Run executes the tool with params and publishes the resulting report.
// The first failing stage stops the run; later stages are never attempted.
func (o *PipelineOrchestrator) Run(ctx context.Context, params *entities.RunParameters) (*RunResult, error) {
	startTime := time.Now()
	result := &RunResult{RunID: uuid.NewString()}

	ctx, span := o.tracer.Start(ctx, "virsorter.run",
		trace.WithAttributes(attribute.String("virsorter.run_id", result.RunID)))
	defer span.End()

	err := o.run(ctx, params, result)
	result.TotalDuration = time.Since(startTime)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		result.Error = err
		span.RecordError(err)
		span.SetStatus(codes.Error, result.FailedStage)
		o.logger.Error("VirSorter run failed",
			interfaces.F("run_id", result.RunID),
			interfaces.F("stage", result.FailedStage),
			interfaces.Err(err))
	} else {
		result.Success = true
		o.logger.Info("VirSorter run finished",
			interfaces.F("run_id", result.RunID),
			interfaces.F("report", result.Report.Ref),
			interfaces.F("duration", result.TotalDuration.String()))
	}

	o.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("stage", result.FailedStage)))

	return result, err
}

func (o *PipelineOrchestrator) run(ctx context.Context, params *entities.RunParameters, result *RunResult) error {
	// Step 1: Validate parameters before touching the filesystem
	workspace := params.WorkspaceName()
	if workspace == "" {
		return o.fail(result, StageValidate, &entities.MissingParameterError{Name: entities.ParamWorkspaceName})
	}
	params, err := absoluteGenomes(params)
	if err != nil {
		return o.fail(result, StageValidate, err)
	}
	cmd, err := o.builder.Build(params)
	if err != nil {
		return o.fail(result, StageValidate, err)
	}
	result.Command = cmd

	// Step 2: Private working directory, so concurrent runs never share virsorter-out
	workDir := filepath.Join(o.config.ScratchDir, runDirPrefix+result.RunID)
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return o.fail(result, StagePrepare, &entities.DirectoryCreateError{Path: workDir, Err: err})
	}
	result.WorkDir = workDir

	// Step 3: Run the tool
	err = o.stage(ctx, StageTool, func(ctx context.Context) error {
		toolResult, err := o.runner.Run(ctx, cmd, entities.RunOptions{
			WorkingDir:  workDir,
			Timeout:     o.config.ToolTimeout,
			Description: "VirSorter",
		})
		result.Tool = toolResult
		if toolResult != nil {
			o.toolDuration.Record(ctx, toolResult.Duration.Seconds(),
				metric.WithAttributes(attribute.Int("exit_code", toolResult.ExitCode)))
		}
		if err != nil {
			return err
		}
		if toolResult == nil || !toolResult.Success() {
			toolErr := &entities.ExternalToolError{Command: cmd.String(), ExitCode: -1}
			if toolResult != nil {
				toolErr.ExitCode = toolResult.ExitCode
				toolErr.Output = toolResult.Output
			}
			return toolErr
		}
		return nil
	})
	if err != nil {
		return o.fail(result, StageTool, err)
	}

	outputDir := o.locator.OutputDir(workDir)

	// Step 4: Parse the summary table
	err = o.stage(ctx, StageParse, func(context.Context) error {
		records, err := o.parser.ParseFile(o.locator.SummaryPath(outputDir))
		result.Records = records
		return err
	})
	if err != nil {
		return o.fail(result, StageParse, err)
	}

	// Step 5: Render HTML
	var html string
	err = o.stage(ctx, StageRender, func(context.Context) error {
		opts := services.RenderOptions{Title: services.DefaultReportTitle}
		if o.config.Now != nil {
			opts.GeneratedAt = o.config.Now()
		}
		rendered, err := o.renderer.Render(result.Records, opts)
		html = rendered
		return err
	})
	if err != nil {
		return o.fail(result, StageRender, err)
	}

	// Step 6: Stage archives and HTML
	err = o.stage(ctx, StagePackage, func(ctx context.Context) error {
		bundle, err := o.packager.Package(ctx, outputDir, html)
		result.Bundle = bundle
		return err
	})
	if err != nil {
		return o.fail(result, StagePackage, err)
	}

	// Step 7: Publish
	err = o.stage(ctx, StagePublish, func(ctx context.Context) error {
		report, err := o.publisher.Publish(ctx, result.Bundle, services.PublishRequest{
			WorkspaceName: workspace,
			Message:       reportMessage(result.Records),
		})
		result.Report = report
		return err
	})
	if err != nil {
		return o.fail(result, StagePublish, err)
	}

	return nil
}

// absoluteGenomes resolves a relative assembly path against the caller's
// working directory, since the tool runs inside the per-run directory
func absoluteGenomes(params *entities.RunParameters) (*entities.RunParameters, error) {
	genomes, ok := params.String(entities.ParamGenomes)
	if !ok || genomes == "" || filepath.IsAbs(genomes) {
		return params, nil
	}
	abs, err := filepath.Abs(genomes)
	if err != nil {
		return nil, &entities.InvalidParameterError{Name: entities.ParamGenomes, Value: genomes, Reason: err.Error()}
	}
	return params.With(entities.ParamGenomes, abs), nil
}

// Help runs the tool's --help and returns whatever it printed
func (o *PipelineOrchestrator) Help(ctx context.Context) (*entities.ProcessResult, error) {
	return o.runner.Run(ctx, o.builder.BuildHelp(), entities.RunOptions{
		WorkingDir:  o.config.ScratchDir,
		Timeout:     time.Minute,
		Description: "VirSorter help",
	})
}

// stage runs fn inside a child span named after the stage
func (o *PipelineOrchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "virsorter."+name)
	defer span.End()

	o.logger.Debug("Starting stage", interfaces.F("stage", name))
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (o *PipelineOrchestrator) fail(result *RunResult, stage string, err error) error {
	result.FailedStage = stage
	return fmt.Errorf("%s stage failed: %w", stage, err)
}

func reportMessage(records []*entities.SummaryRecord) string {
	switch len(records) {
	case 0:
		return "VirSorter found no viral contigs"
	case 1:
		return "VirSorter found 1 putative viral contig"
	default:
		return fmt.Sprintf("VirSorter found %d putative viral contigs", len(records))
	}
}

// GetRunSummary returns a human-readable summary of the run
func (r *RunResult) GetRunSummary() string {
	if !r.Success {
		return fmt.Sprintf("VirSorter run failed at %s: %v", r.FailedStage, r.Error)
	}

	toolDuration := time.Duration(0)
	if r.Tool != nil {
		toolDuration = r.Tool.Duration
	}

	return fmt.Sprintf(`VirSorter run successful!
Run: %s
Contigs: %d
Report: %s (%s)
Tool: %v
Total: %v`,
		r.RunID,
		len(r.Records),
		r.Report.Name,
		r.Report.Ref,
		toolDuration,
		r.TotalDuration,
	)
}
