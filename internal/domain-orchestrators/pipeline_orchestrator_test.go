package orchestrators

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ochairo/virsorter-runner/internal/domain-adapters/gateways"
	"github.com/ochairo/virsorter-runner/internal/domain/entities"
	"github.com/ochairo/virsorter-runner/internal/domain/services"
)

type mockBuilder struct {
	err       error
	calls     int
	gotParams *entities.RunParameters
}

func (m *mockBuilder) Build(params *entities.RunParameters) (*entities.CommandLine, error) {
	m.calls++
	m.gotParams = params
	if m.err != nil {
		return nil, m.err
	}
	return entities.NewCommandLine("virsorter", "-f", "a.fa"), nil
}

func (m *mockBuilder) BuildHelp() *entities.CommandLine {
	return entities.NewCommandLine("virsorter", "--help")
}

type mockRunner struct {
	result  *entities.ProcessResult
	err     error
	calls   int
	gotCmd  *entities.CommandLine
	gotOpts entities.RunOptions
}

func (m *mockRunner) Run(_ context.Context, cmd *entities.CommandLine, opts entities.RunOptions) (*entities.ProcessResult, error) {
	m.calls++
	m.gotCmd = cmd
	m.gotOpts = opts
	if m.result == nil {
		m.result = &entities.ProcessResult{Duration: time.Second}
	}
	return m.result, m.err
}

type mockParser struct {
	records []*entities.SummaryRecord
	err     error
	calls   int
	gotPath string
}

func (m *mockParser) ParseFile(path string) ([]*entities.SummaryRecord, error) {
	m.calls++
	m.gotPath = path
	return m.records, m.err
}

type mockRenderer struct {
	calls   int
	gotOpts services.RenderOptions
}

func (m *mockRenderer) Render(records []*entities.SummaryRecord, opts services.RenderOptions) (string, error) {
	m.calls++
	m.gotOpts = opts
	return "<html>" + strings.Repeat("<tr>", len(records)) + "</html>", nil
}

type mockPackager struct {
	err     error
	calls   int
	gotDir  string
	gotHTML string
}

func (m *mockPackager) Package(_ context.Context, outputDir, html string) (*entities.ReportBundle, error) {
	m.calls++
	m.gotDir = outputDir
	m.gotHTML = html
	if m.err != nil {
		return nil, m.err
	}
	return &entities.ReportBundle{StagingDir: "/scratch/report_1", HTMLPath: "/scratch/report_1/index.html"}, nil
}

type mockPublisher struct {
	err    error
	calls  int
	gotReq services.PublishRequest
}

func (m *mockPublisher) Publish(_ context.Context, _ *entities.ReportBundle, req services.PublishRequest) (*entities.ReportInfo, error) {
	m.calls++
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &entities.ReportInfo{Name: "VirSorter_report_1", Ref: "1/2/3"}, nil
}

type pipelineMocks struct {
	builder   *mockBuilder
	runner    *mockRunner
	parser    *mockParser
	renderer  *mockRenderer
	packager  *mockPackager
	publisher *mockPublisher
}

func newTestPipeline(t *testing.T, scratch string) (*PipelineOrchestrator, *pipelineMocks) {
	t.Helper()
	m := &pipelineMocks{
		builder: &mockBuilder{},
		runner:  &mockRunner{},
		parser: &mockParser{records: []*entities.SummaryRecord{
			{ID: "VIRSorter_seq_1", Category: "1"},
			{ID: "VIRSorter_seq_2", Category: "3"},
		}},
		renderer:  &mockRenderer{},
		packager:  &mockPackager{},
		publisher: &mockPublisher{},
	}
	orch, err := NewPipelineOrchestrator(
		m.builder, m.runner, gateways.NewArtifactFinder(), m.parser, m.renderer, m.packager, m.publisher,
		PipelineConfig{ScratchDir: scratch, ToolTimeout: time.Hour},
		nil,
	)
	if err != nil {
		t.Fatalf("NewPipelineOrchestrator() error = %v", err)
	}
	return orch, m
}

func testParams() *entities.RunParameters {
	return entities.NewRunParameters(map[string]interface{}{
		"genomes":        "a.fa",
		"database":       1,
		"virome":         0,
		"diamond":        1,
		"keep_db":        1,
		"no_c":           1,
		"workspace_name": "user:narrative_1",
	})
}

func TestPipelineOrchestrator_Run_Success(t *testing.T) {
	scratch := t.TempDir()
	orch, m := newTestPipeline(t, scratch)

	result, err := orch.Run(context.Background(), testParams())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Success || result.Report.Ref != "1/2/3" {
		t.Errorf("result = %+v", result)
	}
	if filepath.Dir(result.WorkDir) != scratch || !strings.HasPrefix(filepath.Base(result.WorkDir), "run_") {
		t.Errorf("WorkDir = %s, want run_<id> under %s", result.WorkDir, scratch)
	}
	if info, err := os.Stat(result.WorkDir); err != nil || !info.IsDir() {
		t.Errorf("work dir not created: %v", err)
	}

	if m.runner.gotOpts.WorkingDir != result.WorkDir || m.runner.gotOpts.Timeout != time.Hour {
		t.Errorf("runner options = %+v", m.runner.gotOpts)
	}
	wantOutput := filepath.Join(result.WorkDir, "virsorter-out")
	if m.parser.gotPath != filepath.Join(wantOutput, "VIRSorter_global-phage-signal.csv") {
		t.Errorf("parser path = %s", m.parser.gotPath)
	}
	if m.packager.gotDir != wantOutput || m.packager.gotHTML != "<html><tr><tr></html>" {
		t.Errorf("packager got dir %s html %q", m.packager.gotDir, m.packager.gotHTML)
	}
	if !m.renderer.gotOpts.GeneratedAt.IsZero() {
		t.Error("report should not be timestamped without a clock")
	}
	if m.publisher.gotReq.WorkspaceName != "user:narrative_1" {
		t.Errorf("workspace = %s", m.publisher.gotReq.WorkspaceName)
	}
	if m.publisher.gotReq.Message != "VirSorter found 2 putative viral contigs" {
		t.Errorf("message = %s", m.publisher.gotReq.Message)
	}
}

func TestPipelineOrchestrator_Run_ToolFailureStopsPipeline(t *testing.T) {
	orch, m := newTestPipeline(t, t.TempDir())
	m.runner.result = &entities.ProcessResult{ExitCode: 2, Output: []byte("no such database")}
	m.runner.err = &entities.ExternalToolError{Command: "virsorter -f a.fa", ExitCode: 2, Output: []byte("no such database")}

	result, err := orch.Run(context.Background(), testParams())

	var toolErr *entities.ExternalToolError
	if !errors.As(err, &toolErr) || toolErr.ExitCode != 2 {
		t.Fatalf("Run() error = %v, want ExternalToolError with exit 2", err)
	}
	if result.FailedStage != StageTool || result.Success {
		t.Errorf("FailedStage = %s, Success = %v", result.FailedStage, result.Success)
	}
	if m.parser.calls != 0 || m.renderer.calls != 0 || m.packager.calls != 0 || m.publisher.calls != 0 {
		t.Errorf("later stages ran: parse=%d render=%d package=%d publish=%d",
			m.parser.calls, m.renderer.calls, m.packager.calls, m.publisher.calls)
	}
}

func TestPipelineOrchestrator_Run_NonZeroExitWithoutError(t *testing.T) {
	orch, m := newTestPipeline(t, t.TempDir())
	m.runner.result = &entities.ProcessResult{ExitCode: 5, Output: []byte("killed")}

	result, err := orch.Run(context.Background(), testParams())

	var toolErr *entities.ExternalToolError
	if !errors.As(err, &toolErr) || toolErr.ExitCode != 5 || string(toolErr.Output) != "killed" {
		t.Fatalf("Run() error = %v, want ExternalToolError with exit 5", err)
	}
	if result.FailedStage != StageTool {
		t.Errorf("FailedStage = %s, want %s", result.FailedStage, StageTool)
	}
	if m.parser.calls != 0 || m.packager.calls != 0 || m.publisher.calls != 0 {
		t.Errorf("later stages ran: parse=%d package=%d publish=%d",
			m.parser.calls, m.packager.calls, m.publisher.calls)
	}
}

func TestPipelineOrchestrator_Run_ResolvesRelativeGenomes(t *testing.T) {
	t.Chdir(t.TempDir())
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		genomes string
		want    string
	}{
		{"relative", "a.fa", filepath.Join(cwd, "a.fa")},
		{"relative_subdir", "inputs/../reads/a.fa", filepath.Join(cwd, "reads", "a.fa")},
		{"absolute", filepath.Join(cwd, "abs.fa"), filepath.Join(cwd, "abs.fa")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch, m := newTestPipeline(t, t.TempDir())

			if _, err := orch.Run(context.Background(), testParams().With("genomes", tt.genomes)); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got, _ := m.builder.gotParams.String("genomes"); got != tt.want {
				t.Errorf("genomes = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPipelineOrchestrator_Run_ValidationErrors(t *testing.T) {
	t.Run("missing workspace", func(t *testing.T) {
		scratch := t.TempDir()
		orch, m := newTestPipeline(t, scratch)
		params := entities.NewRunParameters(map[string]interface{}{"genomes": "a.fa"})

		result, err := orch.Run(context.Background(), params)

		var missing *entities.MissingParameterError
		if !errors.As(err, &missing) || missing.Name != "workspace_name" {
			t.Fatalf("Run() error = %v, want missing workspace_name", err)
		}
		if result.FailedStage != StageValidate || m.builder.calls != 0 || m.runner.calls != 0 {
			t.Errorf("stage = %s, builder=%d runner=%d", result.FailedStage, m.builder.calls, m.runner.calls)
		}
	})

	t.Run("builder rejects parameters", func(t *testing.T) {
		scratch := t.TempDir()
		orch, m := newTestPipeline(t, scratch)
		m.builder.err = &entities.MissingParameterError{Name: "database"}

		_, err := orch.Run(context.Background(), testParams())

		var missing *entities.MissingParameterError
		if !errors.As(err, &missing) || missing.Name != "database" {
			t.Fatalf("Run() error = %v, want missing database", err)
		}
		if m.runner.calls != 0 {
			t.Error("tool ran despite invalid parameters")
		}
		if entries, _ := os.ReadDir(scratch); len(entries) != 0 {
			t.Errorf("scratch should stay empty, has %d entries", len(entries))
		}
	})
}

func TestPipelineOrchestrator_Run_WorkDirError(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(scratch, nil, 0600); err != nil {
		t.Fatal(err)
	}
	orch, m := newTestPipeline(t, scratch)

	result, err := orch.Run(context.Background(), testParams())

	var dirErr *entities.DirectoryCreateError
	if !errors.As(err, &dirErr) {
		t.Fatalf("Run() error = %v, want DirectoryCreateError", err)
	}
	if result.FailedStage != StagePrepare || m.runner.calls != 0 {
		t.Errorf("stage = %s, runner calls = %d", result.FailedStage, m.runner.calls)
	}
}

func TestPipelineOrchestrator_Run_LaterStageErrors(t *testing.T) {
	t.Run("malformed summary", func(t *testing.T) {
		orch, m := newTestPipeline(t, t.TempDir())
		m.parser.err = &entities.MalformedSummaryError{Line: 3, Reason: "expected 12 fields"}

		result, err := orch.Run(context.Background(), testParams())

		var malformed *entities.MalformedSummaryError
		if !errors.As(err, &malformed) {
			t.Fatalf("Run() error = %v, want MalformedSummaryError", err)
		}
		if result.FailedStage != StageParse || m.packager.calls != 0 || m.publisher.calls != 0 {
			t.Errorf("stage = %s, package=%d publish=%d", result.FailedStage, m.packager.calls, m.publisher.calls)
		}
	})

	t.Run("packaging", func(t *testing.T) {
		orch, m := newTestPipeline(t, t.TempDir())
		m.packager.err = &entities.DirectoryCreateError{Path: "/scratch/report_1", Err: os.ErrPermission}

		result, err := orch.Run(context.Background(), testParams())

		if !errors.Is(err, os.ErrPermission) || result.FailedStage != StagePackage {
			t.Fatalf("Run() error = %v, stage %s", err, result.FailedStage)
		}
		if m.publisher.calls != 0 {
			t.Error("publisher called after packaging failure")
		}
	})

	t.Run("publish", func(t *testing.T) {
		orch, m := newTestPipeline(t, t.TempDir())
		m.publisher.err = &entities.PublishError{Stage: services.StageUpload, Err: errors.New("401")}

		result, err := orch.Run(context.Background(), testParams())

		var pubErr *entities.PublishError
		if !errors.As(err, &pubErr) || pubErr.Stage != services.StageUpload {
			t.Fatalf("Run() error = %v, want PublishError", err)
		}
		if result.FailedStage != StagePublish || result.Report != nil {
			t.Errorf("stage = %s, report = %+v", result.FailedStage, result.Report)
		}
		if !strings.Contains(result.GetRunSummary(), "failed at publish") {
			t.Errorf("summary = %s", result.GetRunSummary())
		}
	})
}

func TestPipelineOrchestrator_Run_TimestampsReport(t *testing.T) {
	orch, m := newTestPipeline(t, t.TempDir())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	orch.config.Now = func() time.Time { return fixed }

	if _, err := orch.Run(context.Background(), testParams()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !m.renderer.gotOpts.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v, want %v", m.renderer.gotOpts.GeneratedAt, fixed)
	}
}

func TestPipelineOrchestrator_Help(t *testing.T) {
	orch, m := newTestPipeline(t, t.TempDir())

	if _, err := orch.Help(context.Background()); err != nil {
		t.Fatalf("Help() error = %v", err)
	}
	if m.runner.gotCmd.String() != "virsorter --help" {
		t.Errorf("help command = %s", m.runner.gotCmd.String())
	}
}

func TestRunResult_GetRunSummary_Success(t *testing.T) {
	result := &RunResult{
		RunID:         "abc",
		Records:       make([]*entities.SummaryRecord, 3),
		Report:        &entities.ReportInfo{Name: "VirSorter_report_1", Ref: "1/2/3"},
		Tool:          &entities.ProcessResult{Duration: time.Minute},
		TotalDuration: 2 * time.Minute,
		Success:       true,
	}

	summary := result.GetRunSummary()
	for _, want := range []string{"Run: abc", "Contigs: 3", "VirSorter_report_1 (1/2/3)", "Tool: 1m0s"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestReportMessage(t *testing.T) {
	if got := reportMessage(nil); got != "VirSorter found no viral contigs" {
		t.Errorf("reportMessage(nil) = %s", got)
	}
	if got := reportMessage(make([]*entities.SummaryRecord, 1)); got != "VirSorter found 1 putative viral contig" {
		t.Errorf("reportMessage(1) = %s", got)
	}
}
