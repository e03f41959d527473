package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ochairo/virsorter-runner/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/virsorter-runner/internal/domain-orchestrators"
	"github.com/ochairo/virsorter-runner/internal/domain/interfaces"
	reportgateways "github.com/ochairo/virsorter-runner/internal/domain/interfaces/gateways"
	"github.com/ochairo/virsorter-runner/internal/domain/services"
	"github.com/ochairo/virsorter-runner/internal/external-adapters/gpg"
	"github.com/ochairo/virsorter-runner/internal/external-adapters/yaml"
)

// RunReport is the machine-readable outcome of a run
type RunReport struct {
	RunID               string          `json:"run_id"`
	Success             bool            `json:"success"`
	FailedStage         string          `json:"failed_stage,omitempty"`
	Error               string          `json:"error,omitempty"`
	Command             string          `json:"command,omitempty"`
	ToolExitCode        *int            `json:"tool_exit_code,omitempty"`
	ToolDurationSeconds float64         `json:"tool_duration_seconds"`
	Contigs             int             `json:"contigs"`
	ReportName          string          `json:"report_name,omitempty"`
	ReportRef           string          `json:"report_ref,omitempty"`
	Archives            []ArchiveReport `json:"archives,omitempty"`
	DurationSeconds     float64         `json:"duration_seconds"`
}

// ArchiveReport describes one attached sequence archive
type ArchiveReport struct {
	Name    string   `json:"name"`
	SHA256  string   `json:"sha256"`
	Members []string `json:"members"`
}

func newRunCmd(a *app) *cobra.Command {
	var paramsFile, jsonOutput string

	cmd := &cobra.Command{
		Use:   "run --params <file>",
		Short: "Run VirSorter and publish the report",
		Long: `Runs VirSorter with the parameters in a YAML or JSON file and publishes the report.

The parameter file is either a bare mapping or a job document whose "params"
list holds the mapping:

  genomes: /data/assembly.fa
  database: 1
  virome: 1
  diamond: 1
  keep_db: 1
  no_c: 1
  workspace_name: user:narrative_1

A switch (virome, diamond, keep_db, no_c) whose value is 0 enables the
corresponding VirSorter flag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPipeline(cmd, paramsFile, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&paramsFile, "params", "", "YAML or JSON parameter file")
	cmd.Flags().StringVar(&jsonOutput, "json-output", "", "Optional JSON file for the run report")
	_ = cmd.MarkFlagRequired("params")
	return cmd
}

func (a *app) runPipeline(cmd *cobra.Command, paramsFile, jsonOutput string) error {
	params, err := yaml.NewParamsParser().ParseFile(paramsFile)
	if err != nil {
		return err
	}
	if err := a.cfg.ValidateForPublish(); err != nil {
		return err
	}

	var signer reportgateways.Signer
	if a.cfg.SigningEnabled() {
		s, err := gpg.LoadSigner(a.cfg.SigningKeyPath, a.cfg.SigningPassphrase)
		if err != nil {
			return fmt.Errorf("failed to load signing key: %w", err)
		}
		a.logger.Info("Report packages will be signed",
			interfaces.F("fingerprint", s.Fingerprint()))
		signer = s
	}

	packager := gateways.NewPackager(a.cfg.ScratchDir, a.logger)
	publisher := services.NewReportPublisher(
		packager,
		gateways.NewHTTPBlobStore(a.cfg.BlobStoreURL, a.cfg.AuthToken),
		gateways.NewRPCReportRegistry(a.cfg.CallbackURL, a.cfg.AuthToken),
		signer,
		a.logger,
	)

	orch, err := a.newPipeline(packager, publisher)
	if err != nil {
		return err
	}

	result, runErr := orch.Run(cmd.Context(), params)

	if jsonOutput != "" {
		if err := writeRunReport(jsonOutput, result); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.GetRunSummary())
	return nil
}

// newPipeline wires the orchestrator; packager and publisher may be nil for help-only use
func (a *app) newPipeline(packager orchestrators.ArtifactPackager, publisher orchestrators.ReportPublisher) (*orchestrators.PipelineOrchestrator, error) {
	return orchestrators.NewPipelineOrchestrator(
		services.NewCommandBuilder(a.cfg.ToolBinary, a.cfg.DataDir),
		gateways.NewProcessRunner(a.cfg.ToolTimeout, a.cfg.MaxOutputBytes, a.logger),
		gateways.NewArtifactFinder(),
		services.NewSummaryParser(),
		services.NewReportRenderer(),
		packager,
		publisher,
		orchestrators.PipelineConfig{
			ScratchDir:  a.cfg.ScratchDir,
			ToolTimeout: a.cfg.ToolTimeout,
			Now:         time.Now,
		},
		a.logger,
	)
}

func writeRunReport(path string, result *orchestrators.RunResult) error {
	report := RunReport{
		RunID:           result.RunID,
		Success:         result.Success,
		FailedStage:     result.FailedStage,
		Contigs:         len(result.Records),
		DurationSeconds: result.TotalDuration.Seconds(),
	}
	if result.Error != nil {
		report.Error = result.Error.Error()
	}
	if result.Command != nil {
		report.Command = result.Command.String()
	}
	if result.Tool != nil {
		exitCode := result.Tool.ExitCode
		report.ToolExitCode = &exitCode
		report.ToolDurationSeconds = result.Tool.Duration.Seconds()
	}
	if result.Report != nil {
		report.ReportName = result.Report.Name
		report.ReportRef = result.Report.Ref
	}
	if result.Bundle != nil {
		for _, archive := range result.Bundle.Archives {
			report.Archives = append(report.Archives, ArchiveReport{
				Name:    archive.Name,
				SHA256:  archive.SHA256,
				Members: archive.Members,
			})
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}
