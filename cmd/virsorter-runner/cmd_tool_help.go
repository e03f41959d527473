package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
)

func newToolHelpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tool-help",
		Short: "Print the VirSorter wrapper's own usage text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(a.cfg.ScratchDir, 0750); err != nil {
				return &entities.DirectoryCreateError{Path: a.cfg.ScratchDir, Err: err}
			}

			orch, err := a.newPipeline(nil, nil)
			if err != nil {
				return err
			}

			result, err := orch.Help(cmd.Context())
			if result != nil {
				_, _ = cmd.OutOrStdout().Write(result.Output)
			}

			// the wrapper exits non-zero after printing its usage
			var toolErr *entities.ExternalToolError
			if errors.As(err, &toolErr) && toolErr.Err == nil && len(toolErr.Output) > 0 {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to run tool help: %w", err)
			}
			return nil
		},
	}
}
