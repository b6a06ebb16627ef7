package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/execution"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/gateway"
)

type exportOptions struct {
	Namespace  string
	WorkflowID string
	RunID      string
}

func newExportCommand(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an execution's full history to stdout, one JSON page per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// fail fast rather than retrying forever from a terminal
			rt, err := connect(cmd.Context(), root, 3)
			if err != nil {
				return err
			}
			defer rt.Close()
			return exportHistory(cmd.Context(), rt.gw, *opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.Namespace, "namespace", "default", "namespace of the execution")
	cmd.Flags().StringVar(&opts.WorkflowID, "workflow-id", "", "workflow id")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (defaults to the current run)")
	_ = cmd.MarkFlagRequired("workflow-id")
	return cmd
}

// exportHistory follows page tokens and writes each cli-mode page as a line.
func exportHistory(ctx context.Context, gw *gateway.Client, opts exportOptions, w io.Writer) error {
	enc := json.NewEncoder(w)
	hopts := gateway.HistoryOptions{
		Namespace: opts.Namespace,
		Execution: execution.Ref{WorkflowID: opts.WorkflowID, RunID: opts.RunID},
	}
	for {
		page, next, err := gw.ExportHistory(ctx, hopts)
		if err != nil {
			return err
		}
		if err := enc.Encode(page); err != nil {
			return err
		}
		if len(next) == 0 {
			return nil
		}
		hopts.NextPageToken = next
	}
}
