package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/tiktock-go/internal/domain"
)

var historyCmd = newHistoryCmd()

func newHistoryCmd() *cobra.Command {
	var (
		limit     int
		deleteRun bool
	)
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List past batches or show one batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Sync()

			repo, err := openHistory(config)
			if err != nil {
				return err
			}
			defer repo.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return listHistory(out, repo, limit)
			}

			if deleteRun {
				if err := repo.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Batch %s deleted\n", args[0])
				return nil
			}

			record, err := repo.FindByID(args[0])
			if err != nil {
				return err
			}
			printBatchRecord(out, record)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to list")
	cmd.Flags().BoolVar(&deleteRun, "delete", false, "Delete the given batch from history")
	return cmd
}

func listHistory(out io.Writer, repo domain.BatchRepository, limit int) error {
	records, err := repo.FindRecent(limit)
	if err != nil {
		return err
	}
	stats, err := repo.GetStats()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tCOMPLETED\tFAILED\tTOTAL\tFINISHED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			truncate(r.ID, 8),
			r.State,
			r.CompletedCount,
			r.FailedCount,
			r.TotalRequested,
			r.FinishedAt.Local().Format(time.DateTime))
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d batches, %d items (%d succeeded, %d failed), %s downloaded\n",
		stats.Batches, stats.Items, stats.Succeeded, stats.Failed, humanizeSize(stats.Bytes))
	return nil
}

func printBatchRecord(out io.Writer, r *domain.BatchRecord) {
	fmt.Fprintf(out, "Batch Details:\n")
	fmt.Fprintf(out, "  ID:        %s\n", r.ID)
	fmt.Fprintf(out, "  State:     %s\n", r.State)
	fmt.Fprintf(out, "  Output:    %s\n", r.OutputDir)
	fmt.Fprintf(out, "  Started:   %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "  Finished:  %s\n", r.FinishedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "  Completed: %d of %d\n", r.CompletedCount, r.TotalRequested)
	fmt.Fprintf(out, "  Failed:    %d\n", r.FailedCount)

	if len(r.Items) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tURL\tSTATUS\tSIZE\tDETAIL")
	for _, item := range r.Items {
		status, detail := "ok", item.OutputPath
		if !item.Success {
			status, detail = "failed", item.ErrorMessage
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			item.Sequence, item.URL, status, humanizeSize(item.SizeBytes), detail)
	}
	w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
