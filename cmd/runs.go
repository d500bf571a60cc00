package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/schoolsite/internal/export"
	"github.com/sells-group/schoolsite/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored analysis runs",
	Long:  "Commands for listing, viewing, exporting, and summarizing analysis runs saved with --save.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		policy, _ := cmd.Flags().GetString("policy")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, model.RunFilter{
			Status: model.RunStatus(status),
			Policy: model.Policy(policy),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs verdicts --

var runsVerdictsCmd = &cobra.Command{
	Use:   "verdicts <run-id>",
	Short: "Export the verdicts of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs verdicts")
		}
		verdicts, err := st.ListVerdicts(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs verdicts")
		}

		out, _ := cmd.Flags().GetString("out")
		if out != "" {
			return export.WriteVerdictsFile(out, verdicts, nil)
		}
		name, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(name)
		if err != nil {
			return err
		}
		return export.WriteVerdicts(os.Stdout, format, verdicts, nil)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, model.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, failed)")
	runsListCmd.Flags().String("policy", "", "filter by policy (feasibility, progression, upgrade, region, site, compare)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsVerdictsCmd.Flags().String("out", "", "write verdicts to this file; format follows the extension")
	runsVerdictsCmd.Flags().String("format", "csv", "stdout format when --out is not set (json, csv)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsVerdictsCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	Other      int
	ByPolicy   map[model.Policy]int
	Candidates int
	AvgDurMS   float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	s := runStats{Total: len(runs), ByPolicy: make(map[model.Policy]int)}

	var totalMS int64
	var durCount int
	for _, r := range runs {
		s.ByPolicy[r.Policy]++
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			if r.Result != nil {
				s.Candidates += r.Result.Candidates
				totalMS += r.Result.DurationMS
				durCount++
			}
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Other++
		}
	}

	if durCount > 0 {
		s.AvgDurMS = float64(totalMS) / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPOLICY\tSTATUS\tCANDIDATES\tCREATED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----------\t-------\t--------\t-----")

	for _, r := range runs {
		candidates, dur, errMsg := "", "", ""
		if r.Result != nil {
			candidates = fmt.Sprint(r.Result.Candidates)
			dur = (time.Duration(r.Result.DurationMS) * time.Millisecond).String()
			errMsg = r.Result.Error
			if len(errMsg) > 40 {
				errMsg = errMsg[:37] + "..."
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Policy,
			r.Status,
			candidates,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
			errMsg,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Other:\t%d\n", s.Other)
	_, _ = fmt.Fprintf(w, "Candidates evaluated:\t%d\n", s.Candidates)

	policies := make([]string, 0, len(s.ByPolicy))
	for p := range s.ByPolicy {
		policies = append(policies, string(p))
	}
	sort.Strings(policies)
	for _, p := range policies {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", p, s.ByPolicy[model.Policy(p)])
	}
	if s.AvgDurMS > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.0fms\n", s.AvgDurMS)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
