package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schoolsite/internal/analysis"
	"github.com/sells-group/schoolsite/internal/export"
	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/ingest"
	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/report"
	"github.com/sells-group/schoolsite/internal/store"
)

// analysisFlags are shared by every policy command.
type analysisFlags struct {
	reference         string
	referenceDataset  string
	candidates        string
	candidatesDataset string
	sheet             string
	out               string
	format            string
	boundaries        string
	boundaryField     string
	save              bool
	hotspots          bool
}

func addAnalysisFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("reference", "", "reference schools file (CSV, TSV, or XLSX)")
	f.String("reference-dataset", "", "stored dataset ID to use as the reference set")
	f.String("candidates", "", "candidate file; defaults to the reference set")
	f.String("candidates-dataset", "", "stored dataset ID to use as the candidate set")
	f.String("sheet", "", "XLSX sheet name (overrides ingest.sheet)")
	f.String("out", "", "write verdicts to this file; format follows the extension")
	f.String("format", "json", "stdout format when --out is not set (json, csv)")
	f.Bool("save", false, "persist the run and its verdicts to the store")
	f.Bool("hotspots", false, "print H3 hotspot cells after the run")
}

func readAnalysisFlags(cmd *cobra.Command) analysisFlags {
	f := cmd.Flags()
	var a analysisFlags
	a.reference, _ = f.GetString("reference")
	a.referenceDataset, _ = f.GetString("reference-dataset")
	a.candidates, _ = f.GetString("candidates")
	a.candidatesDataset, _ = f.GetString("candidates-dataset")
	a.sheet, _ = f.GetString("sheet")
	a.out, _ = f.GetString("out")
	a.format, _ = f.GetString("format")
	a.boundaries, _ = f.GetString("boundaries")
	a.boundaryField, _ = f.GetString("boundary-field")
	a.save, _ = f.GetBool("save")
	a.hotspots, _ = f.GetBool("hotspots")
	return a
}

func (a analysisFlags) needsStore() bool {
	return a.save || a.referenceDataset != "" || a.candidatesDataset != ""
}

// candidateType is the school type assumed for candidate rows without one.
func candidateType(p model.Policy) model.SchoolType {
	if p == model.PolicyCompare {
		return model.SchoolTypeBEF
	}
	return model.SchoolTypeGovernment
}

// runPolicy loads the inputs, runs p through an analysis session, and writes
// the verdicts.
func runPolicy(cmd *cobra.Command, p model.Policy) error {
	ctx := cmd.Context()
	flags := readAnalysisFlags(cmd)
	log := zap.L().With(zap.String("component", "cli"), zap.String("policy", string(p)))

	pcfg, err := cfg.PolicyConfig()
	if err != nil {
		return err
	}
	if _, err := export.ParseFormat(flags.format); err != nil && flags.out == "" {
		return err
	}

	var st store.Store
	if flags.needsStore() {
		st, err = initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
	}

	reference, err := loadSet(ctx, st, flags.reference, flags.referenceDataset, flags.sheet, model.SchoolTypeGovernment)
	if err != nil {
		return eris.Wrap(err, "load reference")
	}
	candidates := reference
	if flags.candidates != "" || flags.candidatesDataset != "" {
		candidates, err = loadSet(ctx, st, flags.candidates, flags.candidatesDataset, flags.sheet, candidateType(p))
		if err != nil {
			return eris.Wrap(err, "load candidates")
		}
	}

	opts := []analysis.Option{analysis.WithConcurrency(cfg.Analysis.Concurrency)}
	if flags.boundaries != "" {
		polys, err := geo.LoadBoundaries(flags.boundaries, flags.boundaryField)
		if err != nil {
			return eris.Wrap(err, "load boundaries")
		}
		opts = append(opts, analysis.WithBoundaries(polys))
	}
	if bar := newProgressBar(len(candidates), string(p)); bar != nil {
		opts = append(opts, analysis.WithProgress(func(_, _ int) { _ = bar.Add(1) }))
		defer bar.Finish() //nolint:errcheck
	}

	session, err := analysis.NewSession(reference, pcfg, opts...)
	if err != nil {
		return err
	}

	var run *model.Run
	if flags.save {
		snapshot, err := json.Marshal(pcfg)
		if err != nil {
			return eris.Wrap(err, "encode policy config")
		}
		run, err = st.CreateRun(ctx, model.Run{
			ID:          session.ID,
			Policy:      p,
			ReferenceID: flags.referenceDataset,
			CandidateID: flags.candidatesDataset,
			Config:      snapshot,
		})
		if err != nil {
			return err
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return err
		}
	}

	out, err := session.Run(ctx, p, candidates)
	if err != nil {
		if run != nil {
			if uerr := st.UpdateRunResult(ctx, run.ID, &model.RunResult{Error: err.Error()}); uerr != nil {
				log.Error("record failed run", zap.Error(uerr))
			}
		}
		return err
	}

	if run != nil {
		if err := st.SaveVerdicts(ctx, run.ID, out.Verdicts); err != nil {
			return err
		}
		if err := st.UpdateRunResult(ctx, run.ID, &model.RunResult{
			Candidates: len(out.Verdicts),
			ByTag:      out.Summary.ByTag,
			DurationMS: out.Duration.Milliseconds(),
		}); err != nil {
			return err
		}
		log.Info("run saved", zap.String("run_id", run.ID))
	}

	if err := writeOutcome(os.Stdout, flags, out); err != nil {
		return err
	}
	formatSummary(os.Stderr, out.Summary)

	if flags.hotspots {
		hs, err := report.Hotspots(out.Verdicts, cfg.Analysis.HotspotResolution)
		if err != nil {
			return err
		}
		formatHotspots(os.Stderr, hs, cfg.Analysis.TopK)
	}
	return nil
}

// loadSet reads entities from a file or from a stored dataset.
func loadSet(ctx context.Context, st store.Store, path, datasetID, sheet string, typ model.SchoolType) ([]model.Entity, error) {
	if datasetID != "" {
		return st.LoadEntities(ctx, datasetID)
	}
	if path == "" {
		return nil, eris.New("no input: pass a file or a dataset ID")
	}
	if sheet == "" {
		sheet = cfg.Ingest.Sheet
	}
	res, err := ingest.LoadFile(ctx, path, ingest.Options{
		Type:           typ,
		FunctionalOnly: cfg.Ingest.FunctionalOnly,
		Sheet:          sheet,
	})
	if err != nil {
		return nil, err
	}
	logRejects(path, res.Rejected)
	return res.Entities, nil
}

const maxLoggedRejects = 10

func logRejects(path string, rejects []*ingest.RowError) {
	for i, r := range rejects {
		if i == maxLoggedRejects {
			zap.L().Warn("more rows rejected", zap.String("file", path), zap.Int("remaining", len(rejects)-i))
			return
		}
		zap.L().Warn("row rejected", zap.String("file", path), zap.Error(r))
	}
}

func writeOutcome(w io.Writer, flags analysisFlags, out *analysis.Outcome) error {
	if flags.out != "" {
		if err := export.WriteVerdictsFile(flags.out, out.Verdicts, &out.Summary); err != nil {
			return err
		}
		zap.L().Info("verdicts written", zap.String("path", flags.out), zap.Int("verdicts", len(out.Verdicts)))
		return nil
	}
	format, err := export.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	return export.WriteVerdicts(w, format, out.Verdicts, &out.Summary)
}

// formatSummary prints per-tag counts and per-region totals.
func formatSummary(w io.Writer, s report.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TAG\tCOUNT\n")
	for _, tag := range model.Tags {
		if n := s.ByTag[tag]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", tag, n)
		}
	}
	fmt.Fprintf(tw, "TOTAL\t%d\n", s.Total)
	tw.Flush() //nolint:errcheck

	if len(s.Regions) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "REGION\tCANDIDATES\tREFERENCE\tFEASIBLE\tRECOMMENDED\n")
	for _, name := range s.RegionNames() {
		r := s.Regions[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", name, r.Candidates, r.ReferenceEntities, r.Feasible(), r.Recommended())
	}
	tw.Flush() //nolint:errcheck
}

// formatHotspots prints the densest limit cells.
func formatHotspots(w io.Writer, hs []report.Hotspot, limit int) {
	if limit > 0 && len(hs) > limit {
		hs = hs[:limit]
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CELL\tCOUNT\tLAT\tLNG\n")
	for _, h := range hs {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\n", h.Cell, h.Count, h.CenterLat, h.CenterLng)
	}
	tw.Flush() //nolint:errcheck
}
