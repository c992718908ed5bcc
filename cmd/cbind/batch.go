package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"cbind/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch [cbind.toml]...",
	Short: "Generate every binding listed in cbind.toml manifests",
	Long: `Batch runs every [[binding]] of the given manifests concurrently. Without
arguments the nearest cbind.toml above the working directory is used.
Relative paths in a manifest are resolved against its directory.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().Int("jobs", 0, "maximum concurrent runs (manifest jobs, then GOMAXPROCS)")
	batchCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	addReportFlags(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := readOutputOptions(cmd)
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}

	manifests, err := resolveManifests(args)
	if err != nil {
		return err
	}
	stores := newStoreSet()
	defer stores.Close()
	reqs, manifestJobs, err := batchRequests(cmd, manifests, stores, maxDiagnostics)
	if err != nil {
		return err
	}
	if jobs <= 0 {
		jobs = manifestJobs
	}

	var results []*pipeline.Result
	var runErr error
	if shouldUseTUI(mode, out.quiet) {
		title := fmt.Sprintf("cbind: %d bindings", len(reqs))
		results, runErr = runBatchWithUI(cmd.Context(), title, reqs, jobs)
	} else {
		results, runErr = pipeline.RunAll(cmd.Context(), reqs, jobs)
	}
	printSummary(cmd.ErrOrStderr(), results, out)

	if err := writeReport(cmd, results, out.timings); err != nil {
		return err
	}
	return runErr
}

// batchRequests builds one request per binding. Binding names are prefixed
// with their manifest directory when several manifests are given.
func batchRequests(cmd *cobra.Command, manifests []*manifest, stores *storeSet, maxDiagnostics int) ([]*pipeline.Request, int, error) {
	var reqs []*pipeline.Request
	jobs := 0
	for _, m := range manifests {
		jobs = max(jobs, m.Config.Jobs)
		for _, b := range m.Config.Bindings {
			if len(manifests) > 1 {
				b.Name = filepath.ToSlash(filepath.Join(filepath.Base(m.Root), b.Name))
			}
			req, err := b.request(cmd.Context(), m.Root, stores, maxDiagnostics)
			if err != nil {
				return nil, 0, fmt.Errorf("%s: %w", m.Path, err)
			}
			reqs = append(reqs, req)
		}
	}
	return reqs, jobs, nil
}
