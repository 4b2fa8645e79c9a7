package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tagvm/internal/machine"
	"github.com/roach88/tagvm/internal/store"
)

// DiagOptions holds flags for the diag command.
type DiagOptions struct {
	*RootOptions
	Database string
	Code     string // optional - filter to one error code
}

// DiagEntry is one recorded diagnostic.
type DiagEntry struct {
	Seq     int64             `json:"seq"`
	Code    string            `json:"code"`
	Op      string            `json:"op,omitempty"`
	Message string            `json:"message"`
	Fatal   bool              `json:"fatal"`
	Details map[string]string `json:"details,omitempty"`
}

// DiagResult holds the diagnostics of one run.
type DiagResult struct {
	RunID       string         `json:"run_id"`
	Diagnostics []DiagEntry    `json:"diagnostics"`
	Codes       map[string]int `json:"codes"`
}

// NewDiagCommand creates the diag command.
func NewDiagCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diag [run-id]",
		Short: "Inspect recorded diagnostics",
		Long: `Inspect the diagnostics database written by machine runs.

Without a run id, lists the recorded runs. With a run id, lists that
run's diagnostics in sequence order.

The database defaults to diagnostics_db from the configuration
(or TAGVM_DIAGNOSTICS_DB).

Examples:
  tagvm diag --db ./tagvm.db
  tagvm diag --db ./tagvm.db 0192f1c4-7d2e-7a11-9c3b-5e8f2a1d4b60
  tagvm diag --db ./tagvm.db 0192f1c4-7d2e-7a11-9c3b-5e8f2a1d4b60 --code UNSUPPORTED_TARGET`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runDiag(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the diagnostics database")
	cmd.Flags().StringVar(&opts.Code, "code", "", "filter to one error code")

	return cmd
}

func runDiag(opts *DiagOptions, runID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		dbPath = cfg.DiagnosticsDB
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no diagnostics database: pass --db or set diagnostics_db")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", dbPath))
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if formatter.JSON() {
			return formatter.Success(runs)
		}
		return outputRunsText(cmd, runs)
	}

	diags, err := st.ReadDiagnostics(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read diagnostics", err)
	}

	result := buildDiagResult(runID, diags, opts.Code)
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputDiagText(cmd, result, opts.Verbose)
}

// buildDiagResult converts stored diagnostics, keeping only code when set.
func buildDiagResult(runID string, diags []machine.Diagnostic, code string) DiagResult {
	result := DiagResult{
		RunID:       runID,
		Diagnostics: []DiagEntry{},
		Codes:       map[string]int{},
	}
	for _, d := range diags {
		if code != "" && string(d.Code) != code {
			continue
		}
		result.Diagnostics = append(result.Diagnostics, DiagEntry{
			Seq:     d.Seq,
			Code:    string(d.Code),
			Op:      d.Op,
			Message: d.Message,
			Fatal:   d.Fatal,
			Details: d.Details,
		})
		result.Codes[string(d.Code)]++
	}
	return result
}

func outputRunsText(cmd *cobra.Command, runs []store.Run) error {
	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		isolation := "isolated"
		if !r.Isolation {
			isolation = "communicating"
		}
		fmt.Fprintf(w, "%s  %s  host=%s  seed=%d  %s\n", r.ID, r.Target, r.Host, r.Seed, isolation)
	}
	return nil
}

func outputDiagText(cmd *cobra.Command, result DiagResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Diagnostics for run: %s\n", result.RunID)
	if len(result.Diagnostics) == 0 {
		fmt.Fprintln(w, "  (none)")
		return nil
	}

	for _, d := range result.Diagnostics {
		marker := ""
		if d.Fatal {
			marker = " FATAL"
		}
		fmt.Fprintf(w, "  [%d] %s%s %s: %s\n", d.Seq, d.Code, marker, d.Op, d.Message)
		if verbose && len(d.Details) > 0 {
			fmt.Fprintf(w, "       %s\n", formatDetails(d.Details))
		}
	}

	fmt.Fprintln(w)
	codes := make([]string, 0, len(result.Codes))
	for c := range result.Codes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "  %-26s %d\n", c, result.Codes[c])
	}
	return nil
}

// formatDetails renders details with sorted keys.
func formatDetails(details map[string]string) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, details[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
