package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tagvm/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarizes a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios against fresh machines.

Each scenario declares a target, a host string model, types and steps
(region visits, string and path round trips). Assertions are checked
against the resulting trace, and the trace is compared with
golden/<scenario>.golden next to the scenario files when that file exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  tagvm test ./scenarios
  tagvm test ./scenarios --filter "windows-*"
  tagvm test ./scenarios --update
  tagvm test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, "scenarios directory not found: "+dir)
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	out := opts.formatter(cmd)
	if len(files) == 0 && !out.JSON() {
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}

	r := &scenarioRunner{update: opts.Update}
	if !out.JSON() {
		r.progress = out.Writer
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		result.add(r.run(file))
	}
	return reportTests(out, result)
}

// findScenarioFiles walks dir for .yaml and .yml files, skipping golden
// directories. A non-empty filter is matched against the file name
// without its extension.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// scenarioRunner executes scenario files one at a time. Progress lines
// go to progress when it is non-nil.
type scenarioRunner struct {
	update   bool
	progress io.Writer
}

func (r *scenarioRunner) run(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.fail(filepath.Base(file), "failed to load scenario: "+err.Error())
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return r.fail(scenario.Name, "execution failed: "+err.Error())
	}

	trace, err := harness.NewTraceSnapshot(scenario, result).MarshalCanonical()
	if err != nil {
		return r.fail(scenario.Name, "failed to marshal trace: "+err.Error())
	}

	golden := goldenFilePath(file)
	if r.update {
		if err := writeGoldenFile(golden, trace); err != nil {
			return r.fail(scenario.Name, "failed to update golden file: "+err.Error())
		}
		return r.pass(scenario.Name, " (golden updated)")
	}

	errs := append([]string(nil), result.Errors...)
	if msg := compareGolden(golden, trace); msg != "" {
		errs = append(errs, msg)
	}
	if len(errs) > 0 {
		return r.fail(scenario.Name, errs...)
	}
	return r.pass(scenario.Name, "")
}

func (r *scenarioRunner) pass(name, note string) ScenarioResult {
	if r.progress != nil {
		fmt.Fprintf(r.progress, "✓ %s%s\n", name, note)
	}
	return ScenarioResult{Name: name, Pass: true}
}

func (r *scenarioRunner) fail(name string, errs ...string) ScenarioResult {
	if r.progress != nil {
		fmt.Fprintf(r.progress, "✗ %s\n", name)
		for _, e := range errs {
			fmt.Fprintf(r.progress, "  %s\n", e)
		}
	}
	return ScenarioResult{Name: name, Errors: errs}
}

// compareGolden returns a failure message when the golden file exists and
// differs from trace. A missing golden file is not a failure.
func compareGolden(path string, trace []byte) string {
	golden, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ""
	case err != nil:
		return "golden comparison failed: " + err.Error()
	case !bytes.Equal(golden, trace):
		return "trace does not match golden file (run with --update to regenerate)"
	}
	return ""
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// reportTests writes the summary. Any failed scenario yields ExitFailure.
func reportTests(out *OutputFormatter, result TestResult) error {
	var failErr error
	if result.Failed > 0 {
		failErr = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	if out.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if failErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_TEST_FAILED", Message: failErr.Error()}
		}
		if err := out.encode(resp); err != nil {
			return err
		}
		return failErr
	}

	fmt.Fprintf(out.Writer, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if failErr != nil {
		return failErr
	}
	fmt.Fprintln(out.Writer, "✓ All scenarios passed")
	return nil
}
