package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tagvm/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Target string // overrides the configured target
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Target string                     `json:"target"`
	Types  int                        `json:"types"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <types>",
		Short: "Validate type declarations against a target",
		Long: `Validate CUE type declarations without running the machine.

<types> is a .cue file or a directory of .cue files. Declarations are
checked against the schema, then resolved in a registry sized for the
target. The target's own table entry is checked as well.

Examples:
  tagvm validate ./types
  tagvm validate ./types/header.cue --target i686-linux`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "simulation target (defaults to the configured target)")

	return cmd
}

func runValidate(opts *ValidateOptions, typesPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	targetName, err := opts.targetName()
	if err != nil {
		return err
	}
	target, err := resolveTarget(targetName)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), err.Error(), nil)
	}

	loaded, err := LoadTypeDecls(typesPath)
	if err != nil {
		code := loadErrorCode(err)
		if code == ErrCodeLoadFailed {
			return outputValidationErrors(formatter, targetName, []compiler.ValidationError{
				{Field: "types", Message: err.Error(), Code: code},
			})
		}
		return formatter.Fail(ExitCommandError, code, err.Error(), nil)
	}
	formatter.VerboseLog("Loaded %d declaration(s) from %d file(s)", len(loaded.Decls), loaded.FileCount)

	errs := compiler.ValidateTarget(target)
	if _, err := compiler.BuildRegistry(target, loaded.Decls); err != nil {
		errs = append(errs, compiler.ValidationError{
			Field:   "types",
			Message: err.Error(),
			Code:    ErrCodeDeclareFailed,
		})
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, targetName, errs)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Target: targetName, Types: len(loaded.Decls)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d type(s) valid for %s\n", len(loaded.Decls), targetName)
	return nil
}

// targetName returns the --target flag or the configured target.
func (o *ValidateOptions) targetName() (string, error) {
	if o.Target != "" {
		return o.Target, nil
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Target, nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, target string, errs []compiler.ValidationError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Target: target, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		})
		if err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
