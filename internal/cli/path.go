package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/machine"
	"github.com/roach88/tagvm/internal/osstr"
)

// PathOptions holds flags for the path command.
type PathOptions struct {
	*RootOptions
	Target string // overrides the configured target
}

// PathResult shows a host path as the guest sees it and back.
type PathResult struct {
	Target   string `json:"target"`
	Host     string `json:"host"`
	Input    string `json:"input"`
	Guest    string `json:"guest"`
	Encoded  string `json:"encoded"`
	Back     string `json:"back"`
	Lossless bool   `json:"lossless"`
}

// NewPathCommand creates the path command.
func NewPathCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PathOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "path <host-path>",
		Short: "Marshal a host path into guest memory and back",
		Long: `Convert <host-path> to the target's separator convention, store it in
guest memory in the target's string encoding, then read it back as a host
path.

Mixed separators do not survive the round trip; lossless reports whether
the input came back unchanged. Unsupported targets fail and, when a
diagnostics database is configured, the failure is recorded there.

Examples:
  tagvm path 'C:\Users\guest' --target x86_64-windows
  tagvm path /tmp/a/b --target x86_64-windows --config tagvm.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPath(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "simulation target (defaults to the configured target)")

	return cmd
}

func runPath(opts *PathOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Target != "" {
		cfg.Target = opts.Target
	}

	target, err := resolveTarget(cfg.Target)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), err.Error(), nil)
	}

	sess, err := newSession(cmd.Context(), cfg, target, nil)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeMachine, err.Error(), nil)
	}
	defer sess.Close()
	m := sess.m

	hostPath := osstr.FromString(m.Host(), input)
	guest := osstr.ToTargetPath(hostPath, target.PathSeparator)

	ptr, err := m.AllocOsStrAsTargetStr(guest, machine.KindHeap)
	if err != nil {
		return machineFailure(formatter, err)
	}
	encoded, err := encodeGuest(m, ptr)
	if err != nil {
		return machineFailure(formatter, err)
	}
	back, err := m.ReadPathFromTargetStr(m.PointerScalar(ptr))
	if err != nil {
		return machineFailure(formatter, err)
	}

	result := PathResult{
		Target:   target.Name,
		Host:     m.Host().Name(),
		Input:    input,
		Guest:    guest.String(),
		Encoded:  encoded,
		Back:     back.String(),
		Lossless: back.Equal(hostPath),
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "target %s, host %s\n", result.Target, result.Host)
	fmt.Fprintf(w, "  guest:   %s\n", result.Guest)
	fmt.Fprintf(w, "  encoded: %s\n", result.Encoded)
	fmt.Fprintf(w, "  back:    %s\n", result.Back)
	if !result.Lossless {
		fmt.Fprintln(w, "  (lossy: mixed separators)")
	}
	return nil
}

// encodeGuest renders the stored string, terminator excluded: hex bytes on
// narrow targets and hex code units on wide ones.
func encodeGuest(m *machine.Machine, ptr machine.Pointer) (string, error) {
	if m.Target().Family == ir.FamilyWindows {
		units, err := m.Memory().ReadWideStr(ptr)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(units))
		for i, u := range units {
			parts[i] = fmt.Sprintf("%04x", u)
		}
		return strings.Join(parts, " "), nil
	}
	b, err := m.Memory().ReadCStr(ptr)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// machineFailure reports a machine error under its own code. Guest-visible
// errors exit 1; anything else is a command error.
func machineFailure(formatter *OutputFormatter, err error) error {
	var me *machine.MachineError
	if errors.As(err, &me) {
		return formatter.Fail(ExitFailure, string(me.Code), me.Message, me.Details)
	}
	return formatter.Fail(ExitCommandError, ErrCodeMachine, err.Error(), nil)
}
