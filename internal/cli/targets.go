package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tagvm/internal/compiler"
)

// TargetInfo summarizes one built-in simulation target.
type TargetInfo struct {
	Name          string `json:"name"`
	OS            string `json:"os"`
	Family        string `json:"family"`
	PointerSize   uint64 `json:"pointer_size"`
	Endian        string `json:"endian"`
	PathSeparator string `json:"path_separator"`
	LibcConstants int    `json:"libc_constants"`
}

// NewTargetsCommand creates the targets command.
func NewTargetsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List built-in simulation targets",
		Long: `List the simulation targets compiled into tagvm.

Each target fixes pointer width, byte order, string family, path separator
and the libc constants that shims report to guest programs.

Examples:
  tagvm targets
  tagvm targets --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTargets(rootOpts, cmd)
		},
	}
}

func runTargets(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	targets, err := compiler.LoadTargets()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
	}

	names := slices.Sorted(maps.Keys(targets))
	infos := make([]TargetInfo, 0, len(names))
	for _, name := range names {
		t := targets[name]
		endian := "little"
		if t.BigEndian {
			endian = "big"
		}
		infos = append(infos, TargetInfo{
			Name:          t.Name,
			OS:            t.OS,
			Family:        string(t.Family),
			PointerSize:   t.PointerSize,
			Endian:        endian,
			PathSeparator: string(t.PathSeparator),
			LibcConstants: len(t.Libc),
		})
	}

	if formatter.JSON() {
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-16s %-8s %-8s %-4s %-7s %s\n", "NAME", "OS", "FAMILY", "PTR", "ENDIAN", "SEP")
	for _, info := range infos {
		fmt.Fprintf(w, "%-16s %-8s %-8s %-4d %-7s %s\n",
			info.Name, info.OS, info.Family, info.PointerSize, info.Endian, info.PathSeparator)
	}
	return nil
}
