package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tagvm/internal/compiler"
	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/machine"
)

// RegionsOptions holds flags for the regions command.
type RegionsOptions struct {
	*RootOptions
	Target string // overrides the configured target
}

// RegionInfo is one contiguous region relative to the start of the value.
type RegionInfo struct {
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
	Frozen bool   `json:"frozen"`
}

// RegionsResult describes the freeze-sensitive partition of one type.
type RegionsResult struct {
	Target  string       `json:"target"`
	Type    string       `json:"type"`
	Size    uint64       `json:"size"`
	Align   uint64       `json:"align"`
	Freeze  bool         `json:"freeze"`
	Hash    string       `json:"hash"`
	Regions []RegionInfo `json:"regions"`
}

// NewRegionsCommand creates the regions command.
func NewRegionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "regions <types> <type>",
		Short: "Show frozen and interior-mutable regions of a type",
		Long: `Lay out <type> for the target and partition its bytes into frozen and
interior-mutable regions, in increasing offset order.

<types> is a .cue file or a directory of .cue files; builtin scalars such
as u32 or usize need no declaration.

Examples:
  tagvm regions ./types header
  tagvm regions ./types header --target i686-linux --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegions(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "simulation target (defaults to the configured target)")

	return cmd
}

func runRegions(opts *RegionsOptions, typesPath, typeName string, cmd *cobra.Command) error {
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

	loaded, err := LoadTypeDecls(typesPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), err.Error(), nil)
	}

	types, err := compiler.BuildRegistry(target, loaded.Decls)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDeclareFailed, err.Error(), nil)
	}

	layout, err := types.Layout(ir.TypeID(typeName))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUnknownType, err.Error(), types.IDs())
	}

	sess, err := newSession(cmd.Context(), cfg, target, types)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeMachine, err.Error(), nil)
	}
	defer sess.Close()
	m := sess.m
	formatter.VerboseLog("run %s on %s (host %s)", m.RunID(), target.Name, m.Host().Name())

	base := m.Memory().Allocate(layout.Size, layout.Align, machine.KindHeap)
	regions := []RegionInfo{}
	err = m.VisitFreezeSensitive(machine.Place{Ptr: base, Layout: layout}, layout.Size,
		func(ptr machine.Pointer, size uint64, frozen bool) error {
			regions = append(regions, RegionInfo{Offset: ptr.Offset - base.Offset, Size: size, Frozen: frozen})
			return nil
		})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeMachine, err.Error(), nil)
	}

	hash, err := layoutHash(types, layout.Type)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeMachine, err.Error(), nil)
	}
	result := RegionsResult{
		Target:  target.Name,
		Type:    string(layout.Type),
		Size:    layout.Size,
		Align:   layout.Align,
		Freeze:  layout.Freeze,
		Hash:    hash,
		Regions: regions,
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputRegionsText(formatter, result)
}

func outputRegionsText(formatter *OutputFormatter, result RegionsResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "%s on %s: size %d, align %d, freeze %t\n",
		result.Type, result.Target, result.Size, result.Align, result.Freeze)
	if formatter.Verbose {
		fmt.Fprintf(w, "hash %s\n", result.Hash)
	}
	if len(result.Regions) == 0 {
		fmt.Fprintln(w, "  (zero-sized)")
		return nil
	}
	for _, r := range result.Regions {
		kind := "frozen"
		if !r.Frozen {
			kind = "interior-mutable"
		}
		fmt.Fprintf(w, "  [%d, %d) %s\n", r.Offset, r.Offset+r.Size, kind)
	}
	return nil
}

// layoutHash returns the content hash the registry recorded for id.
func layoutHash(types *ir.Registry, id ir.TypeID) (string, error) {
	hash, ok := types.Hash(id)
	if !ok {
		return "", fmt.Errorf("no layout hash recorded for %s", id)
	}
	return hash, nil
}
