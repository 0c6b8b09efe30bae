package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tubekit/internal/model"
)

func newPresetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage conversion presets",
	}
	cmd.AddCommand(
		newPresetsListCmd(a),
		newPresetsShowCmd(a),
		newPresetsAddCmd(a),
		newPresetsEditCmd(a),
		newPresetsDeleteCmd(a),
		newPresetsMoveCmd(a),
		newPresetsWatchCmd(a),
	)
	return cmd
}

func newPresetsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List presets; index 0 is the session-only custom preset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.presetStore()
			if err != nil {
				return err
			}
			return writePresetTable(cmd, store.List())
		},
	}
}

func writePresetTable(cmd *cobra.Command, list []model.ConversionPreset) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tFORMAT\tVIDEO\tAUDIO")
	for i, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, p.Name, p.Format, streamCodec(p.VideoEnabled, p.VideoCodec), streamCodec(p.AudioEnabled, p.AudioCodec))
	}
	return tw.Flush()
}

func streamCodec(enabled bool, codec string) string {
	switch {
	case !enabled:
		return "-"
	case codec == "":
		return "default"
	default:
		return codec
	}
}

func newPresetsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a preset as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.presetStore()
			if err != nil {
				return err
			}
			p, ok := store.Get(args[0])
			if !ok {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("unknown preset %q", args[0])}
			}
			data, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newPresetsAddCmd(a *app) *cobra.Command {
	var pf presetFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a new preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.presetStore()
			if err != nil {
				return err
			}
			p := model.ConversionPreset{Name: args[0], Format: "mp4", VideoEnabled: true, AudioEnabled: true, KeepAspect: true}
			pf.apply(cmd.Flags(), &p)
			if err := store.Add(p); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added preset %q\n", p.Name)
			return nil
		},
	}
	pf.bind(cmd.Flags())
	return cmd
}

func newPresetsEditCmd(a *app) *cobra.Command {
	var (
		pf     presetFlags
		rename string
	)
	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Change fields of a saved preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.presetStore()
			if err != nil {
				return err
			}
			p, ok := store.Get(args[0])
			if !ok {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("unknown preset %q", args[0])}
			}
			changed := pf.apply(cmd.Flags(), &p)
			if rename != "" {
				p.Name = rename
				changed = true
			}
			if !changed {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("nothing to change")}
			}
			if err := store.Update(args[0], p); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated preset %q\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&rename, "name", "", "New name")
	pf.bind(cmd.Flags())
	return cmd
}

func newPresetsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved preset",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.presetStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted preset %q\n", args[0])
			return nil
		},
	}
}

func newPresetsMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Reorder presets by their list index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err1 := strconv.Atoi(args[0])
			to, err2 := strconv.Atoi(args[1])
			if err1 != nil || err2 != nil {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("indices must be integers")}
			}
			store, err := a.presetStore()
			if err != nil {
				return err
			}
			if err := store.Move(from, to); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			return writePresetTable(cmd, store.List())
		},
	}
}

func newPresetsWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the preset list whenever the preset file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.presetStore()
			if err != nil {
				return err
			}
			if err := writePresetTable(cmd, store.List()); err != nil {
				return err
			}
			err = store.Watch(cmd.Context(), func(list []model.ConversionPreset) {
				fmt.Fprintln(cmd.OutOrStdout())
				_ = writePresetTable(cmd, list)
			})
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			<-cmd.Context().Done()
			return nil
		},
	}
}
