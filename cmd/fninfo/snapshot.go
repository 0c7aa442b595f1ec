package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/fninfo/vm/snapshot"
)

var snapshotOut string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <unit.toml>",
	Short: "Capture the lazy summaries of a unit's functions",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <unit.toml> <snapshot>",
	Short: "Recreate a unit's functions from a snapshot and report them",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestore,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOut, "output", "o", "", "file to write (required)")
	_ = snapshotCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	snap := snapshot.Capture(s.iso, s.unit)
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(snapshotOut, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", snapshotOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d functions (%d bytes) to %s\n", len(snap.Functions), len(data), snapshotOut)
	return nil
}

// runRestore loads the unit's source without its function descriptions and
// repopulates the function table from the snapshot.
func runRestore(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", args[1], err)
	}
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return err
	}

	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	unit := s.iso.NewSourceUnit(s.unit.Name(), s.unit.Source(), s.unit.Kind(), 0)
	fns, err := snap.Restore(s.iso, unit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if id, err := snap.IsolateID(); err == nil {
		fmt.Fprintf(out, "snapshot from isolate %s\n", id)
	}
	fmt.Fprintf(out, "%s: restored %d functions\n", unit, len(fns))
	for _, fi := range fns {
		report(out, fi)
	}
	return nil
}
