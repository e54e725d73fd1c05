package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/collider/bundle"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir...]",
	Short: "Validate project configurations and their parity",
	Long: `Validate the build configuration of each project and check that all of them
agree on platform, bundling and target. Projects may only differ by their
source root (flat layout vs. src/).

With no arguments, the canonical flat and nested configurations are checked
against each other.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		if err := bundle.CheckParity(bundle.ForVariant(bundle.Flat), bundle.ForVariant(bundle.Nested)); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok: flat and nested configurations agree")
		return nil
	}

	configs := make([]bundle.Config, len(args))
	var errs []error
	for i, dir := range args {
		cfg, err := bundle.Project(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			continue
		}
		configs[i] = cfg
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for i := 1; i < len(configs); i++ {
		if err := bundle.CheckParity(configs[0], configs[i]); err != nil {
			errs = append(errs, fmt.Errorf("%s vs %s: %w", args[0], args[i], err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for i, dir := range args {
		prefix, _ := configs[i].Prefix()
		fmt.Fprintf(out, "ok: %s (source root %q, target %s)\n", dir, prefix, configs[i].Target)
	}
	return nil
}
