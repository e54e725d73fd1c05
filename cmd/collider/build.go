package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/collider/bundle"
)

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Compile every role of a project",
	Long: `Compile the host, presentation, bridge and document entry points of the
project in dir (default: current directory).

The configuration comes from collider.jsonc, collider.json, collider.yaml or
collider.yml when present; otherwise the layout is detected (preload.js or
src/preload.js) and the canonical configuration is used. Nothing is written
unless every entry point compiles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("outdir", "", "Output directory (overrides the configuration)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	log := logger(cmd)
	dir := projectDir(args)

	cfg, err := bundle.Project(dir)
	if err != nil {
		return err
	}
	if outdir, _ := cmd.Flags().GetString("outdir"); outdir != "" {
		cfg.Outdir = outdir
	}

	artifacts, err := bundle.Build(dir, cfg)
	if err != nil {
		return err
	}
	for _, w := range artifacts.Warnings {
		log.Warn("build warning", "message", w)
	}
	if err := artifacts.Write(); err != nil {
		return err
	}

	for _, f := range artifacts.Files {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", f.Role, f.Path, len(f.Contents))
	}
	log.Info("build complete", "dir", dir, "target", cfg.Target, "files", len(artifacts.Files))
	return nil
}
