package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/collider/bundle"
	"github.com/caffeineduck/collider/host"
	"github.com/caffeineduck/collider/renderer"
	"github.com/caffeineduck/collider/window"
)

var startCmd = &cobra.Command{
	Use:   "start [dir]",
	Short: "Build a project in memory and run its presentation script",
	Long: `Build the project in dir (default: current directory) without writing any
artifacts, open a window and run the bundled presentation script in it.

The bridge is installed before the page runs: the page sees a single frozen
global, app, whose methods invoke host handlers and return promises.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().Bool("fullscreen", false, "Open the window in fullscreen")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logger(cmd)
	dir := projectDir(args)

	cfg, err := bundle.Project(dir)
	if err != nil {
		return err
	}
	artifacts, err := bundle.Build(dir, cfg)
	if err != nil {
		return err
	}
	page, ok := artifacts.Lookup(bundle.RolePresentation)
	if !ok {
		return fmt.Errorf("build produced no presentation script")
	}

	engine, release, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer release()

	registry, err := host.NewRegistry(log)
	if err != nil {
		return err
	}
	app, err := host.New(registry, host.WithLogger(log))
	if err != nil {
		return err
	}
	defer app.Close()

	title := dir
	if abs, err := filepath.Abs(dir); err == nil {
		title = filepath.Base(abs)
	}
	fullscreen, _ := cmd.Flags().GetBool("fullscreen")
	w, err := app.OpenWindow(
		window.WithTitle(title),
		window.WithFullscreen(fullscreen),
		window.WithFullscreenListener(func(fs bool) {
			log.Info("fullscreen changed", "window", title, "fullscreen", fs)
		}),
	)
	if err != nil {
		return err
	}

	result := app.Load(ctx, w, engine, renderer.Page{Name: page.Path, Script: string(page.Contents)}, pageOptions(cmd, log)...)
	fmt.Fprint(cmd.OutOrStdout(), result.Output)
	log.Info("page finished",
		"engine", engine.Name(),
		"duration", result.Duration,
		"fullscreen", w.IsFullscreen())
	return result.Error
}
