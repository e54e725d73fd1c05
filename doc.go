// Package collider builds and runs multi-process desktop application
// scaffolds: a privileged host, isolated presentation contexts, and the
// preload bridge between them.
//
// # Overview
//
// Presentation code never touches host primitives. Before a page runs, the
// bridge installs one frozen global, app, whose only method is
// setFullscreen. Each call becomes one asynchronous invocation on a named
// channel, runs one host handler on the host's event loop, and settles the
// caller's promise exactly once.
//
// # Basic Usage
//
//	registry, _ := host.NewRegistry(logger)
//	app, _ := host.New(registry, host.WithLogger(logger))
//	defer app.Close()
//
//	w, _ := app.OpenWindow(window.WithTitle("demo"))
//	result := app.Load(ctx, w, vm.New(), renderer.Page{
//	    Name:   "renderer.js",
//	    Script: `app.setFullscreen(true)`,
//	})
//
// # Building
//
//	cfg, _ := bundle.Project(".")
//	artifacts, err := bundle.Build(".", cfg)  // nothing written yet
//	if err == nil {
//	    err = artifacts.Write()
//	}
//
// See the [ipc], [bridge], [host], [renderer], and [bundle] packages for
// detailed API documentation.
package collider
