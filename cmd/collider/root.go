package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/caffeineduck/collider/renderer"
	"github.com/caffeineduck/collider/renderer/quickjs"
	"github.com/caffeineduck/collider/renderer/vm"
)

var rootCmd = &cobra.Command{
	Use:   "collider",
	Short: "Build and run collider desktop application scaffolds",
	Long: `collider - Build and run multi-process desktop application scaffolds.

A project has a privileged host script, an isolated presentation script, a
bridge preload and a document. The preload exposes exactly one frozen API
object, app, to presentation code; every call crosses to the host as an
asynchronous invocation.

Settings can also come from the environment (or a .env file):
COLLIDER_LOG_LEVEL, COLLIDER_LOG_FORMAT, COLLIDER_ENGINE, COLLIDER_QUICKJS_WASM.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnv,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file to load if present")
	rootCmd.PersistentFlags().StringP("engine", "e", "vm", "Presentation engine: vm, quickjs")
	rootCmd.PersistentFlags().String("quickjs-wasm", "", "QuickJS WASI binary for the quickjs engine")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the compilation cache (quickjs)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Page execution timeout")
}

// loadEnv loads the env file. A missing file is not an error.
func loadEnv(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Root().PersistentFlags().GetString("env-file")
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// setting returns the flag value, falling back to env when the flag was not
// given on the command line.
func setting(flags *pflag.FlagSet, flag, env string) string {
	value, _ := flags.GetString(flag)
	if !flags.Changed(flag) {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return value
}

func logger(cmd *cobra.Command) *slog.Logger {
	flags := cmd.Root().PersistentFlags()
	return newLogger(
		setting(flags, "log-level", "COLLIDER_LOG_LEVEL"),
		setting(flags, "log-format", "COLLIDER_LOG_FORMAT"),
		cmd.ErrOrStderr(),
	)
}

func pageOptions(cmd *cobra.Command, logger *slog.Logger) []renderer.Option {
	timeout, _ := cmd.Root().PersistentFlags().GetDuration("timeout")
	return []renderer.Option{renderer.WithTimeout(timeout), renderer.WithLogger(logger)}
}

// openEngine returns the selected engine and a func releasing it.
func openEngine(cmd *cobra.Command) (renderer.Engine, func(), error) {
	flags := cmd.Root().PersistentFlags()
	name := setting(flags, "engine", "COLLIDER_ENGINE")
	switch name {
	case "vm", "":
		return vm.New(), func() {}, nil
	case "quickjs":
		path := setting(flags, "quickjs-wasm", "COLLIDER_QUICKJS_WASM")
		if path == "" {
			return nil, nil, fmt.Errorf("engine quickjs needs --quickjs-wasm or COLLIDER_QUICKJS_WASM")
		}
		var opts []quickjs.EngineOption
		if noCache, _ := flags.GetBool("no-cache"); !noCache {
			opts = append(opts, quickjs.WithCompilationCache(defaultCacheDir()))
		}
		engine, err := quickjs.Open(path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return engine, func() { engine.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown engine %q: use vm or quickjs", name)
	}
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "collider")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "collider")
	}
	return filepath.Join(os.TempDir(), "collider-cache")
}

func projectDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
