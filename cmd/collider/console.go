package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/caffeineduck/collider/host"
	"github.com/caffeineduck/collider/renderer"
	"github.com/caffeineduck/collider/window"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive presentation context with the bridge installed",
	Long: `Start an interactive console inside a presentation context. The app global
is installed exactly as it is for a page, and calls reach a live host window.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)
  - Piped input runs line by line without prompts
  - .window prints the state of the console's window

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().String("history", "", "History file path (default: ~/.collider_history)")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	log := logger(cmd)
	out := cmd.OutOrStdout()

	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".collider_history")
	}

	engine, release, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer release()

	sessions, ok := engine.(renderer.SessionEngine)
	if !ok {
		return fmt.Errorf("engine %s does not support interactive sessions", engine.Name())
	}

	registry, err := host.NewRegistry(log)
	if err != nil {
		return err
	}
	app, err := host.New(registry, host.WithLogger(log))
	if err != nil {
		return err
	}
	defer app.Close()

	w, err := app.OpenWindow(window.WithTitle("console"))
	if err != nil {
		return err
	}

	session, err := sessions.NewSession(app.Invoker(w), pageOptions(cmd, log)...)
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.Close()

	lines, err := newLineReader(cmd, historyFile)
	if err != nil {
		return err
	}
	defer lines.Close()

	if lines.interactive {
		fmt.Fprintf(cmd.ErrOrStderr(), "collider %s console (type 'exit' to quit, Ctrl+D to exit)\n", engine.Name())
	}

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := lines.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					lines.SetPrompt("> ")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				if lines.interactive {
					fmt.Fprintln(out)
				}
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			lines.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			lines.SetPrompt("> ")
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case ".window":
			fmt.Fprintf(out, "window %d %q fullscreen=%v\n", w.ID(), w.Title(), w.IsFullscreen())
			continue
		}

		result := session.Run(cmd.Context(), line)
		if result.Output != "" {
			fmt.Fprint(out, result.Output)
		}
		if result.Value != "" {
			fmt.Fprintln(out, result.Value)
		}
		if result.Error != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", result.Error)
		}
	}
}

// lineReader reads console input. A terminal gets readline editing and
// history; anything else is read line by line without prompts.
type lineReader struct {
	rl          *readline.Instance
	scanner     *bufio.Scanner
	interactive bool
}

func newLineReader(cmd *cobra.Command, historyFile string) (*lineReader, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:            "> ",
			HistoryFile:       historyFile,
			HistoryLimit:      1000,
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing readline: %w", err)
		}
		return &lineReader{rl: rl, interactive: true}, nil
	}
	return &lineReader{scanner: bufio.NewScanner(in)}, nil
}

func (l *lineReader) Readline() (string, error) {
	if l.rl != nil {
		return l.rl.Readline()
	}
	if l.scanner.Scan() {
		return l.scanner.Text(), nil
	}
	if err := l.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (l *lineReader) SetPrompt(prompt string) {
	if l.rl != nil {
		l.rl.SetPrompt(prompt)
	}
}

func (l *lineReader) Close() error {
	if l.rl != nil {
		return l.rl.Close()
	}
	return nil
}
