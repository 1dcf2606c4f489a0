// Command oxyshaderc compiles the shader variants listed in a manifest ahead of time.
//
// Usage:
//
//	oxyshaderc [options] [MANIFEST]
//
// Every variant is written to <output_dir>/<label><ext>, where ext is .spv, .glsl or .metal
// depending on the variant's target.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-shader/common"
	"github.com/Carmen-Shannon/oxy-shader/engine"
	"github.com/Carmen-Shannon/oxy-shader/engine/manifest"
)

// exitError carries the process exit code for a failure.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}

// run holds the command logic so tests can drive it without exiting the process.
func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("oxyshaderc", flag.ContinueOnError)
	flagSet.SetOutput(outW)
	flagSet.Usage = func() {
		fmt.Fprint(outW, "Usage:\n  oxyshaderc [options] [MANIFEST]\n\nOptions:\n")
		flagSet.PrintDefaults()
	}

	manifestFlag := flagSet.String("manifest", "shaders.hcl", "Path to the variant manifest.")
	outFlag := flagSet.String("out", "", "Output directory. Overrides the manifest's output_dir.")
	workersFlag := flagSet.Int("workers", 1, "Number of workers used to register shaders.")
	strictFlag := flagSet.Bool("strict", false, "Fail when a shader breaks the composition rules.")
	verboseFlag := flagSet.Bool("v", false, "Log debug output.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &exitError{code: 2, msg: err.Error()}
	}
	path := common.Coalesce(flagSet.Arg(0), *manifestFlag)

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errW, &slog.HandlerOptions{Level: level}))
	common.SetLogger(logger)
	defer common.SetLogger(nil)

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if *outFlag != "" {
		m.OutputDir = *outFlag
	}

	e := engine.NewEngine(
		engine.WithLogger(logger),
		engine.WithLoadWorkers(*workersFlag),
		engine.WithStrictComposition(*strictFlag),
		engine.WithProfiling(*verboseFlag),
	)
	defer e.Close()

	if _, err := e.LoadShaders(); err != nil {
		return err
	}

	programs, err := e.CompileManifest(ctx, m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.OutputDir, 0o755); err != nil {
		return fmt.Errorf("oxyshaderc: %w", err)
	}
	for i, p := range programs {
		out := m.OutputPath(m.Variants[i])
		if err := os.WriteFile(out, p.Bytes(), 0o644); err != nil {
			return fmt.Errorf("oxyshaderc: %w", err)
		}
		fmt.Fprintf(outW, "%s -> %s\n", m.Variants[i].Label, out)
	}

	if *verboseFlag {
		e.ReportProfile()
	}
	return nil
}
