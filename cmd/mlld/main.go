// Command mlld is the CLI driver for the mlld core: parse, interpret,
// and print a document, or check it for parse/interpret errors without
// printing. Grounded on cli/main.go's rootCmd/PersistentFlags shape,
// adapted from a single "run one opal command" entrypoint to three
// subcommands over the directive-driven document model.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/eval"
	"github.com/mlld-lang/mlld-core/interp/env"
	"github.com/mlld-lang/mlld-core/interp/resolver"
	"github.com/mlld-lang/mlld-core/internal/config"
	"github.com/mlld-lang/mlld-core/internal/diagnostics"
	"github.com/mlld-lang/mlld-core/parser"
	"github.com/mlld-lang/mlld-core/runtime/lang"
)

func main() {
	var (
		file       string
		configPath string
		strict     bool
		debug      string
	)

	rootCmd := &cobra.Command{
		Use:   "mlld",
		Short: "Parse and run mlld documents",
	}
	rootCmd.PersistentFlags().StringVarP(&file, "file", "f", "-", "Path to the mlld document (- for stdin)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".mlldrc", "Path to .mlldrc config file")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Force strict resolution mode (overrides config)")
	rootCmd.PersistentFlags().StringVar(&debug, "debug", "", "Diagnostic verbosity: basic|detailed|verbose")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Interpret a document and print its output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(cmd, file, configPath, strict, debug, cmd.OutOrStdout())
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Parse and interpret a document, reporting errors without printing output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(cmd, file, configPath, strict, debug, io.Discard)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Interpret a document and print its output (alias of run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(cmd, file, configPath, strict, debug, cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(runCmd, checkCmd, showCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDocument(cmd *cobra.Command, file, configPath string, strictFlag bool, debugFlag string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.Default()
	}
	if strictFlag {
		cfg.Strict = true
	}
	if debugFlag != "" {
		cfg.Debug = debugFlag
	}

	source, origin, err := readSource(file)
	if err != nil {
		return err
	}

	result := parser.Parse(source, parser.WithFilePath(origin))
	for _, perr := range result.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), perr.Error())
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("parse errors encountered")
	}

	mode := resolver.Permissive
	if cfg.Strict {
		mode = resolver.Strict
	}

	e := env.New(origin, env.OSFileSystem{}, env.LocalModuleResolver{BaseDir: workingDir(origin)}, nil)
	diag := &diagnostics.Emitter{
		Level: diagnostics.ParseLevel(cfg.Debug),
		Sink: diagnostics.SinkFunc(func(ev diagnostics.Event) {
			fmt.Fprintln(cmd.ErrOrStderr(), ev.String())
		}),
	}
	ec := eval.NewContext(e, mode, lang.Default(), cfg, diag)

	output, err := eval.Interpret(context.Background(), result.Program, ec)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), describeError(err))
		return err
	}

	fmt.Fprint(out, output)
	return nil
}

func readSource(file string) (source []byte, origin string, err error) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, "<stdin>", err
	}
	data, err := os.ReadFile(file)
	return data, file, err
}

func workingDir(origin string) string {
	if origin == "<stdin>" || origin == "" {
		wd, err := os.Getwd()
		if err == nil {
			return wd
		}
		return "."
	}
	return dirOf(origin)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func describeError(err error) string {
	if e, ok := err.(*errs.Error); ok {
		return e.Error()
	}
	return err.Error()
}
