package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cbind/internal/pipeline"
)

var generateCmd = &cobra.Command{
	Use:   "generate [flags] <declarations>...",
	Short: "Generate one Go binding file from declaration streams",
	Long: `Generate reads one or more declaration streams (NDJSON, msgpack or castxml
XML), optionally a "#define" dump, and writes a single Go source file.
Without --output the file is written to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	addBindingFlags(generateCmd.Flags())
}

func addBindingFlags(f *pflag.FlagSet) {
	f.String("format", "", "declaration stream format (ndjson|msgpack|castxml; detected from the extension when empty)")
	f.StringSlice("defines", nil, "file with \"#define\" lines, e.g. the output of cc -dM -E")
	f.StringP("output", "o", "", "output Go file")
	f.String("package", "", "Go package name (defaults to the output directory name)")
	f.String("library", "", "shared library loaded by the generated Load")
	f.String("target", "x86_64-linux-gnu", "target ABI (x86_64-linux-gnu|i386-linux-gnu|aarch64-linux-gnu|x86_64-windows-msvc)")
	f.String("naming", "exported", "identifier style (exported|verbatim)")
	f.String("names", "", "persisted name table (.db/.sqlite for SQLite, msgpack otherwise)")
	f.StringSlice("docs", nil, "docstring sources in order (frontend|prototypes|headers|none)")
	f.StringSlice("headers", nil, "C headers whose comments document declarations")
	f.Bool("assertions", false, "emit compile-time size and offset assertions")
	addReportFlags(f)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := readOutputOptions(cmd)
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	b, err := bindingFromFlags(cmd.Flags(), args)
	if err != nil {
		return err
	}

	stores := newStoreSet()
	defer stores.Close()
	req, err := b.request(cmd.Context(), "", stores, maxDiagnostics)
	if err != nil {
		return err
	}

	res, runErr := pipeline.Run(cmd.Context(), req)
	results := []*pipeline.Result{res}
	if req.Output == "" && res != nil && runErr == nil {
		if _, err := cmd.OutOrStdout().Write(res.Source); err != nil {
			return err
		}
	}
	printSummary(cmd.ErrOrStderr(), results, out)

	if err := writeReport(cmd, results, out.timings); err != nil {
		return err
	}
	return runErr
}

func bindingFromFlags(f *pflag.FlagSet, args []string) (bindingConfig, error) {
	var b bindingConfig
	var err error
	b.Inputs = args
	str := func(name string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = f.GetString(name)
		return strings.TrimSpace(v)
	}
	slice := func(name string) []string {
		if err != nil {
			return nil
		}
		var v []string
		v, err = f.GetStringSlice(name)
		return v
	}
	b.Format = str("format")
	b.Output = str("output")
	b.Package = str("package")
	b.Library = str("library")
	b.Target = str("target")
	b.Naming = str("naming")
	b.Names = str("names")
	b.Defines = slice("defines")
	b.Docs = slice("docs")
	b.Headers = slice("headers")
	if err != nil {
		return bindingConfig{}, fmt.Errorf("failed to read flags: %w", err)
	}
	assertions, err := f.GetBool("assertions")
	if err != nil {
		return bindingConfig{}, fmt.Errorf("failed to read --assertions: %w", err)
	}
	b.Assertions = &assertions
	return b, nil
}
