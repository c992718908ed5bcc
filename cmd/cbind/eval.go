package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cbind/internal/constant"
	"cbind/internal/decl"
	"cbind/internal/layout"
)

var evalCmd = &cobra.Command{
	Use:   "eval [flags] <expression>...",
	Short: "Fold a C constant expression the way macros are folded",
	Example: `  cbind eval '(1 << 4) | 0x3'
  cbind eval -D WIDTH=640 -D HEIGHT=480 'WIDTH * HEIGHT'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringArrayP("define", "D", nil, "define an object-like macro NAME=BODY")
	evalCmd.Flags().String("target", "x86_64-linux-gnu", "target ABI used for integer widths")
}

func runEval(cmd *cobra.Command, args []string) error {
	targetName, err := cmd.Flags().GetString("target")
	if err != nil {
		return fmt.Errorf("failed to get target flag: %w", err)
	}
	target, err := layout.ParseTarget(targetName)
	if err != nil {
		return err
	}
	defines, err := cmd.Flags().GetStringArray("define")
	if err != nil {
		return fmt.Errorf("failed to get define flag: %w", err)
	}

	ev := constant.NewEvaluator(target)
	for _, d := range defines {
		name, body, _ := strings.Cut(d, "=")
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid define %q (expected NAME=BODY)", d)
		}
		if body == "" {
			body = "1"
		}
		ev.DefineMacro(strings.TrimSpace(name), nil, false, body)
	}

	lit, err := ev.Eval(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatLiteral(lit))
	return nil
}

// formatLiteral prints a folded value followed by its C type.
func formatLiteral(lit *decl.Literal) string {
	switch lit.Kind {
	case decl.LitInt:
		return fmt.Sprintf("%s (%s)", lit.Int.String(), lit.Type)
	case decl.LitChar:
		return fmt.Sprintf("%q (%s)", rune(lit.Int.Int64()), lit.Type)
	case decl.LitFloat:
		return fmt.Sprintf("%g (%s)", lit.Float, lit.Type)
	case decl.LitString:
		prefix := ""
		if lit.Wide {
			prefix = "L"
		}
		return fmt.Sprintf("%s%q", prefix, lit.Str)
	}
	return "?"
}
