// Command docgen generates CLI reference documentation from the cadence
// command definitions. Output is written to docs/cli-reference.md.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	docs "github.com/urfave/cli-docs/v3"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
	"github.com/colonyops/cadence/internal/commands"
)

func main() {
	flags := &commands.Flags{}

	root := &cli.Command{
		Name:        "cadence",
		Usage:       commands.RootUsage,
		UsageText:   "cadence [global options] command [command options]",
		Description: commands.RootDescription,
		Flags:       commands.GlobalFlags(flags),
	}
	root = commands.Register(root, flags, &cadence.App{})

	md, err := docs.ToMarkdown(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating docs: %v\n", err)
		os.Exit(1)
	}

	outPath := "docs/cli-reference.md"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating %s: %v\n", filepath.Dir(outPath), err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, []byte(md), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", outPath)
}
