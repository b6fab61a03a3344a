// Command jetrulec is a batch development harness for the JetRule
// compiler: point it at a root .jr file (or a TOML run config) and it
// prints the resulting rule IR (or, with --rete, the Rete IR) as JSON. It is explicitly not
// the "real" production CLI (spec.md section 6 scopes that out); it exists
// so the pipeline can be exercised end to end without embedding it in a
// host application.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dekarrin/rosed"
	"github.com/spf13/pflag"

	"github.com/USImagingNetwork/jetstore/internal/jetrule/compiler"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/config"
)

// diagnosticWidth is the column at which long diagnostic lines are wrapped
// for terminal output; it has no effect on the JSON written to stdout.
const diagnosticWidth = 100

// dirProvider resolves an import name to the text of <dir>/<name>.
type dirProvider struct {
	dir string
}

func (p dirProvider) Fetch(name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a jetrulec TOML run config")
		sourceDir  = pflag.StringP("dir", "d", ".", "directory to resolve imports against")
		rootFile   = pflag.StringP("root", "r", "", "root .jr file to compile")
		rete       = pflag.Bool("rete", false, "print the Rete IR instead of the rule IR")
		verbose    = pflag.BoolP("verbose", "v", false, "log each pipeline phase to stderr")
	)
	pflag.Parse()

	dir := *sourceDir
	root := *rootFile
	overrides := map[string]string{}

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "jetrulec:", err)
			os.Exit(1)
		}
		dir, root = cfg.SourceDir, cfg.RootFile
		if cfg.ExtractResourcesFromRules {
			overrides["extract_resources_from_rules"] = "true"
		}
	}
	if root == "" {
		fmt.Fprintln(os.Stderr, "jetrulec: -root or -config with root_file is required")
		os.Exit(2)
	}

	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "jetrulec: ", 0)
	}

	ctx := compiler.CompileJetRuleFileWithOptions(root, dirProvider{dir: dir}, logger, overrides)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	var err error
	if *rete {
		err = enc.Encode(ctx.ReteIR())
	} else {
		err = enc.Encode(ctx.RuleIR())
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "jetrulec: encoding output:", err)
		os.Exit(1)
	}

	if ctx.ERROR {
		for _, e := range ctx.Errors {
			fmt.Fprintln(os.Stderr, rosed.Edit(e).Wrap(diagnosticWidth).String())
		}
		os.Exit(1)
	}
}
