// Command fninfo loads source unit descriptions into an isolate and reports
// on the function metadata the engine keeps for them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/fninfo/compiler"
	"github.com/chazu/fninfo/config"
	"github.com/chazu/fninfo/vm"
)

var (
	configPath string
	verbose    int
)

var log = commonlog.GetLogger("fninfo.cli")

var rootCmd = &cobra.Command{
	Use:           "fninfo",
	Short:         "Inspect per-function engine metadata",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "engine.toml to use (default: search upward from the working directory)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the engine configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	cfg.ConfigureLogging(verbose)
	return cfg, nil
}

// session is an isolate with its compiler and one loaded unit.
type session struct {
	cfg      *config.Config
	iso      *vm.Isolate
	compiler *compiler.Compiler
	unit     *vm.SourceUnit
	fns      []*vm.FunctionInfo
}

func openSession(unitPath string) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	uf, err := config.LoadUnitFile(unitPath)
	if err != nil {
		return nil, err
	}

	iso := vm.NewIsolate()
	cfg.Apply(iso)
	c := compiler.New(iso)

	unit, fns, err := uf.Build(iso)
	if err != nil {
		return nil, err
	}
	log.Infof("loaded %s: %d functions", unit, len(fns))
	return &session{cfg: cfg, iso: iso, compiler: c, unit: unit, fns: fns}, nil
}
