package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frederic-klein/glmod/internal/config"
	"github.com/frederic-klein/glmod/internal/diag"
	"github.com/frederic-klein/glmod/internal/index"
	"github.com/frederic-klein/glmod/internal/patcher"
)

// app carries what every command needs; tests swap the filesystem and
// the output streams.
type app struct {
	fs     afero.Fs
	out    io.Writer
	errOut io.Writer
	v      *viper.Viper

	configFile   string
	verbose      bool
	workers      int
	includeTests []string
	excludeTests []string
	patchCommand string
	sink         *diag.LogSink
	cfg          *config.Config
}

func main() {
	a := &app{fs: afero.NewOsFs(), out: os.Stdout, errOut: os.Stderr}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	a.v = viper.New()

	rootCmd := &cobra.Command{
		Use:          "glmod",
		Short:        "Resolve gnulib-style module dependencies",
		Long:         "glmod reads module descriptors from a module tree and its override directories and computes the modules, files and licenses an import needs.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Config file (default ./.glmod.yaml)")
	flags.String("root", ".", "Module tree root")
	flags.StringSlice("local-dir", nil, "Local override directory, highest priority first (repeatable)")
	flags.Bool("strict", false, "Treat missing modules and licenses as errors")
	flags.String("macro-prefix", config.DefaultMacroPrefix, "Macro prefix for generated identifiers")
	flags.String("aux-dir", config.DefaultAuxDir, "Auxiliary build directory")
	flags.Bool("cond-deps", false, "Track conditional dependencies")
	flags.Bool("inc-all-direct-tests", false, "Include every kind of test of the requested modules")
	flags.Bool("inc-all-indirect-tests", false, "Include every kind of test of the dependencies")
	flags.StringSlice("avoid", nil, "Module to leave out (repeatable)")
	flags.StringSliceVar(&a.includeTests, "include-category", nil, "Test category to include (repeatable)")
	flags.StringSliceVar(&a.excludeTests, "exclude-category", nil, "Test category to exclude (repeatable)")
	flags.IntVarP(&a.workers, "workers", "w", 0, "Parallel descriptor readers (default: number of CPUs)")
	flags.StringVar(&a.patchCommand, "patch", "patch", "Program used to apply local .diff files")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	for key, flag := range map[string]string{
		"root":                   "root",
		"local_dirs":             "local-dir",
		"strict":                 "strict",
		"macro_prefix":           "macro-prefix",
		"aux_dir":                "aux-dir",
		"cond_deps":              "cond-deps",
		"inc_all_direct_tests":   "inc-all-direct-tests",
		"inc_all_indirect_tests": "inc-all-indirect-tests",
		"avoids":                 "avoid",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		newResolveCmd(a),
		newListCmd(a),
		newInfoCmd(a),
		newLintCmd(a),
	)
	return rootCmd
}

// setup loads the configuration and applies the category flags.
func (a *app) setup() error {
	a.sink = diag.NewLogSink(a.errOut, a.verbose)

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: a.configFile,
		Viper:      a.v,
		Fs:         a.fs,
	})
	if err != nil {
		return err
	}

	for _, name := range a.includeTests {
		cat, err := config.ParseCategory(name)
		if err != nil {
			return fmt.Errorf("--include-category: %w", err)
		}
		cfg.EnableInclTestCategory(cat)
	}
	for _, name := range a.excludeTests {
		cat, err := config.ParseCategory(name)
		if err != nil {
			return fmt.Errorf("--exclude-category: %w", err)
		}
		cfg.EnableExclTestCategory(cat)
	}

	a.cfg = cfg
	a.sink.Debugf("module tree %s, %d local dirs", cfg.Root, len(cfg.LocalDirs))
	return nil
}

func (a *app) newIndex() *index.ModuleIndex {
	return index.New(a.fs, a.cfg.Root, a.cfg.LocalDirs, index.Options{
		Strict:      a.cfg.Strict,
		MacroPrefix: a.cfg.MacroPrefix,
		AuxDir:      a.cfg.AuxDir,
		Sink:        a.sink,
		Patcher:     patcher.NewWithCommand(a.patchCommand),
		Workers:     a.workers,
	})
}
