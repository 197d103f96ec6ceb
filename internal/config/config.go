// Package config holds the settings that steer a module resolution:
// where descriptors live, which test categories are wanted, which modules
// are avoided, and whether conditional dependencies are tracked.
package config

import (
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = ".glmod"
	// FileExt is the config file extension.
	FileExt = "yaml"

	DefaultMacroPrefix = "gl"
	DefaultAuxDir      = "build-aux"
)

// TestCategory names a class of test modules that can be included or
// excluded independently.
type TestCategory string

const (
	CategoryTests       TestCategory = "tests"
	CategoryObsolete    TestCategory = "obsolete"
	CategoryCXXTest     TestCategory = "c++-test"
	CategoryLongrunning TestCategory = "longrunning-test"
	CategoryPrivileged  TestCategory = "privileged-test"
	CategoryUnportable  TestCategory = "unportable-test"
	CategoryAllTest     TestCategory = "all-test"
)

// Categories lists every known category in a stable order.
var Categories = []TestCategory{
	CategoryTests,
	CategoryObsolete,
	CategoryCXXTest,
	CategoryLongrunning,
	CategoryPrivileged,
	CategoryUnportable,
	CategoryAllTest,
}

// ParseCategory validates a category name.
func ParseCategory(s string) (TestCategory, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown test category %q", s)
}

// Config is the build configuration consumed by the registry and the
// resolver.
type Config struct {
	Root                string
	LocalDirs           []string
	Strict              bool
	MacroPrefix         string
	AuxDir              string
	CondDeps            bool
	IncAllDirectTests   bool
	IncAllIndirectTests bool
	Avoids              []string

	incl map[TestCategory]bool
	excl map[TestCategory]bool
}

// Default returns a configuration with every category toggle off.
func Default() *Config {
	return &Config{
		Root:        ".",
		MacroPrefix: DefaultMacroPrefix,
		AuxDir:      DefaultAuxDir,
		incl:        make(map[TestCategory]bool),
		excl:        make(map[TestCategory]bool),
	}
}

// InclTestCategory reports whether the category is explicitly included.
func (c *Config) InclTestCategory(cat TestCategory) bool {
	return c.incl[cat]
}

// EnableInclTestCategory includes the category.
func (c *Config) EnableInclTestCategory(cat TestCategory) {
	c.SetInclTestCategory(cat, true)
}

// DisableInclTestCategory stops including the category.
func (c *Config) DisableInclTestCategory(cat TestCategory) {
	c.SetInclTestCategory(cat, false)
}

// SetInclTestCategory sets the include toggle of the category.
func (c *Config) SetInclTestCategory(cat TestCategory, enabled bool) {
	if c.incl == nil {
		c.incl = make(map[TestCategory]bool)
	}
	if enabled {
		c.incl[cat] = true
	} else {
		delete(c.incl, cat)
	}
}

// ExclTestCategory reports whether the category is explicitly excluded.
func (c *Config) ExclTestCategory(cat TestCategory) bool {
	return c.excl[cat]
}

// EnableExclTestCategory excludes the category.
func (c *Config) EnableExclTestCategory(cat TestCategory) {
	c.SetExclTestCategory(cat, true)
}

// DisableExclTestCategory stops excluding the category.
func (c *Config) DisableExclTestCategory(cat TestCategory) {
	c.SetExclTestCategory(cat, false)
}

// SetExclTestCategory sets the exclude toggle of the category.
func (c *Config) SetExclTestCategory(cat TestCategory, enabled bool) {
	if c.excl == nil {
		c.excl = make(map[TestCategory]bool)
	}
	if enabled {
		c.excl[cat] = true
	} else {
		delete(c.excl, cat)
	}
}

// InclTestCategories returns the included categories, sorted.
func (c *Config) InclTestCategories() []TestCategory {
	return sortedCategories(c.incl)
}

// ExclTestCategories returns the excluded categories, sorted.
func (c *Config) ExclTestCategories() []TestCategory {
	return sortedCategories(c.excl)
}

func sortedCategories(m map[TestCategory]bool) []TestCategory {
	out := make([]TestCategory, 0, len(m))
	for cat := range m {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// fileConfig is the on-disk shape of the configuration.
type fileConfig struct {
	Root                string   `mapstructure:"root"`
	LocalDirs           []string `mapstructure:"local_dirs"`
	Strict              bool     `mapstructure:"strict"`
	MacroPrefix         string   `mapstructure:"macro_prefix"`
	AuxDir              string   `mapstructure:"aux_dir"`
	CondDeps            bool     `mapstructure:"cond_deps"`
	IncAllDirectTests   bool     `mapstructure:"inc_all_direct_tests"`
	IncAllIndirectTests bool     `mapstructure:"inc_all_indirect_tests"`
	Avoids              []string `mapstructure:"avoids"`
	Tests               struct {
		Include []string `mapstructure:"include"`
		Exclude []string `mapstructure:"exclude"`
	} `mapstructure:"tests"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit file path. When empty, .glmod.yaml in
	// SearchDir is used if present.
	ConfigFile string
	// SearchDir defaults to the working directory.
	SearchDir string
	// Viper may carry flag bindings made by the caller; flags bound there
	// take precedence over file values.
	Viper *viper.Viper
	// Fs is the filesystem the file is read from. Defaults to the OS.
	Fs afero.Fs
}

// Load reads the configuration file (if any) and applies defaults.
func Load(opts LoadOptions) (*Config, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	v.SetFs(fs)

	defaults := Default()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("macro_prefix", defaults.MacroPrefix)
	v.SetDefault("aux_dir", defaults.AuxDir)
	v.SetDefault("local_dirs", []string{})
	v.SetDefault("avoids", []string{})

	if opts.ConfigFile != "" {
		if _, err := fs.Stat(opts.ConfigFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	} else {
		dir := opts.SearchDir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(FileName)
		v.SetConfigType(FileExt)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return fromFile(fc)
}

func fromFile(fc fileConfig) (*Config, error) {
	cfg := Default()
	cfg.Root = fc.Root
	cfg.LocalDirs = fc.LocalDirs
	cfg.Strict = fc.Strict
	cfg.MacroPrefix = fc.MacroPrefix
	cfg.AuxDir = fc.AuxDir
	cfg.CondDeps = fc.CondDeps
	cfg.IncAllDirectTests = fc.IncAllDirectTests
	cfg.IncAllIndirectTests = fc.IncAllIndirectTests
	cfg.Avoids = fc.Avoids

	for _, name := range fc.Tests.Include {
		cat, err := ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("tests.include: %w", err)
		}
		cfg.EnableInclTestCategory(cat)
	}
	for _, name := range fc.Tests.Exclude {
		cat, err := ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("tests.exclude: %w", err)
		}
		cfg.EnableExclTestCategory(cat)
	}
	return cfg, nil
}
