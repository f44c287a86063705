// Package userconfig describes the dependency being provisioned: where it
// comes from, how each strategy obtains it, and where the result goes.
// The profile is stored in $NATIVEDEP_HOME/config.toml and can be
// inspected or modified with `nativedep config`.
package userconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/tsukumogami/nativedep/internal/acquire"
	"github.com/tsukumogami/nativedep/internal/config"
	"github.com/tsukumogami/nativedep/internal/pkgmgr"
	"github.com/tsukumogami/nativedep/internal/release"
)

// Config is the provisioning profile.
type Config struct {
	// Repo is the upstream GitHub repository, "owner/name".
	Repo string `toml:"repo"`

	// Strategies is the priority order tried by install.
	Strategies []string `toml:"strategies"`

	// MinVersion is an optional semver constraint on the release.
	MinVersion string `toml:"min_version,omitempty"`

	IncludeDir string `toml:"include_dir"`
	LibDir     string `toml:"lib_dir"`
	Header     string `toml:"header"`
	Library    string `toml:"library"`

	// Packages maps package manager names to the packages that carry the
	// headers and shared library.
	Packages map[string][]string `toml:"packages"`

	// Toolchain maps package manager names to compiler packages installed
	// before acquisition. Failures there are logged, never fatal.
	Toolchain map[string][]string `toml:"toolchain"`

	Wheel Wheel `toml:"wheel"`
	Env   Env   `toml:"env"`

	// Assets overrides or extends the built-in asset patterns, keyed as
	// "channel/os/arch".
	Assets release.Table `toml:"assets,omitempty"`
}

// Wheel configures the Python wheel strategy.
type Wheel struct {
	Module  string   `toml:"module"`
	PipArgs []string `toml:"pip_args,omitempty"`
}

// Env configures the exported environment file.
type Env struct {
	File      string `toml:"file"`
	HeaderVar string `toml:"header_var"`

	// LibraryPathVar is either a search list (LD_LIBRARY_PATH, PATH, ...)
	// that gets the library directory prepended, or a single-directory
	// variable such as Z3_PYTHON_LIB. Empty selects the loader variable.
	LibraryPathVar string `toml:"library_path_var,omitempty"`

	LibraryFileVar    string `toml:"library_file_var"`
	ExportLibraryFile bool   `toml:"export_library_file"`
}

// DefaultConfig returns the Z3 profile.
func DefaultConfig() *Config {
	return &Config{
		Repo:       "Z3Prover/z3",
		Strategies: []string{"system", "wheel", "archive"},
		IncludeDir: "/usr/local/include",
		LibDir:     "/usr/local/lib",
		Header:     "z3.h",
		Library:    "z3",
		Packages: map[string][]string{
			string(pkgmgr.Yum):  {"z3-devel"},
			string(pkgmgr.Dnf):  {"z3-devel"},
			string(pkgmgr.Apt):  {"libz3-dev"},
			string(pkgmgr.Brew): {"z3"},
		},
		Toolchain: map[string][]string{
			string(pkgmgr.Yum): {"clang", "curl"},
			string(pkgmgr.Dnf): {"clang", "curl"},
			string(pkgmgr.Apt): {"build-essential", "libc6-dev", "gcc-multilib", "curl"},
		},
		Wheel: Wheel{Module: "z3"},
		Env: Env{
			File:           ".depenv",
			HeaderVar:      "Z3_SYS_Z3_HEADER",
			LibraryFileVar: "Z3_LIBRARY_FILE",
		},
	}
}

// Load reads the profile from the default location. A missing file
// yields the defaults.
func Load() (*Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(cfg.ConfigFile)
}

// LoadFile reads the profile at path. Keys present in the file replace
// the defaults; keys the profile does not know are errors.
func LoadFile(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	md, err := toml.Decode(string(data), userCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := userCfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return userCfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if strings.Count(c.Repo, "/") != 1 || strings.HasPrefix(c.Repo, "/") || strings.HasSuffix(c.Repo, "/") {
		return fmt.Errorf("repo must be owner/name, got %q", c.Repo)
	}
	if _, err := c.StrategyNames(); err != nil {
		return err
	}
	if c.MinVersion != "" {
		if _, err := semver.NewConstraint(c.MinVersion); err != nil {
			return fmt.Errorf("min_version: %w", err)
		}
	}
	for _, table := range []map[string][]string{c.Packages, c.Toolchain} {
		for k := range table {
			if !knownManager(k) {
				return fmt.Errorf("unknown package manager %q", k)
			}
		}
	}
	if c.Header == "" || c.Library == "" {
		return errors.New("header and library must be set")
	}
	if c.Env.File == "" || c.Env.HeaderVar == "" {
		return errors.New("env.file and env.header_var must be set")
	}
	for key, name := range map[string]string{
		"env.header_var":       c.Env.HeaderVar,
		"env.library_path_var": c.Env.LibraryPathVar,
		"env.library_file_var": c.Env.LibraryFileVar,
	} {
		if name != "" && !shellName.MatchString(name) {
			return fmt.Errorf("%s: %q is not a valid shell variable name", key, name)
		}
	}
	return nil
}

var shellName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func knownManager(k string) bool {
	for _, m := range pkgmgr.Default() {
		if string(m.Kind()) == k {
			return true
		}
	}
	return false
}

// StrategyNames parses Strategies. An empty list is an error.
func (c *Config) StrategyNames() ([]acquire.Name, error) {
	if len(c.Strategies) == 0 {
		return nil, errors.New("strategies must not be empty")
	}
	names := make([]acquire.Name, 0, len(c.Strategies))
	seen := make(map[acquire.Name]bool)
	for _, s := range c.Strategies {
		n, err := acquire.ParseName(s)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, fmt.Errorf("strategy %q listed twice", s)
		}
		seen[n] = true
		names = append(names, n)
	}
	return names, nil
}

// PackagesByKind converts a manager-keyed table for the pkgmgr package.
func PackagesByKind(table map[string][]string) map[pkgmgr.Kind][]string {
	out := make(map[pkgmgr.Kind][]string, len(table))
	for k, v := range table {
		out[pkgmgr.Kind(k)] = v
	}
	return out
}

// SaveFile writes the profile to path.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Get returns the value of a scalar key as a string.
func (c *Config) Get(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "repo":
		return c.Repo, true
	case "strategies":
		return strings.Join(c.Strategies, ","), true
	case "min_version":
		return c.MinVersion, true
	case "include_dir":
		return c.IncludeDir, true
	case "lib_dir":
		return c.LibDir, true
	case "env.file":
		return c.Env.File, true
	case "env.library_path_var":
		return c.Env.LibraryPathVar, true
	case "env.export_library_file":
		return strconv.FormatBool(c.Env.ExportLibraryFile), true
	}
	return "", false
}

// Set updates a scalar key from a string and revalidates the profile.
func (c *Config) Set(key, value string) error {
	next := *c
	switch strings.ToLower(key) {
	case "repo":
		next.Repo = value
	case "strategies":
		next.Strategies = splitList(value)
	case "min_version":
		next.MinVersion = value
	case "include_dir":
		next.IncludeDir = value
	case "lib_dir":
		next.LibDir = value
	case "env.file":
		next.Env.File = value
	case "env.library_path_var":
		next.Env.LibraryPathVar = value
	case "env.export_library_file":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: must be true or false", key)
		}
		next.Env.ExportLibraryFile = b
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AvailableKeys returns the keys Get and Set accept, with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"repo":                    "Upstream GitHub repository (owner/name)",
		"strategies":              "Comma-separated strategy order (system, wheel, archive)",
		"min_version":             "Semver constraint the release must satisfy",
		"include_dir":             "Install root for headers (archive strategy)",
		"lib_dir":                 "Install root for the shared library (archive strategy)",
		"env.file":                "Environment file written after a successful run",
		"env.export_library_file": "Also export the full library path (true/false)",
		"env.library_path_var":    "Variable receiving the library directory (empty: loader search path)",
	}
}

// SortedKeys returns AvailableKeys in display order.
func SortedKeys() []string {
	keys := make([]string, 0, len(AvailableKeys()))
	for k := range AvailableKeys() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
