// Package config loads the server settings. Defaults are overlaid by an
// optional YAML file, then by the environment the editor starts the server
// with.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rnvim/rnvimserver/paths"
)

// Listen selects the runtime link's address and port range.
type Listen struct {
	Host      string `yaml:"host,omitempty"`
	FirstPort int    `yaml:"first_port,omitempty"`
	LastPort  int    `yaml:"last_port,omitempty"`
}

// Config holds the server settings.
type Config struct {
	// Secret authenticates runtime messages. Only read from the environment.
	Secret string `yaml:"-"`
	// ID makes per-instance file names unique.
	ID string `yaml:"id,omitempty"`

	ComplDir       string `yaml:"compl_dir,omitempty"`
	TmpDir         string `yaml:"tmp_dir,omitempty"`
	LocalTmpDir    string `yaml:"local_tmp_dir,omitempty"`
	RemoteTmpDir   string `yaml:"remote_tmp_dir,omitempty"`
	RemoteComplDir string `yaml:"remote_compl_dir,omitempty"`

	CompletionCallback string `yaml:"completion_callback,omitempty"`
	InfoCallback       string `yaml:"info_callback,omitempty"`
	RPath              string `yaml:"r_path,omitempty"`

	OpenDataFrames bool `yaml:"open_data_frames,omitempty"`
	OpenLists      bool `yaml:"open_lists,omitempty"`
	AllNames       bool `yaml:"all_names,omitempty"`
	UTF8           bool `yaml:"utf8,omitempty"`

	// WatchLibraries rescans library paths only after a filesystem change.
	WatchLibraries bool   `yaml:"watch_libraries"`
	Listen         Listen `yaml:"listen,omitempty"`
	Debug          bool   `yaml:"debug,omitempty"`
	LogFile        string `yaml:"log_file,omitempty"`

	filePath string
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() *Config {
	return &Config{
		CompletionCallback: "require('cmp_r').asynccb",
		InfoCallback:       "require('cmp_r').finish_ci",
		RPath:              "R",
		WatchLibraries:     true,
	}
}

// Load reads the YAML file at path over the defaults. An empty path selects
// paths.ConfigFilePath; a missing file is not an error. The environment is
// not applied; see ApplyEnv.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := paths.ConfigFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg := Defaults()
	cfg.filePath = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FilePath returns the file Load read, or would have read.
func (c *Config) FilePath() string { return c.filePath }

// ApplyEnv overlays the environment read through getenv. Presence of the
// boolean variables turns the option on whatever their value.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Secret, "RNVIM_SECRET")
	set(&c.ID, "RNVIM_ID")
	set(&c.ComplDir, "RNVIM_COMPLDIR")
	set(&c.TmpDir, "RNVIM_TMPDIR")
	set(&c.LocalTmpDir, "RNVIM_LOCAL_TMPDIR")
	set(&c.RemoteTmpDir, "RNVIM_REMOTE_TMPDIR")
	set(&c.RemoteComplDir, "RNVIM_REMOTE_COMPLDIR")
	set(&c.CompletionCallback, "RNVIM_COMPLCB")
	set(&c.InfoCallback, "RNVIM_COMPLInfo")
	set(&c.RPath, "RNVIM_RPATH")

	if getenv("RNVIM_OPENDF") != "" {
		c.OpenDataFrames = true
	}
	if getenv("RNVIM_OPENLS") != "" {
		c.OpenLists = true
	}
	if getenv("RNVIM_OBJBR_ALLNAMES") != "" {
		c.AllNames = true
	}
	if IsUTF8Locale(getenv("LC_MESSAGES") + getenv("LC_ALL") + getenv("LANG")) {
		c.UTF8 = true
	}
}

// IsUTF8Locale reports whether the concatenated locale variables name a
// UTF-8 encoding.
func IsUTF8Locale(s string) bool {
	s = strings.ToUpper(s)
	return strings.Contains(s, "UTF-8") || strings.Contains(s, "UTF8")
}

// Finalize fills settings derived from others: the local and remote
// directories default to TmpDir and ComplDir, and a missing ID is generated.
func (c *Config) Finalize() {
	if c.LocalTmpDir == "" {
		c.LocalTmpDir = c.TmpDir
	}
	if c.RemoteTmpDir == "" {
		c.RemoteTmpDir = c.TmpDir
	}
	if c.RemoteComplDir == "" {
		c.RemoteComplDir = c.ComplDir
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
}

// ErrNoSecret is reported when RNVIM_SECRET is not set.
var ErrNoSecret = errors.New("RNVIM_SECRET not found")

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return ErrNoSecret
	}
	if c.ComplDir == "" {
		return fmt.Errorf("RNVIM_COMPLDIR not set")
	}
	if c.TmpDir == "" {
		return fmt.Errorf("RNVIM_TMPDIR not set")
	}
	if c.Listen.FirstPort > c.Listen.LastPort {
		return fmt.Errorf("listen port range %d-%d is empty", c.Listen.FirstPort, c.Listen.LastPort)
	}
	return nil
}

// Per-instance file locations.

// GlobalViewPath is the global environment view file.
func (c *Config) GlobalViewPath() string { return filepath.Join(c.LocalTmpDir, "globenv_"+c.ID) }

// LibraryViewPath is the library view file.
func (c *Config) LibraryViewPath() string { return filepath.Join(c.LocalTmpDir, "liblist_"+c.ID) }

// ReadyListPath lists packages whose caches are loaded.
func (c *Config) ReadyListPath() string { return filepath.Join(c.LocalTmpDir, "libs_in_nrs_"+c.ID) }

// StateDumpPath receives the browser state dump.
func (c *Config) StateDumpPath() string {
	return filepath.Join(c.LocalTmpDir, "list_tree_"+c.ID+".yaml")
}

// StartupPackagesPath lists the packages to load before the runtime
// connects.
func (c *Config) StartupPackagesPath() string { return filepath.Join(c.TmpDir, "libnames_"+c.ID) }

// LibPathsFile lists the runtime's library directories.
func (c *Config) LibPathsFile() string { return filepath.Join(c.TmpDir, "libPaths") }
