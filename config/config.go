// Package config is OKS's kernel configuration. A single Config value is built in two layers — optional
// file defaults, then environment overrides — and threaded through kernel
// construction rather than read ad hoc from internal packages.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is every kernel-wide toggle and path the environment can set.
type Config struct {
	Repository         string `toml:"db_repository"`
	UserRepository     string `toml:"db_user_repository"`
	UserRepositoryPath string `toml:"db_user_repository_path"`
	IncludePath        string `toml:"db_path"`
	Version            string `toml:"db_version"`

	Silence                             bool `toml:"kernel_silence"`
	Verbose                             bool `toml:"kernel_verbose"`
	Profiling                           bool `toml:"kernel_profiling"`
	AllowDuplicatedClasses              bool `toml:"kernel_allow_duplicated_classes"`
	AllowDuplicatedObjects              bool `toml:"kernel_allow_duplicated_objects"`
	TestDuplicatedObjectsViaInheritance bool `toml:"kernel_test_duplicated_objects_via_inheritance"`
	SkipStringRange                     bool `toml:"kernel_skip_string_range"`
}

// Defaults returns the zero-toggle configuration: no repositories set, every
// boolean false.
func Defaults() Config {
	return Config{}
}

// FromEnv reads the kernel's environment variables into a Config,
// starting from base so callers can layer env on top of file defaults.
// Every *_kernel_* boolean follows the "any value but `no` means true"
// convention.
func FromEnv(base Config) Config {
	c := base
	if v, ok := os.LookupEnv("DB_REPOSITORY"); ok {
		c.Repository = v
	}
	if v, ok := os.LookupEnv("DB_USER_REPOSITORY"); ok {
		c.UserRepository = v
	}
	if v, ok := os.LookupEnv("DB_USER_REPOSITORY_PATH"); ok {
		c.UserRepositoryPath = v
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		c.IncludePath = v
	}
	if v, ok := os.LookupEnv("DB_VERSION"); ok {
		c.Version = v
	}

	setBool(&c.Silence, "KERNEL_SILENCE")
	setBool(&c.Verbose, "KERNEL_VERBOSE")
	setBool(&c.Profiling, "KERNEL_PROFILING")
	setBool(&c.AllowDuplicatedClasses, "KERNEL_ALLOW_DUPLICATED_CLASSES")
	setBool(&c.AllowDuplicatedObjects, "KERNEL_ALLOW_DUPLICATED_OBJECTS")
	setBool(&c.TestDuplicatedObjectsViaInheritance, "KERNEL_TEST_DUPLICATED_OBJECTS_VIA_INHERITANCE")
	setBool(&c.SkipStringRange, "KERNEL_SKIP_STRING_RANGE")

	return c
}

func setBool(dst *bool, envVar string) {
	v, ok := os.LookupEnv(envVar)
	if !ok {
		return
	}
	*dst = v != "no"
}

// FromFile loads an optional oks.toml of the same fields as Config, letting
// a site check in defaults that environment variables can still override.
func FromFile(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("config: decode %q: %w", path, err)
	}
	return c, nil
}

// Load composes FromFile (if path is non-empty and the file exists) then
// FromEnv, so the environment always wins.
func Load(path string) (Config, error) {
	base := Defaults()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileCfg, err := FromFile(path)
			if err != nil {
				return Config{}, err
			}
			base = fileCfg
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %q: %w", path, err)
		}
	}
	return FromEnv(base), nil
}
