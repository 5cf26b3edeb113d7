// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the kernel's runtime configuration: an optional YAML
// file with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the kernel's full runtime configuration.
type Config struct {
	HTTP  HTTPConfig  `yaml:"http"`
	DB    DBConfig    `yaml:"db"`
	Merge MergeConfig `yaml:"merge"`
}

// HTTPConfig configures the REST front end.
type HTTPConfig struct {
	Port int `yaml:"port"` // e.g. 8080
}

// DBConfig configures the connection to the versioned SQL store.
type DBConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	MaxSessions int    `yaml:"max_sessions"` // pool size for dedicated mutation sessions
}

// MergeConfig configures trunk convergence.
type MergeConfig struct {
	TrunkBranch   string `yaml:"trunk_branch"`
	LockTimeoutMS int    `yaml:"lock_timeout_ms"`
}

// LockTimeout returns the merge lock timeout as a duration.
func (m MergeConfig) LockTimeout() time.Duration {
	return time.Duration(m.LockTimeoutMS) * time.Millisecond
}

// DefaultConfig returns the configuration used when no file and no env
// overrides are present.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		DB: DBConfig{
			Host:        "127.0.0.1",
			Port:        3306,
			User:        "root",
			Name:        "kernel",
			MaxSessions: 16,
		},
		Merge: MergeConfig{
			TrunkBranch:   "main",
			LockTimeoutMS: 10000,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is nonempty and the file exists), then env overrides, then
// validation.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers KERNEL_* environment variables over the file values.
func applyEnv(cfg *Config) {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envInt("KERNEL_HTTP_PORT", &cfg.HTTP.Port)
	envStr("KERNEL_DB_HOST", &cfg.DB.Host)
	envInt("KERNEL_DB_PORT", &cfg.DB.Port)
	envStr("KERNEL_DB_USER", &cfg.DB.User)
	envStr("KERNEL_DB_PASSWORD", &cfg.DB.Password)
	envStr("KERNEL_DB_NAME", &cfg.DB.Name)
	envInt("KERNEL_MAX_SESSIONS", &cfg.DB.MaxSessions)
	envStr("KERNEL_TRUNK_BRANCH", &cfg.Merge.TrunkBranch)
	envInt("KERNEL_MERGE_LOCK_TIMEOUT_MS", &cfg.Merge.LockTimeoutMS)
}

// Validate rejects out-of-range values before anything connects.
func (c Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		return fmt.Errorf("db port %d out of range", c.DB.Port)
	}
	if c.DB.Host == "" {
		return fmt.Errorf("db host must not be empty")
	}
	if c.DB.Name == "" {
		return fmt.Errorf("db name must not be empty")
	}
	if c.DB.MaxSessions < 1 || c.DB.MaxSessions > 1024 {
		return fmt.Errorf("max sessions %d out of range [1, 1024]", c.DB.MaxSessions)
	}
	if c.Merge.TrunkBranch == "" {
		return fmt.Errorf("trunk branch must not be empty")
	}
	if c.Merge.LockTimeoutMS < 100 || c.Merge.LockTimeoutMS > 600000 {
		return fmt.Errorf("merge lock timeout %dms out of range [100, 600000]", c.Merge.LockTimeoutMS)
	}
	return nil
}
