/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/tomoncle/datastudy/database"
	"github.com/tomoncle/datastudy/types"
)

// EnvPrefix prefixes every environment override, e.g. DATASTUDY_DATABASE_HOST.
const EnvPrefix = "DATASTUDY"

// Load reads defaults, then the optional config file at path, then
// environment variables, which take precedence. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and that the default sort parses.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if _, err := types.ParseSort(cfg.Paging.DefaultSort); err != nil {
		return fmt.Errorf("configuration validation failed: paging.default_sort: %w", err)
	}
	if cfg.Store.Migrate && cfg.Store.Backend != BackendSQL {
		return errors.New("configuration validation failed: store.migrate requires the sql backend")
	}
	return nil
}

// Default returns the configuration Load produces without file or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults registers every key so environment overrides are picked up by
// Unmarshal even when no file mentions them.
func setDefaults(v *viper.Viper) {
	db := database.DefaultConnectionConfig()

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.fixtures", "")
	v.SetDefault("store.migrate", false)

	v.SetDefault("database.type", db.Type)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", db.DBName)
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", db.ConnMaxIdleTime)
	v.SetDefault("database.connect_timeout", db.ConnectTimeout)
	v.SetDefault("database.read_timeout", db.ReadTimeout)
	v.SetDefault("database.write_timeout", db.WriteTimeout)
	v.SetDefault("database.query_log", db.QueryLog)
	v.SetDefault("database.query_log_verbose", false)
	v.SetDefault("database.slow_query_time", db.SlowQueryTime)
	v.SetDefault("database.enable_foreign_key", false)

	v.SetDefault("paging.default_size", 5)
	v.SetDefault("paging.max_size", 100)
	v.SetDefault("paging.default_sort", "username,asc")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
