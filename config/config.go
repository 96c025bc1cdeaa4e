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
	"github.com/tomoncle/datastudy/database"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

// Config holds all application configuration.
type Config struct {
	Store    StoreConfig               `mapstructure:"store" validate:"required"`
	Database database.ConnectionConfig `mapstructure:"database"`
	Paging   PagingConfig              `mapstructure:"paging" validate:"required"`
	Log      LogConfig                 `mapstructure:"log" validate:"required"`
}

// StoreConfig selects the entity store and how it is prepared.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory sql"`
	// Fixtures is an optional YAML file of teams and members loaded on open.
	Fixtures string `mapstructure:"fixtures"`
	// Migrate runs schema migrations on open; sql backend only.
	Migrate bool `mapstructure:"migrate"`
}

// PagingConfig holds the defaults the request layer applies to list calls.
type PagingConfig struct {
	DefaultSize int    `mapstructure:"default_size" validate:"gt=0,ltefield=MaxSize"`
	MaxSize     int    `mapstructure:"max_size" validate:"gt=0"`
	DefaultSort string `mapstructure:"default_sort" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}
