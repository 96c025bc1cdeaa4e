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

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// AbstractDatabaseManager defines the operations for managing a database
// connection, running migrations and reporting health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// Query log modes.
const (
	QueryLogOff      = "off"
	QueryLogBundebug = "bundebug"
	QueryLogColor    = "color"
)

// ConnectionConfig describes how to connect to a database and tune its pool.
// For SQLite an empty DBName or ":memory:" opens a private in-memory database.
type ConnectionConfig struct {
	Type             string        `mapstructure:"type" json:"type" validate:"required,oneof=mysql postgres postgresql sqlite sqlite3"`
	Host             string        `mapstructure:"host" json:"host"`
	Port             int           `mapstructure:"port" json:"port" validate:"gte=0,lte=65535"`
	Username         string        `mapstructure:"username" json:"username"`
	Password         string        `mapstructure:"password" json:"-"`
	DBName           string        `mapstructure:"dbname" json:"dbname"`
	SSLMode          string        `mapstructure:"sslmode" json:"sslmode"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns" json:"max_idle_conns" validate:"gte=0"`
	MaxOpenConns     int           `mapstructure:"max_open_conns" json:"max_open_conns" validate:"gte=0"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" json:"connect_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	QueryLog         string        `mapstructure:"query_log" json:"query_log" validate:"omitempty,oneof=off bundebug color"`
	QueryLogVerbose  bool          `mapstructure:"query_log_verbose" json:"query_log_verbose"`
	SlowQueryTime    time.Duration `mapstructure:"slow_query_time" json:"slow_query_time"`
	EnableForeignKey bool          `mapstructure:"enable_foreign_key" json:"enable_foreign_key"`
}

// DefaultConnectionConfig returns an in-memory SQLite config with sensible
// pool defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:            "sqlite",
		DBName:          ":memory:",
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		ConnectTimeout:  time.Second * 10,
		ReadTimeout:     time.Second * 30,
		WriteTimeout:    time.Second * 30,
		QueryLog:        QueryLogOff,
		SlowQueryTime:   time.Second * 2,
	}
}
