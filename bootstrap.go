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

package datastudy

import (
	"context"
	"fmt"

	"github.com/tomoncle/datastudy/config"
	"github.com/tomoncle/datastudy/database"
	"github.com/tomoncle/datastudy/model"
	"github.com/tomoncle/datastudy/repository"
	"github.com/tomoncle/datastudy/utils"
)

// Registry holds the stores and services opened from one configuration.
type Registry struct {
	Config  *config.Config
	Members *MemberService

	// Database is nil for the memory backend.
	Database database.AbstractDatabaseManager
}

// Open configures logging, opens the configured backend, runs migrations when
// asked to and loads the fixture file if one is set. A nil cfg uses
// config.Default().
func Open(ctx context.Context, cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	utils.ConfigureLogging(cfg.Log.Level, cfg.Log.Format, nil)
	logger := utils.NewLogger("DATASTUDY")

	reg := &Registry{Config: cfg}
	switch cfg.Store.Backend {
	case config.BackendSQL:
		mgr := database.NewDatabaseManager(&cfg.Database, database.NewModelRegistry(model.Models()...))
		if err := mgr.Connect(ctx); err != nil {
			return nil, err
		}
		reg.Database = mgr
		if cfg.Store.Migrate {
			if err := mgr.RunMigrations(ctx); err != nil {
				_ = reg.Close()
				return nil, fmt.Errorf("failed to migrate: %w", err)
			}
		}
		db := mgr.GetDB()
		reg.Members = NewMemberService(
			repository.NewRepository[model.Member](db),
			repository.NewRepository[model.Team](db),
			cfg.Paging,
		)
	default:
		reg.Members = NewMemberService(
			repository.NewMemoryRepository[model.Member](),
			repository.NewMemoryRepository[model.Team](),
			cfg.Paging,
		)
	}

	if cfg.Store.Fixtures != "" {
		fixtures, err := LoadFixtureFile(cfg.Store.Fixtures)
		if err == nil {
			err = fixtures.Apply(ctx, reg.Members)
		}
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		logger.Infof("loaded %d teams and %d members from %s",
			len(fixtures.Teams), len(fixtures.Members), cfg.Store.Fixtures)
	}
	logger.WithField("backend", cfg.Store.Backend).Info("store opened")
	return reg, nil
}

// Close releases the database connection, if any.
func (r *Registry) Close() error {
	if r.Database == nil {
		return nil
	}
	return r.Database.Disconnect()
}
