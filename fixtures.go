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
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tomoncle/datastudy/model"
	"github.com/tomoncle/datastudy/repository"
)

// Fixtures is a YAML seed file of teams and the members that join them by
// team name:
//
//	teams:
//	  - name: TeamA
//	members:
//	  - username: m1
//	    age: 10
//	    team: TeamA
type Fixtures struct {
	Teams   []TeamFixture   `yaml:"teams"`
	Members []MemberFixture `yaml:"members"`
}

type TeamFixture struct {
	Name string `yaml:"name"`
}

type MemberFixture struct {
	Username string `yaml:"username"`
	Age      int    `yaml:"age"`
	Team     string `yaml:"team,omitempty"`
}

// ParseFixtures decodes fixtures and rejects unknown keys, unnamed records
// and members of undeclared teams.
func ParseFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixtures
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFixtureFile parses the fixture file at path.
func LoadFixtureFile(path string) (*Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures %s: %w", path, err)
	}
	defer file.Close()
	return ParseFixtures(file)
}

func (f *Fixtures) validate() error {
	teams := make(map[string]struct{}, len(f.Teams))
	for i, t := range f.Teams {
		if t.Name == "" {
			return fmt.Errorf("fixtures: team %d has no name", i)
		}
		if _, ok := teams[t.Name]; ok {
			return fmt.Errorf("fixtures: team %q declared twice", t.Name)
		}
		teams[t.Name] = struct{}{}
	}
	for i, m := range f.Members {
		if m.Username == "" {
			return fmt.Errorf("fixtures: member %d has no username", i)
		}
		if m.Team == "" {
			continue
		}
		if _, ok := teams[m.Team]; !ok {
			return fmt.Errorf("fixtures: member %q joins undeclared team %q", m.Username, m.Team)
		}
	}
	return nil
}

// Apply inserts the teams, then the members with their team ids resolved.
// Each entity kind is written in its own transaction.
func (f *Fixtures) Apply(ctx context.Context, svc *MemberService) error {
	ids := make(map[string]int64, len(f.Teams))
	err := svc.Teams().Transaction(ctx, func(ctx context.Context, repo repository.Repository[model.Team]) error {
		for _, t := range f.Teams {
			team, err := repo.Insert(ctx, model.NewTeam(t.Name))
			if err != nil {
				return fmt.Errorf("failed to insert team %q: %w", t.Name, err)
			}
			ids[t.Name] = team.ID
		}
		return nil
	})
	if err != nil {
		return err
	}
	return svc.Members().Transaction(ctx, func(ctx context.Context, repo repository.Repository[model.Member]) error {
		for _, m := range f.Members {
			member := model.NewMember(m.Username, m.Age, nil)
			member.TeamID = ids[m.Team]
			if _, err := repo.Insert(ctx, member); err != nil {
				return fmt.Errorf("failed to insert member %q: %w", m.Username, err)
			}
		}
		return nil
	})
}
