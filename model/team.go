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

package model

import (
	"fmt"

	"github.com/tomoncle/datastudy/specification"
	"github.com/uptrace/bun"
)

// Team column names.
const (
	TeamID   = "id"
	TeamName = "name"
)

var teamFields = []string{TeamID, TeamName}

type Team struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id" yaml:"id"`
	Name string `bun:"name,notnull" json:"name" yaml:"name"`
}

func NewTeam(name string) *Team {
	return &Team{Name: name}
}

func (t *Team) GetID() int64 { return t.ID }

func (t *Team) SetID(id int64) { t.ID = id }

func (t *Team) FieldNames() []string { return teamFields }

func (t *Team) Field(name string) (any, bool) {
	switch name {
	case TeamID:
		return t.ID, true
	case TeamName:
		return t.Name, true
	}
	return nil, false
}

func (t *Team) SetField(name string, value any) error {
	switch name {
	case TeamID:
		return fmt.Errorf("team id is immutable")
	case TeamName:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("team name: want string, got %T", value)
		}
		t.Name = s
	default:
		return fmt.Errorf("%w: team has no field %q", specification.ErrUnknownField, name)
	}
	return nil
}

func (t *Team) String() string {
	return fmt.Sprintf("Team{id=%d, name=%s}", t.ID, t.Name)
}
