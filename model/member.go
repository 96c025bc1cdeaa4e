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

// Member column names.
const (
	MemberID       = "id"
	MemberUsername = "username"
	MemberAge      = "age"
	MemberTeamID   = "team_id"
)

var memberFields = []string{MemberID, MemberUsername, MemberAge, MemberTeamID}

// Member belongs to at most one team. TeamID is a weak reference by id;
// zero means no team.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id" yaml:"id"`
	Username string `bun:"username,notnull" json:"username" yaml:"username"`
	Age      int    `bun:"age,notnull" json:"age" yaml:"age"`
	TeamID   int64  `bun:"team_id,nullzero" json:"team_id,omitempty" yaml:"team_id"`
}

// NewMember creates an unsaved member, optionally joined to team.
func NewMember(username string, age int, team *Team) *Member {
	m := &Member{Username: username, Age: age}
	m.ChangeTeam(team)
	return m
}

// ChangeTeam points the member at team; a nil or unsaved team clears the reference.
func (m *Member) ChangeTeam(team *Team) {
	if team == nil {
		m.TeamID = 0
		return
	}
	m.TeamID = team.ID
}

func (m *Member) HasTeam() bool { return m.TeamID != 0 }

func (m *Member) GetID() int64 { return m.ID }

func (m *Member) SetID(id int64) { m.ID = id }

func (m *Member) FieldNames() []string { return memberFields }

func (m *Member) Field(name string) (any, bool) {
	switch name {
	case MemberID:
		return m.ID, true
	case MemberUsername:
		return m.Username, true
	case MemberAge:
		return m.Age, true
	case MemberTeamID:
		if !m.HasTeam() {
			// stored as NULL
			return nil, true
		}
		return m.TeamID, true
	}
	return nil, false
}

func (m *Member) SetField(name string, value any) error {
	switch name {
	case MemberID:
		return fmt.Errorf("member id is immutable")
	case MemberUsername:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("member username: want string, got %T", value)
		}
		m.Username = s
	case MemberAge:
		n, err := toInt64(value)
		if err != nil {
			return fmt.Errorf("member age: %w", err)
		}
		m.Age = int(n)
	case MemberTeamID:
		if value == nil {
			m.TeamID = 0
			return nil
		}
		n, err := toInt64(value)
		if err != nil {
			return fmt.Errorf("member team_id: %w", err)
		}
		m.TeamID = n
	default:
		return fmt.Errorf("%w: member has no field %q", specification.ErrUnknownField, name)
	}
	return nil
}

func (m *Member) String() string {
	return fmt.Sprintf("Member{id=%d, username=%s, age=%d}", m.ID, m.Username, m.Age)
}
