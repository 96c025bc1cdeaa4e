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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datastudy/specification"
)

func TestMemberFields(t *testing.T) {
	team := &Team{ID: 7, Name: "TeamA"}
	m := NewMember("m1", 10, team)
	assert.Equal(t, int64(7), m.TeamID)
	assert.True(t, m.HasTeam())

	v, ok := m.Field(MemberAge)
	require.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = m.Field("salary")
	assert.False(t, ok)

	require.NoError(t, m.SetField(MemberAge, int64(11)))
	require.NoError(t, m.SetField(MemberUsername, "m2"))
	require.NoError(t, m.SetField(MemberTeamID, []byte("9")))
	assert.Equal(t, &Member{Username: "m2", Age: 11, TeamID: 9}, m)

	assert.Error(t, m.SetField(MemberID, 3))
	assert.Error(t, m.SetField(MemberUsername, 3))
	assert.ErrorIs(t, m.SetField("salary", 1), specification.ErrUnknownField)

	m.ChangeTeam(nil)
	assert.False(t, m.HasTeam())
}

func TestTeamlessMemberHasNullTeamID(t *testing.T) {
	m := NewMember("m1", 10, nil)
	v, ok := m.Field(MemberTeamID)
	require.True(t, ok)
	assert.Nil(t, v)
	assert.False(t, specification.Matches(specification.NotEqual(MemberTeamID, int64(5)), m))

	require.NoError(t, m.SetField(MemberTeamID, int64(4)))
	v, _ = m.Field(MemberTeamID)
	assert.Equal(t, int64(4), v)
	assert.True(t, specification.Matches(specification.NotEqual(MemberTeamID, int64(5)), m))

	require.NoError(t, m.SetField(MemberTeamID, nil))
	assert.False(t, m.HasTeam())
}

func TestTeamFields(t *testing.T) {
	team := NewTeam("TeamA")
	team.SetID(3)
	assert.Equal(t, []string{TeamID, TeamName}, team.FieldNames())

	require.NoError(t, team.SetField(TeamName, "TeamB"))
	v, ok := team.Field(TeamName)
	require.True(t, ok)
	assert.Equal(t, "TeamB", v)
	assert.ErrorIs(t, team.SetField("color", "red"), specification.ErrUnknownField)
}

func TestMemberDto(t *testing.T) {
	m := &Member{ID: 1, Username: "m1", Age: 3, TeamID: 2}
	assert.Equal(t, &MemberDto{ID: 1, Username: "m1", TeamName: "TeamA"}, NewMemberDto(m, &Team{ID: 2, Name: "TeamA"}))
	assert.Equal(t, &MemberDto{ID: 1, Username: "m1"}, NewMemberDto(m, nil))
	assert.Len(t, Models(), 2)
}
