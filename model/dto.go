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
	"strconv"
)

// MemberDto is the display shape of a member: internal fields such as age
// and the raw team id are left out.
type MemberDto struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	TeamName string `json:"team_name,omitempty"`
}

// NewMemberDto flattens a member and its resolved team (which may be nil).
func NewMemberDto(m *Member, team *Team) *MemberDto {
	dto := &MemberDto{ID: m.ID, Username: m.Username}
	if team != nil {
		dto.TeamName = team.Name
	}
	return dto
}

// UsernameOnly is a single-column projection of a member.
type UsernameOnly struct {
	Username string `json:"username"`
}

// MemberWithTeam is a member with its team reference resolved eagerly.
type MemberWithTeam struct {
	Member *Member `json:"member"`
	Team   *Team   `json:"team,omitempty"`
}

// Models lists the persistent entities, parents first.
func Models() []interface{} {
	return []interface{}{(*Team)(nil), (*Member)(nil)}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	}
	return 0, fmt.Errorf("want integer, got %T", v)
}
