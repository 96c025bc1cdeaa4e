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

	"github.com/tomoncle/datastudy/model"
	"github.com/tomoncle/datastudy/repository"
	"github.com/tomoncle/datastudy/specification"
)

// Username matches members named username; an empty name filters nothing.
func Username(username string) specification.Specification {
	return specification.EqualTo(model.MemberUsername, username)
}

// usernameIs matches the name exactly, the empty name included.
func usernameIs(username string) specification.Specification {
	return specification.Comparison{Field: model.MemberUsername, Op: specification.Eq, Value: username}
}

func AgeEquals(age int) specification.Specification {
	return specification.EqualTo(model.MemberAge, age)
}

func AgeGreaterThan(age int) specification.Specification {
	return specification.GreaterThan(model.MemberAge, age)
}

func AgeGreaterThanOrEqual(age int) specification.Specification {
	return specification.GreaterThanOrEqual(model.MemberAge, age)
}

// UsernameIn matches members whose name is one of names.
func UsernameIn(names ...string) specification.Specification {
	return specification.In(model.MemberUsername, names...)
}

// TeamName matches members of the teams called name. Members only hold a team
// id, so the matching teams are looked up first and the result is an id
// membership test. An empty name filters nothing; a name no team carries
// matches no member.
func TeamName(ctx context.Context, teams repository.Repository[model.Team], name string) (specification.Specification, error) {
	if name == "" {
		return specification.Noop(), nil
	}
	found, err := teams.Query(ctx, specification.EqualTo(model.TeamName, name), teamOrder)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return specification.None(), nil
	}
	ids := make([]int64, 0, len(found))
	for _, t := range found {
		ids = append(ids, t.ID)
	}
	return specification.In(model.MemberTeamID, ids...), nil
}
