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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomoncle/datastudy/config"
	"github.com/tomoncle/datastudy/model"
	"github.com/tomoncle/datastudy/repository"
	"github.com/tomoncle/datastudy/specification"
	"github.com/tomoncle/datastudy/types"
	"github.com/tomoncle/datastudy/utils"
)

// ErrNotUnique is returned by single-result lookups that match several members.
var ErrNotUnique = errors.New("query did not return a unique result")

var (
	memberOrder = types.By(types.ASC, model.MemberUsername)
	teamOrder   = types.By(types.ASC, model.TeamID)
)

const nativeQueryByUsername = "SELECT * FROM members WHERE username = ?"

// MemberService groups the member queries of the study on top of a member
// store and a team store. Team references are weak, so every team lookup is
// an explicit query against the team store.
type MemberService struct {
	members Service[model.Member]
	teams   Service[model.Team]
	logger  *logrus.Logger
}

func NewMemberService(members repository.Repository[model.Member], teams repository.Repository[model.Team], paging config.PagingConfig) *MemberService {
	return &MemberService{
		members: NewService[model.Member](members, paging),
		teams:   NewService[model.Team](teams, paging),
		logger:  utils.NewLogger("SERVICE"),
	}
}

func (s *MemberService) Members() Service[model.Member] { return s.members }

func (s *MemberService) Teams() Service[model.Team] { return s.teams }

// FindUsername returns the name of member id.
func (s *MemberService) FindUsername(ctx context.Context, id int64) (string, error) {
	m, err := s.members.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return m.Username, nil
}

// List returns one page of all members in display shape. A request without a
// page size takes the configured default size, and an unsorted request the
// default sort.
func (s *MemberService) List(ctx context.Context, page types.PageRequest) (*types.Page[model.MemberDto], error) {
	defaults := s.members.Pageable(page.GetPage())
	size, sort := page.GetPageSize(), page.GetSort()
	if size == 0 {
		size = defaults.GetPageSize()
	}
	if !sort.IsSorted() {
		sort = defaults.GetSort()
	}
	result, err := s.members.Page(ctx, specification.Noop(), types.NewPageRequest(page.GetPage(), size, sort))
	if err != nil {
		return nil, err
	}
	teams, err := s.teamsOf(ctx, result.Content)
	if err != nil {
		return nil, err
	}
	return types.MapPage(result, func(m *model.Member) *model.MemberDto {
		return model.NewMemberDto(m, teams[m.TeamID])
	}), nil
}

// Search pages through the members matching both filters. Empty filters are
// ignored.
func (s *MemberService) Search(ctx context.Context, username, teamName string, page types.PageRequest) (*types.Page[model.Member], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	byTeam, err := TeamName(ctx, s.teams.Repository(), teamName)
	if err != nil {
		return nil, err
	}
	return s.members.Page(ctx, specification.And(Username(username), byTeam), page)
}

// FindByUsername matches the name exactly; unlike Search, an empty name only
// finds members whose name is empty.
func (s *MemberService) FindByUsername(ctx context.Context, username string) ([]*model.Member, error) {
	return s.members.List(ctx, usernameIs(username), memberOrder)
}

// FindMemberByUsername returns the only member called username. It fails
// with repository.ErrNotFound when there is none and ErrNotUnique when there
// are several.
func (s *MemberService) FindMemberByUsername(ctx context.Context, username string) (*model.Member, error) {
	found, err := s.members.List(ctx, usernameIs(username), types.Unsorted())
	if err != nil {
		return nil, err
	}
	return unique(found, username)
}

// FindMember matches username and age exactly.
func (s *MemberService) FindMember(ctx context.Context, username string, age int) ([]*model.Member, error) {
	spec := specification.And(
		usernameIs(username),
		specification.Comparison{Field: model.MemberAge, Op: specification.Eq, Value: age},
	)
	return s.members.List(ctx, spec, memberOrder)
}

func (s *MemberService) FindByUsernameAndAgeGreaterThan(ctx context.Context, username string, age int) ([]*model.Member, error) {
	return s.members.List(ctx, specification.And(usernameIs(username), AgeGreaterThan(age)), memberOrder)
}

func (s *MemberService) FindByNames(ctx context.Context, names ...string) ([]*model.Member, error) {
	if len(names) == 0 {
		return []*model.Member{}, nil
	}
	return s.members.List(ctx, UsernameIn(names...), memberOrder)
}

func (s *MemberService) FindPageByAge(ctx context.Context, age int, page types.PageRequest) (*types.Page[model.Member], error) {
	return s.members.Page(ctx, AgeEquals(age), page)
}

func (s *MemberService) FindSliceByAge(ctx context.Context, age int, page types.PageRequest) (*types.Slice[model.Member], error) {
	return s.members.Slice(ctx, AgeEquals(age), page)
}

// FindListByAge returns the content of one page without counting.
func (s *MemberService) FindListByAge(ctx context.Context, age int, page types.PageRequest) ([]*model.Member, error) {
	slice, err := s.members.Slice(ctx, AgeEquals(age), page)
	if err != nil {
		return nil, err
	}
	return slice.Content, nil
}

// BulkAgePlus adds one to the age of every member at least age years old in a
// single bulk update and returns how many members changed. Members fetched
// before the call keep their old age.
func (s *MemberService) BulkAgePlus(ctx context.Context, age int) (int64, error) {
	start := time.Now()
	n, err := s.members.Repository().Increment(ctx, AgeGreaterThanOrEqual(age), model.MemberAge, 1)
	if err != nil {
		return 0, err
	}
	s.logger.WithField("age", age).Infof("bulk age update changed %d members in %s", n, utils.Elapsed(start))
	return n, nil
}

// Usernames lists every member name in name order.
func (s *MemberService) Usernames(ctx context.Context) ([]string, error) {
	rows, err := s.members.Repository().Project(ctx, nil, memberOrder, model.MemberUsername)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, asString(row[model.MemberUsername]))
	}
	return names, nil
}

func (s *MemberService) FindProjectionsByUsername(ctx context.Context, username string) ([]*model.UsernameOnly, error) {
	rows, err := s.members.Repository().Project(ctx, usernameIs(username), memberOrder, model.MemberUsername)
	if err != nil {
		return nil, err
	}
	out := make([]*model.UsernameOnly, 0, len(rows))
	for _, row := range rows {
		out = append(out, &model.UsernameOnly{Username: asString(row[model.MemberUsername])})
	}
	return out, nil
}

func (s *MemberService) FindMemberDtos(ctx context.Context) ([]*model.MemberDto, error) {
	joined, err := s.FindAllWithTeam(ctx, nil, memberOrder)
	if err != nil {
		return nil, err
	}
	out := make([]*model.MemberDto, 0, len(joined))
	for _, j := range joined {
		out = append(out, model.NewMemberDto(j.Member, j.Team))
	}
	return out, nil
}

// ResolveTeam loads the team member points at, nil when it has none.
func (s *MemberService) ResolveTeam(ctx context.Context, member *model.Member) (*model.Team, error) {
	if member == nil || !member.HasTeam() {
		return nil, nil
	}
	return s.teams.Get(ctx, member.TeamID)
}

// FindAllWithTeam queries members and resolves their teams with one further
// query for all distinct team ids. Dangling references resolve to nil.
func (s *MemberService) FindAllWithTeam(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*model.MemberWithTeam, error) {
	members, err := s.members.List(ctx, spec, sort)
	if err != nil {
		return nil, err
	}
	teams, err := s.teamsOf(ctx, members)
	if err != nil {
		return nil, err
	}
	out := make([]*model.MemberWithTeam, 0, len(members))
	for _, m := range members {
		out = append(out, &model.MemberWithTeam{Member: m, Team: teams[m.TeamID]})
	}
	return out, nil
}

// FindByExample matches the set fields of example, as filtered by matcher, and
// the team called teamName when it is not empty.
func (s *MemberService) FindByExample(ctx context.Context, example *model.Member, teamName string, matcher specification.ExampleMatcher) ([]*model.Member, error) {
	byTeam, err := TeamName(ctx, s.teams.Repository(), teamName)
	if err != nil {
		return nil, err
	}
	return s.members.List(ctx, specification.And(specification.ByExample(example, matcher), byTeam), memberOrder)
}

// FindByNativeQuery looks a member up with raw SQL; only SQL stores support it.
func (s *MemberService) FindByNativeQuery(ctx context.Context, username string) (*model.Member, error) {
	found, err := s.members.Query(ctx, nativeQueryByUsername, username)
	if err != nil {
		return nil, err
	}
	return unique(found, username)
}

// SeedSequential inserts Member0..Member{n-1}, member i aged i, in one
// transaction.
func (s *MemberService) SeedSequential(ctx context.Context, n int) ([]*model.Member, error) {
	created := make([]*model.Member, 0, n)
	err := s.members.Transaction(ctx, func(ctx context.Context, repo repository.Repository[model.Member]) error {
		for i := 0; i < n; i++ {
			m, err := repo.Insert(ctx, model.NewMember(fmt.Sprintf("Member%d", i), i, nil))
			if err != nil {
				return err
			}
			created = append(created, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// teamsOf loads the teams referenced by members, keyed by id.
func (s *MemberService) teamsOf(ctx context.Context, members []*model.Member) (map[int64]*model.Team, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, m := range members {
		if !m.HasTeam() {
			continue
		}
		if _, ok := seen[m.TeamID]; ok {
			continue
		}
		seen[m.TeamID] = struct{}{}
		ids = append(ids, m.TeamID)
	}
	teams := make(map[int64]*model.Team, len(ids))
	if len(ids) == 0 {
		return teams, nil
	}
	found, err := s.teams.List(ctx, specification.In(model.TeamID, ids...), teamOrder)
	if err != nil {
		return nil, err
	}
	for _, t := range found {
		teams[t.ID] = t
	}
	return teams, nil
}

func unique(found []*model.Member, username string) (*model.Member, error) {
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: member with username %q", repository.ErrNotFound, username)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("%w: %d members with username %q", ErrNotUnique, len(found), username)
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
