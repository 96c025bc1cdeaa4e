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

package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tomoncle/datastudy/model"
	"github.com/tomoncle/datastudy/repository"
	"github.com/tomoncle/datastudy/specification"
	"github.com/tomoncle/datastudy/types"
)

type backend struct {
	members repository.Repository[model.Member]
	teams   repository.Repository[model.Team]
}

func newSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	for _, m := range model.Models() {
		_, err := db.NewCreateTable().Model(m).IfNotExists().Exec(context.Background())
		require.NoError(t, err)
	}
	return db
}

// forEachBackend runs fn against a fresh in-memory store and a fresh SQLite database.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, backend{
			members: repository.NewMemoryRepository[model.Member](),
			teams:   repository.NewMemoryRepository[model.Team](),
		})
	})
	t.Run("sqlite", func(t *testing.T) {
		db := newSQLiteDB(t)
		fn(t, backend{
			members: repository.NewRepository[model.Member](db),
			teams:   repository.NewRepository[model.Team](db),
		})
	})
}

func seedMembers(t *testing.T, repo repository.Repository[model.Member], n int, age int) []*model.Member {
	t.Helper()
	out := make([]*model.Member, 0, n)
	for i := 1; i <= n; i++ {
		m, err := repo.Insert(context.Background(), model.NewMember(fmt.Sprintf("Member%d", i), age, nil))
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func usernames(members []*model.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Username)
	}
	return out
}

func TestInsertThenFindByID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		team, err := b.teams.Insert(ctx, model.NewTeam("teamA"))
		require.NoError(t, err)
		require.NotZero(t, team.ID)

		m := model.NewMember("memberA", 10, team)
		saved, err := b.members.Insert(ctx, m)
		require.NoError(t, err)
		require.NotZero(t, saved.ID)
		assert.Equal(t, saved.ID, m.ID)

		found, err := b.members.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, *saved, *found)
		assert.Equal(t, team.ID, found.TeamID)
	})
}

func TestFindByIDNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		found, err := b.members.FindByID(context.Background(), 404)
		assert.Nil(t, found)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.True(t, repository.IsNotFound(err))
	})
}

func TestInsertDuplicateID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		first := &model.Member{ID: 7, Username: "seven", Age: 7}
		_, err := b.members.Insert(ctx, first)
		require.NoError(t, err)

		_, err = b.members.Insert(ctx, &model.Member{ID: 7, Username: "again", Age: 8})
		assert.ErrorIs(t, err, repository.ErrDuplicateID)

		found, err := b.members.FindByID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "seven", found.Username)
	})
}

func TestCountAfterDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		members := seedMembers(t, b.members, 6, 20)
		for _, m := range members[:4] {
			require.NoError(t, b.members.Delete(ctx, m.ID))
		}
		n, err := b.members.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		err = b.members.Delete(ctx, members[0].ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		m := seedMembers(t, b.members, 1, 10)[0]
		m.Age = 30
		m.Username = "renamed"
		require.NoError(t, b.members.Update(ctx, m))

		found, err := b.members.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, found.Age)
		assert.Equal(t, "renamed", found.Username)

		err = b.members.Update(ctx, &model.Member{ID: 999, Username: "ghost"})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestSave(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		m, err := b.members.Save(ctx, model.NewMember("saved", 10, nil))
		require.NoError(t, err)
		require.NotZero(t, m.ID)

		m.Age = 11
		_, err = b.members.Save(ctx, m)
		require.NoError(t, err)

		_, err = b.members.Save(ctx, &model.Member{ID: 50, Username: "explicit", Age: 50})
		require.NoError(t, err)

		n, err := b.members.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		found, err := b.members.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 11, found.Age)
	})
}

func TestQueryPageFirstPageDescending(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		seedMembers(t, b.members, 5, 10)
		req := types.NewPageRequest(0, 3, types.By(types.DESC, model.MemberUsername))

		page, err := b.members.QueryPage(context.Background(), specification.Noop(), req)
		require.NoError(t, err)
		assert.Equal(t, []string{"Member5", "Member4", "Member3"}, usernames(page.Content))
		assert.EqualValues(t, 5, page.TotalElements)
		assert.Equal(t, 2, page.TotalPages)
		assert.True(t, page.IsFirst())
		assert.True(t, page.HasNext())
	})
}

func TestQueryPageIsExhaustive(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		for i := 0; i < 13; i++ {
			_, err := b.members.Insert(ctx, model.NewMember(fmt.Sprintf("m%02d", i), i%4, nil))
			require.NoError(t, err)
		}
		sort := types.By(types.DESC, model.MemberAge)
		spec := specification.GreaterThanOrEqual(model.MemberAge, 1)

		all, err := b.members.Query(ctx, spec, sort)
		require.NoError(t, err)

		req := types.NewPageRequest(0, 4, sort)
		first, err := b.members.QueryPage(ctx, spec, req)
		require.NoError(t, err)
		assert.EqualValues(t, len(all), first.TotalElements)

		var joined []string
		for p := 0; p < first.TotalPages; p++ {
			page, err := b.members.QueryPage(ctx, spec, req.WithPage(p))
			require.NoError(t, err)
			joined = append(joined, usernames(page.Content)...)
		}
		assert.Equal(t, usernames(all), joined)

		beyond, err := b.members.QueryPage(ctx, spec, req.WithPage(first.TotalPages))
		require.NoError(t, err)
		assert.Empty(t, beyond.Content)
		assert.EqualValues(t, len(all), beyond.TotalElements)
	})
}

func TestQueryEqualToAndGreaterThan(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		_, err := b.members.Insert(ctx, model.NewMember("Member", 10, nil))
		require.NoError(t, err)
		_, err = b.members.Insert(ctx, model.NewMember("Member", 20, nil))
		require.NoError(t, err)

		spec := specification.And(
			specification.EqualTo(model.MemberUsername, "Member"),
			specification.GreaterThan(model.MemberAge, 15),
		)
		found, err := b.members.Query(ctx, spec, types.Unsorted())
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, 20, found[0].Age)

		n, err := b.members.CountBy(ctx, spec)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func TestQueryInAndOr(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		seedMembers(t, b.members, 5, 10)

		found, err := b.members.Query(ctx,
			specification.In(model.MemberUsername, "Member1", "Member3"),
			types.By(types.ASC, model.MemberUsername))
		require.NoError(t, err)
		assert.Equal(t, []string{"Member1", "Member3"}, usernames(found))

		found, err = b.members.Query(ctx,
			specification.Or(
				specification.EqualTo(model.MemberUsername, "Member2"),
				specification.Not(specification.LessThan(model.MemberID, 5)),
			),
			types.Unsorted())
		require.NoError(t, err)
		assert.Equal(t, []string{"Member2", "Member5"}, usernames(found))
	})
}

func TestQueryTieBreaksByID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		seeded := seedMembers(t, b.members, 4, 10)
		found, err := b.members.FindAll(context.Background(), types.By(types.DESC, model.MemberAge))
		require.NoError(t, err)
		require.Len(t, found, 4)
		for i, m := range found {
			assert.Equal(t, seeded[i].ID, m.ID)
		}
	})
}

func TestQuerySlice(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		seedMembers(t, b.members, 3, 10)
		req := types.NewPageRequest(0, 3, types.By(types.ASC, model.MemberUsername))

		slice, err := b.members.QuerySlice(ctx, nil, req)
		require.NoError(t, err)
		assert.Len(t, slice.Content, 3)
		assert.False(t, slice.HasNext())

		seedMembers(t, b.members, 1, 10)
		slice, err = b.members.QuerySlice(ctx, nil, req)
		require.NoError(t, err)
		assert.Len(t, slice.Content, 3)
		assert.True(t, slice.HasNext())

		slice, err = b.members.QuerySlice(ctx, nil, req.Next())
		require.NoError(t, err)
		assert.Len(t, slice.Content, 1)
		assert.False(t, slice.HasNext())
	})
}

func TestInvalidRequests(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		_, err := b.members.QueryPage(ctx, nil, types.PageOf(0, 0))
		assert.ErrorIs(t, err, types.ErrInvalidPageRequest)

		_, err = b.members.QuerySlice(ctx, nil, types.PageOf(-1, 5))
		assert.ErrorIs(t, err, types.ErrInvalidPageRequest)

		_, err = b.members.FindAll(ctx, types.By(types.ASC, "nickname"))
		assert.ErrorIs(t, err, types.ErrInvalidSort)

		_, err = b.members.Query(ctx, specification.EqualTo("nickname", "x"), types.Unsorted())
		assert.ErrorIs(t, err, specification.ErrUnknownField)

		_, err = b.members.Project(ctx, nil, types.Unsorted(), "nickname")
		assert.ErrorIs(t, err, specification.ErrUnknownField)
	})
}

func TestIncrement(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		for i, age := range []int{10, 19, 20, 21, 40} {
			_, err := b.members.Insert(ctx, model.NewMember(fmt.Sprintf("member%d", i+1), age, nil))
			require.NoError(t, err)
		}
		n, err := b.members.Increment(ctx, specification.GreaterThanOrEqual(model.MemberAge, 20), model.MemberAge, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		found, err := b.members.FindAll(ctx, types.By(types.ASC, model.MemberUsername))
		require.NoError(t, err)
		ages := make([]int, 0, len(found))
		for _, m := range found {
			ages = append(ages, m.Age)
		}
		assert.Equal(t, []int{10, 19, 21, 22, 41}, ages)

		_, err = b.members.Increment(ctx, nil, "nickname", 1)
		assert.ErrorIs(t, err, specification.ErrUnknownField)
	})
}

func TestProject(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		seedMembers(t, b.members, 3, 10)
		rows, err := b.members.Project(context.Background(),
			specification.NotEqual(model.MemberUsername, "Member2"),
			types.By(types.DESC, model.MemberUsername),
			model.MemberUsername)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Member3", rows[0][model.MemberUsername])
		assert.Equal(t, "Member1", rows[1][model.MemberUsername])
		assert.Len(t, rows[0], 1)
	})
}

func TestRunInTx(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		boom := errors.New("boom")

		err := b.members.RunInTx(ctx, func(ctx context.Context, repo repository.Repository[model.Member]) error {
			if _, err := repo.Insert(ctx, model.NewMember("rolled-back", 1, nil)); err != nil {
				return err
			}
			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		n, err := b.members.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		err = b.members.RunInTx(ctx, func(ctx context.Context, repo repository.Repository[model.Member]) error {
			m, err := repo.Insert(ctx, model.NewMember("committed", 1, nil))
			if err != nil {
				return err
			}
			_, err = repo.Increment(ctx, specification.EqualTo(model.MemberID, m.ID), model.MemberAge, 9)
			return err
		})
		require.NoError(t, err)

		found, err := b.members.FindAll(ctx, types.Unsorted())
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "committed", found[0].Username)
		assert.Equal(t, 10, found[0].Age)
	})
}

func TestMemoryRunInTxRollsBackOnPanic(t *testing.T) {
	repo := repository.NewMemoryRepository[model.Member]()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = repo.RunInTx(ctx, func(ctx context.Context, tx repository.Repository[model.Member]) error {
			_, _ = tx.Insert(ctx, model.NewMember("lost", 1, nil))
			panic("interrupted")
		})
	})
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryReturnsCopies(t *testing.T) {
	repo := repository.NewMemoryRepository[model.Member]()
	ctx := context.Background()
	m, err := repo.Insert(ctx, model.NewMember("original", 10, nil))
	require.NoError(t, err)

	m.Username = "mutated"
	found, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", found.Username)
}

func TestNativeQuery(t *testing.T) {
	ctx := context.Background()
	_, err := repository.NewMemoryRepository[model.Member]().NativeQuery(ctx, "SELECT 1")
	assert.ErrorIs(t, err, repository.ErrUnsupported)

	repo := repository.NewRepository[model.Member](newSQLiteDB(t))
	seedMembers(t, repo, 3, 10)
	found, err := repo.NativeQuery(ctx, "SELECT * FROM members WHERE username = ?", "Member2")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Member2", found[0].Username)
}

func TestNullTeamAgreesAcrossBackends(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		team, err := b.teams.Insert(ctx, model.NewTeam("teamA"))
		require.NoError(t, err)
		_, err = b.members.Insert(ctx, model.NewMember("solo", 10, nil))
		require.NoError(t, err)
		_, err = b.members.Insert(ctx, model.NewMember("joined", 20, team))
		require.NoError(t, err)

		query := func(spec specification.Specification) []string {
			found, err := b.members.Query(ctx, spec, types.By(types.ASC, model.MemberUsername))
			require.NoError(t, err)
			return usernames(found)
		}

		teamless := specification.ByExample(&model.Member{}, specification.Matching().WithIncludeZeroValues(model.MemberTeamID))
		assert.Equal(t, []string{"solo"}, query(teamless))
		assert.Equal(t, []string{"joined"}, query(specification.Not(teamless)))
		assert.Equal(t, []string{"joined"}, query(specification.NotEqual(model.MemberTeamID, team.ID+100)))
		assert.Empty(t, query(specification.Not(specification.EqualTo(model.MemberTeamID, team.ID))))
		assert.Equal(t, []string{"joined"}, query(specification.In(model.MemberTeamID, team.ID)))
		assert.Empty(t, query(specification.Not(specification.In(model.MemberTeamID, team.ID))))
		assert.Equal(t, []string{"joined", "solo"}, query(specification.Or(
			specification.EqualTo(model.MemberTeamID, team.ID),
			specification.EqualTo(model.MemberUsername, "solo"),
		)))

		n, err := b.members.CountBy(ctx, specification.NotEqual(model.MemberTeamID, team.ID))
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

// Meant to be run with -race.
func TestQueryPageUnderConcurrentWrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		seeded := seedMembers(t, b.members, 40, 10)
		spec := specification.GreaterThanOrEqual(model.MemberAge, 10)
		req := types.NewPageRequest(0, 7, types.By(types.ASC, model.MemberUsername))

		var wg sync.WaitGroup
		errs := make(chan error, 3)
		done := make(chan struct{})

		wg.Add(2)
		go func() {
			defer wg.Done()
			for _, m := range seeded[:20] {
				if err := b.members.Delete(ctx, m.ID); err != nil {
					errs <- fmt.Errorf("delete %d: %w", m.ID, err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				err := b.members.RunInTx(ctx, func(ctx context.Context, repo repository.Repository[model.Member]) error {
					_, err := repo.Insert(ctx, model.NewMember(fmt.Sprintf("Added%d", i), 11, nil))
					return err
				})
				if err != nil {
					errs <- fmt.Errorf("insert %d: %w", i, err)
					return
				}
			}
		}()

		var reader sync.WaitGroup
		reader.Add(1)
		go func() {
			defer reader.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for p := 0; p < 7; p++ {
					page, err := b.members.QueryPage(ctx, spec, req.WithPage(p))
					if err != nil {
						errs <- fmt.Errorf("page %d: %w", p, err)
						return
					}
					if len(page.Content) > int(page.TotalElements) {
						errs <- fmt.Errorf("page %d holds %d members of %d", p, len(page.Content), page.TotalElements)
						return
					}
				}
			}
		}()

		wg.Wait()
		close(done)
		reader.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		total, err := b.members.CountBy(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, int64(40), total)
	})
}
