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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomoncle/datastudy/config"
	"github.com/tomoncle/datastudy/repository"
	"github.com/tomoncle/datastudy/specification"
	"github.com/tomoncle/datastudy/types"
	"github.com/tomoncle/datastudy/utils"
)

type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id int64) (*T, error)

	// All returns all entities in sort order.
	All(ctx context.Context, sort types.Sort) ([]*T, error)

	// List returns entities that satisfy spec.
	List(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error)

	// Count returns the number of entities that satisfy spec.
	Count(ctx context.Context, spec specification.Specification) (int64, error)

	// Page returns one page of the entities that satisfy spec and their total.
	Page(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Page[T], error)

	// Slice returns one page of the entities that satisfy spec without counting.
	Slice(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Slice[T], error)

	// Pageable returns the default request for the given page number.
	Pageable(page int) types.PageRequest

	// Create inserts a new entity.
	Create(ctx context.Context, model *T) (*T, error)

	// Save inserts or updates an entity by its identifier.
	Save(ctx context.Context, model *T) (*T, error)

	// Update modifies an existing entity.
	Update(ctx context.Context, model *T) error

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id int64) error

	// Query executes a raw query and maps the results to entities.
	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	// Transaction runs fn against a repository bound to one transaction.
	Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error

	// Repository exposes the underlying store.
	Repository() repository.Repository[T]
}

type baseServiceImpl[T any] struct {
	repo   repository.Repository[T]
	paging config.PagingConfig
	sort   types.Sort
	logger *logrus.Logger
}

// NewService wraps repo. paging supplies the default page size and sort that
// Pageable applies and the largest page size callers may request.
func NewService[T any](repo repository.Repository[T], paging config.PagingConfig) Service[T] {
	return newBaseServiceImpl[T](repo, paging)
}

func newBaseServiceImpl[T any](repo repository.Repository[T], paging config.PagingConfig) *baseServiceImpl[T] {
	sort, err := types.ParseSort(paging.DefaultSort)
	if err != nil {
		sort = types.Unsorted()
	}
	return &baseServiceImpl[T]{repo: repo, paging: paging, sort: sort, logger: utils.NewLogger("SERVICE")}
}

func (s *baseServiceImpl[T]) Repository() repository.Repository[T] { return s.repo }

func (s *baseServiceImpl[T]) Pageable(page int) types.PageRequest {
	return types.NewPageRequest(page, s.paging.DefaultSize, s.sort)
}

// clamp caps the page size at the configured maximum. Invalid requests pass
// through untouched so the store can reject them.
func (s *baseServiceImpl[T]) clamp(page types.PageRequest) types.PageRequest {
	if s.paging.MaxSize > 0 && page.GetPageSize() > s.paging.MaxSize {
		return types.NewPageRequest(page.GetPage(), s.paging.MaxSize, page.GetSort())
	}
	return page
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id int64) (*T, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context, sort types.Sort) ([]*T, error) {
	return s.repo.FindAll(ctx, sort)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error) {
	return s.repo.Query(ctx, spec, sort)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, spec specification.Specification) (int64, error) {
	return s.repo.CountBy(ctx, spec)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Page[T], error) {
	start := time.Now()
	page = s.clamp(page)
	result, err := s.repo.QueryPage(ctx, spec, page)
	if err != nil {
		s.logger.WithError(err).Warnf("page query failed: %s", page)
		return nil, err
	}
	s.logger.Debugf("page query %s returned %d of %d in %s",
		page, result.NumberOfElements(), result.TotalElements, utils.Elapsed(start))
	return result, nil
}

func (s *baseServiceImpl[T]) Slice(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Slice[T], error) {
	start := time.Now()
	page = s.clamp(page)
	result, err := s.repo.QuerySlice(ctx, spec, page)
	if err != nil {
		s.logger.WithError(err).Warnf("slice query failed: %s", page)
		return nil, err
	}
	s.logger.Debugf("slice query %s returned %d (has next: %t) in %s",
		page, result.NumberOfElements(), result.HasNext(), utils.Elapsed(start))
	return result, nil
}

func (s *baseServiceImpl[T]) Create(ctx context.Context, model *T) (*T, error) {
	return s.repo.Insert(ctx, model)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model *T) (*T, error) {
	return s.repo.Save(ctx, model)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) error {
	return s.repo.Update(ctx, model)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *baseServiceImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	return s.repo.NativeQuery(ctx, query, args...)
}

func (s *baseServiceImpl[T]) Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error {
	return s.repo.RunInTx(ctx, fn)
}
