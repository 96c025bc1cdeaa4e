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

package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// Order is a single sort key and its direction.
type Order struct {
	Key       string
	Direction Direction
}

func (o Order) String() string {
	return o.Key + " " + o.Direction.Name()
}

// Sort is an ordered list of sort keys. The zero value is unsorted.
type Sort struct {
	orders []Order
}

// By sorts by the given keys, all in the same direction.
func By(direction Direction, keys ...string) Sort {
	orders := make([]Order, 0, len(keys))
	for _, k := range keys {
		orders = append(orders, Order{Key: k, Direction: direction})
	}
	return Sort{orders: orders}
}

// Unsorted returns a Sort without keys.
func Unsorted() Sort { return Sort{} }

// And appends the orders of other after the orders of s.
func (s Sort) And(other Sort) Sort {
	orders := make([]Order, 0, len(s.orders)+len(other.orders))
	orders = append(orders, s.orders...)
	orders = append(orders, other.orders...)
	return Sort{orders: orders}
}

func (s Sort) IsSorted() bool { return len(s.orders) > 0 }

// Orders returns a copy of the sort orders.
func (s Sort) Orders() []Order {
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Keys lists the sort keys in order.
func (s Sort) Keys() []string {
	keys := make([]string, len(s.orders))
	for i, o := range s.orders {
		keys[i] = o.Key
	}
	return keys
}

func (s Sort) String() string {
	parts := make([]string, len(s.orders))
	for i, o := range s.orders {
		parts[i] = o.String()
	}
	return strings.Join(parts, ", ")
}

func (s Sort) Validate() error {
	for _, o := range s.orders {
		if strings.TrimSpace(o.Key) == "" {
			return invalidSortf("empty sort key")
		}
		if !o.Direction.IsValid() {
			return invalidSortf("invalid direction for %q", o.Key)
		}
	}
	return nil
}

// ParseSort parses "key[,dir][;key[,dir]...]", e.g. "username" or "age,desc;username".
func ParseSort(expr string) (Sort, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Unsorted(), nil
	}
	var orders []Order
	for _, part := range strings.Split(expr, ";") {
		fields := strings.Split(part, ",")
		key := strings.TrimSpace(fields[0])
		if key == "" {
			return Sort{}, invalidSortf("empty sort key in %q", expr)
		}
		dir := ASC
		if len(fields) > 1 {
			d, err := ParseDirection(fields[1])
			if err != nil {
				return Sort{}, err
			}
			dir = d
		}
		if len(fields) > 2 {
			return Sort{}, invalidSortf("malformed sort %q", part)
		}
		orders = append(orders, Order{Key: key, Direction: dir})
	}
	return Sort{orders: orders}, nil
}

// PageRequest describes a zero-based page number, a page size and ordering.
// It is an immutable value; use Validate before querying.
type PageRequest struct {
	page     int
	pageSize int
	sort     Sort
}

// NewPageRequest constructs a PageRequest with ordering.
func NewPageRequest(page int, pageSize int, sort Sort) PageRequest {
	return PageRequest{page: page, pageSize: pageSize, sort: sort}
}

// PageOf constructs an unsorted PageRequest.
func PageOf(page int, pageSize int) PageRequest {
	return NewPageRequest(page, pageSize, Unsorted())
}

func (p PageRequest) GetPage() int { return p.page }

func (p PageRequest) GetPageSize() int { return p.pageSize }

func (p PageRequest) GetSort() Sort { return p.sort }

// GetOffset returns page*size. Only meaningful for a validated request.
func (p PageRequest) GetOffset() int {
	return p.page * p.pageSize
}

// WithPage returns a copy of p pointing at another page.
func (p PageRequest) WithPage(page int) PageRequest {
	return PageRequest{page: page, pageSize: p.pageSize, sort: p.sort}
}

// Next returns the request for the following page.
func (p PageRequest) Next() PageRequest { return p.WithPage(p.page + 1) }

// Validate rejects size <= 0, negative pages, offsets overflowing int and
// malformed sort orders.
func (p PageRequest) Validate() error {
	if p.pageSize <= 0 {
		return invalidPagef("page size must be positive, got %d", p.pageSize)
	}
	if p.page < 0 {
		return invalidPagef("page number must not be negative, got %d", p.page)
	}
	if p.page > (math.MaxInt-1)/p.pageSize {
		return invalidPagef("page %d of size %d overflows the offset", p.page, p.pageSize)
	}
	return p.sort.Validate()
}

func (p PageRequest) String() string {
	return fmt.Sprintf("page=%d size=%d sort=[%s]", p.page, p.pageSize, p.sort)
}

// Page is a window of results together with the total number of matches.
type Page[T any] struct {
	Content       []*T  `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

// NewPage builds a page from already windowed content and a known total.
func NewPage[T any](content []*T, req PageRequest, total int64) *Page[T] {
	if content == nil {
		content = make([]*T, 0)
	}
	pages := 0
	if total > 0 {
		size := int64(req.GetPageSize())
		pages = int((total + size - 1) / size)
	}
	return &Page[T]{
		Content:       content,
		Number:        req.GetPage(),
		Size:          req.GetPageSize(),
		TotalElements: total,
		TotalPages:    pages,
	}
}

// Paginate cuts one page out of the full, already filtered and sorted sequence.
func Paginate[T any](seq []*T, req PageRequest) (*Page[T], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	from, to := window(len(seq), req.GetOffset(), req.GetPageSize())
	content := make([]*T, to-from)
	copy(content, seq[from:to])
	return NewPage(content, req, int64(len(seq))), nil
}

func (p *Page[T]) NumberOfElements() int { return len(p.Content) }

func (p *Page[T]) IsFirst() bool { return p.Number == 0 }

func (p *Page[T]) IsLast() bool { return !p.HasNext() }

func (p *Page[T]) HasPrevious() bool { return p.Number > 0 }

func (p *Page[T]) HasNext() bool {
	return int64(p.Number+1)*int64(p.Size) < p.TotalElements
}

type pageJSON[T any] Page[T]

// MarshalJSON adds the derived first, last and has_next flags.
func (p Page[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		pageJSON[T]
		First   bool `json:"first"`
		Last    bool `json:"last"`
		HasNext bool `json:"has_next"`
	}{pageJSON[T](p), p.IsFirst(), p.IsLast(), p.HasNext()})
}

// Slice is a window of results that only knows whether more results follow.
type Slice[T any] struct {
	Content []*T `json:"content"`
	Number  int  `json:"number"`
	Size    int  `json:"size"`
	hasNext bool
}

// NewSlice builds a slice from up to size+1 fetched records; the extra record,
// when present, only signals that a next slice exists and is dropped.
func NewSlice[T any](fetched []*T, req PageRequest) *Slice[T] {
	size := req.GetPageSize()
	hasNext := len(fetched) > size
	if hasNext {
		fetched = fetched[:size]
	}
	content := make([]*T, len(fetched))
	copy(content, fetched)
	return &Slice[T]{
		Content: content,
		Number:  req.GetPage(),
		Size:    size,
		hasNext: hasNext,
	}
}

// SliceOf cuts one slice out of a sequence, looking at most one element past it.
func SliceOf[T any](seq []*T, req PageRequest) (*Slice[T], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	from, to := window(len(seq), req.GetOffset(), req.GetPageSize()+1)
	return NewSlice(seq[from:to], req), nil
}

func (s *Slice[T]) NumberOfElements() int { return len(s.Content) }

func (s *Slice[T]) IsFirst() bool { return s.Number == 0 }

func (s *Slice[T]) IsLast() bool { return !s.hasNext }

func (s *Slice[T]) HasPrevious() bool { return s.Number > 0 }

func (s *Slice[T]) HasNext() bool { return s.hasNext }

type sliceJSON[T any] struct {
	Content []*T `json:"content"`
	Number  int  `json:"number"`
	Size    int  `json:"size"`
	First   bool `json:"first"`
	Last    bool `json:"last"`
	HasNext bool `json:"has_next"`
}

func (s Slice[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(sliceJSON[T]{
		Content: s.Content,
		Number:  s.Number,
		Size:    s.Size,
		First:   s.IsFirst(),
		Last:    s.IsLast(),
		HasNext: s.hasNext,
	})
}

// UnmarshalJSON restores has_next; first and last are derived and ignored.
func (s *Slice[T]) UnmarshalJSON(data []byte) error {
	var raw sliceJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Slice[T]{Content: raw.Content, Number: raw.Number, Size: raw.Size, hasNext: raw.HasNext}
	return nil
}

// MapPage converts page content keeping the paging metadata.
func MapPage[T, R any](p *Page[T], fn func(*T) *R) *Page[R] {
	content := make([]*R, len(p.Content))
	for i, item := range p.Content {
		content[i] = fn(item)
	}
	return &Page[R]{
		Content:       content,
		Number:        p.Number,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
	}
}

// MapSlice converts slice content keeping the paging metadata.
func MapSlice[T, R any](s *Slice[T], fn func(*T) *R) *Slice[R] {
	content := make([]*R, len(s.Content))
	for i, item := range s.Content {
		content[i] = fn(item)
	}
	return &Slice[R]{Content: content, Number: s.Number, Size: s.Size, hasNext: s.hasNext}
}

func window(n, offset, limit int) (int, int) {
	if offset >= n {
		return n, n
	}
	end := n
	if limit >= 0 && limit < n-offset {
		end = offset + limit
	}
	return offset, end
}
