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
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	N int
}

func items(n int) []*item {
	out := make([]*item, n)
	for i := range out {
		out[i] = &item{N: i}
	}
	return out
}

func TestPageRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  PageRequest
		err  error
	}{
		{"ok", PageOf(0, 3), nil},
		{"zero size", PageOf(0, 0), ErrInvalidPageRequest},
		{"negative size", PageOf(1, -5), ErrInvalidPageRequest},
		{"negative page", PageOf(-1, 3), ErrInvalidPageRequest},
		{"offset overflow", PageOf(math.MaxInt/2, 3), ErrInvalidPageRequest},
		{"empty sort key", NewPageRequest(0, 3, By(ASC, "")), ErrInvalidSort},
		{"bad direction", NewPageRequest(0, 3, By(Direction(7), "age")), ErrInvalidSort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.err), "got %v", err)
		})
	}
}

func TestPaginateFirstPage(t *testing.T) {
	page, err := Paginate(items(5), PageOf(0, 3))
	require.NoError(t, err)

	assert.Len(t, page.Content, 3)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 0, page.Number)
	assert.True(t, page.IsFirst())
	assert.True(t, page.HasNext())
	assert.False(t, page.HasPrevious())

	last, err := Paginate(items(5), PageOf(1, 3))
	require.NoError(t, err)
	assert.Len(t, last.Content, 2)
	assert.False(t, last.HasNext())
	assert.True(t, last.IsLast())
}

func TestPaginateEmpty(t *testing.T) {
	page, err := Paginate[item](nil, PageOf(0, 4))
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.NotNil(t, page.Content)
	assert.Equal(t, 0, page.TotalPages)
	assert.False(t, page.HasNext())
}

func TestPaginateBeyondLastPage(t *testing.T) {
	page, err := Paginate(items(4), PageOf(9, 2))
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, int64(4), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
}

func TestPaginateInvalidRequest(t *testing.T) {
	_, err := Paginate(items(3), PageOf(0, 0))
	assert.ErrorIs(t, err, ErrInvalidPageRequest)
}

func TestPaginateIsExhaustiveAndDisjoint(t *testing.T) {
	for n := 0; n <= 11; n++ {
		for size := 1; size <= 6; size++ {
			t.Run(fmt.Sprintf("n=%d/size=%d", n, size), func(t *testing.T) {
				seq := items(n)
				first, err := Paginate(seq, PageOf(0, size))
				require.NoError(t, err)

				var seen []*item
				for p := 0; p < first.TotalPages; p++ {
					page, err := Paginate(seq, PageOf(p, size))
					require.NoError(t, err)
					seen = append(seen, page.Content...)
				}
				require.Len(t, seen, n)
				for i, it := range seen {
					assert.Equal(t, i, it.N)
				}
			})
		}
	}
}

func TestSliceOfHasNext(t *testing.T) {
	for n := 0; n <= 9; n++ {
		for size := 1; size <= 4; size++ {
			for p := 0; p <= 3; p++ {
				s, err := SliceOf(items(n), PageOf(p, size))
				require.NoError(t, err)
				assert.Equal(t, n > (p+1)*size, s.HasNext(), "n=%d size=%d page=%d", n, size, p)
				assert.LessOrEqual(t, len(s.Content), size)
			}
		}
	}
}

func TestSliceExactlyFull(t *testing.T) {
	s, err := SliceOf(items(3), PageOf(0, 3))
	require.NoError(t, err)
	assert.Len(t, s.Content, 3)
	assert.False(t, s.HasNext())
	assert.True(t, s.IsLast())
}

func TestNewSliceTrimsLookahead(t *testing.T) {
	s := NewSlice(items(4), PageOf(2, 3))
	assert.Len(t, s.Content, 3)
	assert.True(t, s.HasNext())
	assert.Equal(t, 2, s.Number)
	assert.True(t, s.HasPrevious())
}

func TestSliceJSONCarriesHasNext(t *testing.T) {
	s := NewSlice(items(4), PageOf(0, 3))
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"N":0},{"N":1},{"N":2}],"number":0,"size":3,"first":true,"last":false,"has_next":true}`, string(b))

	var back Slice[item]
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.HasNext())
	assert.Equal(t, s.Content, back.Content)

	b, err = json.Marshal(*NewSlice(items(1), PageOf(1, 3)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"N":0}],"number":1,"size":3,"first":false,"last":true,"has_next":false}`, string(b))
}

func TestPageJSONFlags(t *testing.T) {
	page, err := Paginate(items(5), PageOf(1, 2))
	require.NoError(t, err)
	b, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"N":2},{"N":3}],"number":1,"size":2,"total_elements":5,"total_pages":3,"first":false,"last":false,"has_next":true}`, string(b))
}

func TestMapPage(t *testing.T) {
	page, err := Paginate(items(5), PageOf(1, 2))
	require.NoError(t, err)

	labels := MapPage(page, func(it *item) *string {
		s := fmt.Sprintf("item-%d", it.N)
		return &s
	})
	require.Len(t, labels.Content, 2)
	assert.Equal(t, "item-2", *labels.Content[0])
	assert.Equal(t, page.TotalElements, labels.TotalElements)
	assert.Equal(t, page.TotalPages, labels.TotalPages)
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("age,desc; username")
	require.NoError(t, err)
	assert.Equal(t, []Order{{Key: "age", Direction: DESC}, {Key: "username", Direction: ASC}}, s.Orders())
	assert.Equal(t, "age DESC, username ASC", s.String())

	empty, err := ParseSort("  ")
	require.NoError(t, err)
	assert.False(t, empty.IsSorted())

	_, err = ParseSort("age,sideways")
	assert.ErrorIs(t, err, ErrInvalidSort)

	_, err = ParseSort(",desc")
	assert.ErrorIs(t, err, ErrInvalidSort)
}

func TestDirectionEnum(t *testing.T) {
	assert.Equal(t, "DESC", DESC.Name())
	assert.Equal(t, "ascending", ASC.Desc())
	assert.Equal(t, IllegalValue, Direction(9).Number())
	assert.False(t, Direction(9).IsValid())
}
