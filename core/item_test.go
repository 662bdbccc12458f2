package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"7", "7", 0},
		{"a", "b", -1},
		{"item-2", "item-10", 1},
		{"3", "x", -1},
		{"x", "3", 1},
		{"1a", "9", 1},
		{"10", "1a", -1},
		{"01", "1", -1},
		{"1", "01", 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_vs_%s", tt.a, tt.b), func(t *testing.T) {
			assert.Equal(t, tt.want, CompareIDs(tt.a, tt.b))
		})
	}
}

func TestSortItems(t *testing.T) {
	items := []*Item{
		{ID: "10", Score: 0.5},
		nil,
		{ID: "2", Score: 0.5},
		{ID: "3", Score: 0.9},
	}
	SortItems(items)

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			ids = append(ids, it.ID)
		}
	}
	assert.Equal(t, []string{"3", "2", "10"}, ids)
	assert.Nil(t, items[3])
}

func TestSortIDs_TotalOrder(t *testing.T) {
	want := []string{"01", "1", "9", "10", "1a", "a", "item-10", "item-2"}
	inputs := [][]string{
		{"1a", "10", "9", "a", "1", "01", "item-2", "item-10"},
		{"9", "1a", "10", "item-10", "01", "a", "item-2", "1"},
		{"item-2", "a", "01", "1", "10", "9", "1a", "item-10"},
	}
	for _, in := range inputs {
		ids := append([]string(nil), in...)
		SortIDs(ids)
		assert.Equal(t, want, ids, "input %v", in)
	}

	for _, in := range [][]string{{"1a", "10", "9"}, {"9", "1a", "10"}} {
		items := make([]*Item, 0, len(in))
		for _, id := range in {
			items = append(items, &Item{ID: id, Score: 0.5})
		}
		SortItems(items)
		got := make([]string, 0, len(items))
		for _, it := range items {
			got = append(got, it.ID)
		}
		assert.Equal(t, []string{"9", "10", "1a"}, got, "input %v", in)
	}
}

func TestDomainError_Wrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("retrain: %w", WrapDomainError(ModuleStore, ErrorCodeUnavailable, "list items", cause))

	assert.True(t, IsUnavailable(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	assert.True(t, IsStoreNotFound(fmt.Errorf("get: %w", ErrStoreNotFound)))
	assert.False(t, IsStoreNotFound(NewDomainError(ModuleService, ErrorCodeNotFound, "x")))
}
