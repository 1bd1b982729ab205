package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/stickerlay/internal/stickers"
)

func names(list []stickers.Sticker) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Name
	}
	return out
}

func TestSort_Empty(t *testing.T) {
	var list []stickers.Sticker
	Sort(list, DefaultSortOptions())
	assert.Len(t, list, 0)
}

func TestSort_ByNameAsc(t *testing.T) {
	list := []stickers.Sticker{
		{Name: "owl.png"},
		{Name: "Cat.png"},
		{Name: "dog.png"},
	}

	Sort(list, DefaultSortOptions())

	assert.Equal(t, []string{"Cat.png", "dog.png", "owl.png"}, names(list))
}

func TestSort_ByModifiedDesc(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := []stickers.Sticker{
		{Name: "a.png", ModTime: base},
		{Name: "b.png", ModTime: base.Add(2 * time.Hour)},
		{Name: "c.png", ModTime: base.Add(time.Hour)},
	}

	Sort(list, SortOptions{Field: SortByModified, Order: SortDesc})

	assert.Equal(t, []string{"b.png", "c.png", "a.png"}, names(list))
}

func TestSort_BySizeAsc(t *testing.T) {
	list := []stickers.Sticker{
		{Name: "big.png", Size: 4096},
		{Name: "small.png", Size: 128},
		{Name: "mid.png", Size: 1024},
	}

	Sort(list, SortOptions{Field: SortBySize, Order: SortAsc})

	assert.Equal(t, []string{"small.png", "mid.png", "big.png"}, names(list))
}

func TestSort_TiesBrokenByName(t *testing.T) {
	list := []stickers.Sticker{
		{Name: "zebra.png", Size: 100},
		{Name: "ant.png", Size: 100},
		{Name: "moth.png", Size: 50},
	}

	Sort(list, SortOptions{Field: SortBySize, Order: SortAsc})

	assert.Equal(t, []string{"moth.png", "ant.png", "zebra.png"}, names(list))
}

func TestParseSortField(t *testing.T) {
	tests := []struct {
		input    string
		expected SortField
		hasError bool
	}{
		{"name", SortByName, false},
		{"", SortByName, false},
		{"N", SortByName, false},
		{"modified", SortByModified, false},
		{"mtime", SortByModified, false},
		{"size", SortBySize, false},
		{"s", SortBySize, false},
		{"urgency", SortByName, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseSortField(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected SortOrder
		hasError bool
	}{
		{"asc", SortAsc, false},
		{"ASCENDING", SortAsc, false},
		{"desc", SortDesc, false},
		{"d", SortDesc, false},
		{"", SortAsc, false},
		{"sideways", SortAsc, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseSortOrder(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}
