package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

func testDisplays() []model.Display {
	return []model.Display{
		{ID: "DP-1", Index: 0, Name: "Dell U2720Q", Bounds: model.Rect{Width: 3840, Height: 2160}},
		{ID: "HDMI-A-1", Index: 1, Name: "LG 27GL850", Bounds: model.Rect{X: 3840, Width: 2560, Height: 1440}, IsPrimary: true},
		{ID: "eDP-1", Index: 2, Bounds: model.Rect{X: 6400, Width: 1920, Height: 1200}},
	}
}

func TestLookupDisplayByID(t *testing.T) {
	displays := testDisplays()

	t.Run("by id", func(t *testing.T) {
		result := LookupDisplayByID(displays, "eDP-1")
		require.NotNil(t, result)
		assert.Equal(t, 2, result.Index)
	})

	t.Run("by name case-insensitive", func(t *testing.T) {
		result := LookupDisplayByID(displays, "lg 27gl850")
		require.NotNil(t, result)
		assert.Equal(t, model.DisplayID("HDMI-A-1"), result.ID)
	})

	t.Run("not found", func(t *testing.T) {
		assert.Nil(t, LookupDisplayByID(displays, "DP-9"))
	})

	t.Run("empty slice", func(t *testing.T) {
		assert.Nil(t, LookupDisplayByID(nil, "DP-1"))
	})
}

func TestLookupDisplayByIndex(t *testing.T) {
	displays := testDisplays()

	t.Run("valid index 1", func(t *testing.T) {
		result := LookupDisplayByIndex(displays, 1)
		require.NotNil(t, result)
		assert.Equal(t, model.DisplayID("DP-1"), result.ID)
	})

	t.Run("valid index 3", func(t *testing.T) {
		result := LookupDisplayByIndex(displays, 3)
		require.NotNil(t, result)
		assert.Equal(t, model.DisplayID("eDP-1"), result.ID)
	})

	t.Run("index 0 out of bounds", func(t *testing.T) {
		assert.Nil(t, LookupDisplayByIndex(displays, 0))
	})

	t.Run("index past end", func(t *testing.T) {
		assert.Nil(t, LookupDisplayByIndex(displays, 4))
	})
}

func TestPrimaryDisplay(t *testing.T) {
	primary := PrimaryDisplay(testDisplays())
	require.NotNil(t, primary)
	assert.Equal(t, model.DisplayID("HDMI-A-1"), primary.ID)

	noPrimary := []model.Display{{ID: "A"}, {ID: "B", Index: 1}}
	assert.Equal(t, model.DisplayID("A"), PrimaryDisplay(noPrimary).ID)

	assert.Nil(t, PrimaryDisplay(nil))
}

func TestSelectDisplays(t *testing.T) {
	displays := testDisplays()

	tests := []struct {
		name     string
		expr     string
		expected []model.DisplayID
		hasError bool
	}{
		{"empty selects primary", "", []model.DisplayID{"HDMI-A-1"}, false},
		{"primary", "primary", []model.DisplayID{"HDMI-A-1"}, false},
		{"all", "all", []model.DisplayID{"DP-1", "HDMI-A-1", "eDP-1"}, false},
		{"all uppercase", "ALL", []model.DisplayID{"DP-1", "HDMI-A-1", "eDP-1"}, false},
		{"index", "3", []model.DisplayID{"eDP-1"}, false},
		{"id", "DP-1", []model.DisplayID{"DP-1"}, false},
		{"name", "Dell U2720Q", []model.DisplayID{"DP-1"}, false},
		{"list ordered by index", "eDP-1, 1", []model.DisplayID{"DP-1", "eDP-1"}, false},
		{"duplicates collapse", "primary,2,HDMI-A-1", []model.DisplayID{"HDMI-A-1"}, false},
		{"index out of range", "7", nil, true},
		{"unknown id", "DP-9", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SelectDisplays(displays, tt.expr)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, DisplayIDs(result))
		})
	}
}

func TestSelectDisplays_NoDisplays(t *testing.T) {
	_, err := SelectDisplays(nil, "primary")
	assert.Error(t, err)

	result, err := SelectDisplays(nil, "all")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestLookupSticker(t *testing.T) {
	list := []stickers.Sticker{
		{Name: "cat.png"},
		{Name: "catfish.gif"},
		{Name: "dog.png"},
	}

	t.Run("exact", func(t *testing.T) {
		result := LookupSticker(list, "cat.png")
		require.NotNil(t, result)
		assert.Equal(t, "cat.png", result.Name)
	})

	t.Run("unique prefix", func(t *testing.T) {
		result := LookupSticker(list, "DO")
		require.NotNil(t, result)
		assert.Equal(t, "dog.png", result.Name)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		assert.Nil(t, LookupSticker(list, "cat"))
	})

	t.Run("not found", func(t *testing.T) {
		assert.Nil(t, LookupSticker(list, "owl"))
	})
}

func TestSearch(t *testing.T) {
	list := []stickers.Sticker{
		{Name: "Cat.png"},
		{Name: "bobcat.gif"},
		{Name: "dog.png"},
	}

	t.Run("case insensitive", func(t *testing.T) {
		result := Search(list, "CAT")
		assert.Len(t, result, 2)
	})

	t.Run("empty term returns all", func(t *testing.T) {
		assert.Len(t, Search(list, ""), 3)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, Search(list, "owl"))
	})
}
