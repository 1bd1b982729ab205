// Package core provides display selection and sticker filtering, sorting
// and lookup logic.
package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// Display selector keywords.
const (
	SelectAll     = "all"
	SelectPrimary = "primary"
)

// LookupDisplayByID finds a display by id, or by connector name when no id
// matches. Name matching is case-insensitive.
// Returns nil if not found.
func LookupDisplayByID(displays []model.Display, id string) *model.Display {
	for i := range displays {
		if string(displays[i].ID) == id {
			return &displays[i]
		}
	}
	for i := range displays {
		if displays[i].Name != "" && strings.EqualFold(displays[i].Name, id) {
			return &displays[i]
		}
	}
	return nil
}

// LookupDisplayByIndex finds a display by its position (1-based for
// user-friendliness).
// Returns nil if index is out of bounds.
func LookupDisplayByIndex(displays []model.Display, index int) *model.Display {
	for i := range displays {
		if displays[i].Index == index-1 {
			return &displays[i]
		}
	}
	return nil
}

// PrimaryDisplay returns the primary display, or the first one when none is
// flagged primary. Returns nil for an empty list.
func PrimaryDisplay(displays []model.Display) *model.Display {
	for i := range displays {
		if displays[i].IsPrimary {
			return &displays[i]
		}
	}
	if len(displays) == 0 {
		return nil
	}
	return &displays[0]
}

// SelectDisplays resolves a selector expression against displays.
// The expression is a comma-separated list of terms:
//   - "all" selects every display
//   - "primary" selects the primary display
//   - "2" selects the second display (1-based index)
//   - "DP-1" selects by display id or connector name
//
// The result is ordered by display index without duplicates. An empty
// expression selects the primary display.
func SelectDisplays(displays []model.Display, expr string) ([]model.Display, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = SelectPrimary
	}

	selected := make(map[model.DisplayID]model.Display)
	for term := range strings.SplitSeq(expr, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		switch strings.ToLower(term) {
		case SelectAll:
			for _, d := range displays {
				selected[d.ID] = d
			}
			continue
		case SelectPrimary:
			d := PrimaryDisplay(displays)
			if d == nil {
				return nil, fmt.Errorf("no displays connected")
			}
			selected[d.ID] = *d
			continue
		}

		if d := LookupDisplayByID(displays, term); d != nil {
			selected[d.ID] = *d
			continue
		}

		if n, err := strconv.Atoi(term); err == nil {
			d := LookupDisplayByIndex(displays, n)
			if d == nil {
				return nil, fmt.Errorf("display index %d out of range (1-%d)", n, len(displays))
			}
			selected[d.ID] = *d
			continue
		}

		return nil, fmt.Errorf("unknown display: %s", term)
	}

	result := make([]model.Display, 0, len(selected))
	for _, d := range selected {
		result = append(result, d)
	}
	SortDisplays(result)
	return result, nil
}

// DisplayIDs returns the ids of displays in order.
func DisplayIDs(displays []model.Display) []model.DisplayID {
	ids := make([]model.DisplayID, len(displays))
	for i, d := range displays {
		ids[i] = d.ID
	}
	return ids
}

// SortDisplays orders displays by index, then id.
func SortDisplays(displays []model.Display) {
	slices.SortStableFunc(displays, func(a, b model.Display) int {
		if a.Index != b.Index {
			return a.Index - b.Index
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
}

// LookupSticker finds a sticker by name, falling back to a unique
// case-insensitive prefix match.
// Returns nil if not found or ambiguous.
func LookupSticker(list []stickers.Sticker, name string) *stickers.Sticker {
	for i := range list {
		if list[i].Name == name {
			return &list[i]
		}
	}

	var match *stickers.Sticker
	lower := strings.ToLower(name)
	for i := range list {
		if strings.HasPrefix(strings.ToLower(list[i].Name), lower) {
			if match != nil {
				return nil
			}
			match = &list[i]
		}
	}
	return match
}

// Search finds stickers whose name contains term.
// Case-insensitive substring match.
func Search(list []stickers.Sticker, term string) []stickers.Sticker {
	if term == "" {
		return list
	}

	term = strings.ToLower(term)
	var result []stickers.Sticker
	for _, s := range list {
		if strings.Contains(strings.ToLower(s.Name), term) {
			result = append(result, s)
		}
	}
	return result
}
