package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByName     SortField = "name"
	SortByModified SortField = "modified"
	SortBySize     SortField = "size"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField // Field to sort by
	Order SortOrder // Sort order (asc/desc)
}

// DefaultSortOptions returns default sort options (alphabetical).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByName,
		Order: SortAsc,
	}
}

// Sort orders stickers in place. Ties are broken by case-insensitive name,
// and the tie-break follows the requested direction too.
func Sort(list []stickers.Sticker, opts SortOptions) {
	slices.SortStableFunc(list, func(a, b stickers.Sticker) int {
		var c int
		switch opts.Field {
		case SortByModified:
			c = a.ModTime.Compare(b.ModTime)
		case SortBySize:
			c = cmp.Compare(a.Size, b.Size)
		}
		if c == 0 {
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		if opts.Order == SortDesc {
			return -c
		}
		return c
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "n", "":
		return SortByName, nil
	case "modified", "mtime", "time", "m":
		return SortByModified, nil
	case "size", "s":
		return SortBySize, nil
	default:
		return SortByName, fmt.Errorf("invalid sort field: %s (use name, modified, or size)", s)
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a", "":
		return SortAsc, nil
	case "desc", "descending", "d":
		return SortDesc, nil
	default:
		return SortAsc, fmt.Errorf("invalid sort order: %s (use asc or desc)", s)
	}
}
