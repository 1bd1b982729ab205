package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Greater than
	FilterOpLess      FilterOp = "<"  // Less than
	FilterOpGreaterEq FilterOp = ">=" // Greater than or equal
	FilterOpLessEq    FilterOp = "<=" // Less than or equal
)

// Two-character operators come first so "!=" is not read as "!" + "=".
var filterOps = []FilterOp{
	FilterOpNotEqual, FilterOpGreaterEq, FilterOpLessEq, FilterOpRegex,
	FilterOpEqual, FilterOpContains, FilterOpGreater, FilterOpLess,
}

type valueKind int

const (
	kindText valueKind = iota
	kindNumber
	kindAge
)

// filterField describes one filterable sticker attribute.
type filterField struct {
	name string
	kind valueKind
	ops  []FilterOp

	text   func(stickers.Sticker) string
	number func(stickers.Sticker) int64
	parse  func(string) (int64, error)
}

var (
	textOps   = []FilterOp{FilterOpEqual, FilterOpNotEqual, FilterOpContains, FilterOpRegex}
	numberOps = []FilterOp{FilterOpEqual, FilterOpNotEqual, FilterOpGreater, FilterOpLess, FilterOpGreaterEq, FilterOpLessEq}
	ageOps    = []FilterOp{FilterOpGreater, FilterOpLess, FilterOpGreaterEq, FilterOpLessEq}
)

func parseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	return int64(n), err
}

func parsePixels(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func extOf(s stickers.Sticker) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(s.Name)), ".")
}

var (
	nameField     = &filterField{name: "name", kind: kindText, ops: textOps, text: func(s stickers.Sticker) string { return s.Name }}
	extField      = &filterField{name: "ext", kind: kindText, ops: textOps, text: extOf}
	sizeField     = &filterField{name: "size", kind: kindNumber, ops: numberOps, parse: parseBytes, number: func(s stickers.Sticker) int64 { return s.Size }}
	widthField    = &filterField{name: "width", kind: kindNumber, ops: numberOps, parse: parsePixels, number: func(s stickers.Sticker) int64 { return int64(s.Width) }}
	heightField   = &filterField{name: "height", kind: kindNumber, ops: numberOps, parse: parsePixels, number: func(s stickers.Sticker) int64 { return int64(s.Height) }}
	modifiedField = &filterField{name: "modified", kind: kindAge, ops: ageOps}
)

// filterFields maps every accepted field spelling to its definition.
var filterFields = map[string]*filterField{
	"name": nameField, "file": nameField,
	"ext": extField, "type": extField, "format": extField,
	"size": sizeField, "bytes": sizeField,
	"width": widthField, "w": widthField,
	"height": heightField, "h": heightField,
	"modified": modifiedField, "mtime": modifiedField, "age": modifiedField,
}

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // Canonical field name: name, ext, size, width, height, modified
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	field  *filterField
	regex  *regexp.Regexp
	number int64
	cutoff time.Time
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies criteria for filtering stickers.
type FilterOptions struct {
	Since time.Duration // Only stickers modified after now-since (0=all)
	Limit int           // Maximum results (0=unlimited)
}

// Filter applies the since cutoff, then the limit.
func Filter(list []stickers.Sticker, opts FilterOptions) []stickers.Sticker {
	var cutoff time.Time
	if opts.Since > 0 {
		cutoff = time.Now().Add(-opts.Since)
	}

	result := make([]stickers.Sticker, 0, len(list))
	for _, s := range list {
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
		if s.ModTime.Before(cutoff) {
			continue
		}
		result = append(result, s)
	}
	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	default:
		return time.ParseDuration(s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return time.Duration(n) * unit, nil
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
// Multiple conditions are comma-separated and ANDed together.
//
// Fields: name, ext, size, width, height, modified (and short aliases).
// Text fields take = != ~ ~=, numeric fields take = != > < >= <=, and
// modified compares ages with > < >= <=.
//
// Examples:
//   - "name~cat" - name contains "cat"
//   - "ext=gif" - animated stickers
//   - "size<500KB" - smaller than 500 kB
//   - "width>=512" - at least 512 pixels wide
//   - "modified<7d" - changed within the last week
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	now := time.Now()

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := parseCondition(part, now)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}
	return filter, nil
}

// parseCondition splits "field op value". The field is the leading run of
// letters, so operator characters inside the value are never mistaken for
// the operator.
func parseCondition(s string, now time.Time) (FilterCondition, error) {
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end <= 0 {
		return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
	}
	name := strings.ToLower(s[:end])
	rest := strings.TrimLeft(s[end:], " ")

	var op FilterOp
	for _, candidate := range filterOps {
		if strings.HasPrefix(rest, string(candidate)) {
			op = candidate
			break
		}
	}
	if op == "" {
		return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
	}

	field, ok := filterFields[name]
	if !ok {
		return FilterCondition{}, fmt.Errorf("unknown filter field: %s", name)
	}
	if !containsOp(field.ops, op) {
		return FilterCondition{}, fmt.Errorf("operator %s not supported for %s", op, field.name)
	}

	cond := FilterCondition{
		Field:    field.name,
		Operator: op,
		Value:    strings.TrimSpace(rest[len(op):]),
		field:    field,
	}
	if err := cond.compile(now); err != nil {
		return FilterCondition{}, err
	}
	return cond, nil
}

func containsOp(ops []FilterOp, op FilterOp) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// compile parses the value for the field's kind.
func (c *FilterCondition) compile(now time.Time) error {
	switch c.field.kind {
	case kindText:
		if c.field == extField {
			c.Value = strings.TrimPrefix(strings.ToLower(c.Value), ".")
		}
		if c.Operator == FilterOpRegex {
			re, err := regexp.Compile(c.Value)
			if err != nil {
				return fmt.Errorf("invalid regex: %w", err)
			}
			c.regex = re
		}
	case kindNumber:
		n, err := c.field.parse(c.Value)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", c.Field, c.Value, err)
		}
		c.number = n
	case kindAge:
		d, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", c.Field, err)
		}
		c.cutoff = now.Add(-d)
	}
	return nil
}

// Match tests if a sticker matches the filter expression.
// All conditions must match (AND logic).
func (f *FilterExpr) Match(s stickers.Sticker) bool {
	for i := range f.Conditions {
		if !f.Conditions[i].Match(s) {
			return false
		}
	}
	return true
}

// Match tests if a sticker matches this single condition.
func (c *FilterCondition) Match(s stickers.Sticker) bool {
	if c.field == nil {
		return false
	}

	switch c.field.kind {
	case kindText:
		v := c.field.text(s)
		switch c.Operator {
		case FilterOpEqual:
			return v == c.Value
		case FilterOpNotEqual:
			return v != c.Value
		case FilterOpContains:
			return strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
		case FilterOpRegex:
			return c.regex.MatchString(v)
		}
	case kindNumber:
		return compareOp(c.Operator, cmpInt(c.field.number(s), c.number))
	case kindAge:
		// A younger file has a later mtime, so "modified<7d" compares
		// the cutoff against the file time.
		return compareOp(c.Operator, c.cutoff.Compare(s.ModTime))
	}
	return false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareOp applies op to the result of a three-way comparison.
func compareOp(op FilterOp, cmp int) bool {
	switch op {
	case FilterOpEqual:
		return cmp == 0
	case FilterOpNotEqual:
		return cmp != 0
	case FilterOpGreater:
		return cmp > 0
	case FilterOpLess:
		return cmp < 0
	case FilterOpGreaterEq:
		return cmp >= 0
	case FilterOpLessEq:
		return cmp <= 0
	}
	return false
}

// FilterWithExpr filters stickers using a filter expression.
func FilterWithExpr(list []stickers.Sticker, expr *FilterExpr) []stickers.Sticker {
	if expr == nil || len(expr.Conditions) == 0 {
		return list
	}

	result := make([]stickers.Sticker, 0, len(list))
	for _, s := range list {
		if expr.Match(s) {
			result = append(result, s)
		}
	}
	return result
}
