// Package weathercode maps WMO weather interpretation codes, as returned by
// Open-Meteo, to human readable day and night descriptions.
package weathercode

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultDescription is shown for codes missing from the table
const DefaultDescription = "Sunny"

//go:embed weather_codes.json
var embeddedCodes []byte

type Description struct {
	Description string `json:"description"`
}

// Entry holds the descriptions of one weather code
type Entry struct {
	Day   Description `json:"day"`
	Night Description `json:"night"`
}

// Table is a read-only lookup from weather code to Entry
type Table struct {
	entries map[int]Entry
}

// Default returns the table compiled into the binary
func Default() (*Table, error) {
	return Parse(embeddedCodes)
}

// MustDefault is like Default but panics if the embedded table is malformed
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse builds a table from a JSON object keyed by the numeric code
func Parse(data []byte) (*Table, error) {
	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode weather codes: %w", err)
	}

	entries := make(map[int]Entry, len(raw))
	for key, entry := range raw {
		code, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid weather code %q: %w", key, err)
		}
		entries[code] = entry
	}

	return &Table{entries: entries}, nil
}

// Lookup returns the full entry for a code
func (t *Table) Lookup(code int) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	e, ok := t.entries[code]
	return e, ok
}

// Describe returns the day description of a code, or DefaultDescription when
// the code is unknown.
func (t *Table) Describe(code int) string {
	e, ok := t.Lookup(code)
	if !ok || e.Day.Description == "" {
		return DefaultDescription
	}
	return e.Day.Description
}

// Len reports the number of known codes
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
