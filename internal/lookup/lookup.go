// Package lookup maps decoded payloads to the text shown and spoken for them.
package lookup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/chroma/internal/decode"
	"github.com/andresmejia3/chroma/internal/types"
)

type key struct {
	channel types.Channel
	payload string
}

// Table is an in-memory lookup table. It is filled before scanning begins and
// only read while a session runs.
type Table struct {
	entries map[key]types.LookupEntry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[key]types.LookupEntry)}
}

// Put adds or replaces the entry for (ch, payload). The payload is keyed in
// the same normalized form the decoder reports.
func (t *Table) Put(ch types.Channel, payload string, e types.LookupEntry) {
	t.entries[key{ch, decode.Normalize(payload)}] = e
}

// Lookup returns the entry for (ch, payload), if any.
func (t *Table) Lookup(ch types.Channel, payload string) (types.LookupEntry, bool) {
	if t == nil {
		return types.LookupEntry{}, false
	}
	e, ok := t.entries[key{ch, payload}]
	return e, ok
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Merge copies every entry of other into t, overwriting duplicates.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for k, e := range other.entries {
		t.entries[k] = e
	}
}

// fileEntry is one record of the JSON lookup file.
type fileEntry struct {
	Channel     string `json:"channel"`
	Payload     string `json:"payload"`
	DisplayText string `json:"display_text"`
	SpokenText  string `json:"spoken_text"`
}

const maxFileSize = 1 * 1024 * 1024

// LoadFile reads a JSON array of {channel, payload, display_text, spoken_text}.
func LoadFile(path string) (*Table, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("lookup file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat lookup file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("lookup file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup file: %w", err)
	}

	var records []fileEntry
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse lookup JSON: %w", err)
	}

	t := NewTable()
	for i, r := range records {
		ch, err := types.ParseChannel(r.Channel)
		if err != nil {
			return nil, fmt.Errorf("lookup entry %d: %w", i, err)
		}
		if decode.Normalize(r.Payload) == "" {
			return nil, fmt.Errorf("lookup entry %d: empty payload", i)
		}
		t.Put(ch, r.Payload, types.LookupEntry{DisplayText: r.DisplayText, SpokenText: r.SpokenText})
	}
	return t, nil
}
