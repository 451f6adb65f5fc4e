package cbl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RowFunc projects one GraphQL node into a CSV row in column order
type RowFunc func(node json.RawMessage) ([]string, error)

// SummaryFunc computes the --count report for an output file
type SummaryFunc func(path string) ([]string, error)

// Entity describes one crawlable Community Ban List collection
type Entity struct {
	// Name is the CLI subcommand and log label
	Name string
	// Noun is used in progress messages ("Fetched 500 bans in this batch")
	Noun           string
	Field          string
	Query          string
	Columns        []string
	CheckpointFile string
	OutputFile     string

	Project   RowFunc
	Summarize SummaryFunc
}

// Entities returns every known entity in CLI order
func Entities() []*Entity {
	return []*Entity{Bans(), SteamUsers()}
}

// Lookup finds an entity by name
func Lookup(name string) (*Entity, error) {
	for _, e := range Entities() {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("unknown entity %q", name)
}

// scalar renders a JSON value the way it appears in the dataset: strings
// unquoted, numbers and booleans verbatim, null or absent as empty.
func scalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected scalar, got %s", kind(raw))
	default:
		return string(raw), nil
	}
}

func kind(raw json.RawMessage) string {
	if raw[0] == '{' {
		return "object"
	}
	return "array"
}

// object decodes raw into a field map, treating null as empty
func object(raw json.RawMessage) (map[string]json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// path walks nested objects, e.g. path(node, "banList", "organisation", "name")
func path(node map[string]json.RawMessage, keys ...string) (string, error) {
	cur := node
	for i, k := range keys {
		if i == len(keys)-1 {
			v, err := scalar(cur[k])
			if err != nil {
				return "", fmt.Errorf("%s: %w", strings.Join(keys, "."), err)
			}
			return v, nil
		}
		next, err := object(cur[k])
		if err != nil {
			return "", fmt.Errorf("%s: %w", strings.Join(keys[:i+1], "."), err)
		}
		cur = next
	}
	return "", nil
}

// record decodes a top-level node. Unlike nested objects it must be present
// and carry an id.
func record(raw json.RawMessage) (map[string]json.RawMessage, error) {
	node, err := object(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode node: %w", err)
	}
	id, err := path(node, "id")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New("node has no id")
	}
	return node, nil
}

// project builds a RowFunc from one key path per column
func project(paths [][]string) RowFunc {
	return func(raw json.RawMessage) ([]string, error) {
		node, err := record(raw)
		if err != nil {
			return nil, err
		}
		row := make([]string, len(paths))
		for i, p := range paths {
			if row[i], err = path(node, p...); err != nil {
				return nil, err
			}
		}
		return row, nil
	}
}
