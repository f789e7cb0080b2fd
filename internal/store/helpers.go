package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// isUniqueViolation reports whether the error came from a UNIQUE
// constraint. SQLite surfaces these in the error message rather than a
// typed error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// encodeJSON serializes multilingual maps and list columns for storage.
func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}

func decodeLangMap(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode language map: %w", err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func decodeStringList(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}
