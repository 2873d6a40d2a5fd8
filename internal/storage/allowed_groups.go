package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AllowedGroupsFile persists the group allow-list as a flat JSON array
// of JID strings.
type AllowedGroupsFile struct {
	path string
}

func NewAllowedGroupsFile(path string) *AllowedGroupsFile {
	return &AllowedGroupsFile{path: path}
}

func (s *AllowedGroupsFile) Load() ([]string, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return nil, nil
	}

	var groups []string
	if err := json.Unmarshal([]byte(trimmed), &groups); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	out := make([]string, 0, len(groups))
	for _, group := range groups {
		item := strings.TrimSpace(group)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *AllowedGroupsFile) Save(groups []string) error {
	if groups == nil {
		groups = []string{}
	}
	content, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("encode allowed groups: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(s.path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
