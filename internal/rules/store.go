package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/service"
)

var _ service.RuleStore = (*FileStore)(nil)

// FileStore persists a rule set as a JSON or YAML document.
type FileStore struct {
	Path string
}

// NewFileStore creates a store for path. The format follows the extension.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// LoadRuleSet reads the document. A missing file yields DefaultRuleSet.
func (s *FileStore) LoadRuleSet(ctx context.Context) (*model.RuleSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultRuleSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	set, err := Decode(f, FormatForPath(s.Path))
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", s.Path, err)
	}
	return set, nil
}

// SaveRuleSet writes the document atomically.
func (s *FileStore) SaveRuleSet(ctx context.Context, set *model.RuleSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Encode(tmp, set, FormatForPath(s.Path)); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to replace rules file: %w", err)
	}
	return nil
}
