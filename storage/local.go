package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"faturas/model"
)

// Local writes invoice documents under a base directory, one subdirectory
// per requested period.
type Local struct {
	basePath string
}

func New(basePath string) (*Local, error) {
	if basePath == "" {
		basePath = "./faturas"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{basePath: basePath}, nil
}

func (s *Local) BasePath() string { return s.basePath }

// DocumentPath is the path, relative to the base directory, of the document
// for one distributor/account/period:
// {YYYY-MM}/{DISTRIBUTOR}_{code12}_{YYYY-MM}.pdf.
func DocumentPath(distributor, accountCode string, p model.Period) string {
	dashed := p.Dashed()
	name := fmt.Sprintf("%s_%s_%s.pdf", strings.ToUpper(distributor), model.PadAccountCode(accountCode), dashed)
	return filepath.Join(dashed, name)
}

// Save writes data at key, creating parent directories as needed. An
// existing file is replaced.
func (s *Local) Save(_ context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.basePath, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Exists reports whether a document is already stored at key.
func (s *Local) Exists(key string) bool {
	info, err := os.Stat(filepath.Join(s.basePath, key))
	return err == nil && !info.IsDir()
}
