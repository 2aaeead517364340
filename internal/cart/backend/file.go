package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spice-admin/customer-app-sub000/internal/cart"
)

// FileName is the fixed name a cart is stored under inside an owner's directory.
const FileName = "spiceCart.json"

var unsafeOwnerChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// File stores each cart as <dir>/<owner>/spiceCart.json.
type File struct {
	dir string
}

func NewFile(dir string) *File {
	return &File{dir: dir}
}

func (f *File) For(ownerID string) cart.Persistence {
	owner := unsafeOwnerChars.ReplaceAllString(ownerID, "_")
	return fileCart{path: filepath.Join(f.dir, owner, FileName)}
}

type fileCart struct {
	path string
}

func (c fileCart) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file: %w", err)
	}
	return data, nil
}

// Save writes through a temp file so a crash never leaves a half-written cart.
func (c fileCart) Save(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), FileName+".*")
	if err != nil {
		return fmt.Errorf("create temp cart file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cart file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace cart file: %w", err)
	}
	return nil
}
