package enroll

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/frontdesk/internal/facematch"
)

// assetExtensions are the recognized asset suffixes, checked in order by Exists.
var assetExtensions = []string{".jpg", ".jpeg", ".png"}

// AssetStore keeps one reference photo per identity (<ID>.jpg or <ID>.png) in a directory.
// Assets are never overwritten.
type AssetStore struct {
	dir string
}

// NewAssetStore creates an asset store rooted at dir.
func NewAssetStore(dir string) *AssetStore {
	return &AssetStore{dir: dir}
}

// Dir returns the asset directory.
func (a *AssetStore) Dir() string { return a.dir }

// Exists returns the path of the identity's asset, if any.
func (a *AssetStore) Exists(identityID string) (string, bool) {
	id := facematch.NormalizeIdentityID(identityID)
	if id == "" {
		return "", false
	}
	for _, ext := range assetExtensions {
		p := filepath.Join(a.dir, id+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Save writes image as the identity's asset. It fails with ErrDuplicateIdentity if one exists.
func (a *AssetStore) Save(identityID string, image []byte) (string, error) {
	id := facematch.NormalizeIdentityID(identityID)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid identity id %q", identityID)
	}
	if p, ok := a.Exists(id); ok {
		return p, &DuplicateIdentityError{IdentityID: id, Path: p}
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", &StorageWriteError{Path: a.dir, Err: err}
	}

	p := filepath.Join(a.dir, id+assetExtension(image))
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return p, &DuplicateIdentityError{IdentityID: id, Path: p}
		}
		return p, &StorageWriteError{Path: p, Err: err}
	}
	if _, err := f.Write(image); err != nil {
		f.Close()
		os.Remove(p)
		return p, &StorageWriteError{Path: p, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return p, &StorageWriteError{Path: p, Err: err}
	}
	return p, nil
}

// Remove deletes an asset written by Save. Paths outside the asset directory are refused.
func (a *AssetStore) Remove(path string) error {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(a.dir) {
		return fmt.Errorf("asset %s is outside %s", path, a.dir)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns identity ids with an asset, keyed to their file path.
func (a *AssetStore) List() (map[string]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("read asset dir: %w", err)
	}
	out := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !slices.Contains(assetExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		id := facematch.NormalizeIdentityID(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if _, dup := out[id]; !dup {
			out[id] = filepath.Join(a.dir, e.Name())
		}
	}
	return out, nil
}

func assetExtension(image []byte) string {
	if http.DetectContentType(image) == "image/png" {
		return ".png"
	}
	return ".jpg"
}
