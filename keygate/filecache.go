package keygate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileCache persists authenticated cache records under a namespaced
// directory. Writes are staged to a temp file and atomically renamed into
// place, so a concurrent reader never observes a partially written record.
// Two concurrent writers race with last-writer-wins, which is safe because
// every record is independently self-verifying.
type FileCache struct {
	dir string
}

// NewFileCache creates a file cache under os.UserCacheDir()/<namespace>.
func NewFileCache(namespace string) (*FileCache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("%w: locate cache directory: %v", ErrCacheIO, err)
	}
	return NewFileCacheAt(filepath.Join(base, namespace))
}

// NewFileCacheAt creates a file cache rooted at an explicit directory.
func NewFileCacheAt(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %v", ErrCacheIO, err)
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (fc *FileCache) Dir() string {
	return fc.dir
}

// cacheKey derives the on-disk identity for a license from the license key
// plus account and product identifiers. The hash is one-way: the raw
// license key is never persisted or logged.
func cacheKey(accountID, product, licenseKey string) string {
	sum := sha256.Sum256([]byte(accountID + "|" + product + "|" + licenseKey))
	return hex.EncodeToString(sum[:])
}

// recordPath maps a cache key to its file. Only a hash prefix is used as
// the filename.
func (fc *FileCache) recordPath(key string) string {
	name := key
	if len(name) > 16 {
		name = name[:16]
	}
	return filepath.Join(fc.dir, name+".json")
}

// Save atomically persists a record under the given cache key.
func (fc *FileCache) Save(key string, record *CacheRecord) error {
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: serialize record: %v", ErrCacheIO, err)
	}

	target := fc.recordPath(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("%w: write temp file: %v", ErrCacheIO, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename record: %v", ErrCacheIO, err)
	}
	return nil
}

// Load reads the record stored under the given cache key. Returns
// (nil, nil) when no record exists. Load performs no verification; callers
// must run CacheRecord.Verify before trusting the contents.
func (fc *FileCache) Load(key string) (*CacheRecord, error) {
	raw, err := os.ReadFile(fc.recordPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read record: %v", ErrCacheIO, err)
	}

	var record CacheRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", ErrCacheIO, err)
	}
	return &record, nil
}

// Quarantine moves a record aside instead of deleting it, preserving the
// tampered file for inspection while guaranteeing it is never loaded
// again.
func (fc *FileCache) Quarantine(key string) error {
	path := fc.recordPath(key)
	if err := os.Rename(path, path+".quarantined"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: quarantine record: %v", ErrCacheIO, err)
	}
	return nil
}

// Delete removes the record stored under the given cache key.
func (fc *FileCache) Delete(key string) error {
	if err := os.Remove(fc.recordPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete record: %v", ErrCacheIO, err)
	}
	return nil
}

// Clear removes all cache records (quarantined files included). Other
// files sharing the directory, such as the usage meter, are left alone.
func (fc *FileCache) Clear() error {
	entries, err := os.ReadDir(fc.dir)
	if err != nil {
		return fmt.Errorf("%w: read cache dir: %v", ErrCacheIO, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if isRecordFile(name) {
			if err := os.Remove(filepath.Join(fc.dir, name)); err != nil {
				return fmt.Errorf("%w: delete %s: %v", ErrCacheIO, name, err)
			}
		}
	}
	return nil
}

// isRecordFile reports whether name is a cache record file: a 16-char hex
// stem plus ".json", optionally with the ".quarantined" marker.
func isRecordFile(name string) bool {
	name = strings.TrimSuffix(name, ".quarantined")
	stem, ok := strings.CutSuffix(name, ".json")
	if !ok || len(stem) != 16 {
		return false
	}
	for _, c := range stem {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
