// Package checksum persists a version-tag to content-hash mapping for
// downloaded release artifacts. A file on disk is only trusted when its
// current hash matches the hash recorded for its version; no record
// means not verified.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"xonemgr/internal/fsutil"
)

// hashBlockSize is the read granularity for streaming file hashing.
const hashBlockSize = 64 * 1024

// Store maps version tags to sha256 hex digests in a TOML file.
type Store struct {
	Path string
}

type mapping struct {
	Checksums map[string]string `toml:"checksums"`
}

// Save records hash for version, preserving every other entry. A
// missing or unreadable mapping file is treated as empty rather than
// failing the save.
func (s *Store) Save(version, hash string) error {
	m := s.load()
	m.Checksums[version] = strings.ToLower(strings.TrimSpace(hash))
	blob, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("SUM_ENCODE: %w", err)
	}
	if err := fsutil.EnsureDir(s.Path); err != nil {
		return err
	}
	return fsutil.AtomicWrite(s.Path, blob, 0o644)
}

// Verify reports whether path's current content hash matches the hash
// recorded for version. Unknown versions, unreadable mapping files, and
// unreadable artifacts all verify false; trust requires an exact match.
func (s *Store) Verify(version, path string) bool {
	recorded, ok := s.Recorded(version)
	if !ok {
		return false
	}
	actual, err := HashFile(path)
	if err != nil {
		return false
	}
	return actual == recorded
}

// Recorded returns the stored hash for version, if any.
func (s *Store) Recorded(version string) (string, bool) {
	m := s.load()
	h, ok := m.Checksums[version]
	return h, ok && h != ""
}

func (s *Store) load() mapping {
	m := mapping{Checksums: map[string]string{}}
	blob, err := os.ReadFile(s.Path)
	if err != nil {
		return m
	}
	if err := toml.Unmarshal(blob, &m); err != nil || m.Checksums == nil {
		// Corrupt mapping: fail safe toward re-verification.
		return mapping{Checksums: map[string]string{}}
	}
	return m
}

// HashFile computes the sha256 hex digest of path, streaming the file
// in fixed-size blocks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("SUM_OPEN: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("SUM_READ: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
