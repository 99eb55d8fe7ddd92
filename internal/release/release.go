// Package release talks to the upstream driver release endpoint:
// checking for newer tags and fetching distributable archives whose
// trust is gated by the checksum store.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"xonemgr/internal/checksum"
	"xonemgr/internal/version"
)

// Asset is one downloadable file attached to an upstream release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// Descriptor is the upstream release metadata. Read-only; the engine
// never mutates it.
type Descriptor struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
	Body    string  `json:"body"`
}

// UpdateReport is the outcome of an update check. Fetch failures are
// carried in Error with UpdateAvailable false, never raised.
type UpdateReport struct {
	UpdateAvailable bool   `json:"update_available"`
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version,omitempty"`
	AssetName       string `json:"asset_name,omitempty"`
	DownloadURL     string `json:"download_url,omitempty"`
	FileExists      bool   `json:"file_exists"`
	Notes           string `json:"notes,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Download describes a fetched and checksum-recorded artifact.
type Download struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	Version string `json:"version"`
}

// Service fetches release metadata and artifacts.
type Service struct {
	Client      *http.Client
	ReleaseURL  string
	AssetExt    string
	DownloadDir string
	Sums        *checksum.Store
	Log         *slog.Logger
}

// Latest fetches the upstream latest-release descriptor.
func (s *Service) Latest(ctx context.Context) (Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ReleaseURL, nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("UPD_FETCH: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return Descriptor{}, fmt.Errorf("UPD_FETCH: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Descriptor{}, fmt.Errorf("UPD_FETCH: status %d", resp.StatusCode)
	}
	var desc Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return Descriptor{}, fmt.Errorf("UPD_DECODE: %w", err)
	}
	if desc.TagName == "" {
		return Descriptor{}, fmt.Errorf("UPD_DECODE: descriptor missing tag_name")
	}
	return desc, nil
}

// Check compares the latest upstream tag against currentVersion and
// locates a download candidate. A same-named local file only counts as
// existing when its recorded checksum still matches its content.
func (s *Service) Check(ctx context.Context, currentVersion string) UpdateReport {
	report := UpdateReport{CurrentVersion: currentVersion}
	desc, err := s.Latest(ctx)
	if err != nil {
		s.log().Error("update check failed", "error", err)
		report.Error = err.Error()
		return report
	}
	report.LatestVersion = desc.TagName
	report.Notes = desc.Body
	report.UpdateAvailable = version.CompareStrings(desc.TagName, currentVersion) > 0

	// First matching asset wins; upstream ships a single archive per
	// release so a best-match scan buys nothing.
	for _, asset := range desc.Assets {
		if strings.HasSuffix(asset.Name, s.AssetExt) {
			report.AssetName = asset.Name
			report.DownloadURL = asset.DownloadURL
			break
		}
	}
	if report.AssetName != "" {
		local := filepath.Join(s.DownloadDir, report.AssetName)
		if _, err := os.Stat(local); err == nil {
			report.FileExists = s.Sums.Verify(desc.TagName, local)
		}
	}
	s.log().Info("update check",
		"current", version.Canonical(currentVersion),
		"latest", report.LatestVersion,
		"available", report.UpdateAvailable,
		"verified_local", report.FileExists)
	return report
}

// Fetch downloads rawURL into the download dir and records its checksum
// against the latest known release tag. The body streams into a
// .partial file that is only renamed into place once fully written, so
// an interrupted download never masquerades as a finished artifact.
func (s *Service) Fetch(ctx context.Context, rawURL string) (Download, error) {
	name, err := assetName(rawURL)
	if err != nil {
		return Download{}, err
	}
	if err := os.MkdirAll(s.DownloadDir, 0o755); err != nil {
		return Download{}, fmt.Errorf("DLD_DIR: %w", err)
	}
	dest := filepath.Join(s.DownloadDir, name)
	partial := dest + ".partial"

	if err := s.fetchTo(ctx, rawURL, partial); err != nil {
		_ = os.Remove(partial)
		return Download{}, err
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return Download{}, fmt.Errorf("DLD_FINALIZE: %w", err)
	}

	hash, err := checksum.HashFile(dest)
	if err != nil {
		return Download{}, fmt.Errorf("DLD_HASH: %w", err)
	}
	desc, err := s.Latest(ctx)
	if err != nil {
		return Download{}, err
	}
	if err := s.Sums.Save(desc.TagName, hash); err != nil {
		return Download{}, err
	}
	s.log().Info("downloaded release asset", "path", dest, "tag", desc.TagName, "sha256", hash)
	return Download{Path: dest, Hash: hash, Version: desc.TagName}, nil
}

func (s *Service) fetchTo(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("DLD_FETCH: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("DLD_FETCH: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("DLD_FETCH: status %d", resp.StatusCode)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("DLD_WRITE: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return fmt.Errorf("DLD_WRITE: %w", err)
	}
	return f.Close()
}

func assetName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("DLD_URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("DLD_URL: no file name in %q", rawURL)
	}
	return name, nil
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
