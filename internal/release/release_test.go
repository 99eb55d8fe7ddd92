package release

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xonemgr/internal/checksum"
)

func newService(t *testing.T, handler http.Handler) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	return &Service{
		Client:      srv.Client(),
		ReleaseURL:  srv.URL + "/releases/latest",
		AssetExt:    ".tar.gz",
		DownloadDir: filepath.Join(dir, "downloads"),
		Sums:        &checksum.Store{Path: filepath.Join(dir, "checksums.toml")},
	}, srv
}

func descriptorHandler(srv func() string, tag string, assets ...string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":%q,"body":"notes","assets":[`, tag)
		for i, name := range assets {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"name":%q,"browser_download_url":"%s/dl/%s"}`, name, srv(), name)
		}
		fmt.Fprint(w, `]}`)
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "archive-bytes")
	})
	return mux
}

func TestCheckReportsUpdate(t *testing.T) {
	var base string
	svc, srv := newService(t, descriptorHandler(func() string { return base }, "v0.4", "xone-v0.4.tar.gz"))
	base = srv.URL

	report := svc.Check(context.Background(), "0.3")
	assert.True(t, report.UpdateAvailable)
	assert.Equal(t, "v0.4", report.LatestVersion)
	assert.Equal(t, "xone-v0.4.tar.gz", report.AssetName)
	assert.Equal(t, srv.URL+"/dl/xone-v0.4.tar.gz", report.DownloadURL)
	assert.False(t, report.FileExists)
	assert.Empty(t, report.Error)
}

func TestCheckCurrentIsLatest(t *testing.T) {
	var base string
	svc, srv := newService(t, descriptorHandler(func() string { return base }, "v0.3", "xone-v0.3.tar.gz"))
	base = srv.URL

	report := svc.Check(context.Background(), "v0.3")
	assert.False(t, report.UpdateAvailable)
}

func TestCheckPicksFirstMatchingAsset(t *testing.T) {
	var base string
	svc, srv := newService(t, descriptorHandler(func() string { return base },
		"v0.4", "checksums.txt", "first.tar.gz", "second.tar.gz"))
	base = srv.URL

	report := svc.Check(context.Background(), "0.1")
	assert.Equal(t, "first.tar.gz", report.AssetName)
}

func TestCheckFetchFailure(t *testing.T) {
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	report := svc.Check(context.Background(), "0.3")
	assert.False(t, report.UpdateAvailable)
	assert.Contains(t, report.Error, "status 502")
}

func TestCheckDoesNotTrustUnverifiedFile(t *testing.T) {
	var base string
	svc, srv := newService(t, descriptorHandler(func() string { return base }, "v0.4", "xone-v0.4.tar.gz"))
	base = srv.URL

	require.NoError(t, os.MkdirAll(svc.DownloadDir, 0o755))
	local := filepath.Join(svc.DownloadDir, "xone-v0.4.tar.gz")
	require.NoError(t, os.WriteFile(local, []byte("stale or tampered"), 0o644))

	report := svc.Check(context.Background(), "0.3")
	assert.False(t, report.FileExists, "same-named file without a matching recorded hash is not trusted")

	hash, err := checksum.HashFile(local)
	require.NoError(t, err)
	require.NoError(t, svc.Sums.Save("v0.4", hash))

	report = svc.Check(context.Background(), "0.3")
	assert.True(t, report.FileExists)
}

func TestFetchRecordsChecksum(t *testing.T) {
	var base string
	svc, srv := newService(t, descriptorHandler(func() string { return base }, "v0.4", "xone-v0.4.tar.gz"))
	base = srv.URL

	dl, err := svc.Fetch(context.Background(), srv.URL+"/dl/xone-v0.4.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.DownloadDir, "xone-v0.4.tar.gz"), dl.Path)
	assert.Equal(t, "v0.4", dl.Version)

	assert.True(t, svc.Sums.Verify("v0.4", dl.Path))

	_, err = os.Stat(dl.Path + ".partial")
	assert.True(t, os.IsNotExist(err), "partial file must not outlive a successful fetch")
}

func TestFetchFailureLeavesNoPartial(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	svc, srv := newService(t, mux)

	_, err := svc.Fetch(context.Background(), srv.URL+"/dl/xone-v0.4.tar.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DLD_FETCH")

	entries, _ := os.ReadDir(svc.DownloadDir)
	assert.Empty(t, entries)
}
