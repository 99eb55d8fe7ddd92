package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return &Store{Path: filepath.Join(dir, "checksums.toml")}, dir
}

func TestSaveVerifyRoundTrip(t *testing.T) {
	store, dir := newStore(t)
	artifact := filepath.Join(dir, "xone-v0.3.tar.gz")
	if err := os.WriteFile(artifact, []byte("driver payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := HashFile(artifact)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if err := store.Save("v0.3", hash); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.Verify("v0.3", artifact) {
		t.Fatal("verify should succeed after save")
	}
}

func TestVerifyFailsAfterMutation(t *testing.T) {
	store, dir := newStore(t)
	artifact := filepath.Join(dir, "xone-v0.3.tar.gz")
	if err := os.WriteFile(artifact, []byte("driver payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	hash, _ := HashFile(artifact)
	if err := store.Save("v0.3", hash); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := os.WriteFile(artifact, []byte("driver payloaX"), 0o644); err != nil {
		t.Fatal(err)
	}
	if store.Verify("v0.3", artifact) {
		t.Fatal("verify must fail after content mutation")
	}
}

func TestVerifyUnknownVersion(t *testing.T) {
	store, dir := newStore(t)
	artifact := filepath.Join(dir, "f")
	if err := os.WriteFile(artifact, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if store.Verify("v9.9", artifact) {
		t.Fatal("unknown version must not verify")
	}
}

func TestSavePreservesOtherEntries(t *testing.T) {
	store, _ := newStore(t)
	if err := store.Save("v0.1", "aa"); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("v0.2", "bb"); err != nil {
		t.Fatal(err)
	}
	if h, ok := store.Recorded("v0.1"); !ok || h != "aa" {
		t.Fatalf("v0.1 entry lost: %q %v", h, ok)
	}
	if h, ok := store.Recorded("v0.2"); !ok || h != "bb" {
		t.Fatalf("v0.2 entry missing: %q %v", h, ok)
	}
}

func TestCorruptMappingBehavesAsEmpty(t *testing.T) {
	store, _ := newStore(t)
	if err := os.WriteFile(store.Path, []byte("not toml ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Recorded("v0.1"); ok {
		t.Fatal("corrupt mapping must read as no records")
	}
	if err := store.Save("v0.1", "cc"); err != nil {
		t.Fatalf("save over corrupt mapping: %v", err)
	}
	if h, ok := store.Recorded("v0.1"); !ok || h != "cc" {
		t.Fatalf("save after corruption: %q %v", h, ok)
	}
}

func TestHashFileStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}
