package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirCreateAndOpen(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := WriteAll(ctx, d, "audio/u1/seg1.wav", []byte("riff")); err != nil {
		t.Fatal(err)
	}
	got, err := ReadAll(ctx, d, "audio/u1/seg1.wav")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "riff" {
		t.Fatalf("got %q, want %q", got, "riff")
	}
}

func TestDirOpenNotExist(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.Open(context.Background(), "nope")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestDirCreateIsAtomic(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := WriteAll(ctx, d, "index/u1.hnsw", []byte("old snapshot")); err != nil {
		t.Fatal(err)
	}

	// Until Close, the previous content must stay visible and intact.
	w, err := d.Create(ctx, "index/u1.hnsw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, "new "); err != nil {
		t.Fatal(err)
	}
	got, err := ReadAll(ctx, d, "index/u1.hnsw")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "old snapshot" {
		t.Fatalf("mid-write read = %q, want old content", got)
	}

	if _, err := io.WriteString(w, "snapshot"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	got, err = ReadAll(ctx, d, "index/u1.hnsw")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new snapshot" {
		t.Fatalf("got %q, want %q", got, "new snapshot")
	}

	// No staging files left behind.
	entries, err := os.ReadDir(filepath.Join(root, "index"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".staged-") {
			t.Errorf("staging file %s left behind", e.Name())
		}
	}
}

func TestDirRemoveIdempotent(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := d.Remove(ctx, "ghost"); err != nil {
		t.Fatal(err)
	}

	if err := WriteAll(ctx, d, "f", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(ctx, "f"); err != nil {
		t.Fatal(err)
	}
	ok, err := d.Exists(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("blob should be gone after remove")
	}
}

func TestDirExists(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ok, err := d.Exists(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected false for missing blob")
	}

	if err := WriteAll(ctx, d, "present", []byte("x")); err != nil {
		t.Fatal(err)
	}
	ok, err = d.Exists(ctx, "present")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected true for existing blob")
	}
}

func TestDirNestedNames(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := WriteAll(ctx, d, "a/b/c/deep.bin", []byte("data")); err != nil {
		t.Fatal(err)
	}
	got, err := ReadAll(ctx, d, "a/b/c/deep.bin")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("got %q, want %q", got, "data")
	}
}
