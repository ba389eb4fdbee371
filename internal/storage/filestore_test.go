package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")
	fs, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("expected directory %s, err=%v", dir, err)
	}
	if fs.Dir() != dir {
		t.Fatalf("Dir() = %q", fs.Dir())
	}
}

func TestSave_WritesAndHashes(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	body := "hello media"
	res, err := fs.Save("abc.png", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	sum := sha256.Sum256([]byte(body))
	if res.Checksum != hex.EncodeToString(sum[:]) {
		t.Fatalf("checksum mismatch: %s", res.Checksum)
	}
	if res.Size != int64(len(body)) {
		t.Fatalf("size = %d", res.Size)
	}
	got, err := os.ReadFile(res.Path)
	if err != nil || string(got) != body {
		t.Fatalf("readback = %q err=%v", got, err)
	}
	if !fs.Exists("abc.png") {
		t.Fatalf("Exists = false after Save")
	}
	if _, err := os.Stat(res.Path + partSuffix); !os.IsNotExist(err) {
		t.Fatalf("temp file should be gone, stat err=%v", err)
	}
	if n, err := fs.Size("abc.png"); err != nil || n != int64(len(body)) {
		t.Fatalf("Size = %d err=%v", n, err)
	}
}

func TestExists_IgnoresDirectories(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.Mkdir(fs.Path("clip.mp4"), 0o750); err != nil {
		t.Fatal(err)
	}
	if fs.Exists("clip.mp4") {
		t.Fatal("a directory must not count as a stored file")
	}
	if fs.Exists("missing.png") {
		t.Fatal("missing file reported present")
	}
}

func TestSave_NeverOverwrites(t *testing.T) {
	fs, _ := New(t.TempDir())
	if err := os.WriteFile(fs.Path("x.jpg"), []byte("original"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := fs.Save("x.jpg", strings.NewReader("replacement"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("err = %v; want ErrExists", err)
	}
	got, _ := os.ReadFile(fs.Path("x.jpg"))
	if string(got) != "original" {
		t.Fatalf("file was overwritten: %q", got)
	}
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		r.n--
		p[0] = 'x'
		return 1, nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestSave_ReaderErrorLeavesNothing(t *testing.T) {
	fs, _ := New(t.TempDir())

	_, err := fs.Save("broken.mp4", &failingReader{n: 3})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v", err)
	}
	if fs.Exists("broken.mp4") || fs.Exists("broken.mp4"+partSuffix) {
		t.Fatalf("no file should remain after a failed save")
	}
}

func TestSave_RejectsPathNames(t *testing.T) {
	fs, _ := New(t.TempDir())
	for _, name := range []string{"", "../escape.png", "a/b.png"} {
		if _, err := fs.Save(name, strings.NewReader("x")); err == nil {
			t.Errorf("Save(%q) should fail", name)
		}
	}
}

func TestCleanPartials(t *testing.T) {
	fs, _ := New(t.TempDir())
	_ = os.WriteFile(fs.Path("a.png"+partSuffix), []byte("half"), 0o600)
	_ = os.WriteFile(fs.Path("b.png"), []byte("full"), 0o600)

	n, err := fs.CleanPartials()
	if err != nil || n != 1 {
		t.Fatalf("CleanPartials = %d, %v", n, err)
	}
	if !fs.Exists("b.png") {
		t.Fatalf("complete file must survive")
	}
}
