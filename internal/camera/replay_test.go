package camera

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDirOpenerReplaysInOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.jpg", "001.jpg", "notes.txt", "003.PNG"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	dev, err := (&DirOpener{Dir: dir}).Open(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Release()

	for _, want := range []string{"001.jpg", "002.jpg", "003.PNG"} {
		f, err := dev.ReadFrame(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if string(f.Data) != want {
			t.Errorf("frame = %q, want %q", f.Data, want)
		}
	}
	if _, err := dev.ReadFrame(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("error after last frame = %v, want io.EOF", err)
	}
}

func TestDirOpenerLoopAndEmpty(t *testing.T) {
	dir := t.TempDir()
	if _, err := (&DirOpener{Dir: dir}).Open(context.Background(), 0); err == nil {
		t.Error("expected error for empty directory")
	}

	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("a"), 0o600); err != nil {
		t.Fatal(err)
	}
	dev, err := (&DirOpener{Dir: dir, Loop: true}).Open(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if _, err := dev.ReadFrame(context.Background()); err != nil {
			t.Fatalf("looping device returned %v", err)
		}
	}
}

func TestHTTPOpener(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snap.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
	defer server.Close()

	o := NewHTTPOpener([]string{server.URL + "/missing.jpg", server.URL + "/snap.jpg"})

	if _, err := o.Open(context.Background(), 0); err == nil {
		t.Error("expected error for camera answering 404")
	}
	if _, err := o.Open(context.Background(), 5); err == nil {
		t.Error("expected error for unconfigured index")
	}

	dev, err := o.Open(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Release()
	f, err := dev.ReadFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Data) != 4 || f.Seq != 2 {
		t.Errorf("frame = %+v, want 4 bytes with seq 2", f)
	}
}
