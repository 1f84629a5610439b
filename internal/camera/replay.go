package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DirOpener replays the images of a directory in name order as camera frames.
type DirOpener struct {
	Dir      string
	Interval time.Duration // delay between frames, 0 for none
	Loop     bool          // restart at the first image instead of returning io.EOF
}

// Open lists the images of the directory. The index is ignored.
func (o *DirOpener) Open(ctx context.Context, index int) (Device, error) {
	entries, err := os.ReadDir(o.Dir)
	if err != nil {
		return nil, fmt.Errorf("read replay directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(o.Dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images in replay directory %s", o.Dir)
	}
	slices.Sort(files)
	return &replayDevice{files: files, interval: o.Interval, loop: o.Loop}, nil
}

type replayDevice struct {
	files    []string
	next     int
	seq      int
	interval time.Duration
	loop     bool
}

func (d *replayDevice) ReadFrame(ctx context.Context) (Frame, error) {
	if d.next >= len(d.files) {
		if !d.loop {
			return Frame{}, io.EOF
		}
		d.next = 0
	}
	if d.interval > 0 && d.seq > 0 {
		t := time.NewTimer(d.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return Frame{}, ctx.Err()
		case <-t.C:
		}
	}

	path := d.files[d.next]
	d.next++
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return Frame{}, fmt.Errorf("read frame %s: %w", path, err)
	}
	d.seq++
	return Frame{Data: data, CapturedAt: time.Now(), Seq: d.seq}, nil
}

func (d *replayDevice) Release() error { return nil }
