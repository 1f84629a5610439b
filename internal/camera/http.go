package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxSnapshotBytes bounds a single snapshot download.
const maxSnapshotBytes = 16 << 20

// HTTPOpener opens network cameras that serve a JPEG snapshot per GET request.
// The device index selects the URL.
type HTTPOpener struct {
	URLs   []string
	Client *http.Client
}

// NewHTTPOpener creates an opener for the given snapshot URLs.
func NewHTTPOpener(urls []string) *HTTPOpener {
	return &HTTPOpener{URLs: urls, Client: &http.Client{Timeout: 5 * time.Second}}
}

// Open checks that the camera answers and returns a device reading from it.
func (o *HTTPOpener) Open(ctx context.Context, index int) (Device, error) {
	if index < 0 || index >= len(o.URLs) {
		return nil, fmt.Errorf("no camera URL configured for index %d", index)
	}
	d := &httpDevice{url: o.URLs[index], client: o.Client}
	// One snapshot proves the camera is reachable before the lease is granted.
	if _, err := d.ReadFrame(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

type httpDevice struct {
	url    string
	client *http.Client
	seq    int
}

func (d *httpDevice) ReadFrame(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("snapshot error (status %d)", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("empty snapshot")
	}

	d.seq++
	return Frame{Data: data, CapturedAt: time.Now(), Seq: d.seq}, nil
}

func (d *httpDevice) Release() error {
	d.client.CloseIdleConnections()
	return nil
}
