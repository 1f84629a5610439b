package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetectFaces(t *testing.T) {
	var gotMIME string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = io.ReadAll(file)
		gotMIME = header.Header.Get("Content-Type")

		_ = json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 2,
			Faces: []faceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 0, 0}, BBox: []float64{10, 10, 20, 20}, DetScore: 0.9},
				{FaceIndex: 1, Dim: 3, Embedding: nil, BBox: []float64{0, 0, 5, 5}, DetScore: 0.5},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", 32)
	dets, err := c.DetectFaces(context.Background(), testJPEG(t, 64, 32))
	if err != nil {
		t.Fatal(err)
	}
	if gotMIME != "image/jpeg" {
		t.Errorf("uploaded content type = %q", gotMIME)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1 (empty embedding dropped)", len(dets))
	}
	// The frame was downscaled by 0.5, so boxes come back doubled.
	if dets[0].BBox != [4]float64{20, 20, 40, 40} {
		t.Errorf("BBox = %v, want [20 20 40 40]", dets[0].BBox)
	}
}

func TestDetectFacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, 0)
	if _, err := c.DetectFaces(context.Background(), testJPEG(t, 8, 8)); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestResizeImage(t *testing.T) {
	tests := []struct {
		name      string
		w, h      int
		maxSize   int
		wantW     int
		wantH     int
		wantScale float64
	}{
		{"no resize", 40, 20, 64, 40, 20, 1},
		{"landscape", 200, 100, 50, 50, 25, 0.25},
		{"portrait", 100, 200, 100, 50, 100, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, scale, err := ResizeImage(testJPEG(t, tt.w, tt.h), tt.maxSize)
			if err != nil {
				t.Fatal(err)
			}
			if scale != tt.wantScale {
				t.Errorf("scale = %f, want %f", scale, tt.wantScale)
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestLargest(t *testing.T) {
	dets := []FaceDetection{
		{BBox: [4]float64{0, 0, 10, 10}},
		{BBox: [4]float64{0, 0, 30, 30}},
		{BBox: [4]float64{5, 5, 1, 1}},
	}
	if got := Largest(dets); got != 1 {
		t.Errorf("Largest() = %d, want 1", got)
	}
	if got := Largest(nil); got != -1 {
		t.Errorf("Largest(nil) = %d, want -1", got)
	}
}
