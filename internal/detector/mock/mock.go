// Package mock provides a scripted face detector for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/frontdesk/internal/detector"
)

// MockDetector returns detections registered for exact frame contents.
// Unregistered frames contain no faces.
type MockDetector struct {
	mu    sync.Mutex
	faces map[string][]detector.FaceDetection
	errs  map[string]error
	calls int
}

// NewMockDetector creates an empty mock detector.
func NewMockDetector() *MockDetector {
	return &MockDetector{
		faces: make(map[string][]detector.FaceDetection),
		errs:  make(map[string]error),
	}
}

// On registers the detections returned for frame.
func (m *MockDetector) On(frame []byte, faces ...detector.FaceDetection) *MockDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces[string(frame)] = faces
	return m
}

// FailOn makes detection of frame fail with err.
func (m *MockDetector) FailOn(frame []byte, err error) *MockDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[string(frame)] = err
	return m
}

// DetectFaces returns the registered detections for image.
func (m *MockDetector) DetectFaces(ctx context.Context, image []byte) ([]detector.FaceDetection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.errs[string(image)]; err != nil {
		return nil, err
	}
	return m.faces[string(image)], nil
}

// Calls returns the number of DetectFaces calls.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Face builds a detection with the given embedding and a 100x100 box.
func Face(embedding ...float32) detector.FaceDetection {
	return detector.FaceDetection{
		BBox:      [4]float64{0, 0, 100, 100},
		Embedding: embedding,
		Score:     0.99,
	}
}
