// Package detector turns camera frames into face detections with embeddings.
package detector

import "context"

// FaceDetection represents a single detected face.
type FaceDetection struct {
	BBox      [4]float64 // [x1, y1, x2, y2] in pixels of the submitted frame
	Embedding []float32  // raw, not necessarily unit length
	Score     float64    // detection confidence
}

// Area returns the bounding box area in square pixels.
func (d FaceDetection) Area() float64 {
	w := d.BBox[2] - d.BBox[0]
	h := d.BBox[3] - d.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detector finds faces in an encoded image (JPEG or PNG).
type Detector interface {
	DetectFaces(ctx context.Context, image []byte) ([]FaceDetection, error)
}

// Largest returns the index of the detection with the largest bounding box, or -1.
func Largest(dets []FaceDetection) int {
	best, bestArea := -1, -1.0
	for i, d := range dets {
		if a := d.Area(); a > bestArea {
			best, bestArea = i, a
		}
	}
	return best
}
