package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"FACE_THRESHOLD", "FACE_MIN_STABLE_FRAMES", "FACE_DECISION_TIMEOUT", "CAMERA_INDEX", "CAMERA_URLS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Face.Threshold != 0.65 {
		t.Errorf("Face.Threshold = %f, want 0.65", cfg.Face.Threshold)
	}
	if cfg.Face.MinStableFrames != 3 || cfg.Face.RetryMinStableFrames != 2 {
		t.Errorf("stable frames = %d/%d, want 3/2", cfg.Face.MinStableFrames, cfg.Face.RetryMinStableFrames)
	}
	if cfg.Face.DecisionTimeout != 8*time.Second {
		t.Errorf("Face.DecisionTimeout = %v, want 8s", cfg.Face.DecisionTimeout)
	}
	if cfg.Camera.Index != 0 || cfg.Camera.URLs != nil {
		t.Errorf("Camera = %+v, want zero index and no urls", cfg.Camera)
	}
	if len(cfg.Policy.ConfidentialFields) == 0 {
		t.Error("embedded policy has no confidential fields")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FACE_THRESHOLD", "0.6")
	t.Setenv("FACE_DECISION_TIMEOUT", "5")
	t.Setenv("ENROLL_CAPTURE_WINDOW", "1500ms")
	t.Setenv("CAMERA_INDEX", "1")
	t.Setenv("CAMERA_URLS", "http://cam0/snap.jpg, ,http://cam1/snap.jpg")

	cfg := Load()

	if cfg.Face.Threshold != 0.6 {
		t.Errorf("Face.Threshold = %f, want 0.6", cfg.Face.Threshold)
	}
	if cfg.Face.DecisionTimeout != 5*time.Second {
		t.Errorf("Face.DecisionTimeout = %v, want 5s", cfg.Face.DecisionTimeout)
	}
	if cfg.Enroll.CaptureWindow != 1500*time.Millisecond {
		t.Errorf("Enroll.CaptureWindow = %v, want 1.5s", cfg.Enroll.CaptureWindow)
	}
	if cfg.Camera.Index != 1 || len(cfg.Camera.URLs) != 2 {
		t.Errorf("Camera = %+v", cfg.Camera)
	}
}

func TestEnvFloatRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"0.7", 0.7},
		{"1.5", 0.65},
		{"-0.1", 0.65},
		{"abc", 0.65},
		{"", 0.65},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_FLOAT", tt.value)
			if got := envFloat("TEST_FLOAT", 0.65); got != tt.want {
				t.Errorf("envFloat(%q) = %f, want %f", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsConfidential(t *testing.T) {
	p := PolicyConfig{ConfidentialFields: []string{"salary", "bank_account", "pin"}}

	tests := []struct {
		field string
		want  bool
	}{
		{"Salary", true},
		{"base_salary", true},
		{"Bank_Account", true},
		{"PIN", true},
		{"Department", false},
		{"Email", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if got := p.IsConfidential(tt.field); got != tt.want {
				t.Errorf("IsConfidential(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}
