package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/frontdesk/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Camera     CameraConfig
	Face       FaceConfig
	Embedding  EmbeddingConfig
	Records    RecordsConfig
	Database   DatabaseConfig
	HRDatabase DatabaseConfig
	SMTP       SMTPConfig
	OTP        OTPConfig
	Enroll     EnrollConfig
	Web        WebConfig
	Greeting   GreetingConfig
	Policy     PolicyConfig
}

type CameraConfig struct {
	Index     int      // device index, selects an entry of URLs
	URLs      []string // HTTP snapshot endpoints, one per device index
	ReplayDir string   // directory of frames replayed instead of a live camera
}

type FaceConfig struct {
	Threshold            float64
	MinStableFrames      int
	RetryMinStableFrames int
	UnknownStableFrames  int
	DecisionTimeout      time.Duration
	EmbeddingsPath       string
	EmbeddingsBackend    string // file or postgres
	PhotosDir            string // reference photos, <ID>.jpg or <ID>.png
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512
}

type RecordsConfig struct {
	Backend      string // csv, postgres or mariadb
	EmployeeCSV  string
	VisitorLog   string
	CandidateCSV string // interview list, always read from CSV
}

type DatabaseConfig struct {
	URL          string // connection URL or DSN
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether outgoing mail is configured.
func (c *SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type OTPConfig struct {
	MaxAttempts       int
	RequestsPerMinute int
}

type EnrollConfig struct {
	CaptureAttempts int
	CaptureWindow   time.Duration
}

type WebConfig struct {
	Host           string
	Port           int
	APIToken       string   // bearer token required on /api/v1 when set
	AllowedOrigins []string // CORS origins besides localhost
}

type GreetingConfig struct {
	Cooldown time.Duration
}

// PolicyConfig is loaded from the embedded policy.yaml.
type PolicyConfig struct {
	ConfidentialFields []string `yaml:"confidential_fields"`
}

// IsConfidential reports whether a record field must be withheld.
func (p *PolicyConfig) IsConfidential(field string) bool {
	f := strings.ToLower(field)
	for _, key := range p.ConfidentialFields {
		if strings.Contains(f, key) {
			return true
		}
	}
	return false
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in [0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envDuration accepts Go durations ("8s") or plain seconds ("8").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		return time.Duration(n * float64(time.Second))
	}
	return defaultVal
}

// envList splits a comma separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var policy PolicyConfig
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	// CAMERA_INDEX may legitimately be 0, which envInt treats as invalid.
	cameraIndex := 0
	if n, err := strconv.Atoi(os.Getenv("CAMERA_INDEX")); err == nil && n >= 0 {
		cameraIndex = n
	}

	return &Config{
		Camera: CameraConfig{
			Index:     cameraIndex,
			URLs:      envList("CAMERA_URLS"),
			ReplayDir: os.Getenv("CAMERA_REPLAY_DIR"),
		},
		Face: FaceConfig{
			Threshold:            envFloat("FACE_THRESHOLD", constants.DefaultMatchThreshold),
			MinStableFrames:      envInt("FACE_MIN_STABLE_FRAMES", constants.MinStableFrames),
			RetryMinStableFrames: envInt("FACE_RETRY_MIN_STABLE_FRAMES", constants.RetryMinStableFrames),
			UnknownStableFrames:  envInt("FACE_UNKNOWN_STABLE_FRAMES", constants.UnknownStableFrames),
			DecisionTimeout:      envDuration("FACE_DECISION_TIMEOUT", constants.DecisionTimeout),
			EmbeddingsPath:       envString("FACE_EMBEDDINGS_PATH", "data/embeddings.msgpack"),
			EmbeddingsBackend:    envString("EMBEDDINGS_BACKEND", "file"),
			PhotosDir:            envString("FACE_PHOTOS_DIR", "data/photos"),
		},
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim: envInt("EMBEDDING_DIM", constants.FaceEmbeddingDim),
		},
		Records: RecordsConfig{
			Backend:      envString("RECORDS_BACKEND", "csv"),
			EmployeeCSV:  envString("EMPLOYEE_CSV", "data/employees.csv"),
			VisitorLog:   envString("VISITOR_LOG", "data/visitors.csv"),
			CandidateCSV: envString("CANDIDATE_CSV", "data/candidate_interview.csv"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		HRDatabase: DatabaseConfig{
			URL:          os.Getenv("HR_DATABASE_URL"),
			MaxOpenConns: envInt("HR_DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("HR_DATABASE_MAX_IDLE_CONNS", 2),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		OTP: OTPConfig{
			MaxAttempts:       envInt("OTP_MAX_ATTEMPTS", constants.MaxOTPAttempts),
			RequestsPerMinute: envInt("OTP_REQUESTS_PER_MINUTE", constants.OTPRequestsPerMinute),
		},
		Enroll: EnrollConfig{
			CaptureAttempts: envInt("ENROLL_CAPTURE_ATTEMPTS", constants.EnrollCaptureAttempts),
			CaptureWindow:   envDuration("ENROLL_CAPTURE_WINDOW", constants.EnrollCaptureWindow),
		},
		Web: WebConfig{
			Host:     envString("WEB_HOST", "0.0.0.0"),
			Port:     envInt("WEB_PORT", 8085),
			APIToken: os.Getenv("API_TOKEN"),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Greeting: GreetingConfig{
			Cooldown: envDuration("GREETING_COOLDOWN", constants.GreetingCooldown),
		},
		Policy: policy,
	}
}
