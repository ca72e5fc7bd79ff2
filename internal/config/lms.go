package config

import (
	"fmt"
	"os"
	"time"
)

const (
	// EnvLMSBaseURL overrides the Chamilo base URL.
	EnvLMSBaseURL = "CHAMILO_URL"

	// EnvLMSUsername overrides the Chamilo account name.
	EnvLMSUsername = "CHAMILO_USER"

	// EnvLMSPassword overrides the Chamilo password.
	EnvLMSPassword = "CHAMILO_PASSWORD"

	// EnvLMSCourseCode overrides the upload target course code.
	EnvLMSCourseCode = "CHAMILO_COURSE"
)

// LMSConfig contains defaults for the Chamilo adapter. All values can be
// superseded at runtime through the settings store.
type LMSConfig struct {
	BaseURL       string `toml:"base_url"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	CourseCode    string `toml:"course_code"`
	UploadTimeout string `toml:"upload_timeout"`
}

// UploadTimeoutDuration parses and returns the upload timeout as a time.Duration.
func (c *LMSConfig) UploadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.UploadTimeout)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the LMS configuration.
func (c *LMSConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *LMSConfig) Merge(overlay *LMSConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.CourseCode != "" {
		c.CourseCode = overlay.CourseCode
	}
	if overlay.UploadTimeout != "" {
		c.UploadTimeout = overlay.UploadTimeout
	}
}

func (c *LMSConfig) loadDefaults() {
	if c.Username == "" {
		c.Username = "admin"
	}
	if c.UploadTimeout == "" {
		c.UploadTimeout = "120s"
	}
}

func (c *LMSConfig) loadEnv() {
	if v := os.Getenv(EnvLMSBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvLMSUsername); v != "" {
		c.Username = v
	}
	if v := os.Getenv(EnvLMSPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvLMSCourseCode); v != "" {
		c.CourseCode = v
	}
}

func (c *LMSConfig) validate() error {
	if _, err := time.ParseDuration(c.UploadTimeout); err != nil {
		return fmt.Errorf("invalid upload_timeout: %w", err)
	}
	return nil
}
