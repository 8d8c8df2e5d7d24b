package config

import "strings"

const defaultUploadMaxBytes = 10 << 20

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// UploadMaxBytes caps each uploaded document.
	UploadMaxBytes int64 `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if strings.TrimSpace(h.Addr) == "" {
		h.Addr = ":8080"
	}
	if h.UploadMaxBytes <= 0 {
		h.UploadMaxBytes = defaultUploadMaxBytes
	}
}

// StorageConfig controls where uploaded documents are kept.
type StorageConfig struct {
	UploadDir string `env:"STORAGE_UPLOAD_DIR" envDefault:"uploads"`
}

// Sanitize applies guardrails to storage values.
func (s *StorageConfig) Sanitize() {
	s.UploadDir = strings.TrimSpace(s.UploadDir)
	if s.UploadDir == "" {
		s.UploadDir = "uploads"
	}
}
