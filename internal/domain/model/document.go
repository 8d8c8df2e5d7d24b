package model

import "fmt"

// DocumentKind identifies one of the two documents uploaded per candidate.
type DocumentKind string

const (
	// DocumentCV is the candidate's curriculum vitae.
	DocumentCV DocumentKind = "cv"
	// DocumentProjectReport is the candidate's project report.
	DocumentProjectReport DocumentKind = "pr"
)

// FileName returns the stored file name for a correlation id, e.g. cv-<id>.pdf.
func (k DocumentKind) FileName(correlationID string) string {
	return fmt.Sprintf("%s-%s.pdf", k, correlationID)
}

// ParsedDocuments holds extracted text for both candidate documents.
type ParsedDocuments struct {
	CV            string
	ProjectReport string
}

// UploadResult describes a stored document pair.
type UploadResult struct {
	CV            string `json:"cv"`
	ProjectReport string `json:"projectReport"`
	UUID          string `json:"uuid"`
}
