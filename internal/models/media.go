package models

import (
	"strings"
	"time"
)

// MediaCategory is the coarse kind of an uploaded file
type MediaCategory string

// Accepted media categories
const (
	MediaImage    MediaCategory = "image"
	MediaVideo    MediaCategory = "video"
	MediaAudio    MediaCategory = "audio"
	MediaDocument MediaCategory = "document"
)

var documentMIMETypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/rtf": true,
	"text/plain":      true,
}

// MediaCategoryForMIME maps a detected MIME type to a category.
// ok is false for types intake does not accept.
func MediaCategoryForMIME(mimeType string) (MediaCategory, bool) {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(base, "image/"):
		return MediaImage, true
	case strings.HasPrefix(base, "video/"):
		return MediaVideo, true
	case strings.HasPrefix(base, "audio/"):
		return MediaAudio, true
	case documentMIMETypes[base]:
		return MediaDocument, true
	}
	return "", false
}

// MediaAttachment is one stored file belonging to a report
type MediaAttachment struct {
	ID           string        `json:"id" db:"id"`
	ReportID     string        `json:"reportId" db:"report_id"`
	Category     MediaCategory `json:"category" db:"category"`
	FilePath     string        `json:"filePath" db:"file_path"`
	OriginalName string        `json:"originalName" db:"original_name"`
	MIMEType     string        `json:"mimeType" db:"mime_type"`
	SizeBytes    int64         `json:"sizeBytes" db:"size_bytes"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
}
