package services

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"safereport/internal/config"
	"safereport/internal/models"
	contextutils "safereport/internal/utils"

	"github.com/gabriel-vasile/mimetype"
)

// MediaUpload is one file part of a submission. Open may be called more than once.
type MediaUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// preparedMedia is an upload whose content type has been sniffed and accepted
type preparedMedia struct {
	upload   MediaUpload
	mimeType string
	category models.MediaCategory
}

// ValidateSubmission checks a submission against the intake rules, collecting every
// field problem into one VALIDATION_FAILED error. An oversized file fails fast with
// PAYLOAD_TOO_LARGE. The description is trimmed in place.
func ValidateSubmission(sub *models.ReportSubmission, media []MediaUpload, cfg config.IntakeConfig) ([]preparedMedia, error) {
	if sub == nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "missing report submission")
	}

	if oversized := oversizedMedia(media, cfg.MaxMediaBytes); len(oversized) > 0 {
		appErr := contextutils.NewAppError(contextutils.ErrorCodePayloadTooLarge, contextutils.SeverityWarn,
			"Media file too large", fmt.Sprintf("each file must be at most %d bytes", cfg.MaxMediaBytes))
		appErr.Fields = oversized
		return nil, appErr
	}

	sub.Description = strings.TrimSpace(sub.Description)
	if sub.IsAnonymous {
		sub.ContactInfo = nil
	}

	fields := map[string]string{}
	if appErr := contextutils.ValidateStruct(sub); appErr != nil {
		if appErr.Fields == nil {
			return nil, appErr
		}
		for name, reason := range appErr.Fields {
			fields[name] = reason
		}
	}

	descLen := utf8.RuneCountInString(sub.Description)
	switch {
	case descLen == 0:
		fields["description"] = "is required"
	case descLen < cfg.MinDescriptionLength:
		fields["description"] = fmt.Sprintf("must be at least %d characters", cfg.MinDescriptionLength)
	case descLen > cfg.MaxDescriptionLength:
		fields["description"] = fmt.Sprintf("must be at most %d characters", cfg.MaxDescriptionLength)
	}

	if !sub.IsAnonymous && sub.ContactInfo == nil {
		fields["contactInfo"] = "is required unless the report is anonymous"
	}

	if len(media) > cfg.MaxMediaFiles {
		fields["media"] = fmt.Sprintf("at most %d files are allowed", cfg.MaxMediaFiles)
	}

	prepared := make([]preparedMedia, 0, len(media))
	if len(media) <= cfg.MaxMediaFiles {
		for i, upload := range media {
			key := fmt.Sprintf("media[%d]", i)
			if upload.Size <= 0 {
				fields[key] = "is empty"
				continue
			}
			p, reason := sniffMedia(upload)
			if reason != "" {
				fields[key] = reason
				continue
			}
			prepared = append(prepared, p)
		}
	}

	if len(fields) > 0 {
		return nil, contextutils.NewValidationError(fields)
	}
	return prepared, nil
}

func oversizedMedia(media []MediaUpload, limit int64) map[string]string {
	fields := map[string]string{}
	for i, upload := range media {
		if upload.Size > limit {
			fields[fmt.Sprintf("media[%d]", i)] = fmt.Sprintf("%s is %d bytes, the limit is %d", upload.Filename, upload.Size, limit)
		}
	}
	return fields
}

// sniffMedia detects the real content type from the file bytes; the client's declared type is ignored
func sniffMedia(upload MediaUpload) (preparedMedia, string) {
	if upload.Open == nil {
		return preparedMedia{}, "could not be read"
	}
	f, err := upload.Open()
	if err != nil {
		return preparedMedia{}, "could not be read"
	}
	defer func() { _ = f.Close() }()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return preparedMedia{}, "could not be read"
	}

	category, ok := models.MediaCategoryForMIME(mtype.String())
	if !ok {
		return preparedMedia{}, "unsupported file type " + mtype.String()
	}
	return preparedMedia{upload: upload, mimeType: mtype.String(), category: category}, ""
}
