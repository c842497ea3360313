package mentorship

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"mentorlink/internal/pkg/errs"
)

const (
	// MaxAttachmentSizeMB is the maximum allowed file size in megabytes.
	MaxAttachmentSizeMB = 5

	// MaxAttachmentSize is the maximum allowed file size in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024

	// MaxBodyBytes is the maximum size of a message body.
	MaxBodyBytes = 5000

	// MaxEmojiBytes bounds a reaction so it stays a single emoji sequence.
	MaxEmojiBytes = 32

	// DownloadURLDuration is how long a presigned attachment link stays valid.
	DownloadURLDuration = 5 * time.Minute
)

// ExtToMIME maps accepted file extensions to the MIME type their content must sniff as.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// ValidateFileSize checks that fileSize is positive and within MaxAttachmentSize.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// ValidateFileType checks that fileName has an accepted extension and that mimeType, with
// any parameters stripped, is the type that extension implies.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 {
		return errs.NewError(errs.ErrFileTypeNotAllowed)
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok {
		return errs.NewError(errs.ErrFileTypeNotAllowed)
	}

	base, _, _ := strings.Cut(strings.ToLower(mimeType), ";")
	if strings.TrimSpace(base) != expectedMIME {
		return errs.NewError(errs.ErrFileTypeNotAllowed)
	}

	return nil
}

// SniffMIME detects the MIME type of content from its leading bytes.
func SniffMIME(content []byte) string {
	detected := mimetype.Detect(content)

	for m := detected; m != nil; m = m.Parent() {
		base, _, _ := strings.Cut(m.String(), ";")
		for _, accepted := range ExtToMIME {
			if base == accepted {
				return base
			}
		}
	}

	base, _, _ := strings.Cut(detected.String(), ";")
	return base
}
