package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"strings"

	"vibefeed/internal/models"
	"vibefeed/internal/observability"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// AvatarMaxBytes is the fixed ceiling for profile pictures.
	AvatarMaxBytes = 5 * 1024 * 1024

	PurposeAvatar = "avatar"
	PurposePost   = "post"
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var videoTypes = map[string]string{
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// File is an uploaded file held in memory.
type File struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Media is a validated file ready to be stored.
type Media struct {
	Kind        models.PostType
	ContentType string
	Ext         string
	Content     []byte
}

func normalizeContentType(raw string) string {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mt = raw
	}
	mt = strings.ToLower(strings.TrimSpace(mt))
	if mt == "image/jpg" || mt == "image/pjpeg" {
		return "image/jpeg"
	}
	return mt
}

func sniff(content []byte) string {
	return normalizeContentType(http.DetectContentType(content))
}

func checkSize(f File, maxBytes int64) error {
	if len(f.Content) == 0 {
		return models.NewValidationError("No file uploaded")
	}
	if int64(len(f.Content)) > maxBytes {
		return models.NewValidationError("File too large.")
	}
	return nil
}

// validateImage requires the declared and sniffed types to agree on an
// allowed image type and the header to decode.
func validateImage(f File, declared string) (Media, error) {
	if _, ok := imageTypes[declared]; !ok {
		return Media{}, models.NewValidationError("Only image files are allowed (jpeg, png, gif, webp)")
	}
	detected := sniff(f.Content)
	if _, ok := imageTypes[detected]; !ok {
		return Media{}, models.NewValidationError("Invalid image type")
	}
	if detected != declared {
		return Media{}, models.NewValidationError("Image content type mismatch")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(f.Content)); err != nil {
		return Media{}, models.NewValidationError("Invalid image file")
	}
	return Media{Kind: models.PostTypeImage, ContentType: detected, Ext: imageTypes[detected], Content: f.Content}, nil
}

// ValidateAvatar accepts only jpeg, png, gif and webp images up to AvatarMaxBytes.
func ValidateAvatar(f File) (Media, error) {
	if err := checkSize(f, AvatarMaxBytes); err != nil {
		return Media{}, err
	}
	return validateImage(f, normalizeContentType(f.ContentType))
}

// ValidatePostMedia accepts an image or a video and infers the post type from
// the content type prefix.
func ValidatePostMedia(f File, maxBytes int64) (Media, error) {
	if err := checkSize(f, maxBytes); err != nil {
		return Media{}, err
	}

	declared := normalizeContentType(f.ContentType)
	switch {
	case strings.HasPrefix(declared, "image/"):
		return validateImage(f, declared)
	case strings.HasPrefix(declared, "video/"):
		ext, ok := videoTypes[declared]
		if !ok {
			return Media{}, models.NewValidationError("Unsupported video type (mp4, webm, quicktime)")
		}
		detected := sniff(f.Content)
		// QuickTime has no sniffing signature
		if !strings.HasPrefix(detected, "video/") &&
			(declared != "video/quicktime" || detected != "application/octet-stream") {
			return Media{}, models.NewValidationError("Media content type mismatch")
		}
		return Media{Kind: models.PostTypeVideo, ContentType: declared, Ext: ext, Content: f.Content}, nil
	default:
		return Media{}, models.NewValidationError("Only image or video files are allowed")
	}
}

// Uploader names and stores media that already passed validation.
type Uploader struct {
	store Store
}

func NewUploader(store Store) *Uploader {
	return &Uploader{store: store}
}

// Store writes m under purpose/<uuid><ext> and returns its URL.
func (u *Uploader) Store(ctx context.Context, purpose string, m Media) (string, error) {
	key := fmt.Sprintf("%ss/%s%s", purpose, uuid.NewString(), m.Ext)
	url, err := u.store.Put(ctx, key, bytes.NewReader(m.Content), int64(len(m.Content)), m.ContentType)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	observability.UploadsStored.WithLabelValues(u.store.Backend(), purpose).Inc()
	return url, nil
}
