// Package photo handles visit photos: inline data URLs, type checks,
// size limits, compression and object names.
package photo

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxOriginalBytes is the largest photo accepted at capture.
	MaxOriginalBytes = 5 << 20
	// MaxUploadBytes is the largest photo sent to object storage.
	MaxUploadBytes = 1 << 20
)

// Accepted MIME types.
const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	WebP = "image/webp"
)

var (
	// ErrTooLarge is returned for originals above MaxOriginalBytes.
	ErrTooLarge = errors.New("photo exceeds 5MB")
	// ErrUnsupportedType is returned for anything but JPEG, PNG or WebP.
	ErrUnsupportedType = errors.New("photo must be JPEG, PNG or WebP")
	// ErrNotDataURL is returned when decoding a reference that is not an inline payload.
	ErrNotDataURL = errors.New("not a base64 data URL")
)

var extensions = map[string]string{
	JPEG: "jpg",
	PNG:  "png",
	WebP: "webp",
}

// Detect sniffs the MIME type of data and reports whether it is accepted.
func Detect(data []byte) (string, bool) {
	m := mimetype.Detect(data)
	for _, accepted := range []string{JPEG, PNG, WebP} {
		if m.Is(accepted) {
			return accepted, true
		}
	}
	return m.String(), false
}

// IsRemote reports whether a photo reference is already an http(s) URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http")
}

// EncodeDataURL builds a data:<mime>;base64, reference.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a data URL into its MIME type and bytes.
func DecodeDataURL(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrNotDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding photo payload: %w", err)
	}
	if mime == "" {
		mime, _ = Detect(data)
	}
	return mime, data, nil
}

// Prepare checks a captured photo and returns it ready to keep inline:
// compressed to MaxUploadBytes when needed, with its MIME type.
func Prepare(data []byte) (string, []byte, error) {
	if len(data) > MaxOriginalBytes {
		return "", nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, len(data))
	}
	mime, ok := Detect(data)
	if !ok {
		return "", nil, fmt.Errorf("%w, got %s", ErrUnsupportedType, mime)
	}
	return Compress(data, mime, MaxUploadBytes)
}

// FileName returns the object name for a photo taken at now:
// {unixMillis}_{random}.{ext}.
func FileName(now time.Time, mime string) string {
	ext, ok := extensions[mime]
	if !ok {
		ext = "jpg"
	}
	return fmt.Sprintf("%d_%s.%s", now.UnixMilli(), randomSuffix(), ext)
}

// ObjectPath returns the storage path of a photo belonging to a remote visit.
func ObjectPath(visitID, name string) string {
	return path.Join("visits", visitID, "photos", name)
}

// Extension returns the file extension for an accepted MIME type.
func Extension(mime string) (string, bool) {
	ext, ok := extensions[mime]
	return ext, ok
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(b)
}
