// Package media handles profile images: upload checks, storage object keys,
// inline data URIs and normalizing whatever is stored in profile_url into
// something a browser can render.
package media

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"mime"
	"net/http"
	"path"
	"strings"
)

var (
	ErrImageTooLarge    = errors.New("Image size must be less than 5MB")
	ErrUnsupportedImage = errors.New("Only JPG, JPEG, PNG, GIF and WEBP images are allowed")
	ErrEmptyImage       = errors.New("Please select an image to upload")
)

// MaxImageSize is the largest accepted upload (5 MB).
const MaxImageSize = 5 * 1024 * 1024

// DefaultMIME prefixes stored values that are bare base64 payloads.
const DefaultMIME = "image/jpeg"

// Placeholder is rendered when no profile image is stored.
const Placeholder = "/images/avatar-placeholder.png"

// AllowedExtensions lists the image formats accepted by the storage bucket.
var AllowedExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Image is an uploaded file.
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Ext returns the lower-cased file extension without the dot.
func (img Image) Ext() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(img.FileName), "."))
}

// MIME returns the declared content type, falling back to the extension and
// then to sniffing the bytes.
func (img Image) MIME() string {
	if img.ContentType != "" && img.ContentType != "application/octet-stream" {
		return img.ContentType
	}
	if t, ok := AllowedExtensions[img.Ext()]; ok {
		return t
	}
	if t := mime.TypeByExtension("." + img.Ext()); t != "" {
		return t
	}
	return http.DetectContentType(img.Data)
}

// CheckSize rejects empty and oversized images. It runs before any storage
// call so a rejected upload never touches the stored image.
func CheckSize(img Image) error {
	if len(img.Data) == 0 {
		return ErrEmptyImage
	}
	if len(img.Data) > MaxImageSize {
		return ErrImageTooLarge
	}
	return nil
}

// CheckBucketImage applies the bucket rules: size, extension, and content
// that sniffs as an image.
func CheckBucketImage(img Image) error {
	if err := CheckSize(img); err != nil {
		return err
	}
	if _, ok := AllowedExtensions[img.Ext()]; !ok {
		return ErrUnsupportedImage
	}
	if !strings.HasPrefix(http.DetectContentType(img.Data), "image/") {
		return ErrUnsupportedImage
	}
	return nil
}

// BucketMIME is the content type stored with a bucket object. It comes from
// the extension, never from the client.
func (img Image) BucketMIME() string {
	return AllowedExtensions[img.Ext()]
}

// ObjectKey builds the storage key {folder}/{id}-{random}.{ext}.
func ObjectKey(folder, id, ext string) string {
	return fmt.Sprintf("%s/%s-%s.%s", folder, id, randomSuffix(), strings.ToLower(ext))
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix() string {
	b := make([]byte, 10)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(int64(i))
		}
		b[i] = suffixAlphabet[n.Int64()]
	}
	return string(b)
}

// DataURI encodes the image inline.
func DataURI(img Image) string {
	return "data:" + img.MIME() + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DisplaySource turns a stored profile_url into a renderable source. Data
// URIs and absolute URLs pass through, bare base64 gets the default image
// MIME prefix, and empty values fall back to the placeholder.
func DisplaySource(stored string) string {
	s := strings.TrimSpace(stored)
	switch {
	case s == "":
		return Placeholder
	case strings.HasPrefix(s, "data:"):
		return s
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return s
	default:
		return "data:" + DefaultMIME + ";base64," + s
	}
}

// Strategy stores an image for an entity and returns the value to keep in
// its profile_url column.
type Strategy interface {
	Store(ctx context.Context, folder, id string, img Image) (string, error)
	// Release drops a previously stored value. Implementations ignore values
	// they did not produce.
	Release(ctx context.Context, stored string) error
}

// Inline keeps the image in the row itself as a data URI.
type Inline struct{}

func (Inline) Store(_ context.Context, _, _ string, img Image) (string, error) {
	if err := CheckSize(img); err != nil {
		return "", err
	}
	if !strings.HasPrefix(img.MIME(), "image/") {
		return "", ErrUnsupportedImage
	}
	return DataURI(img), nil
}

func (Inline) Release(context.Context, string) error { return nil }
