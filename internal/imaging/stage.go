// Package imaging turns uploaded image files into payloads for the draft.
package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes bounds an uploaded image when no limit is configured.
const DefaultMaxBytes = 5 << 20

var (
	// ErrNotImage is returned when the upload is not an image.
	ErrNotImage = errors.New("file is not an image")
	// ErrTooLarge is returned when the upload exceeds the size limit.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrEmpty is returned for zero-length uploads.
	ErrEmpty = errors.New("image is empty")
)

// Stage reads at most maxBytes from r, checks that the content is an image and
// returns it base64-encoded together with a data URL preview.
func Stage(r io.Reader, maxBytes int64) (*domain.StagedImage, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(raw)) > maxBytes {
		return nil, ErrTooLarge
	}

	mime := mimetype.Detect(raw)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mime.String())
	}

	img := domain.Image{
		MIMEType: mime.String(),
		Data:     base64.StdEncoding.EncodeToString(raw),
	}
	return &domain.StagedImage{
		Image:   img,
		Preview: img.DataURL(),
	}, nil
}
