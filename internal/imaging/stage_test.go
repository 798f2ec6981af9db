package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStagePNG(t *testing.T) {
	raw := pngBytes(t)

	staged, err := Stage(bytes.NewReader(raw), 0)
	require.NoError(t, err)
	require.Equal(t, "image/png", staged.Image.MIMEType)
	require.Equal(t, base64.StdEncoding.EncodeToString(raw), staged.Image.Data)
	require.True(t, strings.HasPrefix(staged.Preview, "data:image/png;base64,"))
}

func TestStageRejectsText(t *testing.T) {
	_, err := Stage(strings.NewReader("just some text"), 0)
	require.ErrorIs(t, err, ErrNotImage)
}

func TestStageRejectsOversized(t *testing.T) {
	raw := pngBytes(t)
	_, err := Stage(bytes.NewReader(raw), int64(len(raw)-1))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestStageRejectsEmpty(t *testing.T) {
	_, err := Stage(bytes.NewReader(nil), 0)
	require.ErrorIs(t, err, ErrEmpty)
}
