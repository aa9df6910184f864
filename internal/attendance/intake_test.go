package attendance

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeAcceptsSmallPNGUnchanged(t *testing.T) {
	raw := pngBytes(t, 10, 6)
	in := Intake{MaxBytes: 1 << 20, MaxDimension: 64, now: func() time.Time { return testNow }}

	photos, rejected := in.Process([]Upload{{Name: "a.png", Data: raw}})

	require.Empty(t, rejected)
	require.Len(t, photos, 1)
	p := photos[0]
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "a.png", p.Name)
	assert.Equal(t, "image/png", p.ContentType)
	assert.Equal(t, int64(len(raw)), p.Size)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(raw), p.Data)
	assert.Equal(t, testNow, p.UploadedAt)
	assert.False(t, p.Captured)
}

func TestIntakeDownscalesLargeImages(t *testing.T) {
	in := Intake{MaxDimension: 32}

	photos, rejected := in.Process([]Upload{{Name: "wide.png", Data: pngBytes(t, 128, 64)}})

	require.Empty(t, rejected)
	require.Len(t, photos, 1)
	assert.Equal(t, "image/jpeg", photos[0].ContentType)
	require.True(t, strings.HasPrefix(photos[0].Data, "data:image/jpeg;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(photos[0].Data, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
}

func TestIntakeDecodesEncodedPayloads(t *testing.T) {
	raw := pngBytes(t, 4, 4)
	encoded := base64.StdEncoding.EncodeToString(raw)
	in := Intake{}

	photos, rejected := in.Process([]Upload{
		{Encoded: "data:image/png;base64," + encoded},
		{Name: "bare", Encoded: encoded},
		{Name: "garbage", Encoded: "!!!not base64!!!"},
	})

	require.Len(t, photos, 2)
	assert.Equal(t, "photo-1", photos[0].Name)
	assert.Equal(t, "bare", photos[1].Name)
	require.Len(t, rejected, 1)
	assert.Equal(t, "garbage", rejected[0].Name)
	assert.Equal(t, "invalid base64 payload", rejected[0].Reason)
}

func TestIntakeRejections(t *testing.T) {
	in := Intake{MaxBytes: 32}
	big := pngBytes(t, 40, 40)
	require.Greater(t, len(big), 32)

	photos, rejected := in.Process([]Upload{
		{Name: "empty.png"},
		{Name: "big.png", Data: big},
		{Name: "doc.pdf", Data: []byte("%PDF-1.4 hello")},
	})

	assert.Empty(t, photos)
	require.Len(t, rejected, 3)
	assert.Equal(t, "empty file", rejected[0].Reason)
	assert.Contains(t, rejected[1].Reason, "exceeds 32 bytes")
	assert.Contains(t, rejected[2].Reason, "not an image")
}

func TestDecodeBase64MalformedDataURL(t *testing.T) {
	_, err := decodeBase64("data:image/png;base64")
	assert.EqualError(t, err, "malformed data URL")
}

func TestIntakeRejectsOversizedPixelCountBeforeDecoding(t *testing.T) {
	in := Intake{MaxPixels: 500}

	photos, rejected := in.Process([]Upload{
		{Name: "huge.png", Data: pngBytes(t, 40, 20)},
		{Name: "ok.png", Data: pngBytes(t, 20, 20)},
	})

	require.Len(t, photos, 1)
	assert.Equal(t, "ok.png", photos[0].Name)
	require.Len(t, rejected, 1)
	assert.Equal(t, "huge.png", rejected[0].Name)
	assert.Equal(t, "image is 40x20, over the 500 pixel limit", rejected[0].Reason)
}

func TestIntakeDefaultPixelLimit(t *testing.T) {
	assert.Equal(t, int64(50_000_000), int64(DefaultMaxPixels))

	photos, rejected := Intake{}.Process([]Upload{{Name: "a.png", Data: pngBytes(t, 10, 10)}})
	assert.Len(t, photos, 1)
	assert.Empty(t, rejected)
}
