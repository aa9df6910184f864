package attendance

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"markr/internal/roster"
)

// Upload is one file submitted for intake: raw bytes from a multipart form
// or a base64 / data URL string from a JSON body.
type Upload struct {
	Name    string
	Data    []byte
	Encoded string
}

// Rejection names a file that could not be accepted and why.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// DefaultMaxPixels caps the decoded size of one photo (50 megapixels).
const DefaultMaxPixels = 50_000_000

// Intake turns uploads into photos ready for capture. MaxPixels bounds
// width*height and is checked from the image header before the full
// decode; zero means DefaultMaxPixels.
type Intake struct {
	MaxBytes     int64
	MaxDimension int
	MaxPixels    int64
	now          func() time.Time
}

// Process decodes every upload independently. A bad file is rejected on its
// own and never fails the rest of the batch.
func (in Intake) Process(uploads []Upload) ([]roster.Photo, []Rejection) {
	now := time.Now
	if in.now != nil {
		now = in.now
	}

	var (
		photos   []roster.Photo
		rejected []Rejection
	)
	for i, u := range uploads {
		name := u.Name
		if name == "" {
			name = fmt.Sprintf("photo-%d", i+1)
		}
		photo, err := in.decode(u)
		if err != nil {
			rejected = append(rejected, Rejection{Name: name, Reason: err.Error()})
			continue
		}
		photo.ID = uuid.NewString()
		photo.Name = name
		photo.UploadedAt = now().UTC()
		photos = append(photos, photo)
	}
	return photos, rejected
}

func (in Intake) decode(u Upload) (roster.Photo, error) {
	raw := u.Data
	if len(raw) == 0 && u.Encoded != "" {
		var err error
		if raw, err = decodeBase64(u.Encoded); err != nil {
			return roster.Photo{}, err
		}
	}
	if len(raw) == 0 {
		return roster.Photo{}, fmt.Errorf("empty file")
	}
	if in.MaxBytes > 0 && int64(len(raw)) > in.MaxBytes {
		return roster.Photo{}, fmt.Errorf("file exceeds %d bytes", in.MaxBytes)
	}

	contentType := http.DetectContentType(raw)
	if !strings.HasPrefix(contentType, "image/") {
		return roster.Photo{}, fmt.Errorf("not an image (%s)", contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return roster.Photo{}, fmt.Errorf("cannot decode image: %w", err)
	}
	maxPixels := in.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return roster.Photo{}, fmt.Errorf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return roster.Photo{}, fmt.Errorf("cannot decode image: %w", err)
	}

	if in.MaxDimension > 0 && longestEdge(img) > in.MaxDimension {
		resized := imaging.Fit(img, in.MaxDimension, in.MaxDimension, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return roster.Photo{}, fmt.Errorf("cannot re-encode image: %w", err)
		}
		raw = buf.Bytes()
		contentType = "image/jpeg"
	}

	return roster.Photo{
		Size:        int64(len(raw)),
		ContentType: contentType,
		Data:        "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func longestEdge(img image.Image) int {
	b := img.Bounds()
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}

// decodeBase64 accepts a bare base64 string or a data URL.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("invalid base64 payload")
		}
	}
	return raw, nil
}
