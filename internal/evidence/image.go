package evidence

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/HitoniYori/ijime-support-ai/internal/logger"
)

func decodeImage(f File) (Fragment, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return nil, &FormatError{Name: f.Name, Kind: SourceImage, Err: fmt.Errorf("decode image: %w", err)}
	}
	// DecodeConfig only reads the header; a full decode catches truncated files.
	if _, _, err := image.Decode(bytes.NewReader(f.Data)); err != nil {
		return nil, &FormatError{Name: f.Name, Kind: SourceImage, Err: fmt.Errorf("decode image: %w", err)}
	}

	return InlineImage{
		Name:     f.Name,
		MIMEType: "image/" + format,
		Data:     f.Data,
		Width:    cfg.Width,
		Height:   cfg.Height,
		TakenAt:  takenAt(f),
	}, nil
}

// takenAt reads the EXIF capture time; photos without EXIF return the zero time.
func takenAt(f File) time.Time {
	x, err := exif.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return time.Time{}
	}
	t, err := x.DateTime()
	if err != nil {
		logger.L.Debug("exif without capture time", "file", f.Name, "error", err)
		return time.Time{}
	}
	return t
}
