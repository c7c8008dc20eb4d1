package report

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"net/http"
	"os"

	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Header row height in pixels; the logo is scaled to fit it.
const logoHeight = 40

// LoadLogo decodes a png, jpeg or webp file and returns it as png bytes scaled
// to height pixels tall, keeping the aspect ratio.
func LoadLogo(path string, height int) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return scaleLogo(raw, height)
}

func scaleLogo(raw []byte, height int) ([]byte, error) {
	mime := http.DetectContentType(raw)
	switch mime {
	case "image/png", "image/jpeg", "image/webp":
	default:
		return nil, errors.New("logo must be png, jpeg, or webp")
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		decoded, decodeErr := webp.Decode(bytes.NewReader(raw))
		if decodeErr != nil {
			return nil, errors.New("unable to decode logo")
		}
		img = decoded
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 || height <= 0 {
		return nil, errors.New("invalid logo dimensions")
	}
	width := bounds.Dx() * height / bounds.Dy()
	if width < 1 {
		width = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, scaled); err != nil {
		return nil, errors.New("unable to encode logo")
	}
	return out.Bytes(), nil
}
