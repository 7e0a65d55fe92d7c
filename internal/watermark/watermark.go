package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

// Apply tiles the text across the whole image as a translucent overlay and
// re-encodes the result as JPEG. Covering the full frame keeps the mark from
// being cropped away.
func Apply(src []byte, text string) ([]byte, error) {
	if text == "" {
		text = "PREVIEW"
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 90}),
		Face: face,
	}

	stepX := font.MeasureString(face, text).Ceil() + 80
	stepY := face.Metrics().Height.Ceil() + 50
	row := 0
	for y := bounds.Min.Y + stepY; y < bounds.Max.Y; y += stepY {
		// Staggered rows so crops of any region still catch the mark.
		offset := 0
		if row%2 == 1 {
			offset = stepX / 2
		}
		for x := bounds.Min.X + offset; x < bounds.Max.X; x += stepX {
			drawer.Dot = fixed.P(x, y)
			drawer.DrawString(text)
		}
		row++
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode watermarked image: %w", err)
	}
	return buf.Bytes(), nil
}
