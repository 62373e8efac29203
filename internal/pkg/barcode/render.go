package barcode

import (
	"bytes"
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/disintegration/imaging"
)

const (
	defaultWidth  = 400
	defaultHeight = 120
)

// Renderer renders identifiers into scannable Code-128 raster images.
type Renderer struct {
	width  int
	height int
}

func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	return &Renderer{width: width, height: height}
}

// RenderPNG кодирует идентификатор в Code-128 и возвращает PNG нужного размера
func (r *Renderer) RenderPNG(identifier string) ([]byte, error) {
	if identifier == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}

	encoded, err := code128.Encode(identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to encode code128: %v", err)
	}

	scaled, err := barcode.Scale(encoded, r.width, r.height)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %v", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, scaled, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %v", err)
	}

	return buf.Bytes(), nil
}

// RenderImage возвращает штрих-код как image.Image (для тестов и предпросмотра)
func (r *Renderer) RenderImage(identifier string) (image.Image, error) {
	encoded, err := code128.Encode(identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to encode code128: %v", err)
	}

	scaled, err := barcode.Scale(encoded, r.width, r.height)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %v", err)
	}

	return scaled, nil
}
