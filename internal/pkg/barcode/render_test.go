package barcode

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRenderPNG тестирует рендеринг идентификатора в PNG
func TestRenderPNG(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{
			name:   "default dimensions",
			width:  0,
			height: 0,
		},
		{
			name:   "custom dimensions",
			width:  600,
			height: 200,
		},
		{
			name:   "small dimensions",
			width:  300,
			height: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := NewRenderer(tt.width, tt.height)

			data, err := renderer.RenderPNG(Generate())
			require.NoError(t, err)
			require.NotEmpty(t, data)

			// Результат должен быть валидным PNG
			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)

			expectedWidth := tt.width
			if expectedWidth <= 0 {
				expectedWidth = defaultWidth
			}
			expectedHeight := tt.height
			if expectedHeight <= 0 {
				expectedHeight = defaultHeight
			}

			assert.Equal(t, expectedWidth, img.Bounds().Dx())
			assert.Equal(t, expectedHeight, img.Bounds().Dy())
		})
	}
}

// TestRenderPNGEmptyIdentifier проверяет отказ на пустом идентификаторе
func TestRenderPNGEmptyIdentifier(t *testing.T) {
	renderer := NewRenderer(0, 0)

	data, err := renderer.RenderPNG("")
	assert.Error(t, err)
	assert.Nil(t, data)
}

// TestRenderImage проверяет размеры отрендеренного изображения
func TestRenderImage(t *testing.T) {
	renderer := NewRenderer(400, 120)

	img, err := renderer.RenderImage("A1B2C3D4E5")
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 120, img.Bounds().Dy())
}
