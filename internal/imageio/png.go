package imageio

import (
	"image"
	"image/png"
	"io"
)

var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// The standard library encoder already writes 16-bit PNGs for NRGBA64/RGBA64
// sources, which keeps float normal maps above 8-bit precision.
func encodePNG(w io.Writer, img image.Image) error {
	return pngEncoder.Encode(w, img)
}
