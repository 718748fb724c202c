// Copyright 2025 SnapEvent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package qrdecode recovers an embedded machine-readable code from a still
// image. Real-world flyers defeat a single decode pass constantly: the
// code is too small, too large, low-contrast, color-on-color, or tucked
// into a corner of the frame. So the decoder runs a fixed ordered chain of
// preprocessing variants against the same source image until one yields a
// valid absolute http(s) URL. Chain order is a tie-break, not a quality
// ranking.
//
// Absence of a code is success-shaped: Decode returns "" and never an
// error the caller must branch on.
package qrdecode

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// variant is one pure preprocessing step applied to the source image
// before a decode attempt.
type variant struct {
	name      string
	transform func(image.Image) image.Image
}

// variants is the fixed decode chain. Every variant is additionally tried
// with inverted polarity for light-on-dark codes.
var variants = []variant{
	{"original", identity},
	{"resize-1000", resizeTo(1000)},
	{"resize-2000", resizeTo(2000)},
	{"grayscale", grayscale},
	{"contrast", enhanceContrast},
	{"region-full", identity},
	{"region-top-left", cropQuadrant(0, 0)},
	{"region-top-right", cropQuadrant(1, 0)},
	{"region-bottom-left", cropQuadrant(0, 1)},
	{"region-bottom-right", cropQuadrant(1, 1)},
	{"region-center", cropCenter},
}

// Decoder attempts QR recovery from image bytes.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode returns the first valid absolute http(s) URL found by any variant
// of the chain, or "" when the image carries no decodable code. Undecodable
// image bytes also yield "": a corrupt image has no code in it.
func (d *Decoder) Decode(imageBytes []byte) string {
	src, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return ""
	}

	for _, v := range variants {
		candidate := v.transform(src)
		if text := decodeOnce(candidate); validCodeURL(text) {
			return text
		}
		if text := decodeOnce(imaging.Invert(candidate)); validCodeURL(text) {
			return text
		}
	}
	return ""
}

// decodeOnce runs a single zxing decode attempt over one image variant.
func decodeOnce(img image.Image) string {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return ""
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return ""
	}
	return result.GetText()
}

// validCodeURL accepts only absolute http(s) URLs; anything else decoded
// out of an image (wifi configs, vcards, plain text) is not a source we
// can follow.
func validCodeURL(text string) bool {
	if text == "" {
		return false
	}
	parsed, err := url.Parse(text)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func identity(img image.Image) image.Image {
	return img
}

func grayscale(img image.Image) image.Image {
	return imaging.Grayscale(img)
}

// resizeTo fits the image inside a square bounding box, preserving aspect.
func resizeTo(box int) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		return imaging.Fit(img, box, box, imaging.Lanczos)
	}
}

// enhanceContrast stretches each channel by a factor of 1.5 around the
// 128 midpoint.
func enhanceContrast(img image.Image) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: stretch(c.R),
			G: stretch(c.G),
			B: stretch(c.B),
			A: c.A,
		}
	})
}

func stretch(v uint8) uint8 {
	adjusted := (float64(v)-128)*1.5 + 128
	if adjusted < 0 {
		return 0
	}
	if adjusted > 255 {
		return 255
	}
	return uint8(adjusted)
}

// cropQuadrant returns one of the four image quadrants; col and row are 0
// or 1.
func cropQuadrant(col, row int) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		b := img.Bounds()
		w, h := b.Dx()/2, b.Dy()/2
		rect := image.Rect(b.Min.X+col*w, b.Min.Y+row*h, b.Min.X+(col+1)*w, b.Min.Y+(row+1)*h)
		return imaging.Crop(img, rect)
	}
}

// cropCenter returns the middle half of the image in both dimensions.
func cropCenter(img image.Image) image.Image {
	b := img.Bounds()
	return imaging.CropCenter(img, b.Dx()/2, b.Dy()/2)
}
