package recognize

import (
	"image"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/your-org/presence/internal/imaging"
)

// TemplateSize is the side length of a stored face patch in pixels.
const TemplateSize = 100

// Template is a fixed-size, grayscale, contrast-normalized face patch
// derived from exactly one detected face region. Immutable once stored.
type Template struct {
	ID         uuid.UUID
	Pix        []uint8 // TemplateSize*TemplateSize grayscale pixels
	Descriptor []float32
	SourceKey  string // object key of the archived capture, if any
	CreatedAt  time.Time
}

// ExtractTemplate crops the detected face region with padding, converts it
// to grayscale, resizes to the standard patch size, and equalizes contrast.
func ExtractTemplate(img image.Image, region Region) *Template {
	crop := cropRegion(img, region.Rect)
	if crop == nil {
		return nil
	}

	gray := image.NewGray(image.Rect(0, 0, TemplateSize, TemplateSize))
	draw.BiLinear.Scale(gray, gray.Bounds(), crop, crop.Bounds(), draw.Src, nil)

	imaging.EqualizeGray(gray)

	pix := make([]uint8, len(gray.Pix))
	copy(pix, gray.Pix)

	return &Template{
		ID:         uuid.New(),
		Pix:        pix,
		Descriptor: Descriptor(gray),
		CreatedAt:  time.Now(),
	}
}

// TemplateFromPix rebuilds a template from persisted pixel data, recomputing
// the descriptor so a restart reproduces an identical trained model.
func TemplateFromPix(id uuid.UUID, pix []uint8, sourceKey string, createdAt time.Time) *Template {
	gray := &image.Gray{
		Pix:    pix,
		Stride: TemplateSize,
		Rect:   image.Rect(0, 0, TemplateSize, TemplateSize),
	}
	return &Template{
		ID:         id,
		Pix:        pix,
		Descriptor: Descriptor(gray),
		SourceKey:  sourceKey,
		CreatedAt:  createdAt,
	}
}

// cropRegion extracts the face region plus 10% padding, clamped to bounds.
func cropRegion(img image.Image, rect image.Rectangle) image.Image {
	bounds := img.Bounds()
	r := rect.Intersect(bounds)
	if r.Empty() {
		return nil
	}

	padW := r.Dx() / 10
	padH := r.Dy() / 10
	r = image.Rect(r.Min.X-padW, r.Min.Y-padH, r.Max.X+padW, r.Max.Y+padH).Intersect(bounds)
	if r.Empty() {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			crop.Set(x-r.Min.X, y-r.Min.Y, img.At(x, y))
		}
	}
	return crop
}
