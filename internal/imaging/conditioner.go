package imaging

import (
	"fmt"
	"image"
	"image/color"
)

// Report holds the brightness analysis of a single image.
type Report struct {
	Brightness float64 `json:"brightness"`
	IsLowLight bool    `json:"is_low_light"`
	Threshold  float64 `json:"threshold"`
}

// LowLightError is returned when an image stays below the brightness
// threshold after enhancement (or when enhancement is disabled).
type LowLightError struct {
	Brightness float64
	Threshold  float64
}

func (e *LowLightError) Error() string {
	return fmt.Sprintf("image too dark: brightness %.2f below threshold %.2f", e.Brightness, e.Threshold)
}

// Conditioner gates face images on ambient brightness and optionally
// enhances low-light captures before they reach the classifier.
type Conditioner struct {
	threshold float64
	enhance   bool
}

func NewConditioner(brightnessThreshold float64, enhancementEnabled bool) *Conditioner {
	return &Conditioner{
		threshold: brightnessThreshold,
		enhance:   enhancementEnabled,
	}
}

// Analyze computes the mean luminance of the image on a 0-255 scale.
func (c *Conditioner) Analyze(img image.Image) Report {
	bounds := img.Bounds()
	total := 0.0
	count := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			total += luma(img.At(x, y))
			count++
		}
	}

	brightness := 0.0
	if count > 0 {
		brightness = total / float64(count)
	}

	return Report{
		Brightness: brightness,
		IsLowLight: brightness < c.threshold,
		Threshold:  c.threshold,
	}
}

// Enhance applies histogram equalization to the luminance channel only,
// rescaling each pixel's color channels by the luminance gain so hue is
// preserved.
func (c *Conditioner) Enhance(img image.Image) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w == 0 || h == 0 {
		return img
	}

	// Luminance histogram
	var hist [256]int
	lum := make([]uint8, w*h)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := uint8(clamp(luma(img.At(x, y)), 0, 255))
			lum[i] = l
			hist[l]++
			i++
		}
	}

	lut := equalizationLUT(hist, w*h)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	i = 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			oldL := float64(lum[i])
			newL := float64(lut[lum[i]])
			gain := 1.0
			if oldL > 0 {
				gain = newL / oldL
			}
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{
				R: uint8(clamp(float64(r>>8)*gain, 0, 255)),
				G: uint8(clamp(float64(g>>8)*gain, 0, 255)),
				B: uint8(clamp(float64(b>>8)*gain, 0, 255)),
				A: uint8(a >> 8),
			})
			i++
		}
	}

	return out
}

// Condition runs the brightness gate that precedes every classification
// attempt: analyze, enhance once if allowed, re-analyze. The returned image
// is safe to classify; a LowLightError means the caller must not classify.
// Equalization reshapes contrast rather than guaranteeing a brighter mean,
// so the gate is re-evaluated after enhancement instead of assumed passed.
func (c *Conditioner) Condition(img image.Image) (image.Image, Report, error) {
	report := c.Analyze(img)
	if !report.IsLowLight {
		return img, report, nil
	}

	if !c.enhance {
		return nil, report, &LowLightError{Brightness: report.Brightness, Threshold: report.Threshold}
	}

	enhanced := c.Enhance(img)
	report = c.Analyze(enhanced)
	if report.IsLowLight {
		return nil, report, &LowLightError{Brightness: report.Brightness, Threshold: report.Threshold}
	}

	return enhanced, report, nil
}

// EqualizeGray equalizes the histogram of an 8-bit grayscale image in place.
// Used for template contrast normalization.
func EqualizeGray(img *image.Gray) {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return
	}

	var hist [256]int
	for _, p := range img.Pix {
		hist[p]++
	}

	lut := equalizationLUT(hist, n)
	for i, p := range img.Pix {
		img.Pix[i] = lut[p]
	}
}

// equalizationLUT builds the cumulative-distribution lookup table used by
// histogram equalization, matching the conventional CDF-min normalization.
func equalizationLUT(hist [256]int, total int) [256]uint8 {
	var lut [256]uint8
	cdf := 0
	cdfMin := 0
	for _, h := range hist {
		if h > 0 {
			cdfMin = h
			break
		}
	}
	denom := total - cdfMin
	if denom <= 0 {
		denom = 1
	}
	for v := 0; v < 256; v++ {
		cdf += hist[v]
		lut[v] = uint8(clamp(float64(cdf-cdfMin)*255.0/float64(denom), 0, 255))
	}
	return lut
}

// luma computes BT.601 luminance from a color, on a 0-255 scale.
func luma(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
