package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func uniformImage(level uint8, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: level, G: level, B: level, A: 255})
		}
	}
	return img
}

// splitImage is half dark, half bright: equalization can rescue it.
func splitImage(dark, bright uint8, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			level := dark
			if x >= w/2 {
				level = bright
			}
			img.Set(x, y, color.RGBA{R: level, G: level, B: level, A: 255})
		}
	}
	return img
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		level      uint8
		wantLow    bool
		brightness float64
	}{
		{"black", 0, true, 0},
		{"dim", 30, true, 30},
		{"at threshold", 50, false, 50},
		{"bright", 200, false, 200},
	}

	c := NewConditioner(50, true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := c.Analyze(uniformImage(tt.level, 20, 20))
			require.InDelta(t, tt.brightness, report.Brightness, 1.0)
			require.Equal(t, tt.wantLow, report.IsLowLight)
			require.Equal(t, 50.0, report.Threshold)
		})
	}
}

func TestConditionBrightImagePassesUnchanged(t *testing.T) {
	c := NewConditioner(50, true)
	img := uniformImage(120, 20, 20)

	out, report, err := c.Condition(img)
	require.NoError(t, err)
	require.Same(t, img, out)
	require.False(t, report.IsLowLight)
}

func TestConditionEnhancementRescuesMixedImage(t *testing.T) {
	c := NewConditioner(50, true)
	// Mean ~40, below threshold, but equalization spreads the two levels
	// to the full range and lifts the mean.
	img := splitImage(10, 70, 40, 40)

	out, report, err := c.Condition(img)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.False(t, report.IsLowLight)
	require.GreaterOrEqual(t, report.Brightness, 50.0)
}

func TestConditionRejectsWhenEnhancementDisabled(t *testing.T) {
	c := NewConditioner(50, false)

	out, _, err := c.Condition(splitImage(10, 70, 40, 40))
	require.Nil(t, out)

	var lle *LowLightError
	require.ErrorAs(t, err, &lle)
	require.Equal(t, 50.0, lle.Threshold)
}

func TestConditionRejectsUniformDarkness(t *testing.T) {
	c := NewConditioner(50, true)
	// A uniform image equalizes to another uniform image; enhancement
	// cannot create contrast that isn't there.
	out, _, err := c.Condition(uniformImage(5, 20, 20))
	require.Nil(t, out)

	var lle *LowLightError
	require.ErrorAs(t, err, &lle)
}

func TestEqualizeGraySpreadsContrast(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range gray.Pix {
		if i%2 == 0 {
			gray.Pix[i] = 100
		} else {
			gray.Pix[i] = 110
		}
	}

	EqualizeGray(gray)

	min, max := gray.Pix[0], gray.Pix[0]
	for _, p := range gray.Pix {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	require.Less(t, int(min), 10)
	require.Greater(t, int(max), 245)
}
