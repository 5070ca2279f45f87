package recognize

import (
	"image"
	"math"
)

// Local binary pattern descriptor over a spatial grid, used as the
// nearest-match feature for enrolled templates. Uniform patterns (at most
// two 0/1 transitions) get their own bins; the rest share one.
const (
	lbpGrid     = 8  // 8x8 spatial cells
	lbpBins     = 59 // 58 uniform patterns + 1 catch-all
	lbpRadius   = 1
	lbpNeighbor = 8

	// flatCode is the pattern a textureless neighborhood produces: with the
	// >= comparison, equal neighbors all set their bit.
	flatCode = 0xFF

	// DescriptorDim is the length of a template descriptor vector.
	DescriptorDim = lbpGrid * lbpGrid * lbpBins
)

// uniformBin maps each of the 256 LBP codes to its histogram bin.
var uniformBin = buildUniformBinTable()

func buildUniformBinTable() [256]int {
	var table [256]int
	next := 0
	for code := 0; code < 256; code++ {
		if transitions(uint8(code)) <= 2 {
			table[code] = next
			next++
		} else {
			table[code] = lbpBins - 1
		}
	}
	return table
}

// transitions counts circular 0/1 transitions in an 8-bit pattern.
func transitions(code uint8) int {
	n := 0
	for i := 0; i < 8; i++ {
		a := (code >> uint(i)) & 1
		b := (code >> uint((i+1)%8)) & 1
		if a != b {
			n++
		}
	}
	return n
}

// Descriptor computes the L2-normalized grid LBP histogram of a grayscale
// template patch.
func Descriptor(gray *image.Gray) []float32 {
	bounds := gray.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	desc := make([]float32, DescriptorDim)
	if w < 3 || h < 3 {
		return desc
	}

	cellW := float64(w) / lbpGrid
	cellH := float64(h) / lbpGrid

	for y := lbpRadius; y < h-lbpRadius; y++ {
		for x := lbpRadius; x < w-lbpRadius; x++ {
			code := lbpCode(gray, x, y)
			if code == flatCode {
				// Every neighbor at or above the center: no texture. Flat
				// patches would otherwise pile into one shared bin per cell
				// and crush the distance between unrelated faces.
				continue
			}

			cx := int(float64(x) / cellW)
			cy := int(float64(y) / cellH)
			if cx >= lbpGrid {
				cx = lbpGrid - 1
			}
			if cy >= lbpGrid {
				cy = lbpGrid - 1
			}

			desc[(cy*lbpGrid+cx)*lbpBins+uniformBin[code]]++
		}
	}

	hellinger(desc)
	return desc
}

// lbpCode computes the 8-neighbor LBP code for the pixel at (x, y).
func lbpCode(gray *image.Gray, x, y int) uint8 {
	c := gray.GrayAt(x, y).Y
	var code uint8
	// clockwise from top-left
	offsets := [lbpNeighbor][2]int{
		{-1, -1}, {0, -1}, {1, -1}, {1, 0},
		{1, 1}, {0, 1}, {-1, 1}, {-1, 0},
	}
	for i, off := range offsets {
		if gray.GrayAt(x+off[0], y+off[1]).Y >= c {
			code |= 1 << uint(i)
		}
	}
	return code
}

// hellinger converts a count histogram into its Hellinger embedding in-place:
// L1-normalize, then take the square root of each bin. Cosine similarity over
// the result is the Bhattacharyya coefficient of the histograms, which spreads
// out vectors that plain L2 normalization would leave nearly parallel. The
// output has unit L2 norm unless the histogram is empty.
func hellinger(v []float32) {
	var total float64
	for _, x := range v {
		total += float64(x)
	}
	if total == 0 {
		return
	}
	for i := range v {
		v[i] = float32(math.Sqrt(float64(v[i]) / total))
	}
}

// cosineDistance returns 1 - cosine similarity for two vectors of equal
// length. For L2-normalized non-negative histograms the result lies in [0,1].
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
