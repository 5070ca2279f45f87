package recognize

import (
	"github.com/coder/hnsw"
)

const graphMaxNeighbors = 16

// distanceSpread stretches nearest-match cosine distances across the 0-100
// confidence range. Even unrelated Hellinger-embedded histograms rarely reach
// distance 1, so the raw (1-d)*100 mapping would score everything near the
// top and the confidence threshold could never fire.
const distanceSpread = 2.5

// trainSample is one template's contribution to the classifier corpus.
type trainSample struct {
	identityID string
	label      int
	descriptor []float32
}

// model is the derived, in-memory, retrainable nearest-match artifact. It is
// rebuilt from the full template corpus on every enrollment or removal and
// never mutated in place, so readers either see the previous model or the
// fully retrained one.
type model struct {
	graph   *hnsw.Graph[int]
	samples map[int]trainSample // graph node key -> sample
}

// trainModel builds a fresh nearest-neighbour graph over the corpus.
// Returns nil for an empty corpus (the untrained state).
func trainModel(corpus []trainSample) *model {
	if len(corpus) == 0 {
		return nil
	}

	g := hnsw.NewGraph[int]()
	g.M = graphMaxNeighbors
	g.Ml = 1.0 / float64(graphMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	m := &model{
		graph:   g,
		samples: make(map[int]trainSample, len(corpus)),
	}

	for i, s := range corpus {
		if len(s.descriptor) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, s.descriptor))
		m.samples[i] = s
	}

	if len(m.samples) == 0 {
		return nil
	}
	return m
}

// nearest finds the closest template to the query descriptor and converts
// its cosine distance to a 0-100 confidence score: lower distance means
// higher confidence, scaled by distanceSpread and clamped at both ends. An
// identical template scores 100.
func (m *model) nearest(descriptor []float32) (identityID string, confidence float64, ok bool) {
	neighbors := m.graph.Search(descriptor, 1)
	if len(neighbors) == 0 {
		return "", 0, false
	}

	n := neighbors[0]
	sample, found := m.samples[n.Key]
	if !found {
		return "", 0, false
	}

	dist := cosineDistance(descriptor, n.Value)
	confidence = (1 - distanceSpread*dist) * 100
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return sample.identityID, confidence, true
}
