package recognize

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDetector returns a fixed number of centered regions.
type fakeDetector struct {
	faces int
	err   error
}

func (d *fakeDetector) Detect(img image.Image) ([]Region, error) {
	if d.err != nil {
		return nil, d.err
	}
	b := img.Bounds()
	regions := make([]Region, 0, d.faces)
	for i := 0; i < d.faces; i++ {
		regions = append(regions, Region{
			Rect:       image.Rect(b.Min.X+10, b.Min.Y+10, b.Max.X-10, b.Max.Y-10),
			Confidence: 0.9,
		})
	}
	return regions, nil
}

// memStore is an in-memory recognize.Store.
type memStore struct {
	snapshot  Snapshot
	saveErr   error
	deleteErr error
}

func (s *memStore) SaveEnrollment(_ context.Context, identityID string, label, nextLabel int, templates []*Template) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	for i, it := range s.snapshot.Identities {
		if it.IdentityID == identityID {
			s.snapshot.Identities[i].Label = label
			s.snapshot.Identities[i].Templates = templates
			s.snapshot.NextLabel = nextLabel
			return nil
		}
	}
	s.snapshot.Identities = append(s.snapshot.Identities, IdentityTemplates{
		IdentityID: identityID,
		Label:      label,
		Templates:  templates,
	})
	s.snapshot.NextLabel = nextLabel
	return nil
}

func (s *memStore) DeleteEnrollment(_ context.Context, identityID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, it := range s.snapshot.Identities {
		if it.IdentityID == identityID {
			s.snapshot.Identities = append(s.snapshot.Identities[:i], s.snapshot.Identities[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) LoadEnrollments(_ context.Context) (*Snapshot, error) {
	cp := s.snapshot
	return &cp, nil
}

func textureImage(cell int, horizontal bool) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			var on bool
			if horizontal {
				on = (y/cell)%2 == 0
			} else {
				on = (x/cell+y/cell)%2 == 0
			}
			level := uint8(30)
			if on {
				level = 220
			}
			img.Set(x, y, color.RGBA{R: level, G: level, B: level, A: 255})
		}
	}
	return img
}

func newTestEngine(t *testing.T, detector Detector) (*Engine, *memStore) {
	t.Helper()
	store := &memStore{}
	return NewEngine(detector, store, 3), store
}

func TestClassifyNoFaceRegardlessOfModelState(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDetector{faces: 0})

	// Untrained: detection outcome still wins.
	_, err := engine.Classify(textureImage(10, false), 60)
	require.ErrorIs(t, err, ErrNoFace)
	require.NotErrorIs(t, err, ErrModelUntrained)
}

func TestClassifyUntrained(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDetector{faces: 1})

	_, err := engine.Classify(textureImage(10, false), 60)
	require.ErrorIs(t, err, ErrModelUntrained)
}

func TestEnrollAndClassify(t *testing.T) {
	engine, store := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()

	img := textureImage(10, false)
	count, err := engine.Enroll(ctx, "alice", img, "captures/alice/a.jpg")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.True(t, engine.Trained())

	match, err := engine.Classify(img, 60)
	require.NoError(t, err)
	require.Equal(t, "alice", match.IdentityID)
	require.InDelta(t, 100, match.Confidence, 0.5)

	require.Len(t, store.snapshot.Identities, 1)
	require.Equal(t, 1, store.snapshot.NextLabel)
}

func TestEnrollMultipleFaces(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDetector{faces: 2})

	_, err := engine.Enroll(context.Background(), "alice", textureImage(10, false), "")
	require.ErrorIs(t, err, ErrMultipleFace)
	require.False(t, engine.Trained())
}

func TestEnrollEvictsOldestPastCap(t *testing.T) {
	engine, store := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()

	img := textureImage(10, false)
	for i := 0; i < 5; i++ {
		_, err := engine.Enroll(ctx, "alice", img, "")
		require.NoError(t, err)
	}

	require.Equal(t, 3, engine.TemplateCount("alice"))
	require.Len(t, store.snapshot.Identities[0].Templates, 3)
}

func TestClassifyLowConfidence(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "alice", textureImage(10, false), "")
	require.NoError(t, err)

	// An impossible threshold forces the low-confidence path.
	_, err = engine.Classify(textureImage(6, true), 100.0)
	var lce *LowConfidenceError
	require.ErrorAs(t, err, &lce)
	require.NotEmpty(t, lce.IdentityID)
	require.Less(t, lce.Confidence, 100.0)
}

func TestClassifyRejectsUnrelatedTextureAtDefaultThreshold(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "alice", textureImage(10, false), "")
	require.NoError(t, err)

	// A completely different texture must land under the default threshold.
	_, err = engine.Classify(textureImage(6, true), 60)
	var lce *LowConfidenceError
	require.ErrorAs(t, err, &lce)
	require.Equal(t, "alice", lce.IdentityID)
	require.Less(t, lce.Confidence, 60.0)
}

func TestClassifyPicksNearestIdentity(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()

	checker := textureImage(10, false)
	stripes := textureImage(6, true)

	_, err := engine.Enroll(ctx, "alice", checker, "")
	require.NoError(t, err)
	_, err = engine.Enroll(ctx, "bob", stripes, "")
	require.NoError(t, err)

	match, err := engine.Classify(stripes, 60)
	require.NoError(t, err)
	require.Equal(t, "bob", match.IdentityID)
}

func TestRemove(t *testing.T) {
	engine, store := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()

	img := textureImage(10, false)
	_, err := engine.Enroll(ctx, "alice", img, "")
	require.NoError(t, err)

	require.NoError(t, engine.Remove(ctx, "alice"))
	require.False(t, engine.Trained())
	require.Empty(t, store.snapshot.Identities)

	require.ErrorIs(t, engine.Remove(ctx, "alice"), ErrIdentityUnknown)

	_, err = engine.Classify(img, 60)
	require.ErrorIs(t, err, ErrModelUntrained)
}

func TestRemoveDoesNotRecycleLabels(t *testing.T) {
	engine, store := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "alice", textureImage(10, false), "")
	require.NoError(t, err)
	require.NoError(t, engine.Remove(ctx, "alice"))

	_, err = engine.Enroll(ctx, "alice", textureImage(10, false), "")
	require.NoError(t, err)

	// Label 0 is retired; re-enrollment gets label 1.
	require.Equal(t, 1, store.snapshot.Identities[0].Label)
	require.Equal(t, 2, store.snapshot.NextLabel)
}

func TestLoadRestoresTrainedModel(t *testing.T) {
	detector := &fakeDetector{faces: 1}
	first, store := newTestEngine(t, detector)
	ctx := context.Background()

	img := textureImage(10, false)
	_, err := first.Enroll(ctx, "alice", img, "")
	require.NoError(t, err)

	// A second engine over the same store reproduces the trained state.
	second := NewEngine(detector, store, 3)
	require.NoError(t, second.Load(ctx))
	require.True(t, second.Trained())

	match, err := second.Classify(img, 60)
	require.NoError(t, err)
	require.Equal(t, "alice", match.IdentityID)
}

func TestEnrollPersistFailureLeavesModelUntouched(t *testing.T) {
	engine, store := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()
	img := textureImage(10, false)

	store.saveErr = errors.New("pool exhausted")
	_, err := engine.Enroll(ctx, "alice", img, "")
	require.ErrorIs(t, err, store.saveErr)

	// The served model never saw the unpersisted template.
	require.False(t, engine.Trained())
	require.Zero(t, engine.TemplateCount("alice"))
	_, err = engine.Classify(img, 60)
	require.ErrorIs(t, err, ErrModelUntrained)

	// A retry once the store recovers does not duplicate anything.
	store.saveErr = nil
	count, err := engine.Enroll(ctx, "alice", img, "")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, store.snapshot.Identities[0].Templates, 1)
}

func TestRemovePersistFailureKeepsIdentity(t *testing.T) {
	engine, store := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()
	img := textureImage(10, false)

	_, err := engine.Enroll(ctx, "alice", img, "")
	require.NoError(t, err)

	store.deleteErr = errors.New("pool exhausted")
	require.ErrorIs(t, engine.Remove(ctx, "alice"), store.deleteErr)

	// Memory still matches what a restart would load.
	require.True(t, engine.Trained())
	match, err := engine.Classify(img, 60)
	require.NoError(t, err)
	require.Equal(t, "alice", match.IdentityID)

	store.deleteErr = nil
	require.NoError(t, engine.Remove(ctx, "alice"))
	require.False(t, engine.Trained())
}

func TestEnrollDetectorError(t *testing.T) {
	boom := errors.New("inference failed")
	engine, _ := newTestEngine(t, &fakeDetector{err: boom})

	_, err := engine.Enroll(context.Background(), "alice", textureImage(10, false), "")
	require.ErrorIs(t, err, boom)
}

func TestStats(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDetector{faces: 1})
	ctx := context.Background()

	stats := engine.Stats()
	require.Zero(t, stats.Identities)
	require.False(t, stats.Trained)

	_, err := engine.Enroll(ctx, "alice", textureImage(10, false), "")
	require.NoError(t, err)
	_, err = engine.Enroll(ctx, "alice", textureImage(10, false), "")
	require.NoError(t, err)

	stats = engine.Stats()
	require.Equal(t, 1, stats.Identities)
	require.Equal(t, 2, stats.Templates)
	require.True(t, stats.Trained)
}
