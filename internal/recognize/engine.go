package recognize

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/presence/internal/observability"
)

// IdentityTemplates is the persisted state of one enrolled identity.
type IdentityTemplates struct {
	IdentityID string
	Label      int
	Templates  []*Template // oldest first
}

// Snapshot is the full persisted classifier state: every identity's ordered
// template list plus the label counter, loaded together so a restart
// reproduces an identical trained model.
type Snapshot struct {
	Identities []IdentityTemplates
	NextLabel  int
}

// Store persists template and label state. Implementations must write the
// identity's templates and the advanced label counter in one transaction.
type Store interface {
	SaveEnrollment(ctx context.Context, identityID string, label, nextLabel int, templates []*Template) error
	DeleteEnrollment(ctx context.Context, identityID string) error
	LoadEnrollments(ctx context.Context) (*Snapshot, error)
}

// Match is a successful classification result.
type Match struct {
	IdentityID string
	Confidence float64
}

// Engine owns the enrolled templates, the label map, and the trained
// nearest-match model. Enroll and Remove are mutually exclusive with each
// other and with Classify; Classify calls may run concurrently once a
// training pass has completed.
type Engine struct {
	mu           sync.RWMutex
	detector     Detector
	store        Store
	maxTemplates int

	templates map[string][]*Template
	labels    *LabelMap
	model     *model
}

func NewEngine(detector Detector, store Store, maxTemplatesPerIdentity int) *Engine {
	if maxTemplatesPerIdentity <= 0 {
		maxTemplatesPerIdentity = 5
	}
	return &Engine{
		detector:     detector,
		store:        store,
		maxTemplates: maxTemplatesPerIdentity,
		templates:    make(map[string][]*Template),
		labels:       NewLabelMap(),
	}
}

// Load restores persisted enrollment state and trains the model from it.
func (e *Engine) Load(ctx context.Context) error {
	snap, err := e.store.LoadEnrollments(ctx)
	if err != nil {
		return fmt.Errorf("load enrollments: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.templates = make(map[string][]*Template, len(snap.Identities))
	assignments := make(map[string]int, len(snap.Identities))
	for _, it := range snap.Identities {
		e.templates[it.IdentityID] = it.Templates
		assignments[it.IdentityID] = it.Label
	}
	e.labels = RestoreLabelMap(assignments, snap.NextLabel)
	e.retrainLocked()

	slog.Info("classifier state loaded",
		"identities", len(e.templates),
		"trained", e.model != nil,
	)
	return nil
}

// ExtractOne detects exactly one face in the image and extracts its template
// without touching the enrolled corpus.
func (e *Engine) ExtractOne(img image.Image) (*Template, error) {
	return e.detectAndExtract(img)
}

// Enroll detects exactly one face in the image, extracts a template, and
// enrolls it for the identity.
func (e *Engine) Enroll(ctx context.Context, identityID string, img image.Image, sourceKey string) (int, error) {
	tpl, err := e.detectAndExtract(img)
	if err != nil {
		return 0, err
	}
	tpl.SourceKey = sourceKey
	return e.EnrollTemplate(ctx, identityID, tpl)
}

// EnrollTemplate appends an extracted template to the identity's list
// (evicting the oldest past the cap), assigns a label on first enrollment,
// persists, and retrains synchronously. The in-memory corpus is mutated only
// after the store accepts the write, so a persistence failure leaves the
// served model unchanged and the enrollment retryable. Returns the identity's
// template count after enrollment.
func (e *Engine) EnrollTemplate(ctx context.Context, identityID string, tpl *Template) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.templates[identityID]
	list := make([]*Template, 0, len(prev)+1)
	list = append(list, prev...)
	list = append(list, tpl)
	if len(list) > e.maxTemplates {
		list = list[len(list)-e.maxTemplates:]
	}

	label, isNew := e.labels.Assign(identityID)

	if err := e.store.SaveEnrollment(ctx, identityID, label, e.labels.Next(), list); err != nil {
		if isNew {
			// The counter stays advanced; the label is simply never used.
			e.labels.Remove(identityID)
		}
		return 0, fmt.Errorf("persist enrollment for %s: %w", identityID, err)
	}

	if isNew {
		slog.Info("label assigned", "identity", identityID, "label", label)
	}

	e.templates[identityID] = list
	e.retrainLocked()

	return len(list), nil
}

// Classify detects exactly one face and runs nearest-match scoring against
// the trained model. Failures below confidenceThreshold carry the tentative
// identity and score.
func (e *Engine) Classify(img image.Image, confidenceThreshold float64) (*Match, error) {
	tpl, err := e.detectAndExtract(img)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.model == nil {
		return nil, ErrModelUntrained
	}

	start := time.Now()
	identityID, confidence, ok := e.model.nearest(tpl.Descriptor)
	observability.StageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	if !ok {
		return nil, ErrModelUntrained
	}

	if confidence < confidenceThreshold {
		return nil, &LowConfidenceError{
			IdentityID: identityID,
			Confidence: confidence,
			Threshold:  confidenceThreshold,
		}
	}

	return &Match{IdentityID: identityID, Confidence: confidence}, nil
}

// Remove deletes the identity's templates and label, persists the removal,
// and retrains. The retired label is never reassigned. A persistence failure
// leaves the in-memory corpus intact, so memory never claims a removal the
// store would resurrect on restart.
func (e *Engine) Remove(ctx context.Context, identityID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.templates[identityID]; !ok {
		return ErrIdentityUnknown
	}

	if err := e.store.DeleteEnrollment(ctx, identityID); err != nil {
		return fmt.Errorf("persist removal of %s: %w", identityID, err)
	}

	delete(e.templates, identityID)
	e.labels.Remove(identityID)
	e.retrainLocked()
	return nil
}

// Trained reports whether at least one template is enrolled.
func (e *Engine) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil
}

// Stats describes the engine's current corpus.
type Stats struct {
	Identities int  `json:"identities"`
	Templates  int  `json:"templates"`
	Trained    bool `json:"trained"`
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, list := range e.templates {
		total += len(list)
	}
	return Stats{
		Identities: len(e.templates),
		Templates:  total,
		Trained:    e.model != nil,
	}
}

// TemplateCount returns the number of templates stored for an identity.
func (e *Engine) TemplateCount(identityID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.templates[identityID])
}

// detectAndExtract requires exactly one face in the image and extracts a
// normalized template from it.
func (e *Engine) detectAndExtract(img image.Image) (*Template, error) {
	start := time.Now()
	regions, err := e.detector.Detect(img)
	observability.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	switch {
	case len(regions) == 0:
		return nil, ErrNoFace
	case len(regions) > 1:
		return nil, ErrMultipleFace
	}

	start = time.Now()
	tpl := ExtractTemplate(img, regions[0])
	observability.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if tpl == nil {
		return nil, fmt.Errorf("extract face template: %w", ErrNoFace)
	}
	return tpl, nil
}

// retrainLocked rebuilds the model from the full current corpus. Callers
// must hold the write lock. Training cost scales with total template count,
// acceptable at enrollment cadence.
func (e *Engine) retrainLocked() {
	start := time.Now()

	var corpus []trainSample
	for identityID, list := range e.templates {
		label, ok := e.labels.LabelOf(identityID)
		if !ok {
			continue
		}
		for _, tpl := range list {
			corpus = append(corpus, trainSample{
				identityID: identityID,
				label:      label,
				descriptor: tpl.Descriptor,
			})
		}
	}

	e.model = trainModel(corpus)
	observability.StageDuration.WithLabelValues("train").Observe(time.Since(start).Seconds())
}
