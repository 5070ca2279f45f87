package attend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/your-org/presence/internal/imaging"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/recognize"
	"github.com/your-org/presence/internal/session"
	"github.com/your-org/presence/internal/storage"
)

// Store is the persistence surface the service needs.
type Store interface {
	UpsertIdentity(ctx context.Context, id, name string) error
	DeleteIdentity(ctx context.Context, id string) error
	GetIdentity(ctx context.Context, id string) (*models.Identity, error)
	InsertAttendance(ctx context.Context, rec *models.AttendanceRecord) error
	CountAttendanceOn(ctx context.Context, date time.Time) (int, error)
	CreateNotification(ctx context.Context, recipient, subject, body string) (*models.Notification, error)
}

// Publisher fans committed check-ins and notification tasks out to NATS.
type Publisher interface {
	PublishCheckin(ctx context.Context, identityID string, data interface{}) error
	PublishNotificationTask(ctx context.Context, data interface{}) error
}

// CaptureArchive stores the raw images decisions were made on.
type CaptureArchive interface {
	ArchiveCapture(ctx context.Context, identityID, kind string, data []byte) (string, error)
	PurgeIdentity(ctx context.Context, identityID string) error
}

var enrollIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Service ties the conditioner, engine, session store, and persistence
// together into the verification flows.
type Service struct {
	conditioner *imaging.Conditioner
	engine      *recognize.Engine
	sessions    *session.Store
	store       Store
	captures    CaptureArchive // optional
	publisher   Publisher      // optional
	confidence  float64
	maxBatch    int
	adminEmail  string
	notify      bool
	now         func() time.Time

	// verifyLocks serializes session completion per identity id. Entries are
	// reused for the identity's lifetime, never removed.
	verifyLocks sync.Map
}

type Options struct {
	Conditioner         *imaging.Conditioner
	Engine              *recognize.Engine
	Sessions            *session.Store
	Store               Store
	Captures            CaptureArchive
	Publisher           Publisher
	ConfidenceThreshold float64
	MaxBatchSize        int
	AdminEmail          string
	NotifyEnabled       bool
}

func NewService(opts Options) *Service {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 60
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 50
	}
	return &Service{
		conditioner: opts.Conditioner,
		engine:      opts.Engine,
		sessions:    opts.Sessions,
		store:       opts.Store,
		captures:    opts.Captures,
		publisher:   opts.Publisher,
		confidence:  opts.ConfidenceThreshold,
		maxBatch:    opts.MaxBatchSize,
		adminEmail:  opts.AdminEmail,
		notify:      opts.NotifyEnabled,
		now:         time.Now,
	}
}

// Enroll registers one face sample for an identity. The image passes the
// brightness gate first; exactly one face must be present. Returns the
// identity's template count after enrollment.
func (s *Service) Enroll(ctx context.Context, identityID, name string, imgData []byte) (int, error) {
	if !enrollIDPattern.MatchString(identityID) {
		observability.Enrollments.WithLabelValues("invalid_input").Inc()
		return 0, fmt.Errorf("malformed identity id %q: %w", identityID, ErrInvalidInput)
	}
	if name == "" {
		observability.Enrollments.WithLabelValues("invalid_input").Inc()
		return 0, fmt.Errorf("empty name: %w", ErrInvalidInput)
	}

	img, err := decodeImage(imgData)
	if err != nil {
		observability.Enrollments.WithLabelValues("invalid_input").Inc()
		return 0, err
	}

	conditioned, report, err := s.conditioner.Condition(img)
	if err != nil {
		observability.Enrollments.WithLabelValues(ReasonLowLight).Inc()
		observability.LowLightRejections.Inc()
		return 0, err
	}

	// Extract before writing anything: an image without exactly one face
	// must not create the identity.
	tpl, err := s.engine.ExtractOne(conditioned)
	if err != nil {
		observability.Enrollments.WithLabelValues(Reason(err)).Inc()
		return 0, err
	}

	existing, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		observability.Enrollments.WithLabelValues("error").Inc()
		return 0, err
	}
	if err := s.store.UpsertIdentity(ctx, identityID, name); err != nil {
		observability.Enrollments.WithLabelValues("error").Inc()
		return 0, err
	}

	tpl.SourceKey = s.archive(ctx, identityID, "enroll", imgData)

	count, err := s.engine.EnrollTemplate(ctx, identityID, tpl)
	if err != nil {
		if existing == nil {
			// The row was created for this attempt; without templates it
			// could open sessions but never verify or be removed.
			if delErr := s.store.DeleteIdentity(ctx, identityID); delErr != nil {
				slog.Warn("rollback of identity row failed", "identity", identityID, "error", delErr)
			}
		}
		observability.Enrollments.WithLabelValues(Reason(err)).Inc()
		return 0, err
	}

	observability.Enrollments.WithLabelValues("ok").Inc()
	slog.Info("identity enrolled",
		"identity", identityID,
		"templates", count,
		"brightness", report.Brightness,
	)
	return count, nil
}

// OpenSession verifies the possession factor: the token is parsed, the
// claimed identity must be enrolled, and a fresh session replaces any
// previous one.
func (s *Service) OpenSession(ctx context.Context, token string) (*session.Session, error) {
	identityID, err := ParseToken(token)
	if err != nil {
		return nil, err
	}

	ident, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, fmt.Errorf("token claims %s: %w", identityID, ErrIdentityNotFound)
	}

	sess, purged := s.sessions.Open(identityID, token)
	observability.SessionsOpened.Inc()
	observability.SessionsPurged.Add(float64(purged))

	slog.Info("verification session opened", "identity", identityID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// CompleteSession verifies the face factor against an open session. The
// face must resolve to the session's identity at or above the confidence
// threshold; the attendance row is committed before the session is
// consumed, so a persistence failure leaves the session retryable.
// Concurrent completions for one identity serialize: the session read and
// its consumption must not interleave across two calls.
func (s *Service) CompleteSession(ctx context.Context, identityID string, imgData []byte) (*models.AttendanceRecord, error) {
	defer s.lockIdentity(identityID)()

	if _, err := s.sessions.Get(identityID); err != nil {
		observability.Verifications.WithLabelValues(string(models.MethodTokenFace), Reason(err)).Inc()
		return nil, err
	}

	match, err := s.verifyFace(imgData, models.MethodTokenFace)
	if err != nil {
		return nil, err
	}

	if match.IdentityID != identityID {
		observability.Verifications.WithLabelValues(string(models.MethodTokenFace), ReasonMismatch).Inc()
		return nil, &MismatchError{
			Expected:   identityID,
			Recognized: match.IdentityID,
			Confidence: match.Confidence,
		}
	}

	rec, err := s.commitAttendance(ctx, identityID, models.MethodTokenFace, match.Confidence, s.now(), false)
	if err != nil {
		if errors.Is(err, ErrAlreadyMarked) {
			// Both factors passed; the session has served its purpose even
			// though the earlier record stands.
			_ = s.sessions.MarkFaceVerified(identityID)
		}
		observability.Verifications.WithLabelValues(string(models.MethodTokenFace), Reason(err)).Inc()
		return nil, err
	}

	if err := s.sessions.MarkFaceVerified(identityID); err != nil {
		slog.Warn("session vanished after attendance commit", "identity", identityID, "error", err)
	}

	s.archive(ctx, identityID, "verify", imgData)
	s.publishCheckin(ctx, rec)
	observability.Verifications.WithLabelValues(string(models.MethodTokenFace), "ok").Inc()
	return rec, nil
}

// MarkAttendance is the single-factor path: classify the face and commit
// attendance without any session requirement.
func (s *Service) MarkAttendance(ctx context.Context, imgData []byte) (*models.AttendanceRecord, error) {
	match, err := s.verifyFace(imgData, models.MethodDirectFace)
	if err != nil {
		return nil, err
	}

	rec, err := s.commitAttendance(ctx, match.IdentityID, models.MethodDirectFace, match.Confidence, s.now(), false)
	if err != nil {
		observability.Verifications.WithLabelValues(string(models.MethodDirectFace), Reason(err)).Inc()
		return nil, err
	}

	s.archive(ctx, match.IdentityID, "verify", imgData)
	s.publishCheckin(ctx, rec)
	observability.Verifications.WithLabelValues(string(models.MethodDirectFace), "ok").Inc()
	return rec, nil
}

// RemoveIdentity deletes the identity's enrollment, drops any open session,
// and purges archived captures.
func (s *Service) RemoveIdentity(ctx context.Context, identityID string) error {
	if err := s.engine.Remove(ctx, identityID); err != nil {
		if errors.Is(err, recognize.ErrIdentityUnknown) {
			return fmt.Errorf("%s: %w", identityID, ErrIdentityNotFound)
		}
		return err
	}

	s.sessions.Delete(identityID)

	if s.captures != nil {
		if err := s.captures.PurgeIdentity(ctx, identityID); err != nil {
			slog.Warn("purge captures failed", "identity", identityID, "error", err)
		}
	}

	slog.Info("identity removed", "identity", identityID)
	return nil
}

// SystemStats describes the live state of the service.
type SystemStats struct {
	Identities     int  `json:"identities"`
	Templates      int  `json:"templates"`
	Trained        bool `json:"trained"`
	ActiveSessions int  `json:"active_sessions"`
	CheckinsToday  int  `json:"checkins_today"`
}

func (s *Service) Stats(ctx context.Context) (*SystemStats, error) {
	engineStats := s.engine.Stats()

	today, err := s.store.CountAttendanceOn(ctx, dateOf(s.now()))
	if err != nil {
		return nil, err
	}

	return &SystemStats{
		Identities:     engineStats.Identities,
		Templates:      engineStats.Templates,
		Trained:        engineStats.Trained,
		ActiveSessions: s.sessions.Active(),
		CheckinsToday:  today,
	}, nil
}

// lockIdentity takes the identity's completion lock and returns the release.
func (s *Service) lockIdentity(identityID string) func() {
	v, _ := s.verifyLocks.LoadOrStore(identityID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// verifyFace runs the shared conditioner -> classifier path.
func (s *Service) verifyFace(imgData []byte, method models.Method) (*recognize.Match, error) {
	img, err := decodeImage(imgData)
	if err != nil {
		observability.Verifications.WithLabelValues(string(method), ReasonInvalidInput).Inc()
		return nil, err
	}

	conditioned, _, err := s.conditioner.Condition(img)
	if err != nil {
		observability.Verifications.WithLabelValues(string(method), ReasonLowLight).Inc()
		observability.LowLightRejections.Inc()
		return nil, err
	}

	match, err := s.engine.Classify(conditioned, s.confidence)
	if err != nil {
		observability.Verifications.WithLabelValues(string(method), Reason(err)).Inc()
		return nil, err
	}
	return match, nil
}

// commitAttendance writes one attendance row, resolving the identity's
// display name and normalizing the date. A duplicate for (identity, date)
// maps to ErrAlreadyMarked.
func (s *Service) commitAttendance(ctx context.Context, identityID string, method models.Method, confidence float64, at time.Time, offline bool) (*models.AttendanceRecord, error) {
	ident, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	name := identityID
	if ident != nil {
		name = ident.Name
	}

	rec := &models.AttendanceRecord{
		IdentityID: identityID,
		Name:       name,
		Date:       dateOf(at),
		CheckInAt:  at,
		Method:     method,
		Confidence: confidence,
		IsOffline:  offline,
	}

	if err := s.store.InsertAttendance(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateAttendance) {
			return nil, fmt.Errorf("%s on %s: %w", identityID, rec.Date.Format("2006-01-02"), ErrAlreadyMarked)
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) publishCheckin(ctx context.Context, rec *models.AttendanceRecord) {
	if s.publisher == nil {
		return
	}
	event := models.CheckinEvent{
		IdentityID: rec.IdentityID,
		Name:       rec.Name,
		Date:       rec.Date.Format("2006-01-02"),
		CheckInAt:  rec.CheckInAt,
		Method:     rec.Method,
		Confidence: rec.Confidence,
		IsOffline:  rec.IsOffline,
	}
	if err := s.publisher.PublishCheckin(ctx, rec.IdentityID, event); err != nil {
		// The row is committed; the feed is best effort.
		slog.Warn("publish checkin failed", "identity", rec.IdentityID, "error", err)
	}
}

// archive stores the raw capture, best effort. Returns the object key or "".
func (s *Service) archive(ctx context.Context, identityID, kind string, imgData []byte) string {
	if s.captures == nil {
		return ""
	}
	key, err := s.captures.ArchiveCapture(ctx, identityID, kind, imgData)
	if err != nil {
		slog.Warn("archive capture failed", "identity", identityID, "kind", kind, "error", err)
		return ""
	}
	return key
}

func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload: %w", ErrInvalidInput)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", ErrInvalidInput)
	}
	return img, nil
}

// dateOf truncates a timestamp to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
