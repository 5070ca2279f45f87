package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/presence/internal/api/handlers"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/attend"
	"github.com/your-org/presence/internal/auth"
	"github.com/your-org/presence/internal/notify"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/recognize"
	"github.com/your-org/presence/internal/storage"
)

type RouterConfig struct {
	APIKey     string
	DB         *storage.PostgresStore
	MinIO      *storage.MinIOStore
	Producer   *queue.Producer
	Service    *attend.Service
	Engine     *recognize.Engine
	Dispatcher *notify.Dispatcher
	Hub        *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Service)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Identities & enrollment
	identityH := handlers.NewIdentityHandler(cfg.Service, cfg.DB, cfg.Engine)
	v1.POST("/identities", identityH.Enroll)
	v1.GET("/identities", identityH.List)
	v1.DELETE("/identities/:id", identityH.Remove)

	// Two-factor verification sessions
	verifyH := handlers.NewVerifyHandler(cfg.Service)
	v1.POST("/sessions", verifyH.OpenSession)
	v1.POST("/sessions/:id/face", verifyH.CompleteSession)

	// Attendance
	attendanceH := handlers.NewAttendanceHandler(cfg.Service, cfg.DB)
	v1.POST("/attendance", verifyH.MarkAttendance)
	v1.GET("/attendance", attendanceH.List)
	v1.GET("/attendance/summary", attendanceH.Summary)
	v1.POST("/reconcile", attendanceH.Reconcile)

	// Notifications
	notificationH := handlers.NewNotificationHandler(cfg.DB, cfg.Producer, cfg.Dispatcher)
	v1.GET("/notifications/status", notificationH.Status)
	v1.POST("/notifications/retry", notificationH.Retry)

	// System stats
	v1.GET("/system/stats", systemH.Stats)

	return r
}
