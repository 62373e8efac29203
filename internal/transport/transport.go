package transport

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aurak-emp/attendance/internal/transport/middleware"
	"github.com/aurak-emp/attendance/pkg/queue"
)

// HealthHandler отвечает на проверки живости сервиса
type HealthHandler struct {
	db    *sql.DB
	queue *queue.RedisQueue
}

func NewHealthHandler(db *sql.DB, q *queue.RedisQueue) *HealthHandler {
	return &HealthHandler{db: db, queue: q}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	resp := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["database"] = err.Error()
		} else {
			resp["database"] = "ok"
		}
	}

	if h.queue != nil {
		if stats, err := h.queue.GetQueueStats(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["queue"] = err.Error()
		} else {
			resp["queue"] = stats
		}
	}

	c.JSON(status, resp)
}

func InitRoutes(eventHandler *EventHandler, attendanceHandler *AttendanceHandler, healthHandler *HealthHandler) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30 * time.Second))

	// Маршруты сканера и формы регистрации. Сканеры на входе бьют в
	// короткие пути без версионирования.
	router.POST("/register", attendanceHandler.Register)
	router.POST("/checkin", attendanceHandler.CheckIn)
	router.GET("/present/:event_id", attendanceHandler.GetPresent)

	// API routes
	api := router.Group("/api/v1")
	{
		// Event routes
		events := api.Group("/events")
		{
			events.POST("", eventHandler.CreateEvent)
			events.GET("", eventHandler.GetAllEvents)
			events.GET("/:id", eventHandler.GetEvent)
			events.PUT("/:id/status", eventHandler.UpdateEventStatus)
			events.DELETE("/:id", eventHandler.DeleteEvent)

			// Roster routes
			events.GET("/:id/attendees", attendanceHandler.GetEventAttendees)
			events.GET("/:id/stats", attendanceHandler.GetEventStats)
		}
	}

	// Health check
	router.GET("/health", healthHandler.Health)

	return router
}
