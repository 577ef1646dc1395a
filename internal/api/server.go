package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vladimiradmaev/dish-journal/internal/interfaces"
	"github.com/vladimiradmaev/dish-journal/internal/metrics"
)

const maxUploadBytes = 10 << 20

// Deps are the collaborators the HTTP API needs.
type Deps struct {
	Dishes   interfaces.DishServiceInterface
	Calendar interfaces.CalendarServiceInterface
	Users    interfaces.UserServiceInterface
	Tokens   *Tokens

	// AllowedOrigins enables CORS with credentials for these origins.
	AllowedOrigins []string
	// ImageDir is served under ImagePrefix when images are kept locally.
	ImageDir    string
	ImagePrefix string
	// SecureCookies marks the access token cookie Secure.
	SecureCookies bool
	// Metrics, when set, records requests and is served at /metrics.
	Metrics *metrics.Metrics
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(deps Deps) *gin.Engine {
	h := &handler{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Metrics))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.MaxMultipartMemory = maxUploadBytes

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Dish journal API"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.ImageDir != "" && deps.ImagePrefix != "" {
		r.Static(deps.ImagePrefix, deps.ImageDir)
	}

	login := r.Group("/api/login")
	login.POST("/", h.login)
	login.POST("/logout", h.logout)
	login.POST("/register", h.register)

	authed := r.Group("/api", AuthMiddleware(deps.Tokens))
	authed.GET("/login/me", h.me)
	authed.GET("/dashboard/", h.dashboard)

	date := authed.Group("/date/:year/:month/:day")
	date.GET("", h.dateView)
	date.POST("/upload", h.upload)

	item := authed.Group("/item/:id")
	item.GET("", h.item)
	item.GET("/iterations", h.iterations)
	item.POST("/confirm-step1", h.confirmStep1)
	item.PUT("/metadata", h.updateMetadata)
	item.POST("/reanalyze", h.reanalyze)
	item.DELETE("", h.deleteItem)

	return r
}
