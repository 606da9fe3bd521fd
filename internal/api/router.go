package api

import (
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/greeter/internal/api/handlers"
	"github.com/your-org/greeter/internal/api/ws"
	"github.com/your-org/greeter/internal/bus"
	"github.com/your-org/greeter/internal/greet"
	"github.com/your-org/greeter/internal/notify"
	"github.com/your-org/greeter/internal/recognize"
	"github.com/your-org/greeter/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	WebDir   string
	DB       *storage.PostgresStore
	Images   *storage.MinIOStore
	Bus      *bus.Client
	Greet    *greet.Service
	Workflow *recognize.Workflow
	Fanout   *notify.Fanout
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Images, cfg.Bus)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Dashboard landing page and real-time channel
	r.StaticFile("/", filepath.Join(cfg.WebDir, "index.html"))
	r.GET("/ws", cfg.Hub.HandleWS)

	api := r.Group("/api")
	api.Use(APIKeyMiddleware(cfg.APIKey))

	greetingH := handlers.NewGreetingHandler(cfg.Greet, cfg.Fanout)
	api.POST("/greet", greetingH.Create)
	api.GET("/greetings", greetingH.List)
	api.GET("/stats", greetingH.Stats)

	visitorH := handlers.NewVisitorHandler(cfg.Workflow, cfg.DB, cfg.Images, cfg.Fanout)
	api.POST("/visitors/upload", visitorH.Upload)
	api.GET("/visitors", visitorH.List)
	api.GET("/visitors/:id", visitorH.Get)
	api.GET("/visitors/:id/image", visitorH.Image)
	api.POST("/visitors/:id/identify", visitorH.Identify)

	return r
}
