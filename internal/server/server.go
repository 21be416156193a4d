package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	articledomain "github.com/smallbiznis/bsma/internal/article/domain"
	"github.com/smallbiznis/bsma/internal/config"
	macdomain "github.com/smallbiznis/bsma/internal/mac/domain"
	"github.com/smallbiznis/bsma/internal/observability"
	obslogger "github.com/smallbiznis/bsma/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bsma/internal/observability/metrics"
	obstracing "github.com/smallbiznis/bsma/internal/observability/tracing"
	operationdomain "github.com/smallbiznis/bsma/internal/operation/domain"
	productdomain "github.com/smallbiznis/bsma/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	productSvc   productdomain.Service
	articleSvc   articledomain.Service
	macSvc       macdomain.Service
	operationSvc operationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	ProductSvc   productdomain.Service
	ArticleSvc   articledomain.Service
	MacSvc       macdomain.Service
	OperationSvc operationdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		productSvc:   p.ProductSvc,
		articleSvc:   p.ArticleSvc,
		macSvc:       p.MacSvc,
		operationSvc: p.OperationSvc,
	}

	svc.registerHealthRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", s.Health)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Products --------
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)
	api.PATCH("/products/:id", s.UpdateProduct)
	api.DELETE("/products/:id", s.DeleteProduct)

	// -------- MAC pool --------
	api.GET("/products/:id/macs", s.GetMacUsage)
	api.POST("/products/:id/macs/reserve", s.ReserveMacs)

	// -------- Articles --------
	api.GET("/articles", s.ListArticles)
	api.POST("/articles", s.ActorRequired(), s.CreateArticle)
	api.GET("/articles/next", s.ActorRequired(), s.NextArticle)
	api.GET("/articles/by-barcode/:barcode", s.GetArticleByBarcode)
	api.PATCH("/articles/by-barcode/:barcode", s.UpdateArticleByBarcode)
	api.GET("/articles/:id", s.GetArticleByID)
	api.GET("/articles/:id/imei", s.GetArticleIMEI)
	api.DELETE("/articles/:id", s.DeleteArticle)

	// -------- Operations --------
	api.GET("/operations", s.ListOperations)
	api.POST("/operations", s.CreateOperation)
	api.GET("/operations/:id", s.GetOperationByID)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// Health pings the database so a replica that lost it is taken out of
// rotation.
func (s *Server) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			status = http.StatusServiceUnavailable
			body = gin.H{"status": "degraded", "database": "unreachable"}
		}
	}

	c.JSON(status, body)
}
