package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"greening/internal/logger"
)

// NewRouter собирает все маршруты. Маршруты сущностей и их алиасов
// регистрируются по схемам, без :entity-параметра.
func NewRouter(storage *Storage) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(RequestID(), gin.Logger(), gin.Recovery(), corsMiddleware(storage.Cfg.CORSOrigins))

	r.GET("/healthz", HealthHandler())
	r.GET("/readyz", ReadyHandler(storage))
	if storage.Cfg.BlobDriver == "local" {
		r.Static("/uploads", storage.Cfg.FilesRoot)
	}

	requireAuth := AuthRequired(storage.Tokens)
	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/login", LoginHandler(storage))

		apiGroup.GET("/summary", SummaryHandler(storage))
		apiGroup.POST("/summary", SummaryHandler(storage))

		apiGroup.GET("/meta", MetaListHandler(storage))
		apiGroup.GET("/meta/:entity", MetaEntityHandler(storage))

		apiGroup.GET("/settings", SettingsListHandler(storage))
		apiGroup.GET("/settings/:section", SettingGetHandler(storage))
		apiGroup.PUT("/settings/:section", requireAuth, SettingUpdateHandler(storage))
		apiGroup.PATCH("/settings/:section", requireAuth, SettingUpdateHandler(storage))

		apiGroup.GET("/site/sections", SiteSectionsListHandler(storage))
		apiGroup.GET("/site/sections/:key", SiteSectionGetHandler(storage))
		apiGroup.PATCH("/site/sections/:key", requireAuth, SiteSectionUpdateHandler(storage))

		// обычные CRUD
		for _, name := range storage.entityNames() {
			e := storage.Schemas[name]
			for _, route := range storage.routeNames(name) {
				g := apiGroup.Group("/" + route)
				g.GET("", ListHandler(storage, e))
				g.GET("/:id", GetOneHandler(storage, e))
				g.POST("", requireAuth, CreateHandler(storage, e))
				g.PUT("/:id", requireAuth, UpdateHandler(storage, e))
				g.DELETE("/:id", requireAuth, DeleteHandler(storage, e))
			}
		}
	}
	return r
}

// RunServer обслуживает запросы до отмены ctx, затем ждёт текущие запросы (не дольше 15s).
func RunServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
