// Package api exposes the admin over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"contentdesk/internal/authz"
	"contentdesk/internal/cms"
	"contentdesk/internal/logger"

	"github.com/gin-gonic/gin"
)

const DefaultPrefix = "/cms"

type Options struct {
	Prefix string         // префикс экранов админки, по умолчанию /cms
	Tokens *authz.Service // nil — без аутентификации
}

// NewRouter собирает маршруты:
//
//	GET  {prefix}/:type            список
//	GET  {prefix}/:type/create     пустая форма
//	POST {prefix}/:type/create     создание
//	GET  {prefix}/:type/:id        форма записи
//	POST {prefix}/:type/:id        сохранение
//	GET|POST /api/cms/lookup       поиск по нескольким типам
//	GET  /api/cms/meta[/:type]     описание типов
func NewRouter(p *cms.Provider, ctrl *cms.Controller, opts Options) *gin.Engine {
	prefix := "/" + strings.Trim(strings.TrimSpace(opts.Prefix), "/")
	if prefix == "/" {
		prefix = DefaultPrefix
	}

	r := gin.New()
	r.Use(RequestID(), AccessLog(), Recovery(), CORS())
	auth := Auth(opts.Tokens)

	admin := r.Group(prefix, auth)
	{
		// статический create — раньше :id
		admin.GET("/:type/create", CreateFormHandler(ctrl))
		admin.POST("/:type/create", StoreHandler(ctrl))

		admin.GET("/:type", IndexHandler(ctrl))
		admin.GET("/:type/:id", EditHandler(ctrl))
		admin.POST("/:type/:id", UpdateHandler(ctrl))
	}

	apiGroup := r.Group("/api/cms", auth)
	{
		apiGroup.GET("/lookup", LookupHandler(p))
		apiGroup.POST("/lookup", LookupHandler(p))
		apiGroup.GET("/meta", MetaListHandler(p.Registry()))
		apiGroup.GET("/meta/kinds", MetaKindsHandler())
		apiGroup.GET("/meta/types/:type", MetaTypeHandler(p.Registry()))
		apiGroup.GET("/lint", SchemaLintHandler(p))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

// RunServer слушает addr до отмены ctx, затем даёт запросам 10 секунд на завершение.
func RunServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
