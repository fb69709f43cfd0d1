package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/drstein77/storefront/internal/apiclient"
	"github.com/drstein77/storefront/internal/catalog"
	"github.com/drstein77/storefront/internal/config"
	"github.com/drstein77/storefront/internal/controllers"
	"github.com/drstein77/storefront/internal/logger"
	"github.com/drstein77/storefront/internal/middleware"
	"github.com/drstein77/storefront/internal/session"
	"github.com/drstein77/storefront/internal/sessionkeeper"
	"github.com/drstein77/storefront/internal/storefront"
	"github.com/drstein77/storefront/internal/views"
	"github.com/go-chi/chi"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// handlerTimeout bounds a whole page render, which may call the API several times.
const handlerTimeout = 60 * time.Second

// Server runs the storefront until its context is cancelled.
// Log is set by NewServer and never replaced, so it is safe to use from other goroutines.
type Server struct {
	ctx             context.Context
	option          *config.Options
	shutdownTimeout time.Duration
	Log             *logger.Logger
}

// NewServer creates a new Server instance with the provided context and parsed options
func NewServer(ctx context.Context, option *config.Options, shutdownTimeout time.Duration) *Server {
	// get a new logger
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		log.Fatalln(err)
	}

	return &Server{
		ctx:             ctx,
		option:          option,
		shutdownTimeout: shutdownTimeout,
		Log:             nLogger,
	}
}

// Serve wires the storefront and blocks until the context is cancelled or
// the listener fails. Everything it opened is released before it returns.
func (server *Server) Serve() {
	option := server.option
	nLogger := server.Log
	defer nLogger.Sync()

	api := apiclient.New(option.APIEndpoint(), option.RequestTimeout(), nLogger)

	// the catalog runs uncached without redis
	var cache catalog.Cache
	if addr := option.RedisAddr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() {
			if err := rdb.Close(); err != nil {
				nLogger.Error("redis close error", zap.Error(err))
			}
		}()
		if err := rdb.Ping(server.ctx).Err(); err != nil {
			nLogger.Warn("redis unreachable, catalog cache may miss", zap.String("addr", addr), zap.Error(err))
		}
		cache = catalog.NewRedisCache(rdb, option.CatalogTTL())
	}
	cat := catalog.New(api, cache, nLogger)

	// sessions are kept in memory unless a database is configured
	var keeper session.Keeper
	if kp := sessionkeeper.NewKeeper(server.ctx, option.DataBaseDSN, nLogger); kp != nil {
		keeper = kp
	}
	storage := session.NewMemoryStorage(server.ctx, keeper, option.SessionTTL(), nLogger)
	defer storage.Close()

	store := storefront.NewService(api, cat, storage, storefront.Config{
		SearchDebounce: option.SearchDebounce(),
		RequestTimeout: option.RequestTimeout(),
		CartMode:       option.CartMode(),
	}, nLogger)
	defer store.Close()

	renderer, err := views.New()
	if err != nil {
		nLogger.Error("cannot parse templates", zap.Error(err))
		return
	}
	basecontr := controllers.NewBaseController(store, renderer, option.CookieSecure(), nLogger)

	// create router and mount routes
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(nLogger.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(handlerTimeout))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.Session(storage, option.CookieSecure(), nLogger))
	r.Mount("/", basecontr.Route())

	srv := &http.Server{
		Addr:              option.RunAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// a cancellation during start-up must not leave the listener running
	if server.ctx.Err() != nil {
		nLogger.Info("stopped before the server started")
		return
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-server.ctx.Done()
		server.shutdown(srv)
	}()

	nLogger.Info("storefront started",
		zap.String("addr", option.RunAddr()),
		zap.String("api", option.APIEndpoint()),
		zap.String("cart_mode", string(option.CartMode())),
	)
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		// wait for in-flight requests before the deferred closes run
		<-stopped
		nLogger.Info("server stopped gracefully")
		return
	}
	nLogger.Error("server stopped", zap.Error(err))
}

func (server *Server) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), server.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Error("server shutdown error", zap.Error(err))
	}
}
