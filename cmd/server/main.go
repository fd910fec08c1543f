package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damacus/iron-drawer/internal/browser"
	"github.com/damacus/iron-drawer/internal/config"
	"github.com/damacus/iron-drawer/internal/handlers"
	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/metrics"
	customMiddleware "github.com/damacus/iron-drawer/internal/middleware"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/objectstore"
	"github.com/damacus/iron-drawer/internal/plugins"
	"github.com/damacus/iron-drawer/internal/plugins/builtin"
	"github.com/damacus/iron-drawer/internal/renderer"
	"github.com/damacus/iron-drawer/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// objectsPrefix is where the memory store serves its presigned links.
const objectsPrefix = "/_objects"

// sweepInterval checks for idle widgets a few times per TTL.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return max(ttl/4, time.Second)
}

func main() {
	configPath := flag.String("config", os.Getenv("DRAWER_CONFIG"), "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		TimeFormat: "rfc3339",
		Output:     os.Stdout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	d, err := buildDeps(ctx, cfg, &services.RealMinioFactory{})
	cancel()
	if err != nil {
		log.ErrorWith("failed to connect backends", err, nil)
		os.Exit(1)
	}
	defer d.close()

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	e := newServer(runCtx, cfg, log, d)

	go func() {
		log.InfoWith("server starting", map[string]interface{}{
			"addr":     cfg.Server.Addr,
			"bucket":   cfg.Storage.Bucket,
			"provider": cfg.Storage.Provider,
		})
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorWith("server stopped", err, nil)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.ErrorWith("shutdown failed", err, nil)
	}
}

// deps are the backends the server runs against.
type deps struct {
	store   objectstore.Client
	presign objectstore.PresignFunc
	// objects serves presigned links when the store has no endpoint of its own.
	objects  http.Handler
	admin    services.MinioAdminClient
	comments builtin.CommentStore
	closers  []func() error
}

func (d deps) close() {
	for _, fn := range d.closers {
		_ = fn()
	}
}

func credentialsFrom(cfg *config.Config) services.Credentials {
	return services.Credentials{
		Endpoint:     cfg.Storage.Endpoint,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		SessionToken: cfg.Storage.SessionToken,
		Region:       cfg.Storage.Region,
		UseSSL:       cfg.Storage.UseSSL,
	}
}

// buildDeps connects the configured store, admin client and comment store.
func buildDeps(ctx context.Context, cfg *config.Config, factory services.MinioClientFactory) (deps, error) {
	var d deps

	switch cfg.Storage.Provider {
	case "memory":
		mem := objectstore.NewMemoryStore()
		d.store = mem
		d.presign = mem.Presigner(strings.TrimSuffix(cfg.Server.PublicURL, "/") + objectsPrefix)
		d.objects = mem
	default:
		creds := credentialsFrom(cfg)
		store, err := factory.NewStore(creds)
		if err != nil {
			return d, err
		}
		if err := store.Ping(ctx, cfg.Storage.Bucket); err != nil {
			return d, err
		}
		d.store = store
		d.presign = store.Presign
		if cfg.Admin.Enabled {
			admin, err := factory.NewAdminClient(creds)
			if err != nil {
				return d, fmt.Errorf("admin client: %w", err)
			}
			d.admin = admin
		}
	}

	switch cfg.Comments.Store {
	case "redis":
		rs := builtin.NewRedisCommentStore(builtin.RedisOptions{
			Addr:     cfg.Comments.RedisAddr,
			Password: cfg.Comments.RedisPassword,
			DB:       cfg.Comments.RedisDB,
		})
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return d, err
		}
		d.comments = rs
		d.closers = append(d.closers, rs.Close)
	default:
		d.comments = builtin.NewMemoryCommentStore()
	}
	return d, nil
}

func newRegistry(cfg *config.Config, log *logger.Logger, d deps) (*plugins.Registry, error) {
	registry := plugins.NewRegistry()
	ps := []plugins.Plugin{
		builtin.NewDocViewer(d.presign, cfg.Storage.Bucket, cfg.Browser.PresignExpiry),
		builtin.NewComments(d.comments, log),
	}
	if d.admin != nil {
		ps = append(ps, builtin.NewStorage(d.admin, cfg.Storage.Bucket, log))
	}
	if err := registry.Register(ps...); err != nil {
		return nil, err
	}
	return registry, nil
}

// newServer wires the routes. Idle widgets are swept until ctx is done.
func newServer(ctx context.Context, cfg *config.Config, log *logger.Logger, d deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	store := objectstore.Instrument(d.store)
	registry, err := newRegistry(cfg, log, d)
	if err != nil {
		// the built-in set is fixed; a clash here is a programming error
		panic(err)
	}

	manager := browser.NewManager(browser.Options{
		Client:        store,
		Bucket:        cfg.Storage.Bucket,
		Label:         cfg.Label(),
		Mapper:        objects.NewMapper(store, cfg.Storage.Bucket, log, objects.WithListMetadata(cfg.Storage.ListWithMetadata)),
		Presign:       d.presign,
		PresignExpiry: cfg.Browser.PresignExpiry,
		Permissions:   browser.PermissionsFrom(cfg.Browser.Permissions),
		Log:           log,
	}, registry, log, browser.WithIdleTTL(cfg.Browser.WidgetIdleTTL))
	go manager.Run(ctx, sweepInterval(cfg.Browser.WidgetIdleTTL))
	browserHandler := handlers.NewBrowserHandler(manager, log)

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(customMiddleware.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(customMiddleware.SecurityHeaders(cfg.Server.FrameSources...))
	e.Use(customMiddleware.CSRF())
	e.Use(customMiddleware.Widgets(manager, "/browser"))

	// Template Renderer
	e.Renderer = renderer.New(renderer.DefaultDir)

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/browser")
	})

	browserHandler.Routes(e.Group("/browser"))

	pluginGroup := e.Group("/plugins")
	for _, p := range registry.All() {
		if r, ok := p.(plugins.Router); ok {
			r.Routes(pluginGroup)
		}
	}

	if d.objects != nil {
		objectsHandler := echo.WrapHandler(http.StripPrefix(objectsPrefix, d.objects))
		e.GET(objectsPrefix+"/*", objectsHandler)
		e.HEAD(objectsPrefix+"/*", objectsHandler)
	}

	return e
}
