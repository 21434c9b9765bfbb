package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/auth/jwt"
	"github.com/parleyhq/parley/internal/chatserver/database"
	"github.com/parleyhq/parley/internal/chatserver/handler"
	"github.com/parleyhq/parley/internal/chatserver/middleware"
	"github.com/parleyhq/parley/internal/common/cnst"
	"github.com/parleyhq/parley/internal/common/config"
	"github.com/parleyhq/parley/internal/i18n"
	"github.com/parleyhq/parley/internal/relay"
	"github.com/parleyhq/parley/pkg/logger"
	"github.com/parleyhq/parley/pkg/metrics"
	"github.com/parleyhq/parley/pkg/trace"
	"github.com/parleyhq/parley/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + cnst.CommandName,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", cnst.CommandName, version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   cnst.CommandName,
		Short: "Parley chat relay server",
		Long:  `Parley relays live chat between site visitors and the admin dashboard over websockets`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.ChatServerYaml, "path to configuration file, like /etc/parley/chatserver.yaml")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("failed to load configuration from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = lg.Sync()
	}()

	lg.Info("starting chatserver",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		lg.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			lg.Error("failed to shutdown tracing", zap.Error(err))
		}
	}()

	// Translations
	if err := i18n.InitTranslator(cfg.I18n.Path); err != nil {
		lg.Warn("failed to load translations, responses fall back to message IDs",
			zap.String("path", cfg.I18n.Path),
			zap.Error(err))
	}

	// Persistence
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		lg.Fatal("failed to initialize database",
			zap.String("type", cfg.Database.Type),
			zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	created, err := database.EnsureAdminUser(ctx, db, cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		lg.Fatal("failed to seed admin account", zap.Error(err))
	}
	if created {
		lg.Info("created bootstrap admin account", zap.String("username", cfg.Admin.Username))
	}

	jwtService, err := jwt.NewService(cfg.JWT)
	if err != nil {
		lg.Fatal("failed to initialize JWT service", zap.Error(err))
	}

	m := metrics.New(cfg.Metrics)

	// Relay hub
	hub := relay.NewHub(lg, cfg.Relay, m)
	if cfg.Bridge.Enabled {
		bridge, err := relay.NewBridge(ctx, lg, cfg.Bridge)
		if err != nil {
			lg.Fatal("failed to connect relay bridge", zap.Error(err))
		}
		defer func() {
			_ = bridge.Close()
		}()
		hub.SetBridge(bridge)
		go bridge.Run(hub)
		lg.Info("relay bridge enabled", zap.String("addr", cfg.Bridge.Addr))
	}
	go hub.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.CORS.AllowOrigins))
	router.Use(i18n.Middleware())
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(cnst.AppName))
	}
	if cfg.Metrics.Enabled {
		router.Use(m.Middleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handler.NewAuth(db, jwtService)
	chatHandler := handler.NewChat(db, hub, lg)
	wsHandler := handler.NewWebSocket(lg, hub, db, cfg.Relay)

	router.POST("/api/auth/login", authHandler.Login)

	authed := router.Group("/", middleware.JWTAuthMiddleware(jwtService))
	authed.POST("/api/auth/password", authHandler.ChangePassword)
	authed.GET("/api/chat/sessions", chatHandler.HandleGetChatSessions)
	authed.GET("/api/chat/sessions/:sessionId/messages", chatHandler.HandleGetChatMessages)
	authed.POST("/api/chat/sessions/:sessionId/read", chatHandler.HandleMarkRead)
	authed.DELETE("/api/chat/sessions/:sessionId", chatHandler.HandleDeleteSession)
	authed.POST("/api/chat/sessions/:sessionId/block", chatHandler.HandleBlockSession)
	authed.DELETE("/api/chat/sessions/:sessionId/block", chatHandler.HandleUnblockSession)
	authed.GET("/ws/admin", wsHandler.HandleAdmin)

	// visitor widget endpoints, no auth
	router.POST("/api/chat/sessions", chatHandler.HandleCreateSession)
	router.POST("/api/chat/sessions/:sessionId/messages", chatHandler.HandlePostMessage)
	router.GET("/ws/chat", wsHandler.HandleChat)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		lg.Info("chatserver listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down chatserver")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("failed to shutdown server", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
