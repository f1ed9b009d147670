package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/ai"
	apihttp "github.com/GriffinCanCode/CometPilot/backend/internal/api/http"
	"github.com/GriffinCanCode/CometPilot/backend/internal/api/middleware"
	"github.com/GriffinCanCode/CometPilot/backend/internal/api/ws"
	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
	"github.com/GriffinCanCode/CometPilot/backend/internal/dispatch"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
	"github.com/GriffinCanCode/CometPilot/backend/internal/permissions"
	"github.com/GriffinCanCode/CometPilot/backend/internal/robot"
	"github.com/GriffinCanCode/CometPilot/backend/internal/sequencer"
	"github.com/GriffinCanCode/CometPilot/backend/internal/vision"
)

const shutdownGrace = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	perms    *permissions.Store
	robot    *robot.Executor
	confirms *robot.Queue
	ocr      *ocr.Engine
	queue    *sequencer.Manager
	bridge   *ws.Bridge

	router *gin.Engine
	http   *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logger.Logger

	log.Info("initializing CometPilot backend",
		zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("storage", cfg.Storage.Dir),
		zap.Bool("robot", cfg.Robot.Enabled),
		zap.String("confirm_mode", cfg.Robot.ConfirmMode))

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("api", log)

	perms, err := permissions.Open(cfg.Storage.Dir,
		permissions.WithLogger(logger.Component("permissions")),
		permissions.WithMetrics(metrics))
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open permission store: %w", err)
	}

	var driver desktop.Driver = desktop.Unavailable{}
	if cfg.Robot.Enabled {
		driver = desktop.NewDefault(log)
	}

	var pre ocr.Preprocessor
	if cfg.OCR.Preprocess {
		pre = ocr.NewPreprocessor(cfg.OCR.PreprocessWidth)
	}
	engine := ocr.NewEngine(driver, pre,
		ocr.DefaultFactory(cfg.OCR.TesseractPath, cfg.OCR.Language),
		ocr.Options{MaxCapture: cfg.OCR.MaxCapture, MinConfidence: cfg.OCR.MinConfidence},
		logger.Component("ocr"), metrics)

	var confirmer robot.Confirmer
	var confirmQueue *robot.Queue
	switch cfg.Robot.ConfirmMode {
	case "terminal":
		confirmer = robot.NewTerminal()
	case "", "queue":
		confirmQueue = robot.NewQueue()
		confirmer = confirmQueue
	default:
		tracer.Close()
		return nil, fmt.Errorf("unknown robot confirm mode %q", cfg.Robot.ConfirmMode)
	}

	executor := robot.New(driver, perms, robot.Config{
		MinDelay:  time.Duration(cfg.Robot.MinDelayMS) * time.Millisecond,
		Confirmer: confirmer,
		Logger:    logger.Component("robot"),
		Metrics:   metrics,
	})

	models := ai.FromConfig(cfg.AI, logger.Component("ai"), metrics)
	var resolverChat ai.ChatEngine
	if len(models.Configured()) > 0 {
		resolverChat = models
	}
	resolver := vision.NewResolver(engine, resolverChat, executor, cfg.AI.ResolverModel, logger.Component("vision"), metrics)
	describer := vision.NewDescriber(engine, driver, models, models, cfg.AI.DescribeModel, logger.Component("vision"))

	var shell dispatch.Shell
	if cfg.Shell.Enabled {
		shell = dispatch.NewPTYShell(cfg.Shell.Path, time.Duration(cfg.Shell.TimeoutSec)*time.Second, logger.Component("shell"))
	}

	// The bridge subscribes to the queue that feeds the dispatcher, so the
	// dispatcher reaches it through a late-bound browser.
	browser := &lateBrowser{}
	dispatcher := dispatch.New(dispatch.Deps{
		OCR:      engine,
		Clicker:  resolver,
		Analyzer: describer,
		Browser:  browser,
		Shell:    shell,
		System:   dispatch.NewOSControl(),
		Logger:   logger.Component("dispatch"),
	})
	queue := sequencer.NewManager(dispatcher, perms, logger.Component("queue"), metrics)

	var bridge *ws.Bridge
	if cfg.Bridge.Enabled {
		bridge = ws.NewBridge(ws.Deps{
			Secret:        cfg.Bridge.Token,
			Chat:          models,
			Scanner:       engine,
			Clicker:       resolver,
			Describer:     describer,
			Queue:         queue,
			Confirmations: confirmQueue,
			Logger:        log,
			Metrics:       metrics,
		})
		browser.target = bridge
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engineRouter := gin.New()
	engineRouter.Use(gin.Recovery())
	engineRouter.Use(tracing.HTTPMiddleware(tracer))
	engineRouter.Use(monitoring.Middleware(metrics))
	engineRouter.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		engineRouter.Use(middleware.RateLimit(rl))
	}

	apihttp.NewHandlers(apihttp.Deps{
		Permissions:   perms,
		Robot:         executor,
		Confirmations: confirmQueue,
		OCR:           engine,
		Clicker:       resolver,
		Queue:         queue,
		AI:            models,
		Metrics:       metrics,
		Logger:        logger.Component("api"),
	}).Register(engineRouter)
	if bridge != nil {
		bridge.Register(engineRouter)
	}

	log.Info("server initialized",
		zap.Bool("desktop_available", driver.Available()),
		zap.Bool("bridge", bridge != nil),
		zap.Bool("shell", shell != nil))

	return &Server{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		perms:    perms,
		robot:    executor,
		confirms: confirmQueue,
		ocr:      engine,
		queue:    queue,
		bridge:   bridge,
		router:   engineRouter,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           engineRouter,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// BridgePairingCode returns a pairing code for the bridge, or "" when the
// bridge is disabled.
func (s *Server) BridgePairingCode() string {
	if s.bridge == nil {
		return ""
	}
	port, _ := strconv.Atoi(s.config.Server.Port)
	return s.bridge.PairingCode(s.config.Server.Host, port)
}

// Run serves HTTP until Shutdown.
func (s *Server) Run() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the bridge and the active queue, then drains HTTP.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.bridge != nil {
		s.bridge.Stop()
	}
	s.queue.Clear()
	if s.confirms != nil {
		s.confirms.DenyAll()
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("http shutdown failed", zap.Error(err))
	}

	if cerr := s.ocr.Close(); cerr != nil {
		s.logger.Warn("failed to close OCR engine", zap.Error(cerr))
	}
	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}

// lateBrowser forwards to the bridge once it exists.
type lateBrowser struct {
	target dispatch.BrowserShell
}

func (l *lateBrowser) Send(ctx context.Context, cmd command.Command) (string, error) {
	if l.target == nil {
		return "", dispatch.ErrNoBrowser
	}
	return l.target.Send(ctx, cmd)
}
