package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/crfsearch/internal/batch"
	"github.com/copyleftdev/crfsearch/internal/calibrate"
	"github.com/copyleftdev/crfsearch/internal/config"
	apperrors "github.com/copyleftdev/crfsearch/internal/errors"
	"github.com/copyleftdev/crfsearch/internal/explore"
	"github.com/copyleftdev/crfsearch/internal/logging"
	"github.com/copyleftdev/crfsearch/internal/media"
	"github.com/copyleftdev/crfsearch/internal/metrics"
	"github.com/copyleftdev/crfsearch/internal/server"
	"github.com/copyleftdev/crfsearch/internal/twostage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize base logger
	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	serviceLogger := logger.WithFields(map[string]interface{}{
		"service": "crfsearchd",
		"version": "1.0.0",
	})

	ctxLogger := &logging.CtxLogger{Logger: serviceLogger}
	ctx = ctxLogger.WithContext(ctx)

	// The thread split is decided once per process, not per file.
	alloc := batch.BalancedAllocation(batch.ParseWorkload(cfg.Batch.Workload))
	serviceLogger.Info("thread budget", map[string]interface{}{
		"parallel_tasks": alloc.ParallelTasks,
		"child_threads":  alloc.ChildThreads,
	})

	engineMetrics := metrics.New(prometheus.DefaultRegisterer)

	engine, err := buildEngine(cfg, alloc, serviceLogger, engineMetrics)
	if err != nil {
		serviceLogger.Fatal("Failed to build engine", map[string]interface{}{"error": err.Error()})
	}

	// Create router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))

	r.Use(apperrors.RecoveryMiddleware(serviceLogger))
	r.Use(apperrors.ErrorHandler(serviceLogger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if l := logging.FromContext(req.Context()); l != nil {
			l.Info("Health check")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Handle("/metrics", promhttp.Handler())

	srv := server.NewServer(cfg, serviceLogger, engine)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: r,
	}

	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address": httpServer.Addr,
		})

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serviceLogger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serviceLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing server resources", map[string]interface{}{"error": err})
	}

	serviceLogger.Info("server exited properly")
}

// buildEngine assembles the adapters behind one exploration request:
// ffmpeg encoders, the quality meter, the stream prober, and the
// two-stage orchestration when a fast backend is configured.
func buildEngine(cfg *config.Config, alloc batch.Allocation, logger *logging.Logger, m *metrics.Metrics) (server.Engine, error) {
	encoderLog := logging.NewZapLogger(logger)
	precise, err := media.NewFFmpegEncoder(media.EncoderOptions{
		Codec:     cfg.Encoder.Codec,
		Preset:    cfg.Encoder.Preset,
		WorkDir:   cfg.Encoder.WorkDir,
		Extension: cfg.Encoder.Extension,
		Log:       encoderLog,
	})
	if err != nil {
		return nil, err
	}

	var fast *media.FFmpegEncoder
	if cfg.Encoder.FastCodec != "" {
		fast, err = media.NewFFmpegEncoder(media.EncoderOptions{
			Codec:     cfg.Encoder.FastCodec,
			WorkDir:   cfg.Encoder.WorkDir,
			Extension: cfg.Encoder.Extension,
			Log:       encoderLog,
		})
		if err != nil {
			return nil, err
		}
	}

	staticOffset := calibrate.StaticOffset(
		calibrate.DetectCodec(cfg.Encoder.Codec),
		calibrate.DetectAccelerator(cfg.Encoder.FastCodec))

	meter := media.NewFFmpegQualityMeter()
	prober := media.NewFFprobeProber()

	return server.EngineFunc(func(ctx context.Context, req server.Request) (*explore.Result, error) {
		strategy, err := explore.ParseStrategy(req.Strategy)
		if err != nil {
			return nil, err
		}

		ecfg := explore.Config{
			Strategy:      strategy,
			InitialParam:  cfg.Search.InitialParam,
			MinParam:      cfg.Search.MinParam,
			MaxParam:      cfg.Search.MaxParam,
			Thresholds:    explore.DefaultThresholds(),
			MaxIterations: cfg.Search.MaxIterations,
			Exhaustive:    cfg.Search.Exhaustive,
			Threads:       alloc.ChildThreads,
			Verbose:       cfg.Search.Verbose,
		}
		ecfg.Thresholds.MinSSIM = cfg.Search.MinSSIM
		ecfg.Thresholds.MinPSNR = cfg.Search.MinPSNR
		ecfg.Thresholds.MinMSSSIM = cfg.Search.MinMSSSIM
		if req.InitialParam > 0 {
			ecfg.InitialParam = req.InitialParam
		}
		if req.MinParam > 0 {
			ecfg.MinParam = req.MinParam
		}
		if req.MaxParam > 0 {
			ecfg.MaxParam = req.MaxParam
		}
		if req.Exhaustive {
			ecfg.Exhaustive = true
		}

		st, err := os.Stat(req.Input)
		if err != nil {
			return nil, err
		}
		in := explore.Input{Path: req.Input, Size: st.Size()}
		if info, perr := prober.StreamSizes(req.Input); perr == nil {
			in.StreamSize = info.PureMediaSize()
			in.DurationSecs = info.DurationSecs
		}

		obs := explore.MultiObserver{
			&explore.TraceRecorder{},
			explore.LogObserver{Logger: logger},
		}

		var res *explore.Result
		if fast != nil && strategy == explore.StrategyPreciseQualityMatchCompress {
			res, err = twostage.Search(ctx, twostage.Options{
				Fast:           fast,
				FastSampler:    fast,
				PreciseSampler: precise,
				StaticOffset:   staticOffset,
				Log:            logger,
				Observer:       obs,
			}, ecfg, in, precise, meter, prober)
		} else {
			ectx, cerr := explore.NewContext(ecfg, in, precise, meter, prober, obs)
			if cerr != nil {
				return nil, cerr
			}
			res, err = ectx.Explore(ctx)
		}
		if res != nil {
			saved := int64(0)
			if res.Pass {
				saved = in.Size - res.OutputSize
			}
			m.ObserveRun(strategy.String(), res.Pass, res.Iterations, res.Encodes, res.CacheHits, saved)
		}
		return res, err
	}), nil
}
