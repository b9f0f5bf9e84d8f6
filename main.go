package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"nursery-locator/internal/boundary"
	"nursery-locator/internal/catalog"
)

const version = "0.1.0"

func main() {
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		fmt.Printf("nursery-locator version %s\n", version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	setupLogging(cfg)

	app, err := loadApp(cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(app)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr, "nurseries", len(app.nurseries))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	slog.Info("shutdown initiated")

	app.jobs.CancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
	}
}

// loadApp reads the nursery table and the optional boundary.
func loadApp(cfg Config) (*App, error) {
	nurseries, err := catalog.Load(cfg.NurseryFile, cfg.NurserySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to load nurseries: %w", err)
	}
	slog.Info("nurseries loaded", "file", cfg.NurseryFile, "count", len(nurseries))

	var b *boundary.Boundary
	if cfg.BoundaryFile != "" {
		b, err = boundary.Load(cfg.BoundaryFile, cfg.BoundaryName)
		if err != nil {
			slog.Warn("boundary disabled", "file", cfg.BoundaryFile, "err", err)
		} else {
			slog.Info("boundary loaded", "name", b.Name(), "fallback_inside", b.Contains(cfg.Fallback))
		}
	}

	return newApp(cfg, nurseries, b), nil
}

func setupLogging(cfg Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Nursery Locator v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  nursery-locator [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 9595)")
	fmt.Println("  NURSERY_FILE            Nursery table, .xlsx or .dbf (default: NURSARY.xlsx)")
	fmt.Println("  NURSERY_SHEET           Worksheet to read (default: first sheet)")
	fmt.Println("  BOUNDARY_FILE           Division outline GeoJSON (default: khariar_boundary.geojson)")
	fmt.Println("  BOUNDARY_NAME           Display name of the outline (default: Khariar Division)")
	fmt.Println("  FALLBACK_LAT            Latitude used when the client sends none (default: 20.56)")
	fmt.Println("  FALLBACK_LON            Longitude used when the client sends none (default: 84.14)")
	fmt.Println("  DISTANCE_UNIT           km or m (default: km)")
	fmt.Println("  TIE_EPSILON             Distances closer than this count as a tie (default: 1e-9)")
	fmt.Println("  UPLOAD_DIR              Batch upload directory (default: uploads)")
	fmt.Println("  OUTPUT_DIR              Batch result directory (default: output)")
	fmt.Println("  TEMPLATES_DIR           HTML templates (default: templates)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  SHUTDOWN_TIMEOUT        Graceful shutdown timeout (default: 10s)")
	fmt.Println("  LOG_LEVEL               debug, info, warn or error (default: info)")
	fmt.Println("  LOG_FORMAT              text or json (default: text)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health                       Health check")
	fmt.Println("  GET  /api/nurseries                Loaded nurseries")
	fmt.Println("  GET  /api/boundary                 Division outline (GeoJSON)")
	fmt.Println("  GET  /api/nearest?lat&lon          Nearest nursery")
	fmt.Println("  GET  /api/distances?lat&lon        Every nursery with its distance")
	fmt.Println("  GET  /api/within?lat&lon&radius_m  Nurseries within a radius")
	fmt.Println("  GET  /api/select?click_lat&click_lng  Nursery nearest a map click")
	fmt.Println("  GET  /api/export?lat&lon           Distances as a workbook")
	fmt.Println("  POST /run                          Start a batch job")
	fmt.Println()
}
