package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nursery-locator/internal/boundary"
	"nursery-locator/internal/calculator"
	"nursery-locator/internal/excel"
	"nursery-locator/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// App holds what the handlers share. The nursery slice is never modified
// after startup, so queries read it without locking.
type App struct {
	cfg       Config
	nurseries []models.Nursery
	boundary  *boundary.Boundary
	jobs      *JobStore
}

func newApp(cfg Config, nurseries []models.Nursery, b *boundary.Boundary) *App {
	return &App{
		cfg:       cfg,
		nurseries: nurseries,
		boundary:  b,
		jobs:      NewJobStore(),
	}
}

func (app *App) finderFor(unit models.Unit) *calculator.Finder {
	return calculator.NewFinder(calculator.WithUnit(unit), calculator.WithEpsilon(app.cfg.TieEpsilon))
}

// setupRouter creates and configures the Gin router.
func setupRouter(app *App) *gin.Engine {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(app.cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = app.cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))

	pattern := filepath.Join(app.cfg.TemplatesDir, "*.html")
	if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
		r.LoadHTMLGlob(pattern)
		r.GET("/", app.handleIndex)
	}

	r.GET("/health", app.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/nurseries", app.handleNurseries)
		api.GET("/boundary", app.handleBoundary)
		api.GET("/nearest", app.handleNearest)
		api.GET("/distances", app.handleDistances)
		api.GET("/within", app.handleWithin)
		api.GET("/select", app.handleSelect)
		api.GET("/export", app.handleExport)
	}

	r.POST("/run", app.handleRun)
	r.GET("/logs", app.handleLogs)
	r.GET("/status", app.handleStatus)
	r.POST("/cancel", app.handleCancel)
	r.GET("/ws/logs", app.handleLogStream)
	r.GET("/download-template", app.handleTemplate)
	r.GET("/download-result/:filename", app.handleDownloadResult)

	return r
}

func badRequest(c *gin.Context, format string, args ...interface{}) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(format, args...)})
}

// writeError maps rejected input to 400 and everything else to 500.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, calculator.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slog.Error("request failed", "path", c.Request.URL.Path, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// coordinateParam reads a lat/lon pair from the query. ok is false when both
// parameters are absent.
func coordinateParam(c *gin.Context, latKey, lonKey string) (coord models.Coordinate, ok bool, err error) {
	latStr, lonStr := c.Query(latKey), c.Query(lonKey)
	if latStr == "" && lonStr == "" {
		return models.Coordinate{}, false, nil
	}
	if latStr == "" || lonStr == "" {
		return models.Coordinate{}, false, fmt.Errorf("%s and %s must be given together", latKey, lonKey)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("invalid %s: %v", latKey, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("invalid %s: %v", lonKey, err)
	}
	coord = models.Coordinate{Lat: lat, Lon: lon}
	if err := calculator.ValidateCoordinate(coord); err != nil {
		return models.Coordinate{}, false, err
	}
	return coord, true, nil
}

// reference resolves the user's position, falling back to the configured
// coordinate when the client sent none.
func (app *App) reference(c *gin.Context) (models.Coordinate, bool, error) {
	ref, ok, err := coordinateParam(c, "lat", "lon")
	if err != nil {
		return models.Coordinate{}, false, err
	}
	if !ok {
		return app.cfg.Fallback, true, nil
	}
	return ref, false, nil
}

func (app *App) unitParam(c *gin.Context) (models.Unit, error) {
	v := c.Query("unit")
	if v == "" {
		return app.cfg.Unit, nil
	}
	u, ok := models.ParseUnit(v)
	if !ok {
		return "", fmt.Errorf("unit must be km or m")
	}
	return u, nil
}

func (app *App) insideBoundary(ref models.Coordinate) *bool {
	if app.boundary == nil {
		return nil
	}
	inside := app.boundary.Contains(ref)
	return &inside
}

func (app *App) handleIndex(c *gin.Context) {
	boundaryName := ""
	if app.boundary != nil {
		boundaryName = app.boundary.Name()
	}
	center := app.mapCenter()
	c.HTML(http.StatusOK, "index.html", gin.H{
		"FallbackLat":  app.cfg.Fallback.Lat,
		"FallbackLon":  app.cfg.Fallback.Lon,
		"CenterLat":    center.Lat,
		"CenterLon":    center.Lon,
		"BoundaryName": boundaryName,
	})
}

// mapCenter is where the map opens before the browser reports a position:
// the middle of the division when one is loaded, else the fallback point.
func (app *App) mapCenter() models.Coordinate {
	if app.boundary != nil {
		return app.boundary.Center()
	}
	return app.cfg.Fallback
}

// handleHealth handles GET /health.
func (app *App) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"time":      time.Now().UTC().Format(time.RFC3339),
		"nurseries": len(app.nurseries),
	})
}

func (app *App) handleNurseries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nurseries": app.nurseries})
}

func (app *App) handleBoundary(c *gin.Context) {
	if app.boundary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no boundary configured"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", app.boundary.GeoJSON())
}

type nearestResponse struct {
	Reference      models.Coordinate     `json:"reference"`
	Fallback       bool                  `json:"fallback"`
	Nearest        models.DistanceResult `json:"nearest"`
	InsideBoundary *bool                 `json:"inside_boundary,omitempty"`
}

// handleNearest handles GET /api/nearest.
func (app *App) handleNearest(c *gin.Context) {
	ref, fallback, err := app.reference(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	unit, err := app.unitParam(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}

	nearest, err := app.finderFor(unit).Nearest(ref, app.nurseries)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, nearestResponse{
		Reference:      ref,
		Fallback:       fallback,
		Nearest:        nearest,
		InsideBoundary: app.insideBoundary(ref),
	})
}

type distancesResponse struct {
	Reference      models.Coordinate       `json:"reference"`
	Fallback       bool                    `json:"fallback"`
	Results        []models.DistanceResult `json:"results"`
	InsideBoundary *bool                   `json:"inside_boundary,omitempty"`
}

// handleDistances handles GET /api/distances.
func (app *App) handleDistances(c *gin.Context) {
	ref, fallback, err := app.reference(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	unit, err := app.unitParam(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}

	results, err := app.finderFor(unit).AnnotateDistances(ref, app.nurseries)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, distancesResponse{
		Reference:      ref,
		Fallback:       fallback,
		Results:        results,
		InsideBoundary: app.insideBoundary(ref),
	})
}

// handleWithin handles GET /api/within.
func (app *App) handleWithin(c *gin.Context) {
	ref, fallback, err := app.reference(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	radiusStr := c.Query("radius_m")
	if radiusStr == "" {
		badRequest(c, "radius_m parameter is required")
		return
	}
	radius, err := strconv.ParseFloat(radiusStr, 64)
	if err != nil {
		badRequest(c, "invalid radius_m: %v", err)
		return
	}
	unit, err := app.unitParam(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}

	results, err := app.finderFor(unit).WithinRadius(ref, app.nurseries, radius)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, distancesResponse{
		Reference:      ref,
		Fallback:       fallback,
		Results:        results,
		InsideBoundary: app.insideBoundary(ref),
	})
}

type selectResponse struct {
	Reference          models.Coordinate `json:"reference"`
	Fallback           bool              `json:"fallback"`
	Click              models.Coordinate `json:"click"`
	Selected           models.Nursery    `json:"selected"`
	ClickDistanceM     float64           `json:"click_distance_m"`
	DistanceFromUserKm float64           `json:"distance_from_user_km"`
}

// handleSelect resolves a map click to the nursery nearest the clicked
// point, and reports how far that nursery is from the user.
func (app *App) handleSelect(c *gin.Context) {
	click, ok, err := coordinateParam(c, "click_lat", "click_lng")
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	if !ok {
		badRequest(c, "click_lat and click_lng parameters are required")
		return
	}
	ref, fallback, err := app.reference(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}

	selected, err := app.finderFor(models.Meters).Nearest(click, app.nurseries)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, selectResponse{
		Reference:          ref,
		Fallback:           fallback,
		Click:              click,
		Selected:           selected.Nursery,
		ClickDistanceM:     selected.Distance,
		DistanceFromUserKm: calculator.DistanceIn(ref, selected.Nursery.Loc, models.Kilometers),
	})
}

// handleExport streams every nursery with its distance as a workbook.
func (app *App) handleExport(c *gin.Context) {
	ref, _, err := app.reference(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	unit, err := app.unitParam(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}

	results, err := app.finderFor(unit).AnnotateDistances(ref, app.nurseries)
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteDistances(&buf, ref, results, "Distances"); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="nursery_distances.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// handleRun starts a batch job for an uploaded workbook.
func (app *App) handleRun(c *gin.Context) {
	file, err := c.FormFile("input_file")
	if err != nil {
		badRequest(c, "input_file is required")
		return
	}

	mode := c.DefaultPostForm("mode", ModeNearest)
	if mode != ModeNearest && mode != ModeRadius {
		badRequest(c, "mode must be %s or %s", ModeNearest, ModeRadius)
		return
	}
	var meters float64
	if mode == ModeRadius {
		meters, err = strconv.ParseFloat(c.PostForm("meters"), 64)
		if err != nil || meters <= 0 {
			badRequest(c, "meters must be a positive number for radius mode")
			return
		}
	}

	for _, dir := range []string{app.cfg.UploadDir, app.cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			writeError(c, err)
			return
		}
	}

	inputPath := filepath.Join(app.cfg.UploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, inputPath); err != nil {
		writeError(c, fmt.Errorf("failed to save upload: %w", err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := NewJob(cancel)
	app.jobs.Add(job)

	go func() {
		defer cancel()
		app.processJob(ctx, job, inputPath, mode, meters)
	}()

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "job_id": job.ID})
}

func (app *App) jobParam(c *gin.Context) *Job {
	job := app.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "job not found"})
	}
	return job
}

func (app *App) handleLogs(c *gin.Context) {
	job := app.jobParam(c)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"logs":     snap.Logs,
		"status":   snap.Status,
		"progress": snap.Progress,
	})
}

func (app *App) handleStatus(c *gin.Context) {
	job := app.jobParam(c)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	res := gin.H{
		"ok":     true,
		"status": snap.Status,
		"error":  snap.Error,
	}
	if snap.Result != nil {
		res["result"] = snap.Result
	}
	c.JSON(http.StatusOK, res)
}

func (app *App) handleCancel(c *gin.Context) {
	job := app.jobParam(c)
	if job == nil {
		return
	}
	job.Cancel()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (app *App) handleTemplate(c *gin.Context) {
	var buf bytes.Buffer
	if err := excel.WriteTemplate(&buf); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="template.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (app *App) handleDownloadResult(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	target := filepath.Join(app.cfg.OutputDir, filename)
	if _, err := os.Stat(target); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	c.FileAttachment(target, filename)
}
