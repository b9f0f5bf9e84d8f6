package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nursery-locator/internal/excel"
	"nursery-locator/internal/models"
)

// === Job System ===

type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusDone      JobStatus = "done"
	StatusError     JobStatus = "error"
	StatusCancelled JobStatus = "cancelled"
)

const (
	ModeNearest = "nearest"
	ModeRadius  = "radius"

	resultSheet = "Results"
)

type JobResult struct {
	Mode      string `json:"mode"`
	Rows      int    `json:"rows"`
	Sheet     string `json:"sheet"`
	Output    string `json:"output"`   // Full path
	Filename  string `json:"filename"` // Just filename for download
	Nurseries int    `json:"nurseries"`
	Points    int    `json:"points"`
}

type Job struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	status   JobStatus
	logs     []string
	progress int // 0-100
	result   *JobResult
	err      string
	cancel   context.CancelFunc
}

// JobSnapshot is a copy of a job's state that is safe to hand to handlers.
type JobSnapshot struct {
	ID       string     `json:"id"`
	Status   JobStatus  `json:"status"`
	Logs     []string   `json:"logs"`
	Progress int        `json:"progress"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error"`
}

func NewJob(cancel context.CancelFunc) *Job {
	return &Job{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		status:    StatusRunning,
		logs:      []string{},
		cancel:    cancel,
	}
}

func (j *Job) Log(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.appendLog(msg)
}

func (j *Job) appendLog(msg string) {
	ts := time.Now().Format("15:04:05")
	j.logs = append(j.logs, fmt.Sprintf("[%s] %s", ts, msg))
	slog.Info(msg, "job_id", j.ID)
}

func (j *Job) SetProgress(current, total int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if total > 0 {
		j.progress = int(float64(current) / float64(total) * 100)
	}
	if msg != "" {
		j.appendLog(msg)
	}
}

func (j *Job) Cancel() {
	j.Log("Cancellation requested.")
	if j.cancel != nil {
		j.cancel()
	}
}

func (j *Job) fail(status JobStatus, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.err = msg
	j.logs = append(j.logs, "[ERROR] "+msg)
	slog.Warn("job failed", "job_id", j.ID, "status", status, "err", msg)
}

func (j *Job) finish(result *JobResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusDone
	j.appendLog("Job completed successfully.")
	j.result = result
	j.progress = 100
}

func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.logs))
	copy(logs, j.logs)
	var result *JobResult
	if j.result != nil {
		r := *j.result
		result = &r
	}
	return JobSnapshot{
		ID:       j.ID,
		Status:   j.status,
		Logs:     logs,
		Progress: j.progress,
		Result:   result,
		Error:    j.err,
	}
}

// JobStore keeps jobs in memory for the lifetime of the process.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

func (s *JobStore) Add(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *JobStore) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// CancelAll cancels every job that is still running.
func (s *JobStore) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.Snapshot().Status == StatusRunning {
			j.Cancel()
		}
	}
}

// processJob assigns nurseries to the points of the uploaded workbook and
// writes the result workbook. The workbook may carry its own Nurseries
// sheet; otherwise the loaded catalog is used.
func (app *App) processJob(ctx context.Context, job *Job, inputPath string, mode string, meters float64) {
	defer func() {
		if r := recover(); r != nil {
			job.fail(StatusError, fmt.Sprintf("Panic: %v", r))
		}
	}()

	job.Log(fmt.Sprintf("Processing file: %s", filepath.Base(inputPath)))

	f, err := excel.OpenFile(inputPath)
	if err != nil {
		job.fail(StatusError, fmt.Sprintf("could not open workbook: %v", err))
		return
	}
	defer f.Close()

	if !excel.HasSheet(f, excel.PointSheet) {
		job.fail(StatusError, fmt.Sprintf("workbook has no %q sheet", excel.PointSheet))
		return
	}

	job.Log("Reading points...")
	points, err := excel.ReadPoints(f, excel.PointSheet)
	if err != nil {
		job.fail(StatusError, fmt.Sprintf("could not read points: %v", err))
		return
	}
	job.Log(fmt.Sprintf("Read %d points.", len(points)))

	nurseries := app.nurseries
	if excel.HasSheet(f, excel.NurserySheet) {
		job.Log("Reading nurseries from the uploaded workbook...")
		nurseries, err = excel.ReadNurseries(f, excel.NurserySheet)
		if err != nil {
			job.fail(StatusError, fmt.Sprintf("could not read nurseries: %v", err))
			return
		}
	}
	job.Log(fmt.Sprintf("Using %d nurseries.", len(nurseries)))

	progressCb := func(current, total int, msg string) {
		job.SetProgress(current, total, msg)
	}
	loggerCb := func(msg string) {
		job.Log(msg)
	}

	start := time.Now()

	var results []models.Assignment
	finder := app.finderFor(app.cfg.Unit)
	if mode == ModeRadius {
		job.Log(fmt.Sprintf("Finding nurseries within %.0fm...", meters))
		results, err = finder.AssignRadius(ctx, points, nurseries, meters, progressCb, loggerCb)
	} else {
		job.Log("Finding the nearest nursery for each point...")
		results, err = finder.AssignNearest(ctx, points, nurseries, progressCb, loggerCb)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			job.fail(StatusCancelled, "cancelled")
			return
		}
		job.fail(StatusError, fmt.Sprintf("calculation failed: %v", err))
		return
	}

	job.Log(fmt.Sprintf("Calculation finished in %s.", time.Since(start)))

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(app.cfg.OutputDir, fmt.Sprintf("%s_%s.xlsx", base, mode))

	job.Log("Writing result workbook...")
	if err := excel.WriteAssignments(outputPath, results, resultSheet); err != nil {
		job.fail(StatusError, fmt.Sprintf("could not write results: %v", err))
		return
	}

	job.finish(&JobResult{
		Mode:      mode,
		Rows:      len(results),
		Sheet:     resultSheet,
		Output:    outputPath,
		Filename:  filepath.Base(outputPath),
		Nurseries: len(nurseries),
		Points:    len(points),
	})
}
