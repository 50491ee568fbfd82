package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/cointax/internal/database"
	"github.com/aristath/cointax/internal/di"
	"github.com/aristath/cointax/internal/scheduler"
	"github.com/aristath/cointax/internal/version"
)

// JobRunner runs a registered job on demand
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// SystemHandlers handles system status and job trigger requests
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases map[string]*database.DB
	runner    JobRunner
	jobs      map[string]scheduler.Job
	startedAt time.Time
	now       func() time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	runner JobRunner,
	jobs map[string]scheduler.Job,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		databases: databases,
		runner:    runner,
		jobs:      jobs,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// registeredJobs indexes jobs by name
func registeredJobs(instances *di.JobInstances) map[string]scheduler.Job {
	jobs := make(map[string]scheduler.Job)
	if instances == nil {
		return jobs
	}
	for _, job := range instances.All() {
		jobs[job.Name()] = job
	}
	return jobs
}

// DBInfo describes one database file
type DBInfo struct {
	Name         string `json:"name"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
	PageCount    int64  `json:"page_count"`
	Healthy      bool   `json:"healthy"`
}

// DiskUsage describes the volume holding the data directory
type DiskUsage struct {
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string     `json:"status"`
	Version       string     `json:"version"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	CPUPercent    float64    `json:"cpu_percent"`
	MemoryPercent float64    `json:"memory_percent"`
	Disk          *DiskUsage `json:"disk,omitempty"`
	Databases     []DBInfo   `json:"databases"`
	Jobs          []string   `json:"jobs"`
	CheckedAt     string     `json:"checked_at"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		Version:       version.Version,
		UptimeSeconds: int64(h.now().Sub(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Disk:          h.getDiskUsage(),
		Databases:     h.getDatabaseInfo(r.Context()),
		Jobs:          h.jobNames(),
		CheckedAt:     h.now().UTC().Format(time.RFC3339),
	}
	for _, db := range response.Databases {
		if !db.Healthy {
			response.Status = "degraded"
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.jobNames(),
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{job}. The job runs
// synchronously through the scheduler.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	job, ok := h.jobs[name]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown job: " + name})
		return
	}

	start := h.now()
	if err := h.runner.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"job":    name,
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": h.now().Sub(start).Milliseconds(),
	})
}

func (h *SystemHandlers) jobNames() []string {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *SystemHandlers) getDatabaseInfo(ctx context.Context) []DBInfo {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]DBInfo, 0, len(names))
	for _, name := range names {
		db := h.databases[name]
		info := DBInfo{Name: name, Healthy: db.QuickCheck(ctx) == nil}
		if stats, err := db.GetStats(); err == nil {
			info.SizeBytes = stats.SizeBytes
			info.WALSizeBytes = stats.WALSizeBytes
			info.PageCount = stats.PageCount
		} else {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
		}
		infos = append(infos, info)
	}
	return infos
}

func (h *SystemHandlers) getDiskUsage() *DiskUsage {
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to get disk usage")
		return nil
	}
	return &DiskUsage{
		TotalBytes:  usage.Total,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}
}

// getSystemStats calculates CPU and RAM usage percentages over a short window
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
