package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const probeTimeout = 10 * time.Second

// UpstreamHealth is the outcome of the latest scheduled probe.
type UpstreamHealth struct {
	Reachable bool       `json:"reachable"`
	CheckedAt *time.Time `json:"checked_at"`
	LastError string     `json:"last_error,omitempty"`
}

type SystemStatus struct {
	Upstream       UpstreamHealth `json:"upstream"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	MemoryRSSBytes uint64         `json:"memory_rss_bytes,omitempty"`
	WatchlistUsers int            `json:"watchlist_users"`
	DownloadMode   string         `json:"download_mode"`
	Language       string         `json:"language"`
}

// StartScheduler registers the periodic upstream probe and runs one probe
// immediately.
func (m *Manager) StartScheduler() error {
	if _, err := m.scheduler.AddFunc(m.config.Metadata.HealthInterval, m.probeUpstream); err != nil {
		return fmt.Errorf("invalid metadata.health_interval %q: %w", m.config.Metadata.HealthInterval, err)
	}
	m.scheduler.Start()
	m.logger.Info("Scheduler started. Probing metadata provider", m.config.Metadata.HealthInterval)
	go m.probeUpstream()
	return nil
}

func (m *Manager) Stop() {
	if m.scheduler != nil {
		<-m.scheduler.Stop().Done()
	}
}

func (m *Manager) probeUpstream() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	err := m.client.Ping(ctx)
	now := time.Now()

	m.healthMu.Lock()
	m.health = UpstreamHealth{Reachable: err == nil, CheckedAt: &now}
	if err != nil {
		m.health.LastError = err.Error()
	}
	m.healthMu.Unlock()

	if err != nil {
		m.logger.Error("Metadata provider health check failed:", err)
	} else {
		m.logger.Debug("Metadata provider health check ok")
	}
}

func (m *Manager) GetSystemStatus() SystemStatus {
	m.healthMu.RLock()
	health := m.health
	m.healthMu.RUnlock()

	status := SystemStatus{
		Upstream:       health,
		UptimeSeconds:  int64(time.Since(m.startedAt).Seconds()),
		WatchlistUsers: m.watchlist.Users(),
		DownloadMode:   m.config.Download.Mode,
		Language:       m.config.Metadata.Language,
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			status.MemoryRSSBytes = mem.RSS
		}
	}
	return status
}
