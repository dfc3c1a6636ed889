package telegram

import (
	"fmt"
	"strings"
	"time"
)

// Status Bot 运行状态（用于健康检查）
type Status struct {
	Mode    string     `json:"mode"`
	Uptime  string     `json:"uptime"`
	Running bool       `json:"running"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

// Status 返回当前运行状态
func (b *Bot) Status() Status {
	st := Status{Mode: b.mode, Running: b.running.Load()}

	if started, ok := b.startTime.Load().(time.Time); ok && !started.IsZero() {
		st.Uptime = formatDuration(time.Since(started))
	}
	if b.workerPool != nil {
		stats := b.workerPool.Stats()
		st.Pool = &stats
	}
	return st
}

// formatDuration 将持续时间格式化为 "1d 2h 3m 4s"
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}

	return strings.Join(parts, " ")
}
