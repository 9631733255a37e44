package logger

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/turbofan3360/neom8-dash/internal/neom8"
)

// Logger records timestamped fixes to CSV track files with automatic
// rotation.
type Logger struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	enabled  bool

	file   *os.File
	writer *csv.Writer
	lastTs time.Time
	rows   int
}

// Config holds logger configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"`
}

const (
	maxRowsPerFile = 100_000 // Rotate after 100k rows (~2.7 hrs at 10 Hz)
)

var csvHeader = []string{
	"timestamp", "valid", "lat", "lon", "alt_m", "geoid_sep_m",
	"error_m", "speed_kn", "course_deg", "magvar_deg",
	"gnss_date", "gnss_time",
}

// New creates a new Logger.
func New(cfg Config) *Logger {
	if cfg.Path == "" {
		cfg.Path = "/var/log/neom8-dash"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval < 50*time.Millisecond {
		interval = 100 * time.Millisecond // Default 10 Hz
	}
	return &Logger{
		dir:      cfg.Path,
		interval: interval,
		enabled:  cfg.Enabled,
	}
}

// SetEnabled allows toggling logging at runtime.
func (l *Logger) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
	if !on && l.file != nil {
		l.closeFile()
	}
}

// IsEnabled returns whether logging is active.
func (l *Logger) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Record writes a fix snapshot if the minimum interval has elapsed.
func (l *Logger) Record(fix *neom8.Fix) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	now := time.Now()
	if now.Sub(l.lastTs) < l.interval {
		return
	}
	l.lastTs = now

	// Open/rotate file if needed
	if l.writer == nil || l.rows >= maxRowsPerFile {
		if err := l.rotateFile(now); err != nil {
			log.Printf("[logger] rotate failed: %v", err)
			return
		}
	}

	row := buildRow(now, fix)
	if err := l.writer.Write(row); err != nil {
		log.Printf("[logger] write failed: %v", err)
		return
	}
	l.writer.Flush()
	l.rows++
}

// Close flushes and closes the current log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
}

func (l *Logger) rotateFile(now time.Time) error {
	l.closeFile()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	filename := fmt.Sprintf("track_%s.csv", now.Format("2006-01-02_150405"))
	path := filepath.Join(l.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	l.file = f
	l.writer = csv.NewWriter(f)
	l.rows = 0

	// Write header
	if err := l.writer.Write(csvHeader); err != nil {
		return err
	}
	l.writer.Flush()

	log.Printf("[logger] opened %s", path)
	return nil
}

func (l *Logger) closeFile() {
	if l.writer != nil {
		l.writer.Flush()
		l.writer = nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func buildRow(ts time.Time, fix *neom8.Fix) []string {
	row := make([]string, len(csvHeader))

	row[0] = ts.Format(time.RFC3339Nano)

	if fix == nil {
		row[1] = "0"
		return row
	}

	row[1] = boolStr(fix.Valid)
	row[2] = fmt.Sprintf("%.6f", fix.Latitude)
	row[3] = fmt.Sprintf("%.6f", fix.Longitude)
	row[4] = fmt.Sprintf("%.1f", fix.AltitudeM)
	row[5] = fmt.Sprintf("%.1f", fix.GeoidSepM)
	row[6] = fmt.Sprintf("%.1f", fix.ErrorM)
	row[7] = fmt.Sprintf("%.1f", fix.SpeedKnots)
	if fix.CourseDeg != nil {
		row[8] = fmt.Sprintf("%.1f", *fix.CourseDeg)
	}
	row[9] = fmt.Sprintf("%.1f", fix.MagVarDeg)
	row[10] = fix.Date
	row[11] = fix.Time

	return row
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
