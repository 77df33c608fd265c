// Package logger provides crash logging and panic recovery for Forge.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const (
	// CrashLogDir is the directory for crash reports relative to the .forge dir.
	CrashLogDir = "crash_logs"

	// MaxCrashLogs caps how many reports are kept on disk.
	MaxCrashLogs = 10
)

// crashContext carries the state worth preserving when a panic fires.
type crashContext struct {
	mu        sync.RWMutex
	basePath  string
	version   string
	command   string
	lastInput string
}

var global = &crashContext{}

// SetBasePath sets where crash reports are written (typically the .forge directory).
func SetBasePath(path string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.basePath = path
}

// SetVersion records the application version for crash reports.
func SetVersion(version string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.version = version
}

// SetCommand records the command currently executing.
func SetCommand(cmd string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.command = cmd
}

// SetLastInput records the most recent chat input so a crash report can show
// what the user was doing. Long inputs are truncated.
func SetLastInput(input string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.lastInput = truncate(strings.TrimSpace(input), 500)
}

func truncate(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

// Report is one captured panic.
type Report struct {
	Timestamp  time.Time
	Version    string
	Command    string
	PanicValue string
	StackTrace string
	LastInput  string
	GoVersion  string
	OS         string
	Arch       string
}

// HandlePanic recovers from a panic, writes a crash report, and exits.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	report := newReport(r)
	if err := writeReport(report); err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] failed to write crash report: %v\n", err)
		fmt.Fprintf(os.Stderr, "[CRASH] panic: %v\n%s\n", r, debug.Stack())
	} else {
		fmt.Fprintf(os.Stderr, "\nForge hit an unexpected error.\n")
		fmt.Fprintf(os.Stderr, "A crash report was saved to:\n  %s\n", reportPath(report.Timestamp))
		fmt.Fprintf(os.Stderr, "Please report this at https://github.com/forgeproj/forge/issues\n")
	}
	os.Exit(1)
}

func newReport(panicValue any) Report {
	global.mu.RLock()
	defer global.mu.RUnlock()

	return Report{
		Timestamp:  time.Now(),
		Version:    global.version,
		Command:    global.command,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		LastInput:  global.lastInput,
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

func writeReport(report Report) error {
	dir := reportDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create crash log dir: %w", err)
	}
	if err := pruneOldReports(dir); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] failed to prune old crash reports: %v\n", err)
	}
	path := reportPath(report.Timestamp)
	if err := os.WriteFile(path, []byte(formatReport(report)), 0644); err != nil {
		return fmt.Errorf("write crash report: %w", err)
	}
	return nil
}

func reportDir() string {
	global.mu.RLock()
	basePath := global.basePath
	global.mu.RUnlock()

	if basePath == "" {
		basePath = ".forge"
	}
	return filepath.Join(basePath, CrashLogDir)
}

func reportPath(t time.Time) string {
	return filepath.Join(reportDir(), fmt.Sprintf("crash_%s.log", t.Format("20060102_150405")))
}

func formatReport(report Report) string {
	var sb strings.Builder
	rule := strings.Repeat("-", 72)

	sb.WriteString("FORGE CRASH REPORT\n")
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("Timestamp: %s\n", report.Timestamp.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Version:   %s\n", report.Version))
	sb.WriteString(fmt.Sprintf("Command:   %s\n", report.Command))
	sb.WriteString(fmt.Sprintf("Go:        %s\n", report.GoVersion))
	sb.WriteString(fmt.Sprintf("OS/Arch:   %s/%s\n", report.OS, report.Arch))

	sb.WriteString("\nPANIC\n" + rule + "\n")
	sb.WriteString(report.PanicValue + "\n")

	sb.WriteString("\nSTACK TRACE\n" + rule + "\n")
	sb.WriteString(report.StackTrace)

	if report.LastInput != "" {
		sb.WriteString("\nLAST INPUT\n" + rule + "\n")
		sb.WriteString(report.LastInput + "\n")
	}
	return sb.String()
}

// pruneOldReports removes the oldest reports beyond MaxCrashLogs. Filenames
// embed the timestamp, so the sorted order os.ReadDir returns is oldest first.
func pruneOldReports(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var reports []os.DirEntry
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			reports = append(reports, e)
		}
	}
	if len(reports) <= MaxCrashLogs {
		return nil
	}

	for _, e := range reports[:len(reports)-MaxCrashLogs] {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("remove old crash report %s: %w", e.Name(), err)
		}
	}
	return nil
}

// ListReports returns the paths of all crash reports currently on disk.
func ListReports() ([]string, error) {
	dir := reportDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
