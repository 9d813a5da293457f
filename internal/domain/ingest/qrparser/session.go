package qrparser

import (
	"sync"
	"time"
)

// maxSessionLog bounds the per-session log history.
const maxSessionLog = 200

// LogEntry is one line of session history.
type LogEntry struct {
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Snapshot is a point-in-time copy of session counters.
type Snapshot struct {
	Detected    int           `json:"detected"`
	Parsed      int           `json:"parsed"`
	Errors      int           `json:"errors"`
	ScanCount   int           `json:"scanCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AverageTime time.Duration `json:"averageTime"`
}

// ScanSession accumulates statistics for a sequence of scans. It is owned
// by the caller; nothing in this package holds global state. Safe for
// concurrent use.
type ScanSession struct {
	mu        sync.Mutex
	detected  int
	parsed    int
	errors    int
	scanCount int
	totalTime time.Duration
	history   []LogEntry
}

// NewScanSession returns an empty session.
func NewScanSession() *ScanSession {
	return &ScanSession{}
}

// RecordDetection counts a payload that was recognized as an AT invoice.
func (s *ScanSession) RecordDetection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detected++
}

// RecordSuccess counts a successful parse and its duration.
func (s *ScanSession) RecordSuccess(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parsed++
	s.scanCount++
	s.totalTime += elapsed
}

// RecordError counts a failed scan and its duration.
func (s *ScanSession) RecordError(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
	s.scanCount++
	s.totalTime += elapsed
}

// Log appends a history entry, evicting the oldest past the cap.
func (s *ScanSession) Log(level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, LogEntry{At: time.Now(), Level: level, Message: message})
	if len(s.history) > maxSessionLog {
		s.history = s.history[len(s.history)-maxSessionLog:]
	}
}

// History returns a copy of the log entries.
func (s *ScanSession) History() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot returns the current counters.
func (s *ScanSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Detected:  s.detected,
		Parsed:    s.parsed,
		Errors:    s.errors,
		ScanCount: s.scanCount,
		TotalTime: s.totalTime,
	}
	if s.scanCount > 0 {
		snap.AverageTime = s.totalTime / time.Duration(s.scanCount)
	}
	return snap
}

// Reset clears all counters and history.
func (s *ScanSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detected = 0
	s.parsed = 0
	s.errors = 0
	s.scanCount = 0
	s.totalTime = 0
	s.history = nil
}
