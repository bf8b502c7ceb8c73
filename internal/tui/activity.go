package tui

import (
	"strings"
	"time"
)

// Activity levels
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// ActivityEntry is one line of the activity panel
type ActivityEntry struct {
	Time  time.Time
	Level string
	Event string
	Text  string
}

// ActivityLog keeps the recent host events: logins, side effects, runs
type ActivityLog struct {
	entries []ActivityEntry
	buffer  int
	now     func() time.Time
}

// NewActivityLog creates an activity log holding at most buffer entries
func NewActivityLog(buffer int) ActivityLog {
	if buffer <= 0 {
		buffer = 100
	}
	return ActivityLog{buffer: buffer, now: time.Now}
}

// Add appends an entry, dropping the oldest beyond the buffer
func (a *ActivityLog) Add(level, event, text string) {
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	a.entries = append(a.entries, ActivityEntry{Time: now(), Level: level, Event: event, Text: text})
	if len(a.entries) > a.buffer {
		a.entries = a.entries[len(a.entries)-a.buffer:]
	}
}

// Entries returns the current entries, oldest first
func (a *ActivityLog) Entries() []ActivityEntry {
	return a.entries
}

// Render renders the newest entries that fit into a bordered panel
func (a *ActivityLog) Render(width, height int) string {
	title := ActivityTitleStyle.Render("ACTIVITY")

	// title + borders
	contentHeight := height - 3
	if contentHeight < 1 {
		contentHeight = 1
	}
	maxLen := width - 4
	if maxLen < 10 {
		maxLen = 10
	}

	start := 0
	if len(a.entries) > contentHeight {
		start = len(a.entries) - contentHeight
	}
	var lines []string
	for _, e := range a.entries[start:] {
		line := e.Time.Format("15:04:05") + " [" + e.Event + "] " + e.Text
		line = strings.ReplaceAll(line, "\n", " ")
		if len([]rune(line)) > maxLen {
			line = string([]rune(line)[:maxLen-1]) + "…"
		}
		switch e.Level {
		case LevelError:
			line = ErrorStyle.Render(line)
		case LevelWarn:
			line = WarningStyle.Render(line)
		default:
			line = DimStyle.Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}

	return ActivityStyle.
		Width(width - 2).
		Height(height - 2).
		Render(title + "\n" + strings.Join(lines, "\n"))
}
