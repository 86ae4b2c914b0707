package store

import (
	"strings"
	"sync"
)

// TranscriptLog keeps ordered transcript fragments per meeting. The
// transcription tick appends, the summary tick drains.
type TranscriptLog struct {
	mu        sync.Mutex
	fragments map[string][]string
}

// NewTranscriptLog creates an empty log
func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{
		fragments: make(map[string][]string),
	}
}

// Append adds a text fragment for the meeting
func (l *TranscriptLog) Append(meetingID, text string) {
	if text == "" {
		return
	}
	l.mu.Lock()
	l.fragments[meetingID] = append(l.fragments[meetingID], text)
	l.mu.Unlock()
}

// DrainAndJoin atomically clears the log for the meeting and returns the
// fragments joined with single spaces. Returns "" when nothing accumulated.
func (l *TranscriptLog) DrainAndJoin(meetingID string) string {
	l.mu.Lock()
	parts := l.fragments[meetingID]
	delete(l.fragments, meetingID)
	l.mu.Unlock()

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}

// Peek returns the joined undrained text without clearing it.
func (l *TranscriptLog) Peek(meetingID string) string {
	l.mu.Lock()
	parts := l.fragments[meetingID]
	joined := strings.Join(parts, " ")
	l.mu.Unlock()
	return joined
}

// Remove discards all fragments for the meeting
func (l *TranscriptLog) Remove(meetingID string) {
	l.mu.Lock()
	delete(l.fragments, meetingID)
	l.mu.Unlock()
}
