// Package pipeline owns the per-meeting audio-to-summary lifecycle: it drains
// buffered audio into the transcription stage on one cadence and accumulated
// transcript text into the summarization stage on another, for any number of
// concurrent meetings.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/external/teams"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/store"
)

// Transcriber converts one drained PCM segment into text. Implementations
// never fail: a lost transcription window is acceptable, so errors degrade
// to "".
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) string
}

// Summarizer condenses accumulated transcript text. Failures surface to the
// caller because a missed summary is user-visible.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Poster delivers a finished summary to its chat destination.
type Poster interface {
	PostSummary(ctx context.Context, ref teams.ConversationReference, summary string, intervalMinutes int) error
}

// Archiver persists drained audio segments; optional, best-effort.
type Archiver interface {
	ArchiveSegment(ctx context.Context, meetingID string, pcm []byte)
}

// Notifier receives live pipeline events for the demo/introspection surface;
// optional.
type Notifier interface {
	MeetingEvent(meetingID, eventType, data string)
}

// Service manages the lifecycle of active meeting pipelines
type Service interface {
	Start(meetingID, audioSourceKey string, destination teams.ConversationReference)
	Stop(meetingID string)
	StopAll()
	ActiveMeetings() []string
	CurrentTranscript(meetingID string) string
}

// Intervals holds the two independent tick periods
type Intervals struct {
	Transcription time.Duration
	Summary       time.Duration
}

type meeting struct {
	meetingID      string
	audioSourceKey string
	destination    teams.ConversationReference
	cancel         context.CancelFunc
	startedAt      time.Time
}

type service struct {
	audio       *store.AudioBufferStore
	transcripts *store.TranscriptLog
	transcriber Transcriber
	summarizer  Summarizer
	poster      Poster
	archiver    Archiver // may be nil
	notifier    Notifier // may be nil
	intervals   Intervals
	logger      *zap.Logger

	mu       sync.Mutex
	meetings map[string]*meeting
}

// NewService constructs the lifecycle manager. archiver and notifier may be
// nil when those surfaces are disabled.
func NewService(
	audio *store.AudioBufferStore,
	transcripts *store.TranscriptLog,
	transcriber Transcriber,
	summarizer Summarizer,
	poster Poster,
	archiver Archiver,
	notifier Notifier,
	intervals Intervals,
	logger *zap.Logger,
) Service {
	return &service{
		audio:       audio,
		transcripts: transcripts,
		transcriber: transcriber,
		summarizer:  summarizer,
		poster:      poster,
		archiver:    archiver,
		notifier:    notifier,
		intervals:   intervals,
		logger:      logger,
		meetings:    make(map[string]*meeting),
	}
}

// Start arms the two periodic tasks for a meeting. A second Start with the
// same id first runs the full Stop sequence, so at most one session per
// meeting id exists at any time.
func (s *service) Start(meetingID, audioSourceKey string, destination teams.ConversationReference) {
	s.mu.Lock()
	if _, exists := s.meetings[meetingID]; exists {
		s.logger.Warn("meeting already active, stopping first", zap.String("meeting_id", meetingID))
		s.stopLocked(meetingID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &meeting{
		meetingID:      meetingID,
		audioSourceKey: audioSourceKey,
		destination:    destination,
		cancel:         cancel,
		startedAt:      time.Now(),
	}
	s.meetings[meetingID] = m
	s.mu.Unlock()

	go s.run(ctx, m)

	s.logger.Info("started meeting",
		zap.String("meeting_id", meetingID),
		zap.String("audio_source_key", audioSourceKey),
		zap.Duration("transcription_interval", s.intervals.Transcription),
		zap.Duration("summary_interval", s.intervals.Summary),
	)
}

// run multiplexes both tick periods in a single loop so each meeting has
// exactly one cancellation point. Tick work is executed inline: the periods
// are long relative to remote-call latency and overlapping the two stages
// within one meeting is already tolerated by the drain semantics.
func (s *service) run(ctx context.Context, m *meeting) {
	transcriptionTicker := time.NewTicker(s.intervals.Transcription)
	summaryTicker := time.NewTicker(s.intervals.Summary)
	defer transcriptionTicker.Stop()
	defer summaryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-transcriptionTicker.C:
			if ctx.Err() != nil {
				return
			}
			s.processTranscription(ctx, m)
		case <-summaryTicker.C:
			if ctx.Err() != nil {
				return
			}
			s.processSummary(ctx, m)
		}
	}
}

// processTranscription drains buffered audio and appends any transcribed text
// to the meeting's transcript log. Failures are logged and never stop the
// timer.
func (s *service) processTranscription(ctx context.Context, m *meeting) {
	if !s.audio.HasData(m.audioSourceKey) {
		return
	}

	pcm := s.audio.DrainAll(m.audioSourceKey)
	if pcm == nil {
		return
	}
	s.logger.Info("processing transcription",
		zap.String("meeting_id", m.meetingID),
		zap.Int("bytes", len(pcm)),
	)

	if s.archiver != nil {
		s.archiver.ArchiveSegment(ctx, m.meetingID, pcm)
	}

	text := s.transcriber.Transcribe(ctx, pcm)
	if text == "" {
		return
	}

	s.transcripts.Append(m.meetingID, text)
	s.logger.Info("transcribed audio",
		zap.String("meeting_id", m.meetingID),
		zap.Int("chars", len(text)),
	)
	if s.notifier != nil {
		s.notifier.MeetingEvent(m.meetingID, "transcript", text)
	}
}

// processSummary drains accumulated transcript text, summarizes it and hands
// the result to the delivery sink. Failures are logged and never stop the
// timer.
func (s *service) processSummary(ctx context.Context, m *meeting) {
	transcript := s.transcripts.DrainAndJoin(m.meetingID)
	if transcript == "" {
		s.logger.Debug("no transcript to summarize", zap.String("meeting_id", m.meetingID))
		return
	}

	s.logger.Info("summarizing transcript",
		zap.String("meeting_id", m.meetingID),
		zap.Int("chars", len(transcript)),
	)
	summary, err := s.summarizer.Summarize(ctx, transcript)
	if err != nil {
		s.logger.Error("summarization failed, skipping post",
			zap.String("meeting_id", m.meetingID),
			zap.Error(err),
		)
		return
	}

	intervalMinutes := int(s.intervals.Summary.Minutes())
	if err := s.poster.PostSummary(ctx, m.destination, summary, intervalMinutes); err != nil {
		s.logger.Error("failed to post summary",
			zap.String("meeting_id", m.meetingID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("posted summary", zap.String("meeting_id", m.meetingID))
	if s.notifier != nil {
		s.notifier.MeetingEvent(m.meetingID, "summary", summary)
	}
}

// Stop cancels both timers and discards the meeting's buffered audio and
// transcript. Stopping an unknown meeting is a logged no-op. An in-flight
// tick that started just before Stop may still complete; its late append or
// post is harmless.
func (s *service) Stop(meetingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(meetingID)
}

func (s *service) stopLocked(meetingID string) {
	m, ok := s.meetings[meetingID]
	if !ok {
		s.logger.Warn("no active meeting found", zap.String("meeting_id", meetingID))
		return
	}

	m.cancel()
	s.audio.Remove(m.audioSourceKey)
	s.transcripts.Remove(meetingID)
	delete(s.meetings, meetingID)

	s.logger.Info("stopped meeting",
		zap.String("meeting_id", meetingID),
		zap.Duration("ran_for", time.Since(m.startedAt)),
	)
}

// StopAll stops every active meeting; used at process shutdown.
func (s *service) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("stopping all meetings", zap.Int("count", len(s.meetings)))
	for meetingID := range s.meetings {
		s.stopLocked(meetingID)
	}
}

// ActiveMeetings returns the ids of all running sessions.
func (s *service) ActiveMeetings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.meetings))
	for id := range s.meetings {
		ids = append(ids, id)
	}
	return ids
}

// CurrentTranscript returns the undrained transcript text for a meeting.
func (s *service) CurrentTranscript(meetingID string) string {
	return s.transcripts.Peek(meetingID)
}
