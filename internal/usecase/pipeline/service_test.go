package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/external/teams"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/store"
)

type stubTranscriber struct {
	mu    sync.Mutex
	calls int
	text  string
	got   []byte
}

func (s *stubTranscriber) Transcribe(_ context.Context, pcm []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.got = pcm
	return s.text
}

type stubSummarizer struct {
	mu      sync.Mutex
	calls   int
	summary string
	err     error
}

func (s *stubSummarizer) Summarize(_ context.Context, transcript string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.summary, s.err
}

type stubPoster struct {
	mu    sync.Mutex
	posts []string
	refs  []teams.ConversationReference
	err   error
}

func (s *stubPoster) PostSummary(_ context.Context, ref teams.ConversationReference, summary string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, summary)
	s.refs = append(s.refs, ref)
	return s.err
}

type fixture struct {
	audio       *store.AudioBufferStore
	transcripts *store.TranscriptLog
	transcriber *stubTranscriber
	summarizer  *stubSummarizer
	poster      *stubPoster
	svc         *service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		audio:       store.NewAudioBufferStore(),
		transcripts: store.NewTranscriptLog(),
		transcriber: &stubTranscriber{text: "transcribed text"},
		summarizer:  &stubSummarizer{summary: "stubbed summary"},
		poster:      &stubPoster{},
	}
	intervals := Intervals{Transcription: time.Hour, Summary: time.Hour}
	f.svc = NewService(f.audio, f.transcripts, f.transcriber, f.summarizer, f.poster, nil, nil, intervals, zap.NewNop()).(*service)
	t.Cleanup(f.svc.StopAll)
	return f
}

func (f *fixture) meeting(t *testing.T, meetingID string) *meeting {
	t.Helper()
	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	m, ok := f.svc.meetings[meetingID]
	if !ok {
		t.Fatalf("meeting %s not active", meetingID)
	}
	return m
}

func TestStart_DuplicateReplacesSession(t *testing.T) {
	f := newFixture(t)
	dest := teams.ConversationReference{ServiceURL: "http://example", ConversationID: "c1"}

	f.svc.Start("m1", "src-1", dest)
	f.audio.Append("src-1", []byte{1, 2, 3})
	f.transcripts.Append("m1", "stale fragment")

	f.svc.Start("m1", "src-1", dest)

	if got := f.svc.ActiveMeetings(); len(got) != 1 || got[0] != "m1" {
		t.Fatalf("expected exactly one active session, got %v", got)
	}
	if f.audio.HasData("src-1") {
		t.Fatal("old session's audio buffer must be cleared")
	}
	if f.transcripts.Peek("m1") != "" {
		t.Fatal("old session's transcript log must be cleared")
	}
}

func TestStop_UnknownMeetingIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.svc.Stop("never-started")
	if got := f.svc.ActiveMeetings(); len(got) != 0 {
		t.Fatalf("expected no active meetings, got %v", got)
	}
}

func TestStop_ClearsResources(t *testing.T) {
	f := newFixture(t)
	f.svc.Start("m1", "src-1", teams.ConversationReference{})
	f.audio.Append("src-1", []byte{1})
	f.transcripts.Append("m1", "fragment")

	f.svc.Stop("m1")

	if len(f.svc.ActiveMeetings()) != 0 {
		t.Fatal("meeting should be gone")
	}
	if f.audio.HasData("src-1") {
		t.Fatal("audio buffer should be removed")
	}
	if f.transcripts.Peek("m1") != "" {
		t.Fatal("transcript log should be removed")
	}
}

func TestStopAll(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"m1", "m2", "m3"} {
		f.svc.Start(id, "src-"+id, teams.ConversationReference{})
	}
	f.svc.StopAll()
	if got := f.svc.ActiveMeetings(); len(got) != 0 {
		t.Fatalf("expected all meetings stopped, got %v", got)
	}
}

func TestTranscriptionTick_NoAudioDoesNothing(t *testing.T) {
	f := newFixture(t)
	f.svc.Start("m1", "src-1", teams.ConversationReference{})

	f.svc.processTranscription(context.Background(), f.meeting(t, "m1"))

	if f.transcriber.calls != 0 {
		t.Fatalf("transcriber must not run without buffered audio, got %d calls", f.transcriber.calls)
	}
}

func TestTranscriptionTick_DrainsAndAccumulates(t *testing.T) {
	f := newFixture(t)
	f.svc.Start("m1", "src-1", teams.ConversationReference{})
	f.audio.Append("src-1", []byte{1, 2})
	f.audio.Append("src-1", []byte{3})

	f.svc.processTranscription(context.Background(), f.meeting(t, "m1"))

	if f.transcriber.calls != 1 {
		t.Fatalf("expected one transcription, got %d", f.transcriber.calls)
	}
	if len(f.transcriber.got) != 3 {
		t.Fatalf("expected drained 3 bytes, got %d", len(f.transcriber.got))
	}
	if f.audio.HasData("src-1") {
		t.Fatal("buffer should be empty after tick")
	}
	if got := f.transcripts.Peek("m1"); got != "transcribed text" {
		t.Fatalf("transcript log: got %q", got)
	}
}

func TestTranscriptionTick_EmptyResultNotAppended(t *testing.T) {
	f := newFixture(t)
	f.transcriber.text = ""
	f.svc.Start("m1", "src-1", teams.ConversationReference{})
	f.audio.Append("src-1", []byte{1})

	f.svc.processTranscription(context.Background(), f.meeting(t, "m1"))

	if got := f.transcripts.Peek("m1"); got != "" {
		t.Fatalf("empty transcription must not be appended, got %q", got)
	}
}

func TestSummaryTick_EmptyLogDoesNothing(t *testing.T) {
	f := newFixture(t)
	f.svc.Start("m1", "src-1", teams.ConversationReference{})

	f.svc.processSummary(context.Background(), f.meeting(t, "m1"))

	if f.summarizer.calls != 0 {
		t.Fatalf("summarizer must not run on an empty log, got %d calls", f.summarizer.calls)
	}
	if len(f.poster.posts) != 0 {
		t.Fatalf("nothing should be posted, got %v", f.poster.posts)
	}
}

func TestSummaryTick_PostsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	dest := teams.ConversationReference{ServiceURL: "http://example", ConversationID: "c7"}
	f.svc.Start("m1", "src-1", dest)
	f.transcripts.Append("m1", "hello")
	f.transcripts.Append("m1", "world")

	f.svc.processSummary(context.Background(), f.meeting(t, "m1"))

	if len(f.poster.posts) != 1 {
		t.Fatalf("expected exactly one post, got %d", len(f.poster.posts))
	}
	if f.poster.posts[0] != "stubbed summary" {
		t.Fatalf("post body: got %q", f.poster.posts[0])
	}
	if f.poster.refs[0] != dest {
		t.Fatalf("post destination: got %+v", f.poster.refs[0])
	}
	if f.transcripts.Peek("m1") != "" {
		t.Fatal("log should be drained by the tick")
	}
}

func TestSummaryTick_SummarizerFailureSkipsPost(t *testing.T) {
	f := newFixture(t)
	f.summarizer.err = errors.New("model unavailable")
	f.svc.Start("m1", "src-1", teams.ConversationReference{})
	f.transcripts.Append("m1", "some accumulated transcript text")

	f.svc.processSummary(context.Background(), f.meeting(t, "m1"))

	if len(f.poster.posts) != 0 {
		t.Fatalf("failed summarization must not post, got %v", f.poster.posts)
	}
	if got := f.svc.ActiveMeetings(); len(got) != 1 {
		t.Fatal("a failed tick must not stop the meeting")
	}
}

func TestSummaryTick_PosterFailureTolerated(t *testing.T) {
	f := newFixture(t)
	f.poster.err = errors.New("connector down")
	f.svc.Start("m1", "src-1", teams.ConversationReference{})
	f.transcripts.Append("m1", "some accumulated transcript text")

	f.svc.processSummary(context.Background(), f.meeting(t, "m1"))

	if got := f.svc.ActiveMeetings(); len(got) != 1 {
		t.Fatal("a failed post must not stop the meeting")
	}
}

func TestEndToEnd_AudioToPost(t *testing.T) {
	f := newFixture(t)
	dest := teams.ConversationReference{ServiceURL: "http://example", ConversationID: "c1"}
	f.svc.Start("m1", "src-1", dest)

	f.audio.Append("src-1", make([]byte, 40000))
	m := f.meeting(t, "m1")
	f.svc.processTranscription(context.Background(), m)
	f.svc.processSummary(context.Background(), m)

	if len(f.poster.posts) != 1 || f.poster.posts[0] != "stubbed summary" {
		t.Fatalf("expected one post with the stubbed summary, got %v", f.poster.posts)
	}
}

func TestCurrentTranscript(t *testing.T) {
	f := newFixture(t)
	f.svc.Start("m1", "src-1", teams.ConversationReference{})
	f.transcripts.Append("m1", "first")
	f.transcripts.Append("m1", "second")

	if got := f.svc.CurrentTranscript("m1"); got != "first second" {
		t.Fatalf("expected undrained transcript, got %q", got)
	}
	// introspection must not drain
	if got := f.svc.CurrentTranscript("m1"); got != "first second" {
		t.Fatalf("peek drained the log: %q", got)
	}
}
