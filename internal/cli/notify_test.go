package cli

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pfrederiksen/talkwatch/internal/crawler"
	"github.com/pfrederiksen/talkwatch/internal/event"
	"github.com/pfrederiksen/talkwatch/internal/logger"
	"github.com/pfrederiksen/talkwatch/internal/metrics"
	"github.com/pfrederiksen/talkwatch/internal/notifier"
)

type stubRunner struct {
	summary crawler.Summary
	err     error
}

func (r stubRunner) CrawlAll(ctx context.Context) (crawler.Summary, error) {
	return r.summary, r.err
}

type stubLister struct {
	meetings []*event.Meeting
	since    time.Time
	calls    int
}

func (l *stubLister) MeetingsUpdatedSince(ctx context.Context, since time.Time) ([]*event.Meeting, error) {
	l.calls++
	l.since = since
	return l.meetings, nil
}

type recordingNotifier struct {
	changes []notifier.Change
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, changes []notifier.Change) error {
	n.changes = append(n.changes, changes...)
	return n.err
}

func TestNotifyingRunner(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 5, 0, time.UTC)
	meetings := []*event.Meeting{
		{ID: 1, CreatedAt: start.Add(-24 * time.Hour)},
		{ID: 2, CreatedAt: start.Add(time.Second)},
	}

	tests := []struct {
		name        string
		runner      stubRunner
		notifyErr   error
		wantErr     bool
		wantLookups int
		wantChanges int
	}{
		{"changes are announced", stubRunner{summary: crawler.Summary{Created: 1, Changed: 1}}, nil, false, 1, 2},
		{"quiet crawl", stubRunner{summary: crawler.Summary{Total: 2}}, nil, false, 0, 0},
		{"crawl error", stubRunner{err: errors.New("checkpoint failed")}, nil, true, 0, 0},
		{"notify error is not fatal", stubRunner{summary: crawler.Summary{Changed: 1}}, errors.New("rate limited"), false, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &stubLister{meetings: meetings}
			n := &recordingNotifier{err: tt.notifyErr}
			r := &notifyingRunner{
				runner: tt.runner,
				announcer: &announcer{
					store:    lister,
					notifier: n,
					backend:  notifier.BackendDryRun,
					log:      logger.New(logger.LevelError, io.Discard),
				},
				now: func() time.Time { return start },
			}

			_, err := r.CrawlAll(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("CrawlAll() error = %v, wantErr %v", err, tt.wantErr)
			}
			if lister.calls != tt.wantLookups {
				t.Errorf("lookups = %d, want %d", lister.calls, tt.wantLookups)
			}
			if len(n.changes) != tt.wantChanges {
				t.Fatalf("notified %d changes, want %d", len(n.changes), tt.wantChanges)
			}
			if tt.wantChanges > 0 {
				if !lister.since.Equal(start) {
					t.Errorf("since = %v, want %v", lister.since, start)
				}
				if n.changes[0].Created || !n.changes[1].Created {
					t.Errorf("changes = %+v", n.changes)
				}
			}
		})
	}
}

func TestAnnouncerCountsNotifications(t *testing.T) {
	sent := metrics.Notifications.WithLabelValues(notifier.BackendTelegram, "sent")
	failed := metrics.Notifications.WithLabelValues(notifier.BackendTelegram, "failed")
	sentBefore, failedBefore := testutil.ToFloat64(sent), testutil.ToFloat64(failed)

	lister := &stubLister{meetings: []*event.Meeting{{ID: 1}, {ID: 2}}}
	an := &announcer{
		store:    lister,
		notifier: &recordingNotifier{},
		backend:  notifier.BackendTelegram,
		log:      logger.New(logger.LevelError, io.Discard),
	}
	an.announce(context.Background(), time.Now())

	an.notifier = &recordingNotifier{err: errors.New("chat not found")}
	an.announce(context.Background(), time.Now())

	if got := testutil.ToFloat64(sent) - sentBefore; got != 2 {
		t.Errorf("sent counter increased by %v, want 2", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 2 {
		t.Errorf("failed counter increased by %v, want 2", got)
	}
}
