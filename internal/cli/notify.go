package cli

import (
	"context"
	"io"
	"time"

	"github.com/pfrederiksen/talkwatch/internal/crawler"
	"github.com/pfrederiksen/talkwatch/internal/event"
	"github.com/pfrederiksen/talkwatch/internal/logger"
	"github.com/pfrederiksen/talkwatch/internal/metrics"
	"github.com/pfrederiksen/talkwatch/internal/notifier"
	"github.com/pfrederiksen/talkwatch/internal/scheduler"
)

// updatedLister finds what a crawl stored
type updatedLister interface {
	MeetingsUpdatedSince(ctx context.Context, since time.Time) ([]*event.Meeting, error)
}

// announcer posts the meetings created or changed since a point in time.
// Notification failures are logged and never fail the crawl.
type announcer struct {
	store    updatedLister
	notifier notifier.Notifier
	backend  string
	log      *logger.Logger
}

// newAnnouncer returns nil when no backend is configured. Dry-run posts are
// written to out.
func (a *app) newAnnouncer(store updatedLister, out io.Writer) (*announcer, error) {
	n, err := notifier.New(a.cfg.Notify, out)
	if err != nil || n == nil {
		return nil, err
	}
	return &announcer{
		store:    store,
		notifier: n,
		backend:  a.cfg.Notify.Backend,
		log:      logger.Default(),
	}, nil
}

func (an *announcer) announce(ctx context.Context, since time.Time) {
	meetings, err := an.store.MeetingsUpdatedSince(ctx, since)
	if err != nil {
		an.log.Error("Listing changed meetings failed", logger.Fields{"backend": an.backend}, err)
		return
	}
	if len(meetings) == 0 {
		return
	}

	changes := notifier.ChangesSince(meetings, since)
	if err := an.notifier.Notify(ctx, changes); err != nil {
		metrics.Notifications.WithLabelValues(an.backend, "failed").Add(float64(len(changes)))
		an.log.Error("Notification failed", logger.Fields{
			"backend": an.backend,
			"changes": len(changes),
		}, err)
		return
	}

	metrics.Notifications.WithLabelValues(an.backend, "sent").Add(float64(len(changes)))
	an.log.Info("Notifications sent", logger.Fields{
		"backend": an.backend,
		"changes": len(changes),
	})
}

// notifyingRunner announces what each scheduled crawl created or changed
type notifyingRunner struct {
	runner    scheduler.Runner
	announcer *announcer
	now       func() time.Time
}

func (r *notifyingRunner) CrawlAll(ctx context.Context) (crawler.Summary, error) {
	since := r.now()
	summary, err := r.runner.CrawlAll(ctx)
	if err != nil {
		return summary, err
	}
	if summary.Created+summary.Changed > 0 {
		r.announcer.announce(ctx, since)
	}
	return summary, nil
}
