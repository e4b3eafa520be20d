package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/store"
)

// eventLeadTime is how far ahead of a timetable event's start a reminder fires.
const eventLeadTime = 30 * time.Minute

// Reminder is a single due notification for one user.
type Reminder struct {
	Kind  string `json:"kind"`
	RefID string `json:"ref_id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Sender delivers a web push payload. *Service implements it.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Scheduler periodically checks for reminders to send.
type Scheduler struct {
	// Online lists users with connected clients. Optional.
	Online func() []string
	// Notify delivers a reminder over the live connection. Optional.
	Notify func(userID string, r Reminder)

	mu        sync.RWMutex
	sender    Sender
	push      *store.PushStore
	tasks     *store.TaskStore
	timetable *store.TimetableStore
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
	interval  time.Duration
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler creates a reminder scheduler. sender may be nil when web push
// is not configured; reminders then only go to live clients.
func NewScheduler(sender Sender, pushStore *store.PushStore, taskStore *store.TaskStore, timetableStore *store.TimetableStore, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		sender:    sender,
		push:      pushStore,
		tasks:     taskStore,
		timetable: timetableStore,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
		interval:  60 * time.Second,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx, s.now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	users, err := s.users()
	if err != nil {
		s.logger.Error("list reminder users", "error", err)
		return
	}

	now = now.In(s.loc)
	for _, uid := range users {
		s.checkTasksDue(ctx, uid, now)
		s.checkEventsStarting(ctx, uid, now)
	}
}

// users returns the union of online users and users with push subscriptions.
func (s *Scheduler) users() ([]string, error) {
	ids, err := s.push.ListUserIDs()
	if err != nil {
		return nil, err
	}
	if s.Online != nil {
		ids = append(ids, s.Online()...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func (s *Scheduler) checkTasksDue(ctx context.Context, uid string, now time.Time) {
	tasks, err := s.tasks.ListByUser(ctx, uid)
	if err != nil {
		s.logger.Error("list tasks for reminders", "user_id", uid, "error", err)
		return
	}

	today := now.Format(time.DateOnly)
	for _, t := range tasks {
		if t.Completed || t.Deadline.IsZero() {
			continue
		}
		// Deadlines are calendar dates; compare them in their own zone.
		if t.Deadline.Format(time.DateOnly) != today {
			continue
		}
		s.deliver(ctx, uid, fmt.Sprintf("%s:%s:%s", model.ReminderTaskDue, t.ID, today), Reminder{
			Kind:  model.ReminderTaskDue,
			RefID: t.ID,
			Title: "Task due today",
			Body:  fmt.Sprintf("%s is due today", t.Title),
			URL:   "/tasks",
		})
	}
}

func (s *Scheduler) checkEventsStarting(ctx context.Context, uid string, now time.Time) {
	events, err := s.timetable.ListByUser(ctx, uid)
	if err != nil {
		s.logger.Error("list timetable for reminders", "user_id", uid, "error", err)
		return
	}

	today := now.Format(time.DateOnly)
	weekday := now.Weekday().String()
	for _, ev := range events {
		if ev.Day != weekday {
			continue
		}
		start, err := ev.StartsAt(now)
		if err != nil {
			s.logger.Warn("bad event start time", "user_id", uid, "event_id", ev.ID, "error", err)
			continue
		}
		lead := start.Sub(now)
		if lead < 0 || lead > eventLeadTime {
			continue
		}
		s.deliver(ctx, uid, fmt.Sprintf("%s:%s:%s", model.ReminderEventStart, ev.ID, today), Reminder{
			Kind:  model.ReminderEventStart,
			RefID: ev.ID,
			Title: "Coming up",
			Body:  fmt.Sprintf("%s starts at %s", ev.Title, ev.StartTime),
			URL:   "/timetable",
		})
	}
}

// deliver sends r once per refKey. The log entry is written before sending
// so concurrent instances never both deliver.
func (s *Scheduler) deliver(ctx context.Context, uid, refKey string, r Reminder) {
	fresh, err := s.push.RecordSent(uid, refKey)
	if err != nil {
		s.logger.Error("record reminder", "user_id", uid, "ref", refKey, "error", err)
		return
	}
	if !fresh {
		return
	}

	s.logger.Debug("reminder due", "user_id", uid, "kind", r.Kind, "ref", refKey)
	if s.Notify != nil {
		s.Notify(uid, r)
	}
	if s.sender == nil {
		return
	}

	subs, err := s.push.ListByUser(uid)
	if err != nil {
		s.logger.Error("list push subscriptions", "user_id", uid, "error", err)
		return
	}

	payload := Payload{
		Title: r.Title,
		Body:  r.Body,
		URL:   r.URL,
		Tag:   refKey,
	}
	for _, sub := range subs {
		if err := s.sender.Send(ctx, &sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
					s.logger.Error("delete expired subscription", "user_id", uid, "error", err)
				}
				continue
			}
			s.logger.Warn("send push", "user_id", uid, "device", sub.DeviceName, "error", err)
		}
	}
}
