package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/models"
	"dispatch/internal/repository"
	"dispatch/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	defaultFanoutWorkers = 32
	defaultPushTimeout   = 3 * time.Second
	defaultMarkTimeout   = 5 * time.Second
)

// ErrNoTargets is returned when a broadcast resolves to no recipients.
var ErrNoTargets = fmt.Errorf("%w: no targets", domain.ErrValidation)

// PresenceOracle reports and uses live-connection reachability. EmitToUser
// must return false, not block, when the user has no live connection.
type PresenceOracle interface {
	IsUserOnline(userID uint) bool
	EmitToUser(userID uint, event string, payload any) bool
}

// NotificationStore is the persistence the dispatcher writes through.
type NotificationStore interface {
	Create(ctx context.Context, in repository.NewNotification) (*models.Notification, error)
	CreateBatch(ctx context.Context, in []repository.NewNotification) ([]models.Notification, error)
	MarkDelivered(ctx context.Context, id string) error
}

// MobilePusher sends an out-of-band device push.
type MobilePusher interface {
	SendToUser(ctx context.Context, fcmToken string, notifType, title, body string, data map[string]interface{}) error
}

// UserLookup resolves a recipient's device token for mobile push.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Message is the recipient-independent content of a notification.
type Message struct {
	Type      string
	Title     string
	Body      string
	Data      map[string]any
	ActionURL *string
}

func (m Message) forRecipient(id uint) repository.NewNotification {
	return repository.NewNotification{
		RecipientID: id,
		Type:        m.Type,
		Title:       m.Title,
		Body:        m.Body,
		Data:        m.Data,
		ActionURL:   m.ActionURL,
	}
}

// NotificationService persists notifications first and then attempts a
// best-effort live push. A push that is not confirmed leaves the row for the
// recipient to find by listing; it is never retried.
type NotificationService struct {
	store    NotificationStore
	presence PresenceOracle
	users    UserLookup
	mobile   MobilePusher
	log      *slog.Logger

	workers     int
	pushTimeout time.Duration
	markTimeout time.Duration

	// emits bounds live EmitToUser calls, including ones that outlived
	// their push timeout.
	emits   chan struct{}
	pending sync.WaitGroup
}

type Option func(*NotificationService)

func WithLogger(l *slog.Logger) Option {
	return func(s *NotificationService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithFanoutWorkers caps concurrent push attempts during a broadcast and the
// number of emits the presence layer sees at once.
func WithFanoutWorkers(n int) Option {
	return func(s *NotificationService) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithPushTimeout(d time.Duration) Option {
	return func(s *NotificationService) {
		if d > 0 {
			s.pushTimeout = d
		}
	}
}

func WithMarkTimeout(d time.Duration) Option {
	return func(s *NotificationService) {
		if d > 0 {
			s.markTimeout = d
		}
	}
}

// WithMobilePush enables a device push for recipients the live push missed.
func WithMobilePush(users UserLookup, pusher MobilePusher) Option {
	return func(s *NotificationService) {
		s.users = users
		s.mobile = pusher
	}
}

func NewNotificationService(store NotificationStore, presence PresenceOracle, opts ...Option) *NotificationService {
	s := &NotificationService{
		store:       store,
		presence:    presence,
		log:         slog.Default(),
		workers:     defaultFanoutWorkers,
		pushTimeout: defaultPushTimeout,
		markTimeout: defaultMarkTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.emits = make(chan struct{}, s.workers)
	return s
}

// Send persists one notification and pushes it if the recipient is connected.
// Only persistence failures are returned.
func (s *NotificationService) Send(ctx context.Context, recipientID uint, msg Message) (*models.Notification, error) {
	n, err := s.store.Create(ctx, msg.forRecipient(recipientID))
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, n)
	return n, nil
}

// Broadcast persists one row per recipient in a single transaction, then
// pushes them concurrently with at most workers attempts in flight. It returns
// the number of rows persisted. Push outcomes are not reported.
func (s *NotificationService) Broadcast(ctx context.Context, recipients []uint, msg Message) (int, error) {
	if len(recipients) == 0 {
		return 0, ErrNoTargets
	}
	entries := make([]repository.NewNotification, len(recipients))
	for i, id := range recipients {
		entries[i] = msg.forRecipient(id)
	}
	rows, err := s.store.CreateBatch(ctx, entries)
	if err != nil {
		return 0, err
	}

	// Rows are committed; fan-out no longer follows the caller's cancellation.
	fctx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range rows {
		n := &rows[i]
		g.Go(func() error {
			s.deliver(fctx, n)
			return nil
		})
	}
	_ = g.Wait()

	logger.FromContext(ctx, s.log).InfoContext(ctx, "broadcast dispatched",
		slog.String("type", msg.Type),
		slog.Int("recipients", len(rows)),
	)
	return len(rows), nil
}

// Wait blocks until every pending delivered-flag update and mobile push has
// finished.
func (s *NotificationService) Wait() {
	s.pending.Wait()
}

func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) {
	if s.push(ctx, n) {
		s.markDelivered(ctx, n.ID)
		return
	}
	logger.FromContext(ctx, s.log).DebugContext(ctx, "live delivery degraded",
		slog.String("notification_id", n.ID),
		logger.UserID(n.RecipientID),
	)
	s.pushMobile(ctx, n)
}

// push emits under its own timeout. A timed out, rejected or panicking
// attempt counts as not delivered.
func (s *NotificationService) push(ctx context.Context, n *models.Notification) bool {
	if s.presence == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	select {
	case s.emits <- struct{}{}:
	case <-pctx.Done():
		return false
	}

	done := make(chan bool, 1)
	go func() {
		defer func() { <-s.emits }()
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(ctx, s.log).Error("presence emit panicked",
					slog.String("notification_id", n.ID),
					slog.Any("panic", r),
				)
				done <- false
			}
		}()
		done <- s.presence.EmitToUser(n.RecipientID, domain.EventNotification, n)
	}()

	select {
	case ok := <-done:
		return ok
	case <-pctx.Done():
		return false
	}
}

// markDelivered updates the advisory push flag in the background. Failures are
// logged and never touch the persisted row otherwise.
func (s *NotificationService) markDelivered(ctx context.Context, id string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.markTimeout)
		defer cancel()
		if err := s.store.MarkDelivered(mctx, id); err != nil {
			logger.FromContext(ctx, s.log).Warn("mark delivered failed",
				slog.String("notification_id", id),
				logger.Error(err),
			)
		}
	}()
}

// pushMobile sends the device push in the background so callers return right
// after the live attempt.
func (s *NotificationService) pushMobile(ctx context.Context, n *models.Notification) {
	if s.mobile == nil || s.users == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.sendMobile(ctx, n)
	}()
}

func (s *NotificationService) sendMobile(ctx context.Context, n *models.Notification) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pushTimeout)
	defer cancel()
	u, err := s.users.GetByID(mctx, n.RecipientID)
	if err != nil || u == nil || u.FCMToken == "" {
		return
	}
	data := map[string]interface{}{"notification_id": n.ID}
	if len(n.Data) > 0 {
		var extra map[string]interface{}
		if json.Unmarshal(n.Data, &extra) == nil {
			for k, v := range extra {
				data[k] = v
			}
		}
	}
	if n.ActionURL != nil {
		data["action_url"] = *n.ActionURL
	}
	if err := s.mobile.SendToUser(mctx, u.FCMToken, n.Type, n.Title, n.Body, data); err != nil {
		logger.FromContext(ctx, s.log).Warn("mobile push failed",
			slog.String("notification_id", n.ID),
			logger.UserID(n.RecipientID),
			logger.Error(err),
		)
	}
}
