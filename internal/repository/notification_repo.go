package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/models"
	"dispatch/pkg/id"
	"dispatch/pkg/validate"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultBatchSize = 500
	defaultTitleMax  = 255
	defaultBodyMax   = 2000
	maxActionURL     = 512
)

// NewNotification holds the caller-supplied fields of a notification row.
type NewNotification struct {
	RecipientID uint
	Type        string
	Title       string
	Body        string
	Data        map[string]any
	ActionURL   *string
}

// ListFilter selects one page of a recipient's notifications. Page is 1-based.
type ListFilter struct {
	RecipientID uint
	Page        int
	Limit       int
	UnreadOnly  bool
}

type NotificationRepository struct {
	db        *gorm.DB
	now       func() time.Time
	batchSize int
	titleMax  int
	bodyMax   int
}

type NotificationRepoOption func(*NotificationRepository)

// WithClock overrides the creation/transition timestamp source.
func WithClock(now func() time.Time) NotificationRepoOption {
	return func(r *NotificationRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithBatchSize sets how many rows go into each INSERT of a batch. All chunks
// still share one transaction.
func WithBatchSize(n int) NotificationRepoOption {
	return func(r *NotificationRepository) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithContentLimits sets the maximum title and body lengths in characters.
func WithContentLimits(titleMax, bodyMax int) NotificationRepoOption {
	return func(r *NotificationRepository) {
		if titleMax > 0 {
			r.titleMax = titleMax
		}
		if bodyMax > 0 {
			r.bodyMax = bodyMax
		}
	}
}

func NewNotificationRepository(db *gorm.DB, opts ...NotificationRepoOption) *NotificationRepository {
	r := &NotificationRepository{
		db:        db,
		now:       time.Now,
		batchSize: defaultBatchSize,
		titleMax:  defaultTitleMax,
		bodyMax:   defaultBodyMax,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates and inserts a single notification.
func (r *NotificationRepository) Create(ctx context.Context, in NewNotification) (*models.Notification, error) {
	n, err := r.build(in, r.now())
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, persistErr("create notification", err)
	}
	return n, nil
}

// CreateBatch inserts every entry in one transaction: all rows or none.
// The result preserves input order.
func (r *NotificationRepository) CreateBatch(ctx context.Context, in []NewNotification) ([]models.Notification, error) {
	if len(in) == 0 {
		return nil, nil
	}
	now := r.now()
	rows := make([]models.Notification, 0, len(in))
	for i, e := range in {
		n, err := r.build(e, now)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		rows = append(rows, *n)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, r.batchSize).Error
	})
	if err != nil {
		return nil, persistErr("create notification batch", err)
	}
	return rows, nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get notification", err)
	}
	return &n, nil
}

// MarkDelivered records a confirmed live push. A second call is a no-op.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND is_push_sent = ?", id, false).
		Updates(map[string]any{"is_push_sent": true, "push_sent_at": r.now()}).Error
	if err != nil {
		return persistErr("mark notification delivered", err)
	}
	return nil
}

// MarkRead flips the read flag of one of the recipient's notifications. Only
// the first call sets read_at; repeats are no-ops. A notification that does not
// belong to recipientID is reported as not found.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, recipientID uint) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_read = ?", id, recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": r.now()})
	if res.Error != nil {
		return persistErr("mark notification read", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Count(&count).Error; err != nil {
		return persistErr("mark notification read", err)
	}
	if count == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkAllReadForRecipient marks every unread notification of the recipient
// as read and returns how many rows changed.
func (r *NotificationRepository) MarkAllReadForRecipient(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": r.now()})
	if res.Error != nil {
		return 0, persistErr("mark all notifications read", res.Error)
	}
	return res.RowsAffected, nil
}

// ListForRecipient returns one page, newest first, and the filtered total.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, f ListFilter) ([]models.Notification, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", f.RecipientID)
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	// Count and Find both derive from q.
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, persistErr("count notifications", err)
	}
	list := make([]models.Notification, 0, f.Limit)
	if total == 0 {
		return list, 0, nil
	}
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(f.Limit).Offset((f.Page - 1) * f.Limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, persistErr("list notifications", err)
	}
	return list, total, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, persistErr("count unread notifications", err)
	}
	return count, nil
}

func (r *NotificationRepository) build(in NewNotification, now time.Time) (*models.Notification, error) {
	if err := r.check(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	n := &models.Notification{
		ID:          id.New(),
		RecipientID: in.RecipientID,
		Type:        in.Type,
		Title:       in.Title,
		Body:        in.Body,
		ActionURL:   in.ActionURL,
		CreatedAt:   now,
	}
	if len(in.Data) > 0 {
		b, err := json.Marshal(in.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: data: %v", domain.ErrValidation, err)
		}
		n.Data = datatypes.JSON(b)
	}
	return n, nil
}

func (r *NotificationRepository) check(in NewNotification) error {
	if err := validate.Var("recipient_id", in.RecipientID, "required"); err != nil {
		return err
	}
	if err := validate.Var("type", in.Type, "required,oneof="+strings.Join(domain.NotificationKinds, " ")); err != nil {
		return err
	}
	if err := validate.Var("title", in.Title, fmt.Sprintf("required,max=%d", r.titleMax)); err != nil {
		return err
	}
	if err := validate.Var("body", in.Body, fmt.Sprintf("required,max=%d", r.bodyMax)); err != nil {
		return err
	}
	if in.ActionURL != nil {
		if err := validate.Var("action_url", *in.ActionURL, fmt.Sprintf("required,max=%d", maxActionURL)); err != nil {
			return err
		}
	}
	return nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
