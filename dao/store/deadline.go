package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
)

type DeadlineStore interface {
	Create(ctx context.Context, d *model.Deadline) error
	Update(ctx context.Context, d *model.Deadline) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*model.Deadline, error)
	ListAll(ctx context.Context) ([]model.Deadline, error)
	// ListDueWithin returns deadlines falling due between now and
	// now+window, ordered by due time.
	ListDueWithin(ctx context.Context, window time.Duration) ([]model.Deadline, error)
}

type deadlineStore struct {
	db *gorm.DB
}

func NewDeadlineStore(db *gorm.DB) DeadlineStore {
	return &deadlineStore{db: db}
}

func (s *deadlineStore) Create(ctx context.Context, d *model.Deadline) error {
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *deadlineStore) Update(ctx context.Context, d *model.Deadline) error {
	return s.db.WithContext(ctx).Save(d).Error
}

func (s *deadlineStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&model.Deadline{}, id).Error
}

func (s *deadlineStore) GetByID(ctx context.Context, id uint) (*model.Deadline, error) {
	var d model.Deadline
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *deadlineStore) ListAll(ctx context.Context) ([]model.Deadline, error) {
	var ds []model.Deadline
	err := s.db.WithContext(ctx).Order("due_at").Find(&ds).Error
	return ds, err
}

func (s *deadlineStore) ListDueWithin(ctx context.Context, window time.Duration) ([]model.Deadline, error) {
	now := time.Now()
	var ds []model.Deadline
	err := s.db.WithContext(ctx).
		Where("due_at > ? AND due_at <= ?", now, now.Add(window)).
		Order("due_at").
		Find(&ds).Error
	return ds, err
}
