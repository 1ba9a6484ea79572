package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raids-lab/capstone/dao/model"
)

type ChapterStore interface {
	// Create inserts a chapter. A duplicate (project, phase, number)
	// fails on the unique index with gorm.ErrDuplicatedKey.
	Create(ctx context.Context, ch *model.Chapter) error
	GetByID(ctx context.Context, id uint) (*model.Chapter, error)
	// ListByProject orders by phase then chapter number.
	ListByProject(ctx context.Context, projectID uint) ([]model.Chapter, error)
	// AppendVersion appends the next version under a row lock on the
	// chapter and moves the status to `to` when the current status is in
	// resubmitFrom. Any other status is preserved.
	AppendVersion(ctx context.Context, chapterID uint, fileID, webViewLink string,
		resubmitFrom []model.ChapterStatus, to model.ChapterStatus) (*model.ChapterVersion, error)
	// ReviewCAS commits a review decision guarded on submitted status and
	// appends the feedback entry in the same transaction. Returns false
	// when the chapter is not in submitted state, leaving it untouched.
	ReviewCAS(ctx context.Context, chapterID uint, to model.ChapterStatus,
		fb *model.FeedbackEntry) (bool, error)
}

type chapterStore struct {
	db *gorm.DB
}

func NewChapterStore(db *gorm.DB) ChapterStore {
	return &chapterStore{db: db}
}

func (s *chapterStore) Create(ctx context.Context, ch *model.Chapter) error {
	return s.db.WithContext(ctx).Create(ch).Error
}

func (s *chapterStore) GetByID(ctx context.Context, id uint) (*model.Chapter, error) {
	var ch model.Chapter
	err := s.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("Feedback", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		First(&ch, id).Error
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *chapterStore) ListByProject(ctx context.Context, projectID uint) ([]model.Chapter, error) {
	var chs []model.Chapter
	err := s.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("Feedback", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Where("project_id = ?", projectID).
		Order("capstone_phase, chapter_number").
		Find(&chs).Error
	return chs, err
}

func (s *chapterStore) AppendVersion(ctx context.Context, chapterID uint, fileID, webViewLink string,
	resubmitFrom []model.ChapterStatus, to model.ChapterStatus) (*model.ChapterVersion, error) {
	var version model.ChapterVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ch model.Chapter
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&ch, chapterID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.ChapterVersion{}).
			Where("chapter_id = ?", chapterID).Count(&count).Error; err != nil {
			return err
		}

		version = model.ChapterVersion{
			ChapterID:   chapterID,
			Seq:         int(count) + 1,
			FileID:      fileID,
			WebViewLink: webViewLink,
			UploadedAt:  time.Now(),
		}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}

		for _, from := range resubmitFrom {
			if ch.Status == from {
				return tx.Model(&ch).Update("status", to).Error
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (s *chapterStore) ReviewCAS(ctx context.Context, chapterID uint, to model.ChapterStatus,
	fb *model.FeedbackEntry) (bool, error) {
	committed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Chapter{}).
			Where("id = ? AND status = ?", chapterID, model.ChapterStatusSubmitted).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		committed = true

		var count int64
		if err := tx.Model(&model.FeedbackEntry{}).
			Where("chapter_id = ?", chapterID).Count(&count).Error; err != nil {
			return err
		}
		fb.ChapterID = chapterID
		fb.Seq = int(count) + 1
		return tx.Create(fb).Error
	})
	return committed, err
}
