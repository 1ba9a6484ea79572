package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByName(ctx context.Context, name string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
	UpdateRole(ctx context.Context, id uint, role model.Role) error
}

type userStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) UserStore {
	return &userStore{db: db}
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *userStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) GetByName(ctx context.Context, name string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).Order("id").Find(&users).Error
	return users, err
}

func (s *userStore) UpdateRole(ctx context.Context, id uint, role model.Role) error {
	return s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("role", role).Error
}
