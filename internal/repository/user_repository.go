package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"task-calendar/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return &StoreError{Op: "create user", Err: err}
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "find user", "id = ?", id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "find user by email", "email = ?", email)
}

func (r *UserRepository) FindByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error) {
	return r.first(ctx, "find user by chat", "telegram_chat_id = ?", chatID)
}

func (r *UserRepository) first(ctx context.Context, op, query string, args ...any) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		return nil, notFoundOr(op, err)
	}
	return &user, nil
}

// SetLinkCode gives the user a new code. It returns ErrDuplicate when another
// user still holds the same code.
func (r *UserRepository) SetLinkCode(ctx context.Context, userID, code string, expiry time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holders int64
		if err := tx.Model(&model.User{}).Where("link_code = ? AND id <> ?", code, userID).
			Count(&holders).Error; err != nil {
			return err
		}
		if holders > 0 {
			return ErrDuplicate
		}
		res := tx.Model(&model.User{}).Where("id = ?", userID).
			Updates(map[string]any{"link_code": code, "link_code_expiry": expiry})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, ErrDuplicate) {
		return err
	}
	if err != nil {
		return notFoundOr("set link code", err)
	}
	return nil
}

func (r *UserRepository) LinkTelegram(ctx context.Context, code string, chatID int64, now time.Time) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("link_code = ? AND link_code_expiry > ?", code, now).First(&user).Error; err != nil {
			return err
		}
		// A chat follows the most recent link.
		if err := tx.Model(&model.User{}).Where("telegram_chat_id = ? AND id <> ?", chatID, user.ID).
			Update("telegram_chat_id", nil).Error; err != nil {
			return err
		}
		user.TelegramChatID = &chatID
		user.LinkCode = ""
		user.LinkCodeExpiry = nil
		return tx.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"telegram_chat_id": chatID,
			"link_code":        "",
			"link_code_expiry": nil,
		}).Error
	})
	if err != nil {
		return nil, notFoundOr("link telegram", err)
	}
	return &user, nil
}

func (r *UserRepository) UnlinkTelegram(ctx context.Context, chatID int64) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("telegram_chat_id = ?", chatID).
		Update("telegram_chat_id", nil)
	if res.Error != nil {
		return &StoreError{Op: "unlink telegram", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListLinked(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id IS NOT NULL").Find(&users).Error; err != nil {
		return nil, &StoreError{Op: "list linked users", Err: err}
	}
	return users, nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return &StoreError{Op: op, Err: err}
}
