package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

type UserStore struct {
	coll *mongo.Collection
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return &repository.StoreError{Op: "create user", Err: err}
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, op string, filter bson.M) (*model.User, error) {
	var user model.User
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, notFoundOr(op, err)
	}
	return &user, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.findOne(ctx, "find user", bson.M{"_id": id})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, "find user by email", bson.M{"email": email})
}

func (s *UserStore) FindByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error) {
	return s.findOne(ctx, "find user by chat", bson.M{"telegramChatId": chatID})
}

func (s *UserStore) SetLinkCode(ctx context.Context, userID, code string, expiry time.Time) error {
	holders, err := s.coll.CountDocuments(ctx, bson.M{"linkCode": code, "_id": bson.M{"$ne": userID}})
	if err != nil {
		return &repository.StoreError{Op: "check link code", Err: err}
	}
	if holders > 0 {
		return repository.ErrDuplicate
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"linkCode": code, "linkCodeExpiry": expiry},
	})
	if err != nil {
		return &repository.StoreError{Op: "set link code", Err: err}
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *UserStore) LinkTelegram(ctx context.Context, code string, chatID int64, now time.Time) (*model.User, error) {
	owner, err := s.findOne(ctx, "link telegram", bson.M{"linkCode": code, "linkCodeExpiry": bson.M{"$gt": now}})
	if err != nil {
		return nil, err
	}

	// A chat follows the most recent link; the index on telegramChatId is unique.
	if _, err := s.coll.UpdateMany(ctx,
		bson.M{"telegramChatId": chatID, "_id": bson.M{"$ne": owner.ID}},
		bson.M{"$unset": bson.M{"telegramChatId": ""}},
	); err != nil {
		return nil, &repository.StoreError{Op: "link telegram", Err: err}
	}

	var user model.User
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": owner.ID, "linkCode": code},
		bson.M{
			"$set":   bson.M{"telegramChatId": chatID},
			"$unset": bson.M{"linkCode": "", "linkCodeExpiry": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, notFoundOr("link telegram", err)
	}
	return &user, nil
}

func (s *UserStore) UnlinkTelegram(ctx context.Context, chatID int64) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"telegramChatId": chatID}, bson.M{
		"$unset": bson.M{"telegramChatId": ""},
	})
	if err != nil {
		return &repository.StoreError{Op: "unlink telegram", Err: err}
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *UserStore) ListLinked(ctx context.Context) ([]model.User, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"telegramChatId": bson.M{"$exists": true}})
	if err != nil {
		return nil, &repository.StoreError{Op: "list linked users", Err: err}
	}
	users := []model.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, &repository.StoreError{Op: "list linked users", Err: err}
	}
	return users, nil
}
