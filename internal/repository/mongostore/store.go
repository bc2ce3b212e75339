// Package mongostore implements the repository interfaces on MongoDB. Task
// history lives inside the task document, so field changes and appended
// entries are written by a single document update.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"task-calendar/internal/repository"
)

// Store owns the client and the three collections.
type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	projects *mongo.Collection
	tasks    *mongo.Collection
}

// Open connects, pings and returns a store bound to dbName.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	return &Store{
		client:   client,
		users:    db.Collection("users"),
		projects: db.Collection("projects"),
		tasks:    db.Collection("tasks"),
	}, nil
}

// EnsureIndexes creates the indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "telegramChatId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "linkCode", Value: 1}}, Options: options.Index().SetSparse(true)},
	}); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	if _, err := s.projects.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create project indexes: %w", err)
	}
	if _, err := s.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "projectId", Value: 1}}},
		{Keys: bson.D{{Key: "dueDate", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create task indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Users() *UserStore {
	return &UserStore{coll: s.users}
}

func (s *Store) Projects() *ProjectStore {
	return &ProjectStore{client: s.client, projects: s.projects, tasks: s.tasks}
}

func (s *Store) Tasks() *TaskStore {
	return &TaskStore{coll: s.tasks}
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return &repository.StoreError{Op: op, Err: err}
}

var (
	_ repository.UserStore    = (*UserStore)(nil)
	_ repository.ProjectStore = (*ProjectStore)(nil)
	_ repository.TaskStore    = (*TaskStore)(nil)
)
