package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

type TaskStore struct {
	coll *mongo.Collection
}

func (s *TaskStore) Create(ctx context.Context, task *model.Task) error {
	doc := *task
	// $push needs an array, never a missing or null field.
	doc.History = []model.HistoryEntry{}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return &repository.StoreError{Op: "create task", Err: err}
	}
	return nil
}

func (s *TaskStore) FindOwned(ctx context.Context, taskID, userID string) (*model.Task, error) {
	var task model.Task
	if err := s.coll.FindOne(ctx, bson.M{"_id": taskID, "userId": userID}).Decode(&task); err != nil {
		return nil, notFoundOr("find task", err)
	}
	fillTaskIDs(&task)
	return &task, nil
}

func (s *TaskStore) ExistsInProject(ctx context.Context, taskID, projectID string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": taskID, "projectId": projectID})
	if err != nil {
		return false, &repository.StoreError{Op: "check task project", Err: err}
	}
	return n > 0, nil
}

// ApplyUpdate sets the fields and pushes the entries with one UpdateOne, which
// MongoDB applies atomically to the document.
func (s *TaskStore) ApplyUpdate(ctx context.Context, task *model.Task, entries []model.HistoryEntry) error {
	update := bson.M{"$set": bson.M{
		"projectId":   task.ProjectID,
		"title":       task.Title,
		"description": task.Description,
		"priority":    task.Priority,
		"completed":   task.Completed,
		"category":    task.Category,
		"dueDate":     task.DueDate,
		"updatedAt":   task.UpdatedAt,
	}}
	if len(entries) > 0 {
		rows := make([]model.HistoryEntry, len(entries))
		for i, entry := range entries {
			entry.Seq = len(task.History) + i
			rows[i] = entry
		}
		update["$push"] = bson.M{"history": bson.M{"$each": rows}}
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": task.ID, "userId": task.UserID}, update)
	if err != nil {
		return &repository.StoreError{Op: "update task", Err: err}
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *TaskStore) DeleteOwned(ctx context.Context, taskID, userID string) (*model.Task, error) {
	var task model.Task
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": taskID, "userId": userID}).Decode(&task); err != nil {
		return nil, notFoundOr("delete task", err)
	}
	fillTaskIDs(&task)
	return &task, nil
}

func (s *TaskStore) List(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return s.find(ctx, "list tasks", buildFilter(filter), opts)
}

func (s *TaskStore) ListWithHistory(ctx context.Context, userID string) ([]model.Task, error) {
	query := bson.M{"history.0": bson.M{"$exists": true}}
	if userID != "" {
		query["userId"] = userID
	}
	return s.find(ctx, "list tasks with history", query)
}

func (s *TaskStore) Count(ctx context.Context, filter repository.TaskFilter) (int64, int64, error) {
	query := buildFilter(filter)
	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return 0, 0, &repository.StoreError{Op: "count tasks", Err: err}
	}
	if filter.Completed != nil && !*filter.Completed {
		return total, 0, nil
	}
	query["completed"] = true
	completed, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return 0, 0, &repository.StoreError{Op: "count completed tasks", Err: err}
	}
	return total, completed, nil
}

func (s *TaskStore) find(ctx context.Context, op string, query bson.M, opts ...*options.FindOptions) ([]model.Task, error) {
	cursor, err := s.coll.Find(ctx, query, opts...)
	if err != nil {
		return nil, &repository.StoreError{Op: op, Err: err}
	}
	tasks := []model.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, &repository.StoreError{Op: op, Err: err}
	}
	for i := range tasks {
		fillTaskIDs(&tasks[i])
	}
	return tasks, nil
}

func buildFilter(filter repository.TaskFilter) bson.M {
	query := bson.M{}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.ProjectID != "" {
		query["projectId"] = filter.ProjectID
	}
	if filter.Completed != nil {
		query["completed"] = *filter.Completed
	}
	due := bson.M{}
	if filter.DueFrom != nil {
		due["$gte"] = *filter.DueFrom
	}
	if filter.DueBefore != nil {
		due["$lt"] = *filter.DueBefore
	}
	if len(due) > 0 {
		query["dueDate"] = due
	}
	return query
}

// fillTaskIDs restores the owning task id, which embedded entries do not store.
func fillTaskIDs(task *model.Task) {
	for i := range task.History {
		task.History[i].TaskID = task.ID
	}
}
