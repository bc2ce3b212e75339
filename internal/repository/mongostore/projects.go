package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

type ProjectStore struct {
	client   *mongo.Client
	projects *mongo.Collection
	tasks    *mongo.Collection
}

func (s *ProjectStore) Create(ctx context.Context, project *model.Project) error {
	if _, err := s.projects.InsertOne(ctx, project); err != nil {
		return &repository.StoreError{Op: "create project", Err: err}
	}
	return nil
}

func (s *ProjectStore) FindOwned(ctx context.Context, projectID, userID string) (*model.Project, error) {
	var project model.Project
	if err := s.projects.FindOne(ctx, bson.M{"_id": projectID, "userId": userID}).Decode(&project); err != nil {
		return nil, notFoundOr("find project", err)
	}
	return &project, nil
}

func (s *ProjectStore) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.projects.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, &repository.StoreError{Op: "list projects", Err: err}
	}
	projects := []model.Project{}
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, &repository.StoreError{Op: "list projects", Err: err}
	}
	return projects, nil
}

func (s *ProjectStore) Update(ctx context.Context, project *model.Project) error {
	res, err := s.projects.UpdateOne(ctx,
		bson.M{"_id": project.ID, "userId": project.UserID},
		bson.M{"$set": bson.M{
			"name":        project.Name,
			"description": project.Description,
			"updatedAt":   project.UpdatedAt,
		}},
	)
	if err != nil {
		return &repository.StoreError{Op: "update project", Err: err}
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteCascade runs in a multi-document transaction, so the server must be a
// replica set member.
func (s *ProjectStore) DeleteCascade(ctx context.Context, projectID, userID string) (*model.Project, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, &repository.StoreError{Op: "delete project", Err: err}
	}
	defer session.EndSession(ctx)

	var project model.Project
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if err := s.projects.FindOneAndDelete(sc, bson.M{"_id": projectID, "userId": userID}).Decode(&project); err != nil {
			return nil, err
		}
		return s.tasks.DeleteMany(sc, bson.M{"projectId": projectID})
	})
	if err != nil {
		return nil, notFoundOr("delete project", err)
	}
	return &project, nil
}
