package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coherence/internal/model"
	"coherence/internal/store"
)

// VideoRepo stores upload records keyed by video id
type VideoRepo interface {
	Save(ctx context.Context, video *model.Video) error
	GetByID(ctx context.Context, id string) (*model.Video, error)
	Delete(ctx context.Context, id string) error
}

type memoryVideoRepo struct {
	store store.Store[model.Video]
}

// NewMemoryVideoRepo keeps videos in process memory
func NewMemoryVideoRepo() VideoRepo {
	return &memoryVideoRepo{store: store.NewMemory[model.Video]()}
}

func (r *memoryVideoRepo) Save(ctx context.Context, video *model.Video) error {
	return r.store.Put(ctx, video.ID, video)
}

func (r *memoryVideoRepo) GetByID(ctx context.Context, id string) (*model.Video, error) {
	return r.store.Get(ctx, id)
}

func (r *memoryVideoRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

type videoRepo struct {
	collection *mongo.Collection
}

// NewVideoRepo creates a MongoDB-backed video repository
func NewVideoRepo(db *mongo.Database) VideoRepo {
	return &videoRepo{
		collection: db.Collection("videos"),
	}
}

func (r *videoRepo) Save(ctx context.Context, video *model.Video) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": video.ID}, video, opts)
	return err
}

func (r *videoRepo) GetByID(ctx context.Context, id string) (*model.Video, error) {
	var video model.Video
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&video)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
