package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coherence/internal/model"
	"coherence/internal/store"
)

// ResultRepo stores the current AnalysisResult per video. Save replaces any
// earlier result for the same id.
type ResultRepo interface {
	Save(ctx context.Context, result *model.AnalysisResult) error
	GetByVideoID(ctx context.Context, videoID string) (*model.AnalysisResult, error)
	Delete(ctx context.Context, videoID string) error
}

type memoryResultRepo struct {
	store store.Store[model.AnalysisResult]
}

func NewMemoryResultRepo() ResultRepo {
	return &memoryResultRepo{store: store.NewMemory[model.AnalysisResult]()}
}

func (r *memoryResultRepo) Save(ctx context.Context, result *model.AnalysisResult) error {
	return r.store.Put(ctx, result.VideoID, result)
}

func (r *memoryResultRepo) GetByVideoID(ctx context.Context, videoID string) (*model.AnalysisResult, error) {
	return r.store.Get(ctx, videoID)
}

func (r *memoryResultRepo) Delete(ctx context.Context, videoID string) error {
	return r.store.Delete(ctx, videoID)
}

type resultRepo struct {
	results *mongo.Collection
}

// NewResultRepo creates a MongoDB-backed result repository
func NewResultRepo(db *mongo.Database) ResultRepo {
	return &resultRepo{
		results: db.Collection("analysis_results"),
	}
}

func (r *resultRepo) Save(ctx context.Context, result *model.AnalysisResult) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.results.ReplaceOne(ctx, bson.M{"videoId": result.VideoID}, result, opts)
	return err
}

func (r *resultRepo) GetByVideoID(ctx context.Context, videoID string) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	err := r.results.FindOne(ctx, bson.M{"videoId": videoID}).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *resultRepo) Delete(ctx context.Context, videoID string) error {
	_, err := r.results.DeleteOne(ctx, bson.M{"videoId": videoID})
	return err
}
