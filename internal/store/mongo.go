// Package store provides storage backends for Clario assessment state.
//
// This file implements the MongoDB-backed store.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clarioapp/clario/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDatabase   = "clario"
	mongoCollection = "user_assessments"
	mongoOpTimeout  = 10 * time.Second
)

// MongoStore persists assessment state in MongoDB. A single upsert gives the
// at-most-one-creation guarantee on first access.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// assessmentDoc is the BSON shape of one assessment record.
type assessmentDoc struct {
	UserID               string            `bson:"_id"`
	Answers              map[string]string `bson:"answers"`
	PendingAnswers       map[string]string `bson:"pending_answers,omitempty"`
	CurrentQuestionIndex int               `bson:"current_question_index"`
	Status               string            `bson:"status"`
	Language             string            `bson:"language"`
	CreatedAt            time.Time         `bson:"created_at"`
	UpdatedAt            time.Time         `bson:"updated_at"`
}

// NewMongoStore creates a new Mongo store. The DSN is a mongodb:// URI.
func NewMongoStore(opts ...Option) (*MongoStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewMongoStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("MongoStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		slog.Error("MongoDB ping failed", "error", err)
		return nil, fmt.Errorf("MongoDB ping failed: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(mongoDatabase).Collection(mongoCollection),
	}, nil
}

// GetAssessment returns the user's assessment state, atomically creating the
// default record via an upsert with $setOnInsert.
func (s *MongoStore) GetAssessment(ctx context.Context, userID string) (models.AssessmentState, error) {
	if userID == "" {
		return models.AssessmentState{}, models.ErrEmptyUserID
	}
	def := models.NewAssessmentState(userID)
	filter := bson.M{"_id": userID}
	update := bson.M{"$setOnInsert": assessmentDoc{
		UserID:               userID,
		Answers:              map[string]string{},
		CurrentQuestionIndex: 0,
		Status:               string(models.StatusInProgress),
		Language:             models.DefaultLanguage,
		CreatedAt:            def.CreatedAt,
		UpdatedAt:            def.UpdatedAt,
	}}

	var doc assessmentDoc
	err := s.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		slog.Error("MongoStore GetAssessment failed", "error", err, "userID", userID)
		return models.AssessmentState{}, fmt.Errorf("failed to ensure assessment for %s: %w", userID, err)
	}
	slog.Debug("MongoStore GetAssessment succeeded", "userID", userID, "index", doc.CurrentQuestionIndex, "status", doc.Status)
	return docToState(doc), nil
}

// UpdateAssessment merges only the supplied fields into the stored record.
func (s *MongoStore) UpdateAssessment(ctx context.Context, userID string, update models.AssessmentUpdate) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Answers != nil {
		set["answers"] = update.Answers
	}
	if update.PendingAnswers != nil {
		set["pending_answers"] = update.PendingAnswers
	}
	if update.CurrentQuestionIndex != nil {
		set["current_question_index"] = *update.CurrentQuestionIndex
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}
	if update.Language != nil {
		set["language"] = *update.Language
	}

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		slog.Error("MongoStore UpdateAssessment failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update assessment for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		slog.Warn("MongoStore UpdateAssessment no record", "userID", userID)
		return models.ErrAssessmentNotFound
	}
	slog.Debug("MongoStore UpdateAssessment succeeded", "userID", userID)
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	slog.Debug("Disconnecting from MongoDB")
	return s.client.Disconnect(ctx)
}

func docToState(doc assessmentDoc) models.AssessmentState {
	state := models.AssessmentState{
		UserID:               doc.UserID,
		Answers:              doc.Answers,
		PendingAnswers:       doc.PendingAnswers,
		CurrentQuestionIndex: doc.CurrentQuestionIndex,
		Status:               models.AssessmentStatus(doc.Status),
		Language:             doc.Language,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
	}
	if state.Answers == nil {
		state.Answers = make(map[string]string)
	}
	return state
}
