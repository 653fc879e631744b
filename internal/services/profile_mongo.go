package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stresscall/stresscall-backend/internal/database"
	"github.com/stresscall/stresscall-backend/internal/models"
)

const profilesCollection = "users"

// mongoProfileStore persists profiles in the MongoDB "users" collection,
// one document per account keyed by UID.
type mongoProfileStore struct{}

// NewMongoProfileStore returns the production ProfileStore.
func NewMongoProfileStore() ProfileStore {
	return &mongoProfileStore{}
}

func (m *mongoProfileStore) collection() *mongo.Collection {
	return database.DB.Collection(profilesCollection)
}

func (m *mongoProfileStore) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := m.collection().FindOne(ctx, bson.M{"_id": uid}).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (m *mongoProfileStore) Insert(ctx context.Context, profile *models.UserProfile) error {
	_, err := m.collection().InsertOne(ctx, profile)
	return err
}

func (m *mongoProfileStore) Update(ctx context.Context, uid string, delta map[string]interface{}) error {
	_, err := m.collection().UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M(delta)})
	return err
}

func (m *mongoProfileStore) ResetMonthly(ctx context.Context, uid string, now time.Time) error {
	_, err := m.collection().UpdateOne(ctx, bson.M{"_id": uid}, bson.M{
		"$set": bson.M{"monthly_checks_used": 0, "last_reset_date": now},
	})
	return err
}

// ConsumeCheck increments the monthly counter server-side. For a capped tier
// the ceiling lives in the filter, so two racing requests cannot both pass it.
func (m *mongoProfileStore) ConsumeCheck(ctx context.Context, uid string, limit int) (*models.UserProfile, error) {
	filter := bson.M{"_id": uid}
	if limit >= 0 {
		filter["monthly_checks_used"] = bson.M{"$lt": limit}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.UserProfile
	err := m.collection().FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": bson.M{"monthly_checks_used": 1}}, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (m *mongoProfileStore) SetTier(ctx context.Context, uid string, tier models.SubscriptionTier) error {
	_, err := m.collection().UpdateOne(ctx, bson.M{"_id": uid}, bson.M{
		"$set": bson.M{"subscription_tier": tier},
	})
	return err
}
