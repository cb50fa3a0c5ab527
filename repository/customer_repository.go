package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "commerce-core/errors"
	"commerce-core/models"
)

// MongoCustomerRepository implements CustomerRepository on a MongoDB
// collection.
type MongoCustomerRepository struct {
	collection *mongo.Collection
}

// NewMongoCustomerRepository creates a customer repository over db's
// "customers" collection.
func NewMongoCustomerRepository(db *mongo.Database) *MongoCustomerRepository {
	return &MongoCustomerRepository{collection: db.Collection("customers")}
}

func (r *MongoCustomerRepository) FindByID(ctx context.Context, customerID string) (*models.Customer, error) {
	var customer models.Customer
	err := r.collection.FindOne(ctx, bson.M{"_id": customerID}).Decode(&customer)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.CustomerNotFound(customerID)
		}
		return nil, fmt.Errorf("find customer %s: %w", customerID, err)
	}
	return &customer, nil
}

// UpdateMetrics overwrites the denormalized aggregate in one write. The
// aggregate is a reporting convenience; last-writer-wins is acceptable here.
func (r *MongoCustomerRepository) UpdateMetrics(ctx context.Context, customerID string, metrics models.CustomerMetrics, tier models.LoyaltyTier) error {
	update := bson.M{"$set": bson.M{
		"metrics":      metrics,
		"loyalty_tier": tier,
		"updated_at":   time.Now().UTC(),
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": customerID}, update)
	if err != nil {
		return fmt.Errorf("update customer metrics %s: %w", customerID, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.CustomerNotFound(customerID)
	}
	return nil
}

// AddLoyaltyPoints increments the points counter atomically; never
// fetch-mutate-save.
func (r *MongoCustomerRepository) AddLoyaltyPoints(ctx context.Context, customerID string, points int) error {
	if points <= 0 {
		return nil
	}
	update := bson.M{
		"$inc": bson.M{"loyalty_points": points},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": customerID}, update)
	if err != nil {
		return fmt.Errorf("add loyalty points %s: %w", customerID, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.CustomerNotFound(customerID)
	}
	return nil
}
