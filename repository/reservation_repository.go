package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"commerce-core/models"
)

// MongoReservationRepository implements ReservationRepository on a MongoDB
// collection.
type MongoReservationRepository struct {
	collection *mongo.Collection
}

// NewMongoReservationRepository creates a reservation repository over db's
// "reservations" collection.
func NewMongoReservationRepository(db *mongo.Database) *MongoReservationRepository {
	return &MongoReservationRepository{collection: db.Collection("reservations")}
}

func (r *MongoReservationRepository) CreateMany(ctx context.Context, reservations []models.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(reservations))
	for i := range reservations {
		docs = append(docs, reservations[i])
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert reservations: %w", err)
	}
	return nil
}

// ReleaseByOrder flips the order's RESERVED claims to RELEASED and returns
// the claims it flipped. The status guard on the read makes a second release
// find nothing.
func (r *MongoReservationRepository) ReleaseByOrder(ctx context.Context, orderID string) ([]models.Reservation, error) {
	return r.retireByOrder(ctx, orderID, models.ReservationStatusReleased)
}

// ConvertByOrder flips the order's RESERVED claims to CONVERTED and returns
// them.
func (r *MongoReservationRepository) ConvertByOrder(ctx context.Context, orderID string) ([]models.Reservation, error) {
	return r.retireByOrder(ctx, orderID, models.ReservationStatusConverted)
}

func (r *MongoReservationRepository) retireByOrder(ctx context.Context, orderID string, to models.ReservationStatus) ([]models.Reservation, error) {
	filter := bson.M{"order_id": orderID, "status": models.ReservationStatusReserved}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find reservations for order %s: %w", orderID, err)
	}
	var claims []models.Reservation
	if err := cursor.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("decode reservations: %w", err)
	}
	if len(claims) == 0 {
		return nil, nil
	}

	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}}
	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return nil, fmt.Errorf("retire reservations for order %s: %w", orderID, err)
	}
	for i := range claims {
		claims[i].Status = to
	}
	return claims, nil
}

// FindExpiredOrders returns distinct order ids that still hold RESERVED
// claims past their expiry.
func (r *MongoReservationRepository) FindExpiredOrders(ctx context.Context, limit int) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":     models.ReservationStatusReserved,
			"expires_at": bson.M{"$lt": time.Now().UTC()},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$order_id"}}},
		{{Key: "$limit", Value: limit}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("find expired reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		OrderID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode expired reservations: %w", err)
	}
	orderIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		orderIDs = append(orderIDs, row.OrderID)
	}
	return orderIDs, nil
}
