package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "commerce-core/errors"
	"commerce-core/models"
)

// MongoOrderRepository implements OrderRepository on a MongoDB collection.
type MongoOrderRepository struct {
	collection *mongo.Collection
}

// NewMongoOrderRepository creates an order repository over db's "orders"
// collection.
func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{collection: db.Collection("orders")}
}

func (r *MongoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	_, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *MongoOrderRepository) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.OrderNotFound(orderID)
		}
		return nil, fmt.Errorf("find order %s: %w", orderID, err)
	}
	return &order, nil
}

// FindByCustomerID retrieves a customer's orders with pagination, newest
// first.
func (r *MongoOrderRepository) FindByCustomerID(ctx context.Context, customerID string, page, limit int) ([]models.Order, int64, error) {
	return r.findPage(ctx, bson.M{"customer_id": customerID}, page, limit)
}

// FindAll retrieves all orders with pagination, newest first.
func (r *MongoOrderRepository) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	return r.findPage(ctx, bson.M{}, page, limit)
}

func (r *MongoOrderRepository) findPage(ctx context.Context, filter bson.M, page, limit int) ([]models.Order, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("decode orders: %w", err)
	}
	return orders, total, nil
}

// FindAllByCustomer returns the customer's full order history, oldest first,
// for the metrics replay.
func (r *MongoOrderRepository) FindAllByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	findOpts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"customer_id": customerID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find customer orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode customer orders: %w", err)
	}
	return orders, nil
}

// CompareAndSetStatus updates the order only if it is still in the expected
// status. The filter doubles as the optimistic lock: a concurrent transition
// that committed first makes this one miss and surface ConcurrencyConflict.
func (r *MongoOrderRepository) CompareAndSetStatus(ctx context.Context, orderID string, expected models.OrderStatus, upd StatusUpdate) error {
	filter := bson.M{"_id": orderID, "status": expected}

	set := bson.M{
		"status":     upd.Status,
		"updated_at": time.Now().UTC(),
	}
	if upd.PaymentStatus != nil {
		set["payment_status"] = *upd.PaymentStatus
	}
	if upd.SalesCounted != nil {
		set["sales_counted"] = *upd.SalesCounted
	}

	update := bson.M{
		"$set":  set,
		"$push": bson.M{"timeline": upd.Timeline},
		"$inc":  bson.M{"version": 1},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update order status %s: %w", orderID, err)
	}
	if res.MatchedCount == 0 {
		// Either the order vanished or another transition got there first.
		if _, err := r.FindByID(ctx, orderID); err != nil {
			return err
		}
		return apperrors.ConcurrencyConflict("order", orderID)
	}
	return nil
}
