package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "commerce-core/errors"
	"commerce-core/models"
)

// MongoProductRepository implements ProductRepository on a MongoDB collection.
//
// Every mutator is a single conditional update using an aggregation-pipeline
// update document, so the availability guard, the counter change, the version
// bump and the derived-field recompute are one atomic write. Two concurrent
// reservers therefore observe each other's effect before computing available
// stock; the database serializes them on the document.
type MongoProductRepository struct {
	collection *mongo.Collection
}

// NewMongoProductRepository creates a product repository over db's "products"
// collection.
func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{collection: db.Collection("products")}
}

// notDeleted excludes soft-deleted products.
func notDeleted(productID string) bson.M {
	return bson.M{"_id": productID, "deleted_at": bson.M{"$exists": false}}
}

// recomputeDerived re-derives available_quantity and stock_status from the
// counters already updated earlier in the same pipeline.
func recomputeDerived() bson.A {
	return bson.A{
		bson.M{"$set": bson.M{
			"available_quantity": bson.M{"$subtract": bson.A{"$quantity", "$reserved_quantity"}},
		}},
		bson.M{"$set": bson.M{
			"stock_status": bson.M{"$switch": bson.M{
				"branches": bson.A{
					bson.M{
						"case": bson.M{"$eq": bson.A{"$track_inventory", false}},
						"then": string(models.StockStatusInStock),
					},
					bson.M{
						"case": bson.M{"$lte": bson.A{"$available_quantity", 0}},
						"then": string(models.StockStatusOutOfStock),
					},
					bson.M{
						"case": bson.M{"$lte": bson.A{"$available_quantity", "$low_stock_threshold"}},
						"then": string(models.StockStatusLowStock),
					},
				},
				"default": string(models.StockStatusInStock),
			}},
		}},
	}
}

// touch bumps the optimistic version and the updated_at stamp.
func touch() bson.M {
	return bson.M{"$set": bson.M{
		"version":    bson.M{"$add": bson.A{"$version", 1}},
		"updated_at": "$$NOW",
	}}
}

func (r *MongoProductRepository) FindByID(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	err := r.collection.FindOne(ctx, notDeleted(productID)).Decode(&product)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ProductNotFound(productID)
		}
		return nil, fmt.Errorf("find product %s: %w", productID, err)
	}
	return &product, nil
}

func (r *MongoProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]*models.Product, error) {
	filter := bson.M{"_id": bson.M{"$in": productIDs}, "deleted_at": bson.M{"$exists": false}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	result := make(map[string]*models.Product, len(productIDs))
	for cursor.Next(ctx) {
		var product models.Product
		if err := cursor.Decode(&product); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		result[product.ID] = &product
	}
	return result, cursor.Err()
}

func (r *MongoProductRepository) Create(ctx context.Context, product *models.Product) error {
	product.Recompute()
	_, err := r.collection.InsertOne(ctx, product)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// ReserveStock promises qty units. The filter embeds the availability guard:
// a matched count of zero means either the product is gone or another caller
// won the remaining stock, which we disambiguate with a follow-up read.
func (r *MongoProductRepository) ReserveStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return apperrors.Validation("reserve quantity must be positive")
	}

	filter := notDeleted(productID)
	filter["$or"] = bson.A{
		bson.M{"track_inventory": false},
		bson.M{"allow_backorder": true},
		bson.M{"$expr": bson.M{"$gte": bson.A{
			bson.M{"$subtract": bson.A{"$quantity", "$reserved_quantity"}},
			qty,
		}}},
	}

	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"reserved_quantity": bson.M{"$add": bson.A{"$reserved_quantity", qty}},
		}},
		touch(),
	}
	pipeline = append(pipeline, recomputeDerived()...)

	res, err := r.collection.UpdateOne(ctx, filter, pipeline)
	if err != nil {
		return fmt.Errorf("reserve stock for %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return r.insufficientOrMissing(ctx, productID, qty)
	}
	return nil
}

// ReleaseReservedStock returns qty units to the pool. The decrement clamps at
// zero: an over-release from an inconsistent caller degrades instead of
// driving the counter negative.
func (r *MongoProductRepository) ReleaseReservedStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return apperrors.Validation("release quantity must be positive")
	}
	return r.retireReserved(ctx, productID, qty, "release")
}

// ConvertReservedToSold retires a reservation on fulfillment without touching
// quantity: only the reserved counter comes down, and the sale is recorded in
// sales_count by the caller.
func (r *MongoProductRepository) ConvertReservedToSold(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return apperrors.Validation("convert quantity must be positive")
	}
	return r.retireReserved(ctx, productID, qty, "convert")
}

func (r *MongoProductRepository) retireReserved(ctx context.Context, productID string, qty int, op string) error {
	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"reserved_quantity": bson.M{"$max": bson.A{0,
				bson.M{"$subtract": bson.A{"$reserved_quantity", qty}},
			}},
		}},
		touch(),
	}
	pipeline = append(pipeline, recomputeDerived()...)

	res, err := r.collection.UpdateOne(ctx, notDeleted(productID), pipeline)
	if err != nil {
		return fmt.Errorf("%s reserved stock for %s: %w", op, productID, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ProductNotFound(productID)
	}
	return nil
}

// AdjustStock mutates quantity directly (restocking or manual correction).
// SUBTRACT refuses to drive quantity negative.
func (r *MongoProductRepository) AdjustStock(ctx context.Context, productID string, qty int, op models.AdjustOp) error {
	if qty <= 0 {
		return apperrors.Validation("adjust quantity must be positive")
	}

	filter := notDeleted(productID)
	delta := qty
	if op == models.AdjustOpSubtract {
		delta = -qty
		filter["quantity"] = bson.M{"$gte": qty}
	} else if op != models.AdjustOpAdd {
		return apperrors.Validation(fmt.Sprintf("unknown adjust op %q", op))
	}

	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"quantity": bson.M{"$add": bson.A{"$quantity", delta}},
		}},
		touch(),
	}
	pipeline = append(pipeline, recomputeDerived()...)

	res, err := r.collection.UpdateOne(ctx, filter, pipeline)
	if err != nil {
		return fmt.Errorf("adjust stock for %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		if op == models.AdjustOpSubtract {
			return r.insufficientOrMissing(ctx, productID, qty)
		}
		return apperrors.ProductNotFound(productID)
	}
	return nil
}

func (r *MongoProductRepository) IncrementSalesCount(ctx context.Context, productID string, qty int) error {
	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"sales_count": bson.M{"$add": bson.A{"$sales_count", qty}},
		}},
		touch(),
	}
	res, err := r.collection.UpdateOne(ctx, notDeleted(productID), pipeline)
	if err != nil {
		return fmt.Errorf("increment sales count for %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ProductNotFound(productID)
	}
	return nil
}

// DecrementSalesCount floors the counter at zero.
func (r *MongoProductRepository) DecrementSalesCount(ctx context.Context, productID string, qty int) error {
	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"sales_count": bson.M{"$max": bson.A{0,
				bson.M{"$subtract": bson.A{"$sales_count", qty}},
			}},
		}},
		touch(),
	}
	res, err := r.collection.UpdateOne(ctx, notDeleted(productID), pipeline)
	if err != nil {
		return fmt.Errorf("decrement sales count for %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ProductNotFound(productID)
	}
	return nil
}

// insufficientOrMissing distinguishes a missing product from a lost race on
// the availability guard.
func (r *MongoProductRepository) insufficientOrMissing(ctx context.Context, productID string, qty int) error {
	product, err := r.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	return apperrors.InsufficientStock(productID, qty, product.Available())
}
