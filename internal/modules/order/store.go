// README: Order store backed by MongoDB; tracking is embedded in the order document.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"fooddash/internal/types"
)

const collectionName = "orders"

type Store struct {
	coll *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(collectionName)}
}

type document struct {
	ID              primitive.ObjectID `bson:"_id"`
	UserRef         string             `bson:"user_ref"`
	LineItems       []LineItem         `bson:"items"`
	TotalAmount     int64              `bson:"total_amount"`
	Status          string             `bson:"status"`
	DeliveryAddress string             `bson:"delivery_address"`
	Tracking        *TrackingInfo      `bson:"tracking,omitempty"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func toDocument(o *Order) (document, error) {
	id, err := primitive.ObjectIDFromHex(o.ID)
	if err != nil {
		return document{}, fmt.Errorf("order id: %w", err)
	}
	return document{
		ID:              id,
		UserRef:         o.UserRef,
		LineItems:       o.LineItems,
		TotalAmount:     int64(o.TotalAmount),
		Status:          string(o.Status),
		DeliveryAddress: o.DeliveryAddress,
		Tracking:        o.Tracking,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func (d document) toOrder() *Order {
	items := d.LineItems
	if items == nil {
		items = []LineItem{}
	}
	return &Order{
		ID:              d.ID.Hex(),
		UserRef:         d.UserRef,
		LineItems:       items,
		TotalAmount:     types.Money(d.TotalAmount),
		Status:          Status(d.Status),
		DeliveryAddress: d.DeliveryAddress,
		Tracking:        d.Tracking,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

// EnsureIndexes creates the indexes the list and stats queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_ref", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create order indexes: %w", err)
	}
	return nil
}

// Create assigns a fresh id when the order has none and inserts it.
func (s *Store) Create(ctx context.Context, o *Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	if o.ID == "" {
		o.ID = primitive.NewObjectID().Hex()
	}
	doc, err := toDocument(o)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("cannot create order: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc document
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get order: %w", err)
	}
	return doc.toOrder(), nil
}

// UpdateStatus sets the status. When from is non-empty the write only
// applies if the stored status still equals from; otherwise ErrConflict.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to Status) (*Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	filter := bson.M{"_id": oid}
	if from != "" {
		filter["status"] = string(from)
	}
	update := bson.M{"$set": bson.M{"status": string(to), "updated_at": now()}}
	return s.findAndUpdate(ctx, oid, filter, update, ErrConflict)
}

// UpdateTracking replaces the embedded tracking snapshot. Orders whose
// status is in notIn are left untouched and reported as ErrInvalidState.
func (s *Store) UpdateTracking(ctx context.Context, id string, info TrackingInfo, notIn ...Status) (*Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	filter := bson.M{"_id": oid}
	excludeStatuses(filter, notIn)
	update := bson.M{"$set": bson.M{"tracking": info, "updated_at": now()}}
	return s.findAndUpdate(ctx, oid, filter, update, ErrInvalidState)
}

// CompleteDelivery writes the arrived tracking snapshot and the delivered
// status in a single update.
func (s *Store) CompleteDelivery(ctx context.Context, id string, info TrackingInfo, notIn ...Status) (*Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	filter := bson.M{"_id": oid}
	excludeStatuses(filter, notIn)
	update := bson.M{"$set": bson.M{
		"tracking":   info,
		"status":     string(StatusDelivered),
		"updated_at": now(),
	}}
	return s.findAndUpdate(ctx, oid, filter, update, ErrInvalidState)
}

func (s *Store) findAndUpdate(ctx context.Context, oid primitive.ObjectID, filter, update bson.M, mismatch error) (*Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc document
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toOrder(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("cannot update order: %w", err)
	}
	if len(filter) == 1 {
		return nil, ErrNotFound
	}
	// The guard did not match; tell a missing order apart from a stale one.
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("cannot get order: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, mismatch
}

var sortFields = map[SortField]string{
	SortCreatedAt:   "created_at",
	SortUpdatedAt:   "updated_at",
	SortTotalAmount: "total_amount",
	SortStatus:      "status",
}

// List returns one page of orders plus the total matching count. The page
// and the count are fetched concurrently.
func (s *Store) List(ctx context.Context, q ListQuery) (ListResult, error) {
	filter := filterDocument(q.Filter)
	dir := -1
	if q.Ascending {
		dir = 1
	}
	field, ok := sortFields[q.SortBy]
	if !ok {
		field = sortFields[SortCreatedAt]
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(q.skip()).
		SetLimit(int64(q.Limit))

	var (
		docs  []document
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cur, err := s.coll.Find(gctx, filter, opts)
		if err != nil {
			return fmt.Errorf("cannot list orders: %w", err)
		}
		defer cur.Close(gctx)
		if err := cur.All(gctx, &docs); err != nil {
			return fmt.Errorf("cannot decode orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.coll.CountDocuments(gctx, filter)
		if err != nil {
			return fmt.Errorf("cannot count orders: %w", err)
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, err
	}

	out := ListResult{Orders: make([]Order, 0, len(docs)), Total: total}
	for _, d := range docs {
		out.Orders = append(out.Orders, *d.toOrder())
	}
	return out, nil
}

type statsRow struct {
	Status      string `bson:"_id"`
	Count       int64  `bson:"count"`
	TotalAmount int64  `bson:"totalAmount"`
}

// AggregateStats groups matching orders by status and computes the overall
// totals in one round trip.
func (s *Store) AggregateStats(ctx context.Context, f Filter) (Stats, error) {
	group := func(key any) bson.D {
		return bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: key},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalAmount", Value: bson.D{{Key: "$sum", Value: "$total_amount"}}},
		}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filterDocument(f)}},
		{{Key: "$facet", Value: bson.D{
			{Key: "byStatus", Value: bson.A{group("$status"), bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}}}},
			{Key: "totals", Value: bson.A{group(nil)}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, fmt.Errorf("cannot aggregate orders: %w", err)
	}
	defer cur.Close(ctx)

	var facets []struct {
		ByStatus []statsRow `bson:"byStatus"`
		Totals   []statsRow `bson:"totals"`
	}
	if err := cur.All(ctx, &facets); err != nil {
		return Stats{}, fmt.Errorf("cannot decode order stats: %w", err)
	}

	out := Stats{Stats: []StatusStat{}}
	if len(facets) == 0 {
		return out, nil
	}
	for _, row := range facets[0].ByStatus {
		out.Stats = append(out.Stats, StatusStat{
			Status:      Status(row.Status),
			Count:       row.Count,
			TotalAmount: types.Money(row.TotalAmount),
		})
	}
	if len(facets[0].Totals) > 0 {
		out.TotalOrders = facets[0].Totals[0].Count
		out.TotalAmount = types.Money(facets[0].Totals[0].TotalAmount)
	}
	return out, nil
}

func filterDocument(f Filter) bson.M {
	m := bson.M{}
	if f.OwnerID != "" {
		m["user_ref"] = f.OwnerID
	}
	if f.Status != nil {
		m["status"] = string(*f.Status)
	}
	if f.From != nil || f.To != nil {
		r := bson.M{}
		if f.From != nil {
			r["$gte"] = *f.From
		}
		if f.To != nil {
			r["$lte"] = *f.To
		}
		m["created_at"] = r
	}
	return m
}

func excludeStatuses(filter bson.M, notIn []Status) {
	if len(notIn) == 0 {
		return
	}
	vals := make(bson.A, 0, len(notIn))
	for _, st := range notIn {
		vals = append(vals, string(st))
	}
	filter["status"] = bson.M{"$nin": vals}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
