// README: Order service implements the lifecycle, access rules and live tracking.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fooddash/internal/apperr"
	"fooddash/internal/auth"
	"fooddash/internal/geo"
	"fooddash/internal/metrics"
	"fooddash/internal/modules/catalog"
	"fooddash/internal/requestid"
	"fooddash/internal/types"
)

var (
	ErrNotFound        = apperr.New(apperr.KindNotFound, "order not found")
	ErrNoTracking      = apperr.New(apperr.KindNotFound, "no tracking information for this order")
	ErrInvalidState    = apperr.New(apperr.KindConflict, "invalid state transition")
	ErrConflict        = apperr.New(apperr.KindConflict, "order state conflict")
	ErrItemNotFound    = apperr.New(apperr.KindValidation, "food item not found")
	ErrItemUnavailable = apperr.New(apperr.KindValidation, "food item is not available")
	ErrValidation      = apperr.New(apperr.KindValidation, "validation failed")
	ErrForbidden       = apperr.New(apperr.KindForbidden, "not allowed to access this order")
)

// Repository is the persistence the service needs; *Store implements it.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Order, error)
	UpdateTracking(ctx context.Context, id string, info TrackingInfo, notIn ...Status) (*Order, error)
	CompleteDelivery(ctx context.Context, id string, info TrackingInfo, notIn ...Status) (*Order, error)
	List(ctx context.Context, q ListQuery) (ListResult, error)
	AggregateStats(ctx context.Context, f Filter) (Stats, error)
}

type Catalog interface {
	LookupMany(ctx context.Context, ids []string) (map[string]catalog.FoodItem, error)
}

type Router interface {
	Route(ctx context.Context, origin, destination types.Location, waypoints ...types.Location) (geo.DeliveryRoute, error)
}

// Origin resolves the restaurant location routes start from.
type Origin interface {
	Get(ctx context.Context) (types.Location, error)
}

// Publisher receives committed changes. Delivery failures never fail the
// operation that produced them.
type Publisher interface {
	PublishTracking(ctx context.Context, info TrackingInfo) error
	PublishStatus(ctx context.Context, ev StatusEvent) error
}

type Deps struct {
	Catalog     Catalog
	Router      Router
	Origin      Origin
	Publisher   Publisher
	Policy      Policy
	MaxPageSize int
	Log         logrus.FieldLogger
}

type Service struct {
	store       Repository
	catalog     Catalog
	router      Router
	origin      Origin
	publisher   Publisher
	policy      Policy
	maxPageSize int
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewService(store Repository, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:       store,
		catalog:     deps.Catalog,
		router:      deps.Router,
		origin:      deps.Origin,
		publisher:   deps.Publisher,
		policy:      deps.Policy,
		maxPageSize: deps.MaxPageSize,
		log:         log.WithField("component", "order"),
		now:         now,
	}
}

type ItemRequest struct {
	FoodItemID string
	Quantity   int
}

type CreateCommand struct {
	Items           []ItemRequest
	DeliveryAddress string
}

// CreateOrder prices the requested items from the catalog and stores a
// pending order owned by the caller.
func (s *Service) CreateOrder(ctx context.Context, p auth.Principal, cmd CreateCommand) (*Order, error) {
	if p.UID == "" {
		return nil, apperr.New(apperr.KindAuth, "authentication required")
	}
	address := strings.TrimSpace(cmd.DeliveryAddress)
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: delivery address is required", ErrValidation)
	}
	ids := make([]string, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		if strings.TrimSpace(it.FoodItemID) == "" {
			return nil, fmt.Errorf("%w: food item id is required", ErrValidation)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
		ids = append(ids, it.FoodItemID)
	}

	found, err := s.catalog.LookupMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]LineItem, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		food, ok := found[it.FoodItemID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, it.FoodItemID)
		}
		if !food.IsAvailable {
			return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, food.Name)
		}
		lines = append(lines, LineItem{
			FoodItemRef: food.ID,
			Name:        food.Name,
			Quantity:    it.Quantity,
			UnitPrice:   food.Price,
		})
	}

	ts := s.now()
	o := &Order{
		UserRef:         p.UID,
		LineItems:       lines,
		TotalAmount:     totalOf(lines),
		Status:          StatusPending,
		DeliveryAddress: address,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	metrics.OrdersCreated.Inc()
	s.logger(ctx).WithFields(logrus.Fields{
		"order_id": o.ID,
		"user":     o.UserRef,
		"total":    o.TotalAmount.String(),
	}).Info("order created")
	return o, nil
}

// GetOrder returns the order when the caller owns it or is an admin.
func (s *Service) GetOrder(ctx context.Context, p auth.Principal, id string) (*Order, error) {
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(o.UserRef) {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListOrders scopes non-admins to their own orders; admins may filter by owner.
func (s *Service) ListOrders(ctx context.Context, p auth.Principal, q ListQuery) ([]Order, Pagination, error) {
	q.Filter = s.scope(p, q.Filter)
	if err := validateFilter(q.Filter); err != nil {
		return nil, Pagination{}, err
	}
	q.normalize(s.maxPageSize)
	res, err := s.store.List(ctx, q)
	if err != nil {
		return nil, Pagination{}, err
	}
	return res.Orders, NewPagination(res.Total, q.Page, q.Limit), nil
}

func (s *Service) Stats(ctx context.Context, p auth.Principal, f Filter) (Stats, error) {
	f = s.scope(p, f)
	if err := validateFilter(f); err != nil {
		return Stats{}, err
	}
	return s.store.AggregateStats(ctx, f)
}

// UpdateStatus applies one state machine edge. Admins may apply any allowed
// edge; an owner may only cancel.
func (s *Service) UpdateStatus(ctx context.Context, p auth.Principal, id string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !(p.UID == o.UserRef && to == StatusCancelled) {
		return nil, ErrForbidden
	}
	if !s.policy.CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, o.Status, to)
	}
	updated, err := s.store.UpdateStatus(ctx, id, o.Status, to)
	if err != nil {
		return nil, err
	}
	s.logger(ctx).WithFields(logrus.Fields{
		"order_id": id,
		"from":     o.Status,
		"to":       to,
	}).Info("order status changed")
	s.publishStatus(ctx, StatusEvent{OrderID: id, Status: to, Timestamp: updated.UpdatedAt})
	return updated, nil
}

// UpdateLocation records the courier position, recomputes the route from the
// restaurant and broadcasts the new tracking snapshot.
func (s *Service) UpdateLocation(ctx context.Context, p auth.Principal, id string, loc types.Location) (*TrackingInfo, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, o.Status)
	}

	origin, err := s.origin.Get(ctx)
	if err != nil {
		return nil, err
	}
	route, err := s.router.Route(ctx, origin, loc)
	if err != nil {
		return nil, err
	}

	ts := s.now()
	info := TrackingInfo{
		OrderRef:         id,
		CurrentLocation:  loc,
		EstimatedArrival: geo.EstimateArrival(route, ts),
		Status:           TrackingInTransit,
		LastUpdated:      ts,
	}
	if _, err := s.store.UpdateTracking(ctx, id, info, StatusDelivered, StatusCancelled); err != nil {
		return nil, err
	}
	s.logger(ctx).WithFields(logrus.Fields{
		"order_id":   id,
		"distance_m": route.DistanceMeters,
		"duration_s": route.DurationSeconds,
		"eta":        info.EstimatedArrival,
	}).Debug("tracking updated")
	s.publishTracking(ctx, info)
	return &info, nil
}

// MarkArrived closes the delivery: tracking becomes arrived and the order
// becomes delivered in one write.
func (s *Service) MarkArrived(ctx context.Context, p auth.Principal, id string) (*TrackingInfo, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Tracking == nil {
		return nil, ErrNoTracking
	}
	// A repeated arrival on a delivered order only refreshes the snapshot.
	redelivery := o.Status == StatusDelivered
	if !redelivery && !s.policy.CanTransition(o.Status, StatusDelivered) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, o.Status, StatusDelivered)
	}

	info := *o.Tracking
	info.Status = TrackingArrived
	info.LastUpdated = s.now()
	updated, err := s.store.CompleteDelivery(ctx, id, info, StatusPending, StatusPreparing, StatusCancelled)
	if err != nil {
		return nil, err
	}
	s.logger(ctx).WithField("order_id", id).Info("order delivered")
	s.publishTracking(ctx, info)
	if !redelivery {
		s.publishStatus(ctx, StatusEvent{OrderID: id, Status: StatusDelivered, Timestamp: updated.UpdatedAt})
	}
	return &info, nil
}

func (s *Service) GetTracking(ctx context.Context, p auth.Principal, id string) (*TrackingInfo, error) {
	o, err := s.GetOrder(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if o.Tracking == nil {
		return nil, ErrNoTracking
	}
	return o.Tracking, nil
}

func (s *Service) RestaurantLocation(ctx context.Context) (types.Location, error) {
	return s.origin.Get(ctx)
}

func (s *Service) scope(p auth.Principal, f Filter) Filter {
	if !p.IsAdmin() {
		f.OwnerID = p.UID
	}
	return f
}

func validateFilter(f Filter) error {
	if f.Status != nil && !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *f.Status)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("%w: startDate is after endDate", ErrValidation)
	}
	return nil
}

func (s *Service) publishTracking(ctx context.Context, info TrackingInfo) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTracking(ctx, info); err != nil {
		s.logger(ctx).WithError(err).WithField("order_id", info.OrderRef).Warn("tracking broadcast failed")
	}
}

func (s *Service) publishStatus(ctx context.Context, ev StatusEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStatus(ctx, ev); err != nil {
		s.logger(ctx).WithError(err).WithField("order_id", ev.OrderID).Warn("status broadcast failed")
	}
}

func (s *Service) logger(ctx context.Context) logrus.FieldLogger {
	if id := requestid.From(ctx); id != "" {
		return s.log.WithField("request_id", id)
	}
	return s.log
}
