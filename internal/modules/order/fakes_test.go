// README: In-memory collaborators for service tests.
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fooddash/internal/geo"
	"fooddash/internal/modules/catalog"
	"fooddash/internal/types"
)

type memStore struct {
	mu     sync.Mutex
	seq    int
	orders map[string]*Order
	clock  func() time.Time
}

func newMemStore(clock func() time.Time) *memStore {
	return &memStore{orders: map[string]*Order{}, clock: clock}
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.LineItems = append([]LineItem(nil), o.LineItems...)
	if o.Tracking != nil {
		t := *o.Tracking
		cp.Tracking = &t
	}
	return &cp
}

func (m *memStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	o.ID = fmt.Sprintf("%024x", m.seq)
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, from, to Status) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if from != "" && o.Status != from {
		return nil, ErrConflict
	}
	o.Status = to
	o.UpdatedAt = m.clock()
	return cloneOrder(o), nil
}

func (m *memStore) guarded(id string, notIn []Status) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, st := range notIn {
		if o.Status == st {
			return nil, ErrInvalidState
		}
	}
	return o, nil
}

func (m *memStore) UpdateTracking(_ context.Context, id string, info TrackingInfo, notIn ...Status) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.guarded(id, notIn)
	if err != nil {
		return nil, err
	}
	o.Tracking = &info
	o.UpdatedAt = m.clock()
	return cloneOrder(o), nil
}

func (m *memStore) CompleteDelivery(_ context.Context, id string, info TrackingInfo, notIn ...Status) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.guarded(id, notIn)
	if err != nil {
		return nil, err
	}
	o.Tracking = &info
	o.Status = StatusDelivered
	o.UpdatedAt = m.clock()
	return cloneOrder(o), nil
}

func (m *memStore) matching(f Filter) []Order {
	var out []Order
	for _, o := range m.orders {
		if f.OwnerID != "" && o.UserRef != f.OwnerID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memStore) List(_ context.Context, q ListQuery) (ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(q.Filter)
	start := int(q.skip())
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return ListResult{Orders: all[start:end], Total: int64(len(all))}, nil
}

func (m *memStore) AggregateStats(_ context.Context, f Filter) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	by := map[Status]*StatusStat{}
	out := Stats{Stats: []StatusStat{}}
	for _, o := range m.matching(f) {
		st, ok := by[o.Status]
		if !ok {
			st = &StatusStat{Status: o.Status}
			by[o.Status] = st
		}
		st.Count++
		st.TotalAmount += o.TotalAmount
		out.TotalOrders++
		out.TotalAmount += o.TotalAmount
	}
	for _, st := range by {
		out.Stats = append(out.Stats, *st)
	}
	sort.Slice(out.Stats, func(i, j int) bool { return out.Stats[i].Status < out.Stats[j].Status })
	return out, nil
}

type fakeCatalog struct {
	items map[string]catalog.FoodItem
}

func (c *fakeCatalog) LookupMany(_ context.Context, ids []string) (map[string]catalog.FoodItem, error) {
	out := map[string]catalog.FoodItem{}
	for _, id := range ids {
		if it, ok := c.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

type fakeRouter struct {
	mu    sync.Mutex
	route geo.DeliveryRoute
	err   error
	calls []types.Location
}

func (r *fakeRouter) Route(_ context.Context, origin, destination types.Location, _ ...types.Location) (geo.DeliveryRoute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, origin, destination)
	if r.err != nil {
		return geo.DeliveryRoute{}, r.err
	}
	out := r.route
	out.Origin, out.Destination = origin, destination
	return out, nil
}

type fixedOrigin struct {
	loc types.Location
	err error
}

func (o *fixedOrigin) Get(context.Context) (types.Location, error) {
	return o.loc, o.err
}

// recordingPublisher keeps every event in arrival order and can be told to fail.
type recordingPublisher struct {
	mu       sync.Mutex
	tracking []TrackingInfo
	statuses []StatusEvent
	fail     bool
}

var errPublish = errors.New("broadcast channel closed")

func (p *recordingPublisher) PublishTracking(_ context.Context, info TrackingInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errPublish
	}
	p.tracking = append(p.tracking, info)
	return nil
}

func (p *recordingPublisher) PublishStatus(_ context.Context, ev StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errPublish
	}
	p.statuses = append(p.statuses, ev)
	return nil
}
