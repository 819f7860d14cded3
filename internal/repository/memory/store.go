// Package memory is an in-process Store used by tests and by the memory
// database type. Transactions are serialized and rolled back through an undo
// journal; reads outside a transaction may observe uncommitted writes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type stockKey struct {
	sku       string
	warehouse string
}

type Store struct {
	mu            sync.Mutex
	txMu          sync.Mutex
	requests      map[string]*models.LoadRequest
	requestOrder  []string
	assignments   map[string]*models.TruckAssignment
	assignByReq   map[string]string
	logs          []models.LoadingLog
	stock         map[stockKey]*models.WarehouseStock
	notifications map[string]*models.Notification
	notifyOrder   []string
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		requests:      make(map[string]*models.LoadRequest),
		assignments:   make(map[string]*models.TruckAssignment),
		assignByReq:   make(map[string]string),
		stock:         make(map[stockKey]*models.WarehouseStock),
		notifications: make(map[string]*models.Notification),
	}
}

func (s *Store) Requests() repository.RequestRepository           { return requestRepo{s} }
func (s *Store) Assignments() repository.AssignmentRepository     { return assignmentRepo{s} }
func (s *Store) LoadingLogs() repository.LoadingLogRepository     { return loadingLogRepo{s} }
func (s *Store) Stock() repository.StockRepository                { return stockRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) Close(context.Context) error                      { return nil }

type txKey struct{}

type journal struct {
	undo []func()
}

// RunInTx runs fn as one unit of work. If fn fails, every write it made
// through this store is undone in reverse order.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*journal); ok {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	err := fn(context.WithValue(ctx, txKey{}, j))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
	}
	return err
}

// record registers an undo step. Callers hold s.mu.
func record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(txKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// --- requests ---

type requestRepo struct{ s *Store }

func (r requestRepo) Create(ctx context.Context, req *models.LoadRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.RequestID]; ok {
		return &errs.Error{Code: errs.CodeConflict, Message: "duplicate request id " + req.RequestID}
	}
	s.requests[req.RequestID] = req.Clone()
	s.requestOrder = append(s.requestOrder, req.RequestID)
	id := req.RequestID
	record(ctx, func() {
		delete(s.requests, id)
		for i, v := range s.requestOrder {
			if v == id {
				s.requestOrder = append(s.requestOrder[:i], s.requestOrder[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r requestRepo) FindByID(ctx context.Context, requestID string) (*models.LoadRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[requestID]
	if !ok {
		return nil, errs.NotFound("load request", requestID)
	}
	return req.Clone(), nil
}

func (r requestRepo) List(ctx context.Context, f repository.RequestFilter) ([]models.LoadRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.LoadRequest{}
	for _, id := range r.s.requestOrder {
		req := r.s.requests[id]
		if f.LsrID != "" && req.LsrID != f.LsrID {
			continue
		}
		if f.DepotID != "" && req.DepotID != f.DepotID {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		out = append(out, *req.Clone())
	}
	return out, nil
}

func (r requestRepo) Update(ctx context.Context, req *models.LoadRequest, expected models.RequestStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[req.RequestID]
	if !ok {
		return errs.NotFound("load request", req.RequestID)
	}
	if cur.Status != expected {
		return &errs.Error{Code: errs.CodeConflict, Message: "load request " + req.RequestID + " is " + string(cur.Status)}
	}
	s.requests[req.RequestID] = req.Clone()
	record(ctx, func() { s.requests[cur.RequestID] = cur })
	return nil
}

// --- assignments ---

type assignmentRepo struct{ s *Store }

func cloneAssignment(a *models.TruckAssignment) *models.TruckAssignment {
	c := *a
	return &c
}

func (r assignmentRepo) Create(ctx context.Context, a *models.TruckAssignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignByReq[a.RequestID]; ok {
		return &errs.Error{Code: errs.CodeConflict, Message: "load request " + a.RequestID + " already has a truck assignment"}
	}
	if _, ok := s.assignments[a.AssignmentID]; ok {
		return &errs.Error{Code: errs.CodeConflict, Message: "duplicate assignment id " + a.AssignmentID}
	}
	s.assignments[a.AssignmentID] = cloneAssignment(a)
	s.assignByReq[a.RequestID] = a.AssignmentID
	id, reqID := a.AssignmentID, a.RequestID
	record(ctx, func() {
		delete(s.assignments, id)
		delete(s.assignByReq, reqID)
	})
	return nil
}

func (r assignmentRepo) FindByID(ctx context.Context, assignmentID string) (*models.TruckAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[assignmentID]
	if !ok {
		return nil, errs.NotFound("truck assignment", assignmentID)
	}
	return cloneAssignment(a), nil
}

func (r assignmentRepo) FindByRequest(ctx context.Context, requestID string) (*models.TruckAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.assignByReq[requestID]
	if !ok {
		return nil, errs.NotFound("truck assignment for request", requestID)
	}
	return cloneAssignment(r.s.assignments[id]), nil
}

func (r assignmentRepo) List(ctx context.Context, f repository.AssignmentFilter) ([]models.TruckAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.TruckAssignment{}
	for _, a := range r.s.assignments {
		if f.RequestID != "" && a.RequestID != f.RequestID {
			continue
		}
		if f.TruckID != "" && a.TruckID != f.TruckID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignmentID < out[j].AssignmentID
		}
		return out[i].AssignedAt.Before(out[j].AssignedAt)
	})
	return out, nil
}

func (r assignmentRepo) Update(ctx context.Context, a *models.TruckAssignment, expected ...models.AssignmentStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.assignments[a.AssignmentID]
	if !ok {
		return errs.NotFound("truck assignment", a.AssignmentID)
	}
	if !statusIn(cur.Status, expected) {
		return &errs.Error{Code: errs.CodeConflict, Message: "truck assignment " + a.AssignmentID + " is " + string(cur.Status)}
	}
	s.assignments[a.AssignmentID] = cloneAssignment(a)
	record(ctx, func() { s.assignments[cur.AssignmentID] = cur })
	return nil
}

func statusIn(s models.AssignmentStatus, set []models.AssignmentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// --- loading logs ---

type loadingLogRepo struct{ s *Store }

func (r loadingLogRepo) Append(ctx context.Context, logs []models.LoadingLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.logs)
	s.logs = append(s.logs, logs...)
	record(ctx, func() { s.logs = s.logs[:n] })
	return nil
}

func (r loadingLogRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]models.LoadingLog, error) {
	return r.list(ctx, func(l models.LoadingLog) bool { return l.AssignmentID == assignmentID })
}

func (r loadingLogRepo) ListByRequest(ctx context.Context, requestID string) ([]models.LoadingLog, error) {
	return r.list(ctx, func(l models.LoadingLog) bool { return l.RequestID == requestID })
}

func (r loadingLogRepo) list(ctx context.Context, keep func(models.LoadingLog) bool) ([]models.LoadingLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.LoadingLog{}
	for _, l := range r.s.logs {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// --- stock ---

type stockRepo struct{ s *Store }

func (r stockRepo) Get(ctx context.Context, skuID, warehouseID string) (*models.WarehouseStock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.stock[stockKey{skuID, warehouseID}]
	if !ok {
		return nil, errs.NotFound("warehouse stock", skuID+"@"+warehouseID)
	}
	c := *st
	return &c, nil
}

func (r stockRepo) Put(ctx context.Context, st *models.WarehouseStock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st.AvailableQty < 0 || st.ReservedQty < 0 {
		return errs.Validation("stock quantities must be non-negative")
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stockKey{st.SkuID, st.WarehouseID}
	prev, had := s.stock[key]
	c := *st
	s.stock[key] = &c
	record(ctx, func() {
		if had {
			s.stock[key] = prev
		} else {
			delete(s.stock, key)
		}
	})
	return nil
}

func (r stockRepo) Decrement(ctx context.Context, skuID, warehouseID string, qty int) (*models.WarehouseStock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stockKey{skuID, warehouseID}
	st, ok := s.stock[key]
	if !ok {
		return nil, errs.InsufficientStock(skuID, warehouseID, qty, 0)
	}
	if qty > st.AvailableQty {
		return nil, errs.InsufficientStock(skuID, warehouseID, qty, st.AvailableQty)
	}
	st.AvailableQty -= qty
	st.UpdatedOn = time.Now().UTC()
	record(ctx, func() { s.stock[key].AvailableQty += qty })
	c := *st
	return &c, nil
}

// --- notifications ---

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.NotificationID]; ok {
		return &errs.Error{Code: errs.CodeConflict, Message: "duplicate notification id " + n.NotificationID}
	}
	c := *n
	s.notifications[n.NotificationID] = &c
	s.notifyOrder = append(s.notifyOrder, n.NotificationID)
	return nil
}

func (r notificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, errs.NotFound("notification", id)
	}
	c := *n
	return &c, nil
}

func (r notificationRepo) List(ctx context.Context, f repository.NotificationFilter) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Notification{}
	for _, id := range r.s.notifyOrder {
		n, ok := r.s.notifications[id]
		if !ok {
			continue
		}
		if f.UserID != "" && n.UserID != f.UserID {
			continue
		}
		if f.RequestID != "" && n.RelatedRequestID != f.RequestID {
			continue
		}
		if f.Status != "" && n.Status != f.Status {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, errs.NotFound("notification", id)
	}
	n.Status = models.NotificationRead
	c := *n
	return &c, nil
}

func (r notificationRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notifications[id]; !ok {
		return errs.NotFound("notification", id)
	}
	delete(r.s.notifications, id)
	return nil
}
