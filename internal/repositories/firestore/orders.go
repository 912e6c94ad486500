package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/wahyu285/loundry/internal/domain"
	pfirestore "github.com/wahyu285/loundry/internal/platform/firestore"
	"github.com/wahyu285/loundry/internal/repositories"
)

const (
	ordersCollection   = "orders"
	countersCollection = "counters"
	orderCounterID     = "orders"
)

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// OrderRepository stores orders as documents keyed by their numeric id. Ids come
// from a transactional counter document so they stay sequential.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
	counters *pfirestore.Collection[counterDocument]
	now      func() time.Time
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider, clock func() time.Time) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	if clock == nil {
		clock = time.Now
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		counters: pfirestore.NewCollection[counterDocument](provider, countersCollection),
		now:      clock,
	}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	now := r.now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	var created domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		counterRef, err := r.counters.Doc(ctx, orderCounterID)
		if err != nil {
			return err
		}
		var counter counterDocument
		snap, err := tx.Get(counterRef)
		switch status.Code(err) {
		case codes.OK:
			if err := snap.DataTo(&counter); err != nil {
				return fmt.Errorf("firestore counters decode %s: %w", orderCounterID, err)
			}
		case codes.NotFound:
		default:
			return err
		}

		record := order
		if record.ID == 0 {
			record.ID = counter.CurrentValue + 1
		}
		if record.ID > counter.CurrentValue {
			counter.CurrentValue = record.ID
			counter.UpdatedAt = now
			if err := tx.Set(counterRef, counter); err != nil {
				return err
			}
		}

		orderRef, err := r.orders.Doc(ctx, orderDocID(record.ID))
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, orderToDocument(record)); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	return created, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID int64) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderDocID(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc)
}

// Mutate runs fn inside a transaction so concurrent writers of one order serialise.
func (r *OrderRepository) Mutate(ctx context.Context, orderID int64, fn repositories.OrderMutation) (domain.Order, error) {
	var result domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.Doc(ctx, orderDocID(orderID))
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %d: %w", orderID, err)
		}
		current, err := orderFromDocument(doc)
		if err != nil {
			return err
		}

		working := current.Clone()
		if err := fn(&working); err != nil {
			if errors.Is(err, repositories.ErrNoChange) {
				result = current
				return nil
			}
			return err
		}
		working.ID = current.ID
		working.CreatedAt = current.CreatedAt
		working.TrackStatusChange(current.OrderStatus)
		working.UpdatedAt = r.now().UTC()
		result = working
		return tx.Set(ref, orderToDocument(working))
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.mutate", err)
	}
	return result, nil
}

func (r *OrderRepository) Delete(ctx context.Context, orderID int64) error {
	return r.orders.Delete(ctx, orderDocID(orderID))
}

func (r *OrderRepository) List(ctx context.Context, filter domain.OrderListFilter) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.CustomerID != "" {
			q = q.Where("customerId", "==", filter.CustomerID)
		}
		if filter.CourierID != "" {
			q = q.Where("assignedCourierId", "==", filter.CourierID)
		}
		if len(filter.OrderStatuses) > 0 {
			q = q.Where("orderStatus", "in", orderStatusStrings(filter.OrderStatuses))
		}
		if len(filter.PaymentStatuses) > 0 {
			q = q.Where("paymentStatus", "in", paymentStatusStrings(filter.PaymentStatuses))
		}
		if filter.CreatedAfter != nil {
			q = q.Where("createdAt", ">=", filter.CreatedAfter.UTC())
		}
		if filter.CreatedBefore != nil {
			q = q.Where("createdAt", "<", filter.CreatedBefore.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs)
}

func (r *OrderRepository) CountByCustomer(ctx context.Context, customerID string, excluded []domain.OrderStatus) (int, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", customerID)
	})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, doc := range docs {
		if !slices.Contains(excluded, domain.OrderStatus(doc.Data.OrderStatus)) {
			count++
		}
	}
	return count, nil
}

func (r *OrderRepository) CountUnnotified(ctx context.Context, customerID string) (int, error) {
	docs, err := r.unnotified(ctx, customerID, 0)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// MarkNotified flips notifiedCustomer on every unread order of the customer in one bulk write.
func (r *OrderRepository) MarkNotified(ctx context.Context, customerID string) (int, error) {
	docs, err := r.unnotified(ctx, customerID, 0)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	now := r.now().UTC()
	err = r.bulk(ctx, "orders.mark_notified", docs, func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
		return bw.Update(ref, []firestore.Update{
			{Path: "notifiedCustomer", Value: true},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (r *OrderRepository) DeleteCancelledBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("orderStatus", "==", string(domain.OrderStatusCancelled)).
			Where("createdAt", "<=", cutoff.UTC()).
			OrderBy("createdAt", firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	err = r.bulk(ctx, "orders.delete_cancelled", docs, func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
		return bw.Delete(ref)
	})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (r *OrderRepository) ExistsForService(ctx context.Context, serviceID string) (bool, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("serviceId", "==", serviceID).Limit(1)
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func (r *OrderRepository) unnotified(ctx context.Context, customerID string, limit int) ([]pfirestore.Document[orderDocument], error) {
	return r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("customerId", "==", customerID).Where("notifiedCustomer", "==", false)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
}

type bulkOp func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error)

func (r *OrderRepository) bulk(ctx context.Context, op string, docs []pfirestore.Document[orderDocument], write bulkOp) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	collection := client.Collection(ordersCollection)
	bw := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := write(bw, collection.Doc(doc.ID))
		if err != nil {
			bw.End()
			return pfirestore.WrapError(op, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return pfirestore.WrapError(op, err)
		}
	}
	return nil
}

func decodeOrders(docs []pfirestore.Document[orderDocument]) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := orderFromDocument(doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

func orderDocID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func orderStatusStrings(values []domain.OrderStatus) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func paymentStatusStrings(values []domain.PaymentStatus) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}
