package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/timothy-okoduwa/jojo-shop/internal/aws"
	"github.com/timothy-okoduwa/jojo-shop/internal/idempotency"
)

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	idemp     *idempotency.Store
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store. idemp holds the checkout idempotency records written
// together with new orders.
func NewStore(client aws.DynamoDBAPI, tableName string, idemp *idempotency.Store) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		idemp:     idemp,
		nowFunc:   time.Now,
	}
}

// Create atomically writes:
//   - the idempotency record for key (ConditionExpression attribute_not_exists(idempotency_key))
//   - the order (ConditionExpression attribute_not_exists(order_id))
//
// If key was already used, the order id recorded for it is returned with created=false.
func (s *Store) Create(ctx context.Context, key string, order *Order) (string, bool, error) {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if order.Version == 0 {
		order.Version = 1
	}
	if err := order.Validate(); err != nil {
		return "", false, err
	}

	idempMap, err := attributevalue.MarshalMap(s.idemp.NewRecord(key, order.ID, idempotency.StatusDone))
	if err != nil {
		return "", false, fmt.Errorf("marshal idempotency item: %w", err)
	}
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return "", false, fmt.Errorf("marshal order item: %w", err)
	}

	idempTable := s.idemp.Table()
	input := &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempTable,
					Item:                idempMap,
					ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
		},
	}

	_, err = s.client.TransactWriteItems(ctx, input)
	if err == nil {
		return order.ID, true, nil
	}

	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return "", false, fmt.Errorf("transact write: %w", err)
	}
	if orderConditionFailed(tce) {
		return "", false, fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}

	rec, getErr := s.idemp.Get(ctx, key)
	if getErr != nil {
		return "", false, fmt.Errorf("transaction canceled, idempotency lookup failed: %w", getErr)
	}
	if rec == nil {
		return "", false, fmt.Errorf("transaction canceled without idempotency record: %w", err)
	}
	return rec.OrderID, false, nil
}

// orderConditionFailed reports whether the order put (second item) was the one rejected.
func orderConditionFailed(tce *types.TransactionCanceledException) bool {
	if len(tce.CancellationReasons) < 2 {
		return false
	}
	first, second := tce.CancellationReasons[0], tce.CancellationReasons[1]
	return codeOf(second) == "ConditionalCheckFailed" && codeOf(first) != "ConditionalCheckFailed"
}

func codeOf(r types.CancellationReason) string {
	if r.Code == nil {
		return ""
	}
	return *r.Code
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	key := map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key,
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Save persists the lifecycle attributes of order, conditioned on the stored version still
// being order.Version. Creation-time attributes are never rewritten. On success order.Version
// is bumped; if another writer got there first ErrVersionConflict is returned.
func (s *Store) Save(ctx context.Context, order *Order) error {
	now := s.nowFunc().UTC()
	next := order.Version + 1

	sets := []string{"#st = :state", "#v = :next", "updated_at = :ua"}
	values := map[string]types.AttributeValue{
		":state":    &types.AttributeValueMemberS{Value: string(order.State)},
		":next":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", next)},
		":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", order.Version)},
	}
	ua, err := attributevalue.Marshal(now)
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}
	values[":ua"] = ua

	optional := []struct {
		attr, placeholder string
		value             any
		present           bool
	}{
		{"paid_at", ":pa", order.PaidAt, order.PaidAt != nil},
		{"payment_result", ":pr", order.PaymentResult, order.PaymentResult != nil},
		{"delivered_at", ":da", order.DeliveredAt, order.DeliveredAt != nil},
		{"delivered_by", ":db", order.DeliveredBy, order.DeliveredBy != ""},
	}
	for _, f := range optional {
		if !f.present {
			continue
		}
		av, err := attributevalue.Marshal(f.value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", f.attr, err)
		}
		values[f.placeholder] = av
		sets = append(sets, f.attr+" = "+f.placeholder)
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: order.ID},
		},
		UpdateExpression:          awsString("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       awsString("attribute_exists(order_id) AND #v = :expected"),
		ExpressionAttributeNames:  map[string]string{"#st": "state", "#v": "version"},
		ExpressionAttributeValues: values,
	}

	_, err = s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return fmt.Errorf("%w: order %s at version %d", ErrVersionConflict, order.ID, order.Version)
		}
		return fmt.Errorf("update item: %w", err)
	}

	order.Version = next
	order.UpdatedAt = now
	return nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
