package idempotency

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a very small in-memory mock for PutItem/GetItem/UpdateItem used in unit tests.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	keyAttr, ok := params.Item["idempotency_key"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing key")
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(idempotency_key)" {
		if _, exists := m.table[keyAttr.Value]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[keyAttr.Value] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	keyAttr, ok := params.Key["idempotency_key"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing key")
	}
	item, ok := m.table[keyAttr.Value]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	keyAttr, ok := params.Key["idempotency_key"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing key")
	}
	item, ok := m.table[keyAttr.Value]
	if !ok {
		return nil, errors.New("item not found")
	}
	// only the Reclaim and ReclaimStale conditions are modelled
	if params.ConditionExpression != nil {
		st, _ := item["status"].(*types.AttributeValueMemberS)
		switch *params.ConditionExpression {
		case "#s = :failed":
			if st == nil || st.Value != StatusFailed {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case "#s = :inprogress AND updated_at = :seen":
			ua, _ := item["updated_at"].(*types.AttributeValueMemberS)
			seen, _ := params.ExpressionAttributeValues[":seen"].(*types.AttributeValueMemberS)
			if st == nil || st.Value != StatusInProgress || ua == nil || seen == nil || ua.Value != seen.Value {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if v, ok := params.ExpressionAttributeValues[":rb"]; ok {
		item["response_body"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":rs"]; ok {
		item["response_status"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":n"]; ok {
		item["note"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":ua"]; ok {
		item["updated_at"] = v
	}
	values := params.ExpressionAttributeValues
	switch {
	case values[":inprogress"] != nil:
		item["status"] = values[":inprogress"]
	case values[":done"] != nil:
		item["status"] = values[":done"]
	case values[":failed"] != nil:
		item["status"] = values[":failed"]
	}
	m.table[keyAttr.Value] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *simpleMock) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("not used by idempotency store")
}
