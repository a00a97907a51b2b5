package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo stores items per table in a nested map: table -> pkValue -> item map.
// It understands exactly the expressions the stores in this repo issue.
type mockDynamo struct {
	mu          sync.Mutex
	tables      map[string]map[string]map[string]types.AttributeValue
	updateCalls int
	failUpdate  error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) ensureTable(tbl string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[tbl]
}

func pkOf(item map[string]types.AttributeValue) (string, error) {
	for _, attr := range []string{"idempotency_key", "order_id"} {
		if v, ok := item[attr].(*types.AttributeValueMemberS); ok {
			return v.Value, nil
		}
	}
	return "", errors.New("no primary key in item")
}

// notExistsAttr extracts X from "attribute_not_exists(X)".
func notExistsAttr(cond *string) string {
	if cond == nil {
		return ""
	}
	c := *cond
	if !strings.HasPrefix(c, "attribute_not_exists(") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(c, "attribute_not_exists("), ")")
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl := m.ensureTable(*params.TableName)
	pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	if notExistsAttr(params.ConditionExpression) != "" {
		if _, exists := tbl[pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	tbl[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl := m.ensureTable(*params.TableName)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := tbl[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	tbl := m.ensureTable(*params.TableName)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := tbl[pk]
	if !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, "#v = :expected") {
		curr, _ := item["version"].(*types.AttributeValueMemberN)
		expected := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN)
		if curr == nil || curr.Value != expected.Value {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	updated := copyItem(item)
	expr := strings.TrimPrefix(*params.UpdateExpression, "SET ")
	for _, assignment := range strings.Split(expr, ", ") {
		parts := strings.SplitN(assignment, " = ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("unsupported update expression %q", *params.UpdateExpression)
		}
		name := parts[0]
		if resolved, ok := params.ExpressionAttributeNames[name]; ok {
			name = resolved
		}
		value, ok := params.ExpressionAttributeValues[parts[1]]
		if !ok {
			return nil, fmt.Errorf("missing value for %s", parts[1])
		}
		updated[name] = value
	}
	tbl[pk] = updated
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	canceled := false
	for i, it := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: strPtr("None")}
		p := it.Put
		if p == nil {
			continue
		}
		if notExistsAttr(p.ConditionExpression) == "" {
			continue
		}
		pk, err := pkOf(p.Item)
		if err != nil {
			return nil, err
		}
		if _, exists := m.ensureTable(*p.TableName)[pk]; exists {
			reasons[i] = types.CancellationReason{Code: strPtr("ConditionalCheckFailed")}
			canceled = true
		}
	}
	if canceled {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			pk, _ := pkOf(p.Item)
			m.ensureTable(*p.TableName)[pk] = p.Item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
