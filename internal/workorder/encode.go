package workorder

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is the DynamoDB item shape: a PK/SK pair plus the work order payload,
// mirroring the store's other tables (internal/store).
type Item struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	ID        string    `dynamodbav:"id"`
	Payload   WorkOrder `dynamodbav:"payload"`
	UpdatedAt time.Time `dynamodbav:"updatedAt"`
}

// MarshalAttributeValue encodes a work order into a DynamoDB attribute map.
func MarshalAttributeValue(w *WorkOrder) (map[string]types.AttributeValue, error) {
	item := Item{
		PK:        "WORKORDER#" + w.ID,
		SK:        "WORKORDER#" + w.ID,
		ID:        w.ID,
		Payload:   *w,
		UpdatedAt: w.UpdatedAt,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("workorder: marshal: %w", err)
	}
	return av, nil
}

// UnmarshalAttributeValue decodes a DynamoDB attribute map into a work
// order. A step field stored as a one-key nested typed map (e.g. the string
// "working" stored as {"S": "working"}) is replaced by the value it wraps
// before decoding, so wrapped and bare step fields both decode.
func UnmarshalAttributeValue(av map[string]types.AttributeValue) (*WorkOrder, error) {
	if p, ok := av["payload"].(*types.AttributeValueMemberM); ok {
		if steps, ok := p.Value["steps"].(*types.AttributeValueMemberL); ok {
			for _, s := range steps.Value {
				if sm, ok := s.(*types.AttributeValueMemberM); ok {
					for k, v := range sm.Value {
						if w, ok := v.(*types.AttributeValueMemberM); ok && len(w.Value) == 1 {
							for _, inner := range w.Value {
								sm.Value[k] = inner
							}
						}
					}
				}
			}
		}
	}
	var item Item
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("workorder: unmarshal: %w", err)
	}
	w := item.Payload
	if w.ID == "" {
		w.ID = item.ID
	}
	return &w, nil
}

// DecodeTaggedScalar interprets a raw tagged-value map ({"S": v} / {"N": v}
// / {"BOOL": v} / {"NULL": v}) or a bare JSON scalar, returning a Go value.
// This is used by callers that decode untyped map[string]any payloads (for
// example messages embedded in push notifications or legacy queue bodies)
// rather than going through attributevalue directly.
func DecodeTaggedScalar(raw any) (any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw, nil
	}
	if v, ok := m["S"]; ok {
		return v, nil
	}
	if v, ok := m["BOOL"]; ok {
		return v, nil
	}
	if _, ok := m["NULL"]; ok {
		return nil, nil
	}
	if v, ok := m["N"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("workorder: tagged N value is not a string: %T", v)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("workorder: tagged N value %q: %w", s, err)
		}
		return f, nil
	}
	if v, ok := m["M"]; ok {
		return v, nil
	}
	if v, ok := m["L"]; ok {
		return v, nil
	}
	return raw, nil
}
