package mandatev1

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xela07ax/agent-mandate/internal/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

// EvaluateRequest: тело запроса Evaluate.
type EvaluateRequest struct {
	Mandates []domain.Mandate
	Action   domain.ProposedAction
}

// Struct хранит числа как float64, поэтому цена и количество едут строками.
type wireRequest struct {
	Mandates []domain.Mandate `json:"mandates"`
	Action   wireAction       `json:"action"`
}

type wireAction struct {
	Action     string               `json:"action"`
	Price      string               `json:"price"`
	Quantity   string               `json:"quantity"`
	Currency   domain.ConditionUnit `json:"currency,omitempty"`
	Attributes map[string]any       `json:"attributes,omitempty"`
}

// ToStruct сериализует запрос через JSON, чтобы сохранить те же имена полей, что и в заголовке Mandates.
func (r *EvaluateRequest) ToStruct() (*structpb.Struct, error) {
	return toStruct(wireRequest{
		Mandates: r.Mandates,
		Action: wireAction{
			Action:     r.Action.Action,
			Price:      r.Action.Price.String(),
			Quantity:   strconv.FormatInt(r.Action.Quantity, 10),
			Currency:   r.Action.Currency,
			Attributes: r.Action.Attributes,
		},
	})
}

// DecodeEvaluateRequest разбирает Struct. Ошибка разбора дает ErrMalformedMandates.
// Без цены или количества действие нельзя сверить с условиями.
func DecodeEvaluateRequest(s *structpb.Struct) (*EvaluateRequest, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: empty request", domain.ErrMalformedMandates)
	}
	// Пустой список допустим, отсутствие списка (или null) недопустимо
	if _, ok := s.GetFields()["mandates"].GetKind().(*structpb.Value_ListValue); !ok {
		return nil, fmt.Errorf("%w: mandates must be a list", domain.ErrMalformedMandates)
	}
	var w wireRequest
	if err := fromStruct(s, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMandates, err)
	}

	price, err := decimal.NewFromString(w.Action.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: action price: %v", domain.ErrMalformedMandates, err)
	}
	quantity, err := strconv.ParseInt(w.Action.Quantity, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: action quantity: %v", domain.ErrMalformedMandates, err)
	}

	req := &EvaluateRequest{
		Mandates: w.Mandates,
		Action: domain.ProposedAction{
			Action:     w.Action.Action,
			Price:      price,
			Quantity:   quantity,
			Currency:   w.Action.Currency,
			Attributes: w.Action.Attributes,
		},
	}
	if req.Mandates == nil {
		req.Mandates = []domain.Mandate{}
	}
	return req, nil
}

func EncodeResult(res domain.ValidationResult) (*structpb.Struct, error) {
	return toStruct(res)
}

func DecodeResult(s *structpb.Struct) (domain.ValidationResult, error) {
	var res domain.ValidationResult
	if s == nil {
		return res, fmt.Errorf("empty evaluation result")
	}
	err := fromStruct(s, &res)
	return res, err
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal to map: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v interface{}) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
