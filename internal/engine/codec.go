package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

// MandatesHeader: заголовок, в котором агент передает JSON-массив мандатов.
const MandatesHeader = "Mandates"

// DecodeMandates разбирает значение заголовка Mandates.
// Пустой заголовок дает ErrMandatesRequired, битый JSON или null дает ErrMalformedMandates.
func DecodeMandates(raw string) ([]domain.Mandate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.ErrMandatesRequired
	}

	data := []byte(raw)
	if bytes.Equal(data, []byte("null")) {
		return nil, domain.ErrMalformedMandates
	}

	var mandates []domain.Mandate
	if err := json.Unmarshal(data, &mandates); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMandates, err)
	}
	if mandates == nil {
		mandates = []domain.Mandate{}
	}
	return mandates, nil
}

// EncodeMandates: обратная операция для клиентов шлюза.
func EncodeMandates(mandates []domain.Mandate) (string, error) {
	if mandates == nil {
		mandates = []domain.Mandate{}
	}
	data, err := json.Marshal(mandates)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
