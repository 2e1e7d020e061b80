package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/engine"
)

// GatewayError: отказ шлюза покупок. Message содержит то, что шлюз сказал агенту.
type GatewayError struct {
	Status  int
	Message string
	Code    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.Status, e.Message)
}

// PurchaseClient: HTTP-клиент шлюза покупок.
type PurchaseClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewPurchaseClient(baseURL, token string, httpClient *http.Client) *PurchaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &PurchaseClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// Purchase отправляет заказ вместе с мандатами в заголовке Mandates.
func (c *PurchaseClient) Purchase(ctx context.Context, mandates []domain.Mandate, order domain.PurchaseOrder) (domain.PurchaseReceipt, error) {
	var receipt domain.PurchaseReceipt

	header, err := engine.EncodeMandates(mandates)
	if err != nil {
		return receipt, fmt.Errorf("encode mandates: %w", err)
	}
	body, err := json.Marshal(order)
	if err != nil {
		return receipt, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/purchase", bytes.NewReader(body))
	if err != nil {
		return receipt, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(engine.MandatesHeader, header)

	// Покупка не идемпотентна: без повторов
	err = c.do(req, &receipt)
	return receipt, err
}

// ProductPrices: список цен производителей. Чтение идемпотентно, поэтому с повторами.
func (c *PurchaseClient) ProductPrices(ctx context.Context, productName string) ([]domain.ProductSpecification, error) {
	endpoint := c.baseURL + "/v1/purchase?productName=" + url.QueryEscape(productName)

	var specs []domain.ProductSpecification
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// 4xx не лечится повтором
			var gwErr *GatewayError
			return !errors.As(err, &gwErr) || gwErr.Status >= http.StatusInternalServerError
		}),
	)

	err := r.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		return c.do(req, &specs)
	})
	return specs, err
}

func (c *PurchaseClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return doJSON(c.http, req, out)
}

// MandateClient читает мандаты пользователя из консоли.
type MandateClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewMandateClient(baseURL, token string, httpClient *http.Client) *MandateClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &MandateClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

func (c *MandateClient) Mandates(ctx context.Context, grantorID string) ([]domain.Mandate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/grantors/"+url.PathEscape(grantorID)+"/mandates", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var mandates []domain.Mandate
	if err := doJSON(c.http, req, &mandates); err != nil {
		return nil, err
	}
	return mandates, nil
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		gwErr := &GatewayError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var body struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			gwErr.Message, gwErr.Code = body.Error, body.Code
		}
		return gwErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
