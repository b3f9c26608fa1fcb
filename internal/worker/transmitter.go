package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shaiso/Megaphone/internal/domain"
)

// Transmitter отправляет payload списку получателей и возвращает
// по-получательные результаты. Реализации для конкретных транспортов
// (APNs, FCM) живут вне ядра; в комплекте — HTTP-шлюз.
type Transmitter interface {
	Send(ctx context.Context, payload string, recipients []domain.Recipient) ([]domain.TransmitResult, error)
}

// GatewayTransmitter отправляет батч в push-шлюз одним HTTP-запросом.
//
// Контракт шлюза: POST {payload, recipients} → {results: [{installationId,
// transmitted}]}. Ответ без результата по получателю трактуется как неудача.
type GatewayTransmitter struct {
	url    string
	client *http.Client
}

// NewGatewayTransmitter создаёт GatewayTransmitter.
func NewGatewayTransmitter(url string, timeout time.Duration) *GatewayTransmitter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewayTransmitter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type gatewayRequest struct {
	Payload    json.RawMessage    `json:"payload"`
	Recipients []domain.Recipient `json:"recipients"`
}

type gatewayResponse struct {
	Results []domain.TransmitResult `json:"results"`
}

// Send отправляет батч шлюзу.
func (t *GatewayTransmitter) Send(ctx context.Context, payload string, recipients []domain.Recipient) ([]domain.TransmitResult, error) {
	body, err := json.Marshal(gatewayRequest{
		Payload:    json.RawMessage(payload),
		Recipients: recipients,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var gr gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	// Получатели, по которым шлюз промолчал, считаются недоставленными.
	seen := make(map[string]bool, len(gr.Results))
	for _, r := range gr.Results {
		seen[r.InstallationID] = true
	}
	results := gr.Results
	for _, r := range recipients {
		if !seen[r.InstallationID] {
			results = append(results, domain.TransmitResult{InstallationID: r.InstallationID, Transmitted: false})
		}
	}
	return results, nil
}
