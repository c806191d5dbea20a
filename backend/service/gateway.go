package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/config"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/metrics"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

// Merchant and purpose sent when the caller leaves them empty
const (
	DefaultMerchant = "Unknown Merchant"
	DefaultPurpose  = "General Payment"
)

// ErrInvalidResponse is returned when the gateway answers 2xx with a body we cannot use
var ErrInvalidResponse = errors.New("invalid gateway response")

// StatusError is a non-2xx answer from a remote service
type StatusError struct {
	Call    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Call, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Call, e.Status, e.Message)
}

type tokenKey struct{}

// WithToken returns a copy of ctx carrying the caller's bearer token.
// The gateway client forwards it on every call made with that context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// RiskRequest is the body of a risk evaluation
type RiskRequest struct {
	Amount   float64 `json:"amount"`
	Merchant string  `json:"merchant"`
	Purpose  string  `json:"purpose"`
	UseFace  bool    `json:"useFace"`
}

// RiskResponse is the risk engine's classification
type RiskResponse struct {
	Decision    model.Decision `json:"decision"`
	RequireFace bool           `json:"requireFace,omitempty"`
	Risk        *float64       `json:"risk,omitempty"`
	Reasons     []string       `json:"reasons,omitempty"`
}

// StepUp reports whether the transaction needs biometric verification
func (r *RiskResponse) StepUp() bool {
	return r.RequireFace || r.Decision == model.DecisionManualReview
}

type initRequest struct {
	Amount   float64        `json:"amount"`
	Decision model.Decision `json:"decision"`
}

type initResponse struct {
	TransactionID string `json:"transactionId"`
}

type verifyRequest struct {
	Descriptor model.Descriptor `json:"descriptor"`
	Amount     float64          `json:"amount"`
}

// VerifyResponse is the face matching verdict
type VerifyResponse struct {
	Decision model.Decision `json:"decision"`
	Risk     float64        `json:"risk"`
	Reasons  []string       `json:"reasons"`
}

// ConfirmRequest settles a transaction
type ConfirmRequest struct {
	TransactionID string         `json:"transactionId"`
	Decision      model.Decision `json:"decision"`
	RiskScore     float64        `json:"riskScore"`
	Reasons       []string       `json:"reasons"`
}

type enrollRequest struct {
	Descriptor model.Descriptor `json:"descriptor"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// GatewayClient talks to the remote risk, face and transaction services
type GatewayClient struct {
	config     *config.GatewayConfig
	httpClient *http.Client
}

func NewGatewayClient(cfg *config.GatewayConfig) *GatewayClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewayClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// EvaluateRisk classifies a payment attempt
func (s *GatewayClient) EvaluateRisk(ctx context.Context, amount float64, merchant, purpose string) (*RiskResponse, error) {
	if merchant == "" {
		merchant = DefaultMerchant
	}
	if purpose == "" {
		purpose = DefaultPurpose
	}

	var result RiskResponse
	err := s.post(ctx, "risk_evaluate", "/fraud/evaluate", RiskRequest{
		Amount:   amount,
		Merchant: merchant,
		Purpose:  purpose,
	}, nil, &result)
	if err != nil {
		return nil, err
	}
	if result.Decision == "" {
		return nil, fmt.Errorf("%w: risk evaluation without decision", ErrInvalidResponse)
	}
	return &result, nil
}

// InitiateTransaction creates the backend record for a step-up payment.
// The idempotency key lets the backend collapse duplicates of the same session.
func (s *GatewayClient) InitiateTransaction(ctx context.Context, amount float64, idempotencyKey string) (string, error) {
	var headers http.Header
	if idempotencyKey != "" {
		headers = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}

	var result initResponse
	err := s.post(ctx, "transaction_init", "/transactions/init", initRequest{
		Amount:   amount,
		Decision: model.DecisionManualReview,
	}, headers, &result)
	if err != nil {
		return "", err
	}
	if result.TransactionID == "" {
		return "", fmt.Errorf("%w: empty transactionId", ErrInvalidResponse)
	}
	return result.TransactionID, nil
}

// VerifyFace matches a descriptor against the enrolled face
func (s *GatewayClient) VerifyFace(ctx context.Context, descriptor model.Descriptor, amount float64) (*VerifyResponse, error) {
	if len(descriptor) != model.DescriptorSize {
		return nil, fmt.Errorf("descriptor has %d values, want %d", len(descriptor), model.DescriptorSize)
	}

	var result VerifyResponse
	if err := s.post(ctx, "face_verify", "/face/verify", verifyRequest{
		Descriptor: descriptor,
		Amount:     amount,
	}, nil, &result); err != nil {
		return nil, err
	}
	if !result.Decision.Valid() {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidResponse, result.Decision)
	}
	return &result, nil
}

// ConfirmTransaction records the final decision for a transaction
func (s *GatewayClient) ConfirmTransaction(ctx context.Context, req ConfirmRequest) error {
	if req.TransactionID == "" {
		return fmt.Errorf("%w: confirm without transactionId", ErrInvalidResponse)
	}
	return s.post(ctx, "transaction_confirm", "/transactions/confirm", req, nil, nil)
}

// EnrollFace stores a reference descriptor for the caller
func (s *GatewayClient) EnrollFace(ctx context.Context, descriptor model.Descriptor) error {
	if len(descriptor) != model.DescriptorSize {
		return fmt.Errorf("descriptor has %d values, want %d", len(descriptor), model.DescriptorSize)
	}
	return s.post(ctx, "face_enroll", "/face/enroll", enrollRequest{Descriptor: descriptor}, nil, nil)
}

func (s *GatewayClient) post(ctx context.Context, call, path string, body any, headers http.Header, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveGatewayCall(call, time.Since(start), err)
	}()

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.config.APIURL, "/")+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tok := tokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", call, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", call, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return &StatusError{Call: call, Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w, body: %s", call, err, string(respBody))
	}
	return nil
}
