package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/config"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

// DetectResponse is the model server's answer for one frame. Face is nil when nothing was found.
type DetectResponse struct {
	Face *model.Detection `json:"face"`
}

// ExtractorClient calls the face detection and descriptor model server
type ExtractorClient struct {
	config     *config.ExtractorConfig
	httpClient *http.Client
}

func NewExtractorClient(cfg *config.ExtractorConfig) *ExtractorClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExtractorClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Init checks that the model server has its models loaded
func (s *ExtractorClient) Init(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint("/healthz"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach extractor: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Call: "extractor_healthz", Status: resp.StatusCode}
	}
	return nil
}

// DetectFace implements capture.Extractor
func (s *ExtractorClient) DetectFace(ctx context.Context, frame model.Frame) (*model.Detection, error) {
	q := url.Values{}
	q.Set("min_confidence", strconv.FormatFloat(s.config.MinConfidence, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("/detect")+"?"+q.Encode(), bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", capture.ErrExtraction, err)
	}

	contentType := frame.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %w", capture.ErrExtraction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", capture.ErrExtraction, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", capture.ErrExtraction, &StatusError{Call: "extractor_detect", Status: resp.StatusCode})
	}

	var result DetectResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", capture.ErrExtraction, err)
	}

	if result.Face == nil {
		return nil, nil
	}
	if len(result.Face.Descriptor) != model.DescriptorSize {
		return nil, fmt.Errorf("%w: descriptor has %d values, want %d",
			capture.ErrExtraction, len(result.Face.Descriptor), model.DescriptorSize)
	}
	return result.Face, nil
}

func (s *ExtractorClient) endpoint(path string) string {
	return strings.TrimRight(s.config.APIURL, "/") + path
}
