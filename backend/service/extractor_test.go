package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/config"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

func TestExtractorInit(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("Expected /healthz, got %s", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	svc := NewExtractorClient(&config.ExtractorConfig{APIURL: server.URL})
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	healthy.Store(false)
	if err := svc.Init(context.Background()); err == nil {
		t.Error("Expected error while models are loading")
	}
}

func TestExtractorDetectFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("Expected /detect, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("min_confidence") != "0.5" {
			t.Errorf("Expected min_confidence 0.5, got '%s'", r.URL.Query().Get("min_confidence"))
		}
		if r.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("Expected image/jpeg, got '%s'", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "frame" {
			t.Errorf("Expected raw frame bytes, got '%s'", string(body))
		}

		json.NewEncoder(w).Encode(DetectResponse{Face: &model.Detection{
			Box:        model.BoundingBox{X: 1, Y: 2, Width: 30, Height: 40},
			Descriptor: testDescriptor(),
			Score:      0.97,
		}})
	}))
	defer server.Close()

	svc := NewExtractorClient(&config.ExtractorConfig{APIURL: server.URL, MinConfidence: 0.5})
	det, err := svc.DetectFace(context.Background(), model.Frame{Seq: 1, Data: []byte("frame"), ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if det == nil {
		t.Fatal("Expected a detection")
	}
	if det.Box.Width != 30 {
		t.Errorf("Expected width 30, got %v", det.Box.Width)
	}
	if len(det.Descriptor) != model.DescriptorSize {
		t.Errorf("Expected %d values, got %d", model.DescriptorSize, len(det.Descriptor))
	}
}

func TestExtractorDetectFaceNoFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"face":null}`))
	}))
	defer server.Close()

	svc := NewExtractorClient(&config.ExtractorConfig{APIURL: server.URL})
	det, err := svc.DetectFace(context.Background(), model.Frame{Data: []byte("x")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if det != nil {
		t.Errorf("Expected no detection, got %+v", det)
	}
}

func TestExtractorDetectFaceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"message":"oom"}`},
		{"malformed body", http.StatusOK, `not json`},
		{"short descriptor", http.StatusOK, `{"face":{"box":{"x":0,"y":0,"width":1,"height":1},"descriptor":[0.1,0.2]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc := NewExtractorClient(&config.ExtractorConfig{APIURL: server.URL})
			_, err := svc.DetectFace(context.Background(), model.Frame{Data: []byte("x")})
			if !errors.Is(err, capture.ErrExtraction) {
				t.Errorf("Expected ErrExtraction, got %v", err)
			}
		})
	}
}
