package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/config"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/middleware"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/orchestrator"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/pkg/logger"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/service"
)

// MaxFrameBytes bounds a single uploaded frame
const MaxFrameBytes = 5 << 20

var (
	errNoFrame   = errors.New("no frame provided")
	errFrameRead = errors.New("failed to read frame")
)

// Backend is the fraud backend as seen by payment and enrollment sessions
type Backend interface {
	orchestrator.Gateway
	orchestrator.Enroller
}

// ReceiptLinker hands out download links for archived receipts
type ReceiptLinker interface {
	ReceiptURL(ctx context.Context, owner, sessionID string) (string, error)
}

// SessionDeps wires a SessionHandler
type SessionDeps struct {
	Registry  *orchestrator.Registry
	Store     *service.SessionStore
	Backend   Backend
	Extractor capture.Extractor
	Scheduler capture.Scheduler
	Capture   config.CaptureConfig
	// Receipts is nil when archiving is disabled
	Receipts ReceiptLinker
	// Sinks receive every outcome in addition to the store
	Sinks []orchestrator.OutcomeSink
}

type SessionHandler struct {
	registry  *orchestrator.Registry
	store     *service.SessionStore
	backend   Backend
	extractor capture.Extractor
	scheduler capture.Scheduler
	capture   config.CaptureConfig
	receipts  ReceiptLinker
	sinks     []orchestrator.OutcomeSink
}

func NewSessionHandler(deps SessionDeps) *SessionHandler {
	return &SessionHandler{
		registry:  deps.Registry,
		store:     deps.Store,
		backend:   deps.Backend,
		extractor: deps.Extractor,
		scheduler: deps.Scheduler,
		capture:   deps.Capture,
		receipts:  deps.Receipts,
		sinks:     deps.Sinks,
	}
}

type PaymentRequest struct {
	Amount   float64 `json:"amount"`
	Merchant string  `json:"merchant"`
	Purpose  string  `json:"purpose"`
}

// StartPayment authorizes a payment. Automatic decisions come back with
// the outcome; step-up sessions come back capturing and expect frames.
func (h *SessionHandler) StartPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := orchestrator.ValidateAmount(req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner := middleware.GetUsername(c)
	s, err := h.registry.Open(owner, func(feed *capture.FeedDevice) orchestrator.Session {
		opts := append(h.sessionOptions(owner),
			orchestrator.WithPolicy(capture.StepUpPolicy.WithFrames(h.capture.StepUpStableFrames)))
		return orchestrator.New(h.backend, h.captureDeps(feed), opts...)
	})
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	h.track(s)

	payment := s.(*orchestrator.Orchestrator)
	err = payment.Start(h.sessionContext(c), orchestrator.StartRequest{
		Amount:   req.Amount,
		Merchant: req.Merchant,
		Purpose:  req.Purpose,
	})
	if err != nil {
		h.respondError(c, err, s)
		return
	}

	c.JSON(http.StatusOK, s.Snapshot())
}

// StartEnrollment captures and uploads the caller's reference face
func (h *SessionHandler) StartEnrollment(c *gin.Context) {
	owner := middleware.GetUsername(c)
	s, err := h.registry.Open(owner, func(feed *capture.FeedDevice) orchestrator.Session {
		opts := append(h.sessionOptions(owner),
			orchestrator.WithPolicy(capture.EnrollmentPolicy.WithFrames(h.capture.EnrollStableFrames)),
			orchestrator.WithMaxAttempts(h.capture.MaxEnrollAttempts))
		return orchestrator.NewEnrollment(h.backend, h.captureDeps(feed), opts...)
	})
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	h.track(s)

	enrollment := s.(*orchestrator.Enrollment)
	if err := enrollment.Start(h.sessionContext(c)); err != nil {
		h.respondError(c, err, s)
		return
	}

	c.JSON(http.StatusOK, s.Snapshot())
}

// PushFrame feeds one still from the caller's camera into a capturing session.
// The frame is a multipart "frame" file or the raw request body.
func (h *SessionHandler) PushFrame(c *gin.Context) {
	id := c.Param("id")
	s, feed, ok := h.live(c, id)
	if !ok {
		if h.stored(c, id) != nil {
			c.JSON(http.StatusGone, gin.H{"error": "Session finished"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	data, contentType, err := readFrame(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seq, err := feed.Push(data, contentType)
	if err != nil {
		if s.State().Terminal() {
			c.JSON(http.StatusGone, gin.H{"error": "Session finished"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not capturing", "state": s.State()})
		return
	}

	snap := s.Snapshot()
	c.JSON(http.StatusAccepted, gin.H{
		"seq":     seq,
		"state":   snap.State,
		"capture": snap.Capture,
	})
}

// Get returns a live or finished session of the caller
func (h *SessionHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if s, _, ok := h.live(c, id); ok {
		c.JSON(http.StatusOK, s.Snapshot())
		return
	}
	if snap := h.stored(c, id); snap != nil {
		c.JSON(http.StatusOK, snap)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
}

// List returns the caller's recent sessions, newest first
func (h *SessionHandler) List(c *gin.Context) {
	owner := middleware.GetUsername(c)
	snaps := h.store.GetByOwner(owner)

	result := make([]model.SessionSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		if s, ok := h.registry.Get(snap.ID); ok {
			result = append(result, s.Snapshot())
			continue
		}
		result = append(result, *snap)
	}

	c.JSON(http.StatusOK, gin.H{"sessions": result})
}

// Stop ends a session, e.g. when the user navigates away. Stopping a
// finished session is not an error.
func (h *SessionHandler) Stop(c *gin.Context) {
	id := c.Param("id")
	s, _, ok := h.live(c, id)
	if !ok {
		if snap := h.stored(c, id); snap != nil {
			c.JSON(http.StatusOK, snap)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	s.Stop("Session cancelled by user")
	select {
	case <-s.Done():
	case <-c.Request.Context().Done():
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Session teardown did not complete"})
		return
	}

	c.JSON(http.StatusOK, s.Snapshot())
}

// Receipt returns a download link for the archived outcome
func (h *SessionHandler) Receipt(c *gin.Context) {
	if h.receipts == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Receipts are not enabled"})
		return
	}

	id := c.Param("id")
	if s, _, ok := h.live(c, id); ok {
		if _, finished := s.Outcome(); !finished {
			c.JSON(http.StatusConflict, gin.H{"error": "Session has not finished"})
			return
		}
	} else if h.stored(c, id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	url, err := h.receipts.ReceiptURL(c.Request.Context(), middleware.GetUsername(c), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to generate receipt url", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": id, "url": url})
}

func (h *SessionHandler) sessionOptions(owner string) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithOwner(owner),
		orchestrator.WithTimeout(h.capture.SessionTimeout()),
		orchestrator.WithOutcomeSink(h.store),
	}
	for _, sink := range h.sinks {
		opts = append(opts, orchestrator.WithOutcomeSink(sink))
	}
	return opts
}

func (h *SessionHandler) captureDeps(feed *capture.FeedDevice) orchestrator.CaptureDeps {
	return orchestrator.CaptureDeps{
		Extractor: h.extractor,
		Device:    feed,
		Scheduler: h.scheduler,
	}
}

// sessionContext carries the caller's identity into calls made on their behalf
func (h *SessionHandler) sessionContext(c *gin.Context) context.Context {
	return service.WithToken(c.Request.Context(), middleware.GetToken(c))
}

// track stores the opening snapshot and the full snapshot once the session is done
func (h *SessionHandler) track(s orchestrator.Session) {
	h.store.Save(s.Snapshot())
	go func() {
		<-s.Done()
		h.store.Save(s.Snapshot())
	}()
}

func (h *SessionHandler) live(c *gin.Context, id string) (orchestrator.Session, *capture.FeedDevice, bool) {
	s, ok := h.registry.Get(id)
	if !ok || s.Owner() != middleware.GetUsername(c) {
		return nil, nil, false
	}
	feed, ok := h.registry.Feed(id)
	if !ok {
		return nil, nil, false
	}
	return s, feed, true
}

func (h *SessionHandler) stored(c *gin.Context, id string) *model.SessionSnapshot {
	snap := h.store.Get(id)
	if snap == nil || snap.Owner != middleware.GetUsername(c) {
		return nil
	}
	return snap
}

func (h *SessionHandler) respondError(c *gin.Context, err error, s orchestrator.Session) {
	body := gin.H{"error": err.Error()}
	if s != nil {
		body["session"] = s.Snapshot()
	}
	c.JSON(errorStatus(err), body)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrSessionBusy), errors.Is(err, orchestrator.ErrAlreadyStarted):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrSessionClosed), errors.Is(err, orchestrator.ErrCancelled):
		return http.StatusGone
	case errors.Is(err, orchestrator.ErrCaptureStartFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, orchestrator.ErrNetworkFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func readFrame(c *gin.Context) ([]byte, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxFrameBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("frame")
		if err != nil {
			return nil, "", errNoFrame
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", errFrameRead
		}
		if len(data) == 0 {
			return nil, "", errNoFrame
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		return data, contentType, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", errFrameRead
	}
	if len(data) == 0 {
		return nil, "", errNoFrame
	}
	contentType := c.ContentType()
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
