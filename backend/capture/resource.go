package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

// Source is an open video resource
type Source interface {
	// Ready reports whether a frame can be taken now
	Ready() bool
	// Frame takes the next frame
	Frame() (model.Frame, error)
	// Close releases the underlying device
	Close() error
}

// Device opens video resources
type Device interface {
	Open(ctx context.Context) (Source, error)
}

// ResourceController is the only component allowed to open or close the video
// resource of a session. At most one resource is open at a time.
type ResourceController struct {
	device Device

	mu       sync.Mutex
	source   Source
	acquires int
	releases int
}

// NewResourceController creates a controller over device
func NewResourceController(device Device) *ResourceController {
	return &ResourceController{device: device}
}

// Acquire opens the resource. It fails fast: permission or device problems are
// returned wrapped in ErrResourceUnavailable and never retried.
func (c *ResourceController) Acquire(ctx context.Context) (Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceUnavailable, ErrResourceBusy)
	}

	src, err := c.device.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}

	c.source = src
	c.acquires++
	return src, nil
}

// Release closes the resource if one is open. It is idempotent and safe to
// call when nothing was ever acquired.
func (c *ResourceController) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return nil
	}

	err := c.source.Close()
	c.source = nil
	c.releases++
	if err != nil {
		return fmt.Errorf("failed to close capture resource: %w", err)
	}
	return nil
}

// Active reports whether a resource is currently open
func (c *ResourceController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source != nil
}

// Acquires returns how many times a resource was opened
func (c *ResourceController) Acquires() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquires
}

// Releases returns how many times an open resource was closed
func (c *ResourceController) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}
