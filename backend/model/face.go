package model

import "time"

// DescriptorSize is the dimension of descriptors produced by the extraction model
const DescriptorSize = 128

// Descriptor is a face embedding. It is sent to one verification call and dropped.
type Descriptor []float32

// BoundingBox locates a detected face inside a frame, in pixels
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is the result of a positive face detection
type Detection struct {
	Box        BoundingBox `json:"box"`
	Descriptor Descriptor  `json:"descriptor"`
	Score      float64     `json:"score,omitempty"`
}

// Frame is a single still taken from the live video feed
type Frame struct {
	Seq         uint64
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}
