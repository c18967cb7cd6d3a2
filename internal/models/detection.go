package models

import (
	"math"
	"strings"
	"time"
)

// ObjectClass is the coarse class assigned to a detection by the vision model
type ObjectClass string

const (
	ClassPerson      ObjectClass = "person"
	ClassVehicle     ObjectClass = "vehicle"
	ClassObjectOther ObjectClass = "object-other"
)

// vehicleLabels are raw model labels folded into ClassVehicle
var vehicleLabels = map[string]struct{}{
	"vehicle":    {},
	"car":        {},
	"truck":      {},
	"bus":        {},
	"motorcycle": {},
	"motorbike":  {},
	"bicycle":    {},
	"van":        {},
}

// ParseObjectClass maps a raw model label onto an ObjectClass.
// Empty labels are rejected; unknown non-empty labels become ClassObjectOther.
func ParseObjectClass(label string) (ObjectClass, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return "", false
	}
	if l == string(ClassPerson) || l == "people" || l == "pedestrian" {
		return ClassPerson, true
	}
	if _, ok := vehicleLabels[l]; ok {
		return ClassVehicle, true
	}
	return ClassObjectOther, true
}

// Point is a position in frame coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle in frame coordinates (top-left origin)
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the box centroid
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2.0, Y: b.Y + b.Height/2.0}
}

// Area returns width*height
func (b Box) Area() float64 {
	return b.Width * b.Height
}

// IoU calculates Intersection over Union between two boxes
func (b Box) IoU(other Box) float64 {
	xA := math.Max(b.X, other.X)
	yA := math.Max(b.Y, other.Y)
	xB := math.Min(b.X+b.Width, other.X+other.Width)
	yB := math.Min(b.Y+b.Height, other.Y+other.Height)

	interArea := math.Max(0, xB-xA) * math.Max(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}
	return interArea / (b.Area() + other.Area() - interArea)
}

func (b Box) finite() bool {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Detection is one observation in one frame, produced by the external model
type Detection struct {
	Class      ObjectClass `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        Box         `json:"box"`
}

// Normalize validates a detection and folds its label onto a known class.
// The returned error is always a *MalformedDetectionError.
func (d Detection) Normalize(index int) (Detection, error) {
	class, ok := ParseObjectClass(string(d.Class))
	if !ok {
		return d, &MalformedDetectionError{Index: index, Field: "class", Reason: "missing"}
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return d, &MalformedDetectionError{Index: index, Field: "confidence", Reason: "missing or outside [0,1]"}
	}
	if !d.Box.finite() {
		return d, &MalformedDetectionError{Index: index, Field: "box", Reason: "missing or non-finite coordinates"}
	}
	if d.Box.Width <= 0 || d.Box.Height <= 0 {
		return d, &MalformedDetectionError{Index: index, Field: "box", Reason: "non-positive size"}
	}
	d.Class = class
	return d, nil
}

// Frame is the batch of detections the model produced for one timestamp
type Frame struct {
	FrameID    int64       `json:"frame_id,omitempty"`
	CameraID   string      `json:"camera_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Detections []Detection `json:"detections"`
}
