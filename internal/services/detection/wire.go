package detection

import (
	"math"
	"time"

	"github.com/goccy/go-json"

	"kepler-sentinel-go/internal/models"
)

// wireDetection accepts either a box object or an [x1, y1, x2, y2] bbox.
// Missing numbers decode as NaN so normalization reports them.
type wireDetection struct {
	Class      string      `json:"class"`
	Label      string      `json:"label"`
	Confidence *float64    `json:"confidence"`
	Score      *float64    `json:"score"`
	Box        *models.Box `json:"box"`
	BBox       []float64   `json:"bbox"`
}

type wireFrame struct {
	FrameID    int64           `json:"frame_id"`
	CameraID   string          `json:"camera_id"`
	Timestamp  *time.Time      `json:"timestamp"`
	Detections []wireDetection `json:"detections"`
}

// DecodeFrame parses one JSON frame. A frame without a timestamp is stamped
// with now. Per-detection problems are left to normalization.
func DecodeFrame(data []byte, now time.Time) (models.Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return models.Frame{}, err
	}

	frame := models.Frame{
		FrameID:    wf.FrameID,
		CameraID:   wf.CameraID,
		Timestamp:  now,
		Detections: make([]models.Detection, 0, len(wf.Detections)),
	}
	if wf.Timestamp != nil {
		frame.Timestamp = *wf.Timestamp
	}
	for _, wd := range wf.Detections {
		frame.Detections = append(frame.Detections, wd.detection())
	}
	return frame, nil
}

// EncodeFrame is the inverse of DecodeFrame
func EncodeFrame(frame models.Frame) ([]byte, error) {
	return json.Marshal(frame)
}

func (wd wireDetection) detection() models.Detection {
	nan := math.NaN()
	det := models.Detection{
		Class:      models.ObjectClass(wd.Class),
		Confidence: nan,
		Box:        models.Box{X: nan, Y: nan, Width: nan, Height: nan},
	}
	if det.Class == "" {
		det.Class = models.ObjectClass(wd.Label)
	}
	switch {
	case wd.Confidence != nil:
		det.Confidence = *wd.Confidence
	case wd.Score != nil:
		det.Confidence = *wd.Score
	}
	switch {
	case wd.Box != nil:
		det.Box = *wd.Box
	case len(wd.BBox) == 4:
		det.Box = models.Box{
			X:      wd.BBox[0],
			Y:      wd.BBox[1],
			Width:  wd.BBox[2] - wd.BBox[0],
			Height: wd.BBox[3] - wd.BBox[1],
		}
	}
	return det
}
