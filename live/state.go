package live

import (
	"math"
	"time"

	"yogavision/pose"
)

const (
	BannerInfo  = "info"
	BannerError = "error"

	fpsWindow = 5
)

type Banner struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
}

// State is everything the view is rendered from. Copies handed out by the
// session are never mutated afterwards.
type State struct {
	ID             string      `json:"id"`
	Connected      bool        `json:"connected"`
	Transport      string      `json:"transport,omitempty"`
	CameraReady    bool        `json:"cameraReady"`
	CameraError    string      `json:"cameraError,omitempty"`
	ProcessedImage string      `json:"processedImage,omitempty"`
	FPS            int         `json:"fps"`
	Pose           pose.Offset `json:"pose"`
	Banner         Banner      `json:"banner"`
}

// fpsMeter recomputes the estimate on every fifth processed frame from the
// time since the previous recomputation.
type fpsMeter struct {
	count int
	last  time.Time
	fps   int
}

func newFPSMeter(start time.Time) *fpsMeter {
	return &fpsMeter{last: start}
}

func (m *fpsMeter) Frame(now time.Time) (int, bool) {
	m.count++

	if m.count%fpsWindow != 0 {
		return m.fps, false
	}

	elapsed := now.Sub(m.last).Milliseconds()
	m.last = now

	if elapsed <= 0 {
		return m.fps, false
	}

	m.fps = int(math.Round(float64(fpsWindow*1000) / float64(elapsed)))

	return m.fps, true
}
