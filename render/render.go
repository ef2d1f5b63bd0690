// Package render turns a session state into the view the console draws.
// Render is pure: the same state always yields the same view.
package render

import (
	"fmt"

	"yogavision/live"
	"yogavision/pose"
)

const (
	ColorGreen  = "green"
	ColorRed    = "red"
	ColorYellow = "yellow"

	Placeholder   = "Waiting for processed frames..."
	HintServer    = "Check server connection"
	HintCamera    = "Initializing camera..."
	LabelCamOK    = "Camera Active"
	LabelCamWait  = "Camera Loading..."
	LabelUp       = "Connected"
	LabelDown     = "Disconnected"
	GroupPosition = "Position"
	GroupScale    = "Scale"
	GroupReset    = "Reset"
)

type Indicator struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

type Control struct {
	Action  string `json:"action"`
	Label   string `json:"label"`
	Group   string `json:"group"`
	Enabled bool   `json:"enabled"`
}

type View struct {
	Session    string      `json:"session"`
	Connection Indicator   `json:"connection"`
	Camera     Indicator   `json:"camera"`
	Transport  string      `json:"transport,omitempty"`
	FPS        int         `json:"fps"`
	Image      string      `json:"image,omitempty"`
	Waiting    string      `json:"waiting,omitempty"`
	Hints      []string    `json:"hints,omitempty"`
	Position   string      `json:"position"`
	Scale      string      `json:"scale"`
	Controls   []Control   `json:"controls"`
	Banner     live.Banner `json:"banner"`
}

var controls = []struct {
	action pose.Action
	label  string
	group  string
}{
	{pose.MoveUp, "↑", GroupPosition},
	{pose.MoveLeft, "←", GroupPosition},
	{pose.MoveRight, "→", GroupPosition},
	{pose.MoveDown, "↓", GroupPosition},
	{pose.ScaleUp, "+ Larger", GroupScale},
	{pose.ScaleDown, "- Smaller", GroupScale},
	{pose.Reset, "Reset to Default", GroupReset},
}

func Render(s live.State) View {
	v := View{
		Session:   s.ID,
		Transport: s.Transport,
		FPS:       s.FPS,
		Image:     s.ProcessedImage,
		Position:  fmt.Sprintf("X: %.3f | Y: %.3f", s.Pose.X, s.Pose.Y),
		Scale:     fmt.Sprintf("Scale: %.2fx", s.Pose.Scale),
		Banner:    s.Banner,
		Controls:  make([]Control, 0, len(controls)),
	}

	if s.Connected {
		v.Connection = Indicator{Label: LabelUp, Color: ColorGreen}
	} else {
		v.Connection = Indicator{Label: LabelDown, Color: ColorRed}
	}

	if s.CameraReady {
		v.Camera = Indicator{Label: LabelCamOK, Color: ColorGreen}
	} else {
		v.Camera = Indicator{Label: LabelCamWait, Color: ColorYellow}
	}

	if v.Image == "" {
		v.Waiting = Placeholder
		v.Hints = hints(s)
	}

	for _, c := range controls {
		v.Controls = append(v.Controls, Control{
			Action:  string(c.action),
			Label:   c.label,
			Group:   c.group,
			Enabled: s.Connected,
		})
	}

	return v
}

func hints(s live.State) []string {
	var h []string

	if !s.Connected {
		h = append(h, HintServer)
	}

	switch {
	case s.CameraError != "":
		h = append(h, s.CameraError)
	case s.Connected && !s.CameraReady:
		h = append(h, HintCamera)
	}

	return h
}
