// Package pose mirrors the overlay transform held by the backend. The local
// copy only ever changes when the backend echoes pose_adjusted.
package pose

import (
	"errors"

	"yogavision/proto"
)

type Action string

const (
	MoveUp    Action = "move_up"
	MoveDown  Action = "move_down"
	MoveLeft  Action = "move_left"
	MoveRight Action = "move_right"
	ScaleUp   Action = "scale_up"
	ScaleDown Action = "scale_down"
	Reset     Action = "reset"
)

var ErrorInvalidAction = errors.New("invalid pose action")

// Actions lists every command in the order the console lays them out.
var Actions = []Action{MoveUp, MoveDown, MoveLeft, MoveRight, ScaleUp, ScaleDown, Reset}

func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}

	return "", ErrorInvalidAction
}

type Offset struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

var DefaultOffset = Offset{X: 0, Y: 0, Scale: 1.0}

type Calibration struct {
	offset Offset
}

func NewCalibration() *Calibration {
	return &Calibration{offset: DefaultOffset}
}

// Apply replaces the offset with the echoed one; last arrival wins.
func (c *Calibration) Apply(m *proto.PoseAdjusted) {
	if m == nil {
		return
	}

	c.offset = Offset{X: m.OffsetX, Y: m.OffsetY, Scale: m.Scale}
}

func (c *Calibration) Offset() Offset {
	return c.offset
}
