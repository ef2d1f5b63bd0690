// Package proto defines the events exchanged with the pose backend.
package proto

import (
	"yogavision/network/codec/socketio"
)

const (
	EventFrame          = "frame"
	EventAdjustPose     = "adjust_pose"
	EventProcessedFrame = "processed_frame"
	EventPoseAdjusted   = "pose_adjusted"
	EventStatus         = "status"
	EventError          = "error"
)

// Frame uploads one camera frame as a JPEG data URI.
type Frame struct {
	Image string `json:"image"`
}

type AdjustPose struct {
	Action string `json:"action"`
}

type ProcessedFrame struct {
	Image string `json:"image"`
}

type PoseAdjusted struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Scale   float64 `json:"scale"`
}

type Status struct {
	Message string `json:"message"`
}

type Error struct {
	Message string `json:"message"`
}

func NewCodec() *socketio.Processor {
	processor := socketio.NewCodec()

	for event, msg := range map[string]interface{}{
		EventFrame:          (*Frame)(nil),
		EventAdjustPose:     (*AdjustPose)(nil),
		EventProcessedFrame: (*ProcessedFrame)(nil),
		EventPoseAdjusted:   (*PoseAdjusted)(nil),
		EventStatus:         (*Status)(nil),
		EventError:          (*Error)(nil),
	} {
		if err := processor.Register(event, msg); err != nil {
			panic(err)
		}
	}

	return processor
}
