package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

// Audit actions for live-room-service.
const (
	ActionHostJoin     = "live.host_join"
	ActionLiveStart    = "live.start"
	ActionLiveStop     = "live.stop"
	ActionGraceExpired = "live.grace_expired"
	ActionGiftSent     = "live.gift_sent"
	ActionGuestApprove = "live.guest_approve"
	ActionGuestKick    = "live.guest_kick"
	ActionRestore      = "live.restore"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, roomID, connectionID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldConnectionID, connectionID).
		Msg(msg)
}

// LogWithTarget emits an audit entry that names a second connection and a detail.
func LogWithTarget(ctx context.Context, action, roomID, connectionID, targetID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldConnectionID, connectionID).
		Str(FieldTargetID, targetID).
		Str(FieldDetail, detail).
		Msg(msg)
}
