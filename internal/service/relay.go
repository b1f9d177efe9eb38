package service

import (
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

// SignalingRelay forwards negotiation messages between two connections.
// It never touches room state.
type SignalingRelay struct {
	notifier Notifier
}

// NewSignalingRelay creates a relay over notifier.
func NewSignalingRelay(notifier Notifier) *SignalingRelay {
	return &SignalingRelay{notifier: notifier}
}

// Relay stamps the sender and forwards msg to msg.To. It reports whether the
// message was handed to a connected recipient; otherwise it is dropped.
func (r *SignalingRelay) Relay(fromID string, msg domain.SignalMessage) bool {
	if msg.To == fromID || !r.notifier.IsConnected(msg.To) {
		return false
	}
	msg.From = fromID
	if err := r.notifier.SendToClient(msg.To, &msg); err != nil {
		l := pkglog.L()
		l.Debug().Err(err).
			Str(pkglog.FieldConnectionID, fromID).
			Str("to", msg.To).
			Str("kind", msg.Type).
			Msg("relay dropped")
		return false
	}
	return true
}
