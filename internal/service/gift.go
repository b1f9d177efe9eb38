package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/audit"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
)

// SendGift debits the sender's wallet and credits the room ledger. req must be normalized.
func (s *LiveService) SendGift(ctx context.Context, connID string, req domain.SendGiftMessage) error {
	return s.exec(func() {
		if !s.cfg.GiftsEnabled {
			s.sendError(connID, domain.ErrCodeFeatureDisabled, "gifts are disabled")
			return
		}
		p, room, ok := s.member(connID)
		if !ok {
			s.sendError(connID, domain.ErrCodeNotInRoom, "not in a room")
			return
		}

		if room.HostID == "" || !room.IsLive() {
			s.send(connID, &domain.GiftFailedMessage{
				Type:     domain.MsgTypeGiftFailed,
				Reason:   domain.ReasonNotLive,
				GiftType: req.GiftType,
				Have:     p.Wallet,
			})
			return
		}

		gift, ok := s.cfg.Catalog.Lookup(req.GiftType)
		if !ok {
			s.send(connID, &domain.GiftFailedMessage{
				Type:     domain.MsgTypeGiftFailed,
				Reason:   domain.ReasonUnknownGift,
				GiftType: req.GiftType,
				Have:     p.Wallet,
			})
			return
		}

		qty := domain.ClampQuantity(req.Qty)
		cost := gift.UnitCost * qty
		if p.Wallet < cost {
			s.send(connID, &domain.GiftFailedMessage{
				Type:     domain.MsgTypeGiftFailed,
				Reason:   domain.ReasonInsufficientFunds,
				GiftType: gift.Type,
				Need:     cost,
				Have:     p.Wallet,
			})
			return
		}

		donor := req.Name
		if donor == "" {
			donor = p.Profile.Name
		}
		if donor == "" {
			donor = domain.DefaultName
		}

		p.Wallet -= cost
		room.CreditGift(donor, cost)

		s.broadcast(room.ID, &domain.GiftBroadcast{
			Type:      domain.MsgTypeGift,
			RoomID:    room.ID,
			GiftType:  gift.Type,
			Symbol:    gift.Symbol,
			UnitCost:  gift.UnitCost,
			Quantity:  qty,
			TotalCost: cost,
			From:      donor,
			RoomTotal: room.GiftTotal,
			Ts:        s.nowMs(),
		})
		s.broadcast(room.ID, s.giftStats(room))
		s.send(connID, &domain.WalletMessage{Type: domain.MsgTypeWallet, Balance: p.Wallet})
		s.saveSnapshot(room)

		audit.LogWithTarget(ctx, audit.ActionGiftSent, room.ID, p.ID, room.HostID,
			fmt.Sprintf("%s x%d = %d", gift.Type, qty, cost), "gift sent")
	})
}

func (s *LiveService) giftStats(room *domain.Room) *domain.GiftStatsMessage {
	return &domain.GiftStatsMessage{
		Type:   domain.MsgTypeGiftStats,
		RoomID: room.ID,
		Total:  room.GiftTotal,
		Top:    room.Ledger.Top(s.cfg.LeaderboardSize),
	}
}

// Catalog returns the configured gifts ordered by cost.
func (s *LiveService) Catalog() []domain.Gift {
	return s.cfg.Catalog.List()
}

// GiftsEnabled reports whether the gift economy module is on.
func (s *LiveService) GiftsEnabled() bool {
	return s.cfg.GiftsEnabled
}
