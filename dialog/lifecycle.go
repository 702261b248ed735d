package dialog

import (
	"context"
	"fmt"

	"github.com/iabalyuk/freightbot/metrics"
	"github.com/iabalyuk/freightbot/storage"
)

func (e *Engine) owner(ctx context.Context, s Session) (storage.User, error) {
	u, found, err := e.store.UserByTelegramID(ctx, s.UserID)
	if err != nil {
		return storage.User{}, fmt.Errorf("resolve user: %w", err)
	}
	if !found {
		return storage.User{}, ErrNotRegistered
	}
	return u, nil
}

// DeleteCargo removes a cargo listing of the session's user. It reports
// whether the listing existed.
func (e *Engine) DeleteCargo(ctx context.Context, s Session, id int64) (bool, error) {
	u, err := e.owner(ctx, s)
	if err != nil {
		return false, err
	}
	found, err := e.store.DeleteCargo(ctx, u.ID, id)
	if err != nil {
		return false, err
	}
	if found {
		metrics.RecordListing("cargo", "delete")
		e.logAction(s, "cargo_deleted").Int64("cargo", id).Msg("cargo deleted")
	}
	return found, nil
}

// DeleteTruck removes a truck listing of the session's user.
func (e *Engine) DeleteTruck(ctx context.Context, s Session, id int64) (bool, error) {
	u, err := e.owner(ctx, s)
	if err != nil {
		return false, err
	}
	found, err := e.store.DeleteTruck(ctx, u.ID, id)
	if err != nil {
		return false, err
	}
	if found {
		metrics.RecordListing("truck", "delete")
		e.logAction(s, "truck_deleted").Int64("truck", id).Msg("truck deleted")
	}
	return found, nil
}

// DeleteProfile removes the session's user with every listing they own and
// drops the session state.
func (e *Engine) DeleteProfile(ctx context.Context, s Session) (bool, error) {
	u, err := e.owner(ctx, s)
	if err != nil {
		return false, err
	}
	found, err := e.store.DeleteUser(ctx, u.ID)
	if err != nil {
		return false, err
	}
	e.Reset(s)
	if found {
		e.logAction(s, "profile_deleted").Msg("profile deleted")
	}
	return found, nil
}

// startBroadcast delivers text to ids in the background once the current
// turn has replied, then reports the outcome to the operator's chat.
func (e *Engine) startBroadcast(ctx context.Context, s Session, text string, ids []int64) {
	e.afterTurn(func() {
		e.deliveries.Add(1)
		go func() {
			defer e.deliveries.Done()
			sent, err := e.broadcast(ctx, text, ids)
			summary := fmt.Sprintf(msgBroadcastDone, sent, len(ids))
			if err != nil {
				e.log.Warn().Err(err).Int64("user", s.UserID).Msg("broadcast stopped early")
				summary = fmt.Sprintf(msgBroadcastStopped, sent, len(ids))
			}
			e.logAction(s, "broadcast").Int("sent", sent).Int("total", len(ids)).Msg("broadcast finished")
			e.send(context.WithoutCancel(ctx), s.ChatID, Prompt{Text: summary})
		}()
	})
}

// Wait blocks until every background broadcast has finished.
func (e *Engine) Wait() {
	e.deliveries.Wait()
}

// broadcast sends text to ids at the configured rate.
func (e *Engine) broadcast(ctx context.Context, text string, ids []int64) (sent int, err error) {
	for _, id := range ids {
		if err := e.limiter.Wait(ctx); err != nil {
			return sent, fmt.Errorf("broadcast interrupted: %w", err)
		}
		if _, err := e.transport.Send(ctx, id, Prompt{Text: text}); err != nil {
			metrics.RecordBroadcast("failed")
			e.log.Debug().Err(err).Int64("chat", id).Msg("broadcast delivery failed")
			continue
		}
		metrics.RecordBroadcast("sent")
		sent++
	}
	return sent, nil
}
