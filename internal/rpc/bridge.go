package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/saimizi/iviplugind/internal/auditlog"
	"github.com/saimizi/iviplugind/internal/logger"
	"github.com/saimizi/iviplugind/internal/metrics"
	"github.com/saimizi/iviplugind/internal/notifcore"
	"github.com/saimizi/iviplugind/internal/subscription"
	"github.com/saimizi/iviplugind/internal/transport"
)

// pumpInterval is how often queued notifications are drained to their
// clients. Matched to the transport's own poll cadence (spec.md §4.9,
// "Notification Core -> Subscription Manager bridge").
const pumpInterval = 10 * time.Millisecond

// BridgeNotifications registers one callback per EventType on bus; each
// callback converts the typed event into a wire notification, appends it to
// the audit log, and queues it on every subscribed client's outbox
// (spec.md §4.8). audit may be nil, in which case history is not recorded.
func BridgeNotifications(bus *notifcore.Bus, subs *subscription.Manager, audit *auditlog.Log) {
	for t := notifcore.SurfaceCreated; t <= notifcore.LayerOpacityChanged; t++ {
		topic := t
		bus.Register(topic, func(ev notifcore.Event) {
			payload, err := json.Marshal(Notification{
				Method: "notification",
				Params: eventToParams(ev),
			})
			if err != nil {
				logger.Error("rpc: failed to marshal notification", logger.EventType(topic.String()), logger.Err(err))
				return
			}
			metrics.NotificationsQueuedTotal.WithLabelValues(topic.String()).Inc()
			if audit != nil {
				audit.Append(topic.String(), payload)
			}
			subs.QueueNotification(topic, payload)
		})
	}
}

func eventToParams(ev notifcore.Event) notificationParams {
	p := notificationParams{EventType: ev.Type.String()}

	switch ev.Type {
	case notifcore.SurfaceCreated, notifcore.SurfaceDestroyed:
		p.SurfaceID = &ev.SurfaceID
	case notifcore.SourceGeometryChanged, notifcore.DestinationGeometryChanged:
		p.SurfaceID = &ev.SurfaceID
		oldRect, newRect := rectToWire(ev.OldRect), rectToWire(ev.NewRect)
		p.OldRect, p.NewRect = &oldRect, &newRect
	case notifcore.VisibilityChanged:
		p.SurfaceID = &ev.SurfaceID
		p.OldVisible, p.NewVisible = &ev.OldVisible, &ev.NewVisible
	case notifcore.OpacityChanged:
		p.SurfaceID = &ev.SurfaceID
		p.OldOpacity, p.NewOpacity = &ev.OldOpacity, &ev.NewOpacity
	case notifcore.OrientationChanged:
		p.SurfaceID = &ev.SurfaceID
		p.OldOrientation, p.NewOrientation = ev.OldOrientation.String(), ev.NewOrientation.String()
	case notifcore.ZOrderChanged:
		p.SurfaceID = &ev.SurfaceID
		p.OldZOrder, p.NewZOrder = &ev.OldZOrder, &ev.NewZOrder
	case notifcore.FocusChanged:
		p.OldFocus, p.NewFocus = ev.OldFocus, ev.NewFocus
	case notifcore.LayerCreated, notifcore.LayerDestroyed:
		p.LayerID = &ev.LayerID
	case notifcore.LayerVisibilityChanged:
		p.LayerID = &ev.LayerID
		p.OldVisible, p.NewVisible = &ev.OldVisible, &ev.NewVisible
	case notifcore.LayerOpacityChanged:
		p.LayerID = &ev.LayerID
		p.OldOpacity, p.NewOpacity = &ev.OldOpacity, &ev.NewOpacity
	}
	return p
}

// RunPump drains each connected client's outbox every pumpInterval and
// sends its entries as individual framed messages, until ctx is canceled.
// A send failure is logged, not treated as a disconnect: the transport's
// own poll loop is the sole authority on liveness.
func (h *Handler) RunPump(ctx context.Context, subs *subscription.Manager, clientIDs func() []transport.ClientID) {
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pumpOnce(subs, clientIDs())
		}
	}
}

func (h *Handler) pumpOnce(subs *subscription.Manager, ids []transport.ClientID) {
	for _, id := range ids {
		entries := subs.Drain(subscription.ClientID(id))
		metrics.OutboxDepth.Observe(float64(len(entries)))
		for _, payload := range entries {
			if err := h.send.Send(id, payload); err != nil {
				logger.Warn("rpc: notification delivery failed", logger.ClientID(uint64(id)), logger.Err(err))
				if h.audit != nil {
					h.audit.Append("delivery_failed", payload)
				}
				continue
			}
			metrics.NotificationsSentTotal.Inc()
		}
	}
}

// HandleConnect satisfies transport.Handler. Clients acquire subscription
// state lazily on their first subscribe call, so there is nothing to do
// here beyond logging.
func (h *Handler) HandleConnect(id transport.ClientID) {
	logger.Info("rpc: client connected", logger.ClientID(uint64(id)))
}

// HandleMessage satisfies transport.Handler: parse, dispatch, frame, send.
func (h *Handler) HandleMessage(id transport.ClientID, payload []byte) {
	ctx := context.Background()
	resp := h.HandleRequest(ctx, id, payload)
	encoded, err := json.Marshal(resp)
	if err != nil {
		logger.Error("rpc: failed to marshal response", logger.ClientID(uint64(id)), logger.Err(err))
		return
	}
	if err := h.send.Send(id, encoded); err != nil {
		logger.Warn("rpc: failed to send response", logger.ClientID(uint64(id)), logger.Err(err))
	}
}

// HandleDisconnect satisfies transport.Handler.
func (h *Handler) HandleDisconnect(id transport.ClientID) {
	h.subs.RemoveClient(subscription.ClientID(id))
	logger.Info("rpc: client disconnected", logger.ClientID(uint64(id)))
}

var _ transport.Handler = (*Handler)(nil)
