package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/saimizi/iviplugind/internal/auditlog"
	"github.com/saimizi/iviplugind/internal/capability"
	"github.com/saimizi/iviplugind/internal/logger"
	"github.com/saimizi/iviplugind/internal/metrics"
	"github.com/saimizi/iviplugind/internal/notifcore"
	"github.com/saimizi/iviplugind/internal/rpcerr"
	"github.com/saimizi/iviplugind/internal/statecore"
	"github.com/saimizi/iviplugind/internal/subscription"
	"github.com/saimizi/iviplugind/internal/transport"
	"github.com/saimizi/iviplugind/internal/validate"
)

// eventTypeByName maps the wire names used in subscribe/unsubscribe params
// to their typed notifcore.EventType.
var eventTypeByName = map[string]notifcore.EventType{
	notifcore.SurfaceCreated.String():             notifcore.SurfaceCreated,
	notifcore.SurfaceDestroyed.String():           notifcore.SurfaceDestroyed,
	notifcore.SourceGeometryChanged.String():      notifcore.SourceGeometryChanged,
	notifcore.DestinationGeometryChanged.String(): notifcore.DestinationGeometryChanged,
	notifcore.VisibilityChanged.String():          notifcore.VisibilityChanged,
	notifcore.OpacityChanged.String():              notifcore.OpacityChanged,
	notifcore.OrientationChanged.String():          notifcore.OrientationChanged,
	notifcore.ZOrderChanged.String():               notifcore.ZOrderChanged,
	notifcore.FocusChanged.String():                notifcore.FocusChanged,
	notifcore.LayerCreated.String():                notifcore.LayerCreated,
	notifcore.LayerDestroyed.String():              notifcore.LayerDestroyed,
	notifcore.LayerVisibilityChanged.String():      notifcore.LayerVisibilityChanged,
	notifcore.LayerOpacityChanged.String():         notifcore.LayerOpacityChanged,
}

// zOrderMin and zOrderMax bound the set_z_order parameter (spec.md §4.8).
const (
	zOrderMin int32 = 0
	zOrderMax int32 = 1000
)

// Sender pushes a single framed payload to a connected client. Satisfied
// by *transport.Transport; kept as an interface so tests can fake it.
type Sender interface {
	Send(id transport.ClientID, payload []byte) error
}

// methodFunc handles one JSON-RPC method. autoCommit is pre-parsed from
// params by the caller since every mutator shares the same field.
type methodFunc func(h *Handler, ctx context.Context, client transport.ClientID, raw json.RawMessage, autoCommit bool) (any, *rpcerr.Error)

// Handler dispatches JSON-RPC requests against the state core and
// capability, enforces batching/commit semantics, and bridges typed
// events into the subscription manager's outboxes (spec.md §4.8).
type Handler struct {
	core  *statecore.Core
	cap   capability.Capability
	subs  *subscription.Manager
	send  Sender
	audit *auditlog.Log

	mu             sync.Mutex
	dirtySurfaces  map[uint32]struct{}
	dirtyLayers    map[uint32]struct{}
	surfaceLayerOf map[uint32]uint32 // surface id -> layer id, for render-order writes
}

// New returns a Handler wired to the given core, capability, and
// subscription manager. Call SetSender once the transport exists (there
// is a chicken/egg between transport and handler construction).
func New(core *statecore.Core, cap capability.Capability, subs *subscription.Manager) *Handler {
	return &Handler{
		core:           core,
		cap:            cap,
		subs:           subs,
		dirtySurfaces:  make(map[uint32]struct{}),
		dirtyLayers:    make(map[uint32]struct{}),
		surfaceLayerOf: make(map[uint32]uint32),
	}
}

// SetSender installs the outbound transport. Must be called before
// HandleMessage or the notification pump run.
func (h *Handler) SetSender(s Sender) {
	h.send = s
}

// SetAuditLog installs the durable notification history backing
// list_recent_notifications. Optional: a Handler with no audit log answers
// list_recent_notifications with an empty result.
func (h *Handler) SetAuditLog(a *auditlog.Log) {
	h.audit = a
}

// SetSurfaceLayer records which layer a surface belongs to, so set_z_order
// knows which layer's render-order list to rewrite (spec.md §9, "Z-order
// home"). Surfaces not associated with a layer are skipped silently.
func (h *Handler) SetSurfaceLayer(surfaceID, layerID uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.surfaceLayerOf[surfaceID] = layerID
}

var methodTable = map[string]methodFunc{
	"list_surfaces":              (*Handler).doListSurfaces,
	"get_surface":                (*Handler).doGetSurface,
	"set_position":               (*Handler).doSetPosition,
	"set_size":                   (*Handler).doSetSize,
	"set_visibility":             (*Handler).doSetVisibility,
	"set_opacity":                (*Handler).doSetOpacity,
	"set_orientation":            (*Handler).doSetOrientation,
	"set_z_order":                (*Handler).doSetZOrder,
	"set_focus":                  (*Handler).doSetFocus,
	"commit":                     (*Handler).doCommit,
	"subscribe":                  (*Handler).doSubscribe,
	"unsubscribe":                (*Handler).doUnsubscribe,
	"list_subscriptions":         (*Handler).doListSubscriptions,
	"list_layers":                (*Handler).doListLayers,
	"get_layer":                  (*Handler).doGetLayer,
	"set_layer_visibility":       (*Handler).doSetLayerVisibility,
	"set_layer_opacity":          (*Handler).doSetLayerOpacity,
	"list_recent_notifications":  (*Handler).doListRecentNotifications,
}

// HandleRequest parses and dispatches a single request payload, returning
// the Response to send back (spec.md §4.8).
func (h *Handler) HandleRequest(ctx context.Context, client transport.ClientID, payload []byte) Response {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Response{Error: toWireError(rpcerr.ParseError(err.Error()))}
	}

	fn, ok := methodTable[req.Method]
	if !ok {
		return Response{ID: req.ID, Error: toWireError(rpcerr.MethodNotFound(req.Method))}
	}

	autoCommit := parseAutoCommit(req.Params)

	result, rerr := fn(h, ctx, client, req.Params, autoCommit)
	if rerr != nil {
		logger.WarnCtx(ctx, "rpc: request failed",
			logger.Method(req.Method), logger.RequestID(fmt.Sprintf("%d", req.ID)), logger.ErrorCode(int(rerr.Code)))
		metrics.RPCRequestsTotal.WithLabelValues(req.Method, "error").Inc()
		metrics.RPCErrorsTotal.WithLabelValues(fmt.Sprintf("%d", rerr.Code)).Inc()
		return Response{ID: req.ID, Error: toWireError(rerr)}
	}
	metrics.RPCRequestsTotal.WithLabelValues(req.Method, "ok").Inc()
	return Response{ID: req.ID, Result: result}
}

func toWireError(e *rpcerr.Error) *WireError {
	return &WireError{Code: int(e.Code), Message: e.Message, Data: e.Data}
}

func parseAutoCommit(raw json.RawMessage) bool {
	var p struct {
		AutoCommit bool `json:"auto_commit"`
	}
	_ = json.Unmarshal(raw, &p)
	return p.AutoCommit
}

// markSurfaceDirty / markLayerDirty record entities touched by a mutator
// since the last flush, so commit knows what to reconcile.
func (h *Handler) markSurfaceDirty(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirtySurfaces[id] = struct{}{}
}

func (h *Handler) markLayerDirty(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirtyLayers[id] = struct{}{}
}

// flush commits all pending capability writes, reconciles every dirty
// surface/layer against the mirror (emitting diffs), and flushes any
// staged z-order changes (spec.md §4.8, "Batching / commit semantics").
func (h *Handler) flush(ctx context.Context) *rpcerr.Error {
	if err := h.cap.CommitChanges(ctx); err != nil {
		return rpcerr.Internal(fmt.Sprintf("commit failed: %v", err))
	}

	h.mu.Lock()
	surfaces := make([]uint32, 0, len(h.dirtySurfaces))
	for id := range h.dirtySurfaces {
		surfaces = append(surfaces, id)
	}
	layers := make([]uint32, 0, len(h.dirtyLayers))
	for id := range h.dirtyLayers {
		layers = append(layers, id)
	}
	h.dirtySurfaces = make(map[uint32]struct{})
	h.dirtyLayers = make(map[uint32]struct{})
	h.mu.Unlock()

	for _, id := range surfaces {
		h.core.ReconcileSurface(ctx, id)
		h.core.FlushZOrder(ctx, id)
	}
	for _, id := range layers {
		h.core.ReconcileLayer(ctx, id)
	}
	return nil
}

func (h *Handler) maybeFlush(ctx context.Context, autoCommit bool) (bool, *rpcerr.Error) {
	if !autoCommit {
		return false, nil
	}
	if err := h.flush(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// --- query methods ---

func (h *Handler) doListSurfaces(ctx context.Context, _ transport.ClientID, _ json.RawMessage, _ bool) (any, *rpcerr.Error) {
	surfaces := h.core.ListSurfaces()
	out := make([]surfaceWire, 0, len(surfaces))
	for _, s := range surfaces {
		out = append(out, surfaceToWire(s))
	}
	return out, nil
}

type idParams struct {
	ID uint32 `json:"id"`
}

func (h *Handler) doGetSurface(ctx context.Context, _ transport.ClientID, raw json.RawMessage, _ bool) (any, *rpcerr.Error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	s, ok := h.core.GetSurface(p.ID)
	if !ok {
		return nil, rpcerr.EntityNotFound("surface", p.ID)
	}
	return surfaceToWire(s), nil
}

func (h *Handler) doListLayers(ctx context.Context, _ transport.ClientID, _ json.RawMessage, _ bool) (any, *rpcerr.Error) {
	layers := h.core.ListLayers()
	out := make([]layerWire, 0, len(layers))
	for _, l := range layers {
		out = append(out, layerToWire(l))
	}
	return out, nil
}

func (h *Handler) doGetLayer(ctx context.Context, _ transport.ClientID, raw json.RawMessage, _ bool) (any, *rpcerr.Error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	l, ok := h.core.GetLayer(p.ID)
	if !ok {
		return nil, rpcerr.EntityNotFound("layer", p.ID)
	}
	return layerToWire(l), nil
}

type recentNotificationsParams struct {
	Limit     int    `json:"limit"`
	EventType string `json:"event_type"`
}

type recentNotificationWire struct {
	Seq       uint64 `json:"seq"`
	EventType string `json:"event_type"`
	Recorded  string `json:"recorded"`
}

const defaultRecentNotificationsLimit = 100
const recentNotificationTimeFormat = time.RFC3339Nano

// doListRecentNotifications answers from the durable audit log only; it
// never touches the State Core, Notification Core, or Layout Capability
// (spec.md's diagnostics read-only property applies here too, since this
// method is a history lookup, not a mirror query).
func (h *Handler) doListRecentNotifications(ctx context.Context, _ transport.ClientID, raw json.RawMessage, _ bool) (any, *rpcerr.Error) {
	var p recentNotificationsParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if p.EventType != "" {
		if _, ok := eventTypeByName[p.EventType]; !ok {
			return nil, rpcerr.InvalidParams(fmt.Sprintf("unrecognized event_type %q", p.EventType), nil)
		}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultRecentNotificationsLimit
	}

	out := make([]recentNotificationWire, 0, limit)
	if h.audit == nil {
		return out, nil
	}
	for _, e := range h.audit.Recent(limit, p.EventType) {
		out = append(out, recentNotificationWire{
			Seq:       e.Seq,
			EventType: e.EventType,
			Recorded:  e.Recorded.Format(recentNotificationTimeFormat),
		})
	}
	return out, nil
}

// --- mutators ---

type positionParams struct {
	ID uint32 `json:"id"`
	X  int32  `json:"x"`
	Y  int32  `json:"y"`
}

func (h *Handler) doSetPosition(ctx context.Context, _ transport.ClientID, raw json.RawMessage, autoCommit bool) (any, *rpcerr.Error) {
	var p positionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if err := validate.Position(p.X, p.Y); err != nil {
		return nil, rpcerr.InvalidParams(err.Error(), err)
	}
	s, ok := h.core.GetSurface(p.ID)
	if !ok {
		return nil, rpcerr.EntityNotFound("surface", p.ID)
	}
	rect := s.DestRect
	if cur, ok := h.cap.GetSurfaceByID(p.ID); ok {
		rect = cur.DestRect
	}
	rect.X, rect.Y = p.X, p.Y
	if err := h.cap.SetSurfaceDestRect(p.ID, rect); err != nil {
		return nil, rpcerr.Internal(err.Error())
	}
	h.markSurfaceDirty(p.ID)
	return h.commitResult(ctx, autoCommit)
}

type sizeParams struct {
	ID     uint32 `json:"id"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
}

func (h *Handler) doSetSize(ctx context.Context, _ transport.ClientID, raw json.RawMessage, autoCommit bool) (any, *rpcerr.Error) {
	var p sizeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if err := validate.Size(p.Width, p.Height); err != nil {
		return nil, rpcerr.InvalidParams(err.Error(), err)
	}
	s, ok := h.core.GetSurface(p.ID)
	if !ok {
		return nil, rpcerr.EntityNotFound("surface", p.ID)
	}
	rect := s.DestRect
	if cur, ok := h.cap.GetSurfaceByID(p.ID); ok {
		rect = cur.DestRect
	}
	rect.Width, rect.Height = uint32(p.Width), uint32(p.Height)
	if err := h.cap.SetSurfaceDestRect(p.ID, rect); err != nil {
		return nil, rpcerr.Internal(err.Error())
	}
	h.markSurfaceDirty(p.ID)
	return h.commitResult(ctx, autoCommit)
}

type visibilityParams struct {
	ID      uint32 `json:"id"`
	Visible bool   `json:"visible"`
}

func (h *Handler) doSetVisibility(ctx context.Context, _ transport.ClientID, raw json.RawMessage, autoCommit bool) (any, *rpcerr.Error) {
	var p visibilityParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if _, ok := h.core.GetSurface(p.ID); !ok {
		return nil, rpcerr.EntityNotFound("surface", p.ID)
	}
	if err := h.cap.SetSurfaceVisibility(p.ID, p.Visible); err != nil {
		return nil, rpcerr.Internal(err.Error())
	}
	h.markSurfaceDirty(p.ID)
	return h.commitResult(ctx, autoCommit)
}

type opacityParams struct {
	ID      uint32  `json:"id"`
	Opacity float64 `json:"opacity"`
}

func (h *Handler) doSetOpacity(ctx context.Context, _ transport.ClientID, raw json.RawMessage, autoCommit bool) (any, *rpcerr.Error) {
	var p opacityParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if err := validate.Opacity(p.Opacity); err != nil {
		return nil, rpcerr.InvalidParams(err.Error(), err)
	}
	if _, ok := h.core.GetSurface(p.ID); !ok {
		return nil, rpcerr.EntityNotFound("surface", p.ID)
	}
	if err := h.cap.SetSurfaceOpacity(p.ID, p.Opacity); err != nil {
		return nil, rpcerr.Internal(err.Error())
	}
	h.markSurfaceDirty(p.ID)
	return h.commitResult(ctx, autoCommit)
}

type orientationParams struct {
	ID          uint32 `json:"id"`
	Orientation string `json:"orientation"`
}

var orientationDegrees = map[string]int32{
	"Normal": 0, "Rotate90": 90, "Rotate180": 180, "Rotate270": 270,
}

// doSetOrientation always fails: the capability reports orientation but
// never lets the core write it (spec.md §9, "Orientation asymmetry").
// Validation still runs first so clients get a consistent error for
// genuinely malformed input before hitting the unsupported-operation
// error (spec.md §8 scenario 5).
func (h *Handler) doSetOrientation(ctx context.Context, _ transport.ClientID, raw json.RawMessage, _ bool) (any, *rpcerr.Error) {
	var p orientationParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	deg, known := orientationDegrees[p.Orientation]
	if !known {
		return nil, rpcerr.InvalidParams(fmt.Sprintf("unrecognized orientation %q", p.Orientation), nil)
	}
	if err := validate.Orientation(deg); err != nil {
		return nil, rpcerr.InvalidParams(err.Error(), err)
	}
	return nil, rpcerr.Unsupported("orientation not supported")
}

type zOrderParams struct {
	ID     uint32 `json:"id"`
	ZOrder int32  `json:"z_order"`
}

func (h *Handler) doSetZOrder(ctx context.Context, _ transport.ClientID, raw json.RawMessage, autoCommit bool) (any, *rpcerr.Error) {
	var p zOrderParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if err := validate.ZOrder(p.ZOrder, zOrderMin, zOrderMax); err != nil {
		return nil, rpcerr.InvalidParams(err.Error(), err)
	}
	if !h.core.StageZOrder(p.ID, p.ZOrder) {
		return nil, rpcerr.EntityNotFound("surface", p.ID)
	}

	h.mu.Lock()
	layerID, hasLayer := h.surfaceLayerOf[p.ID]
	h.mu.Unlock()
	if hasLayer {
		if err := h.cap.SetSurfaceRenderOrder(layerID, p.ID, p.ZOrder); err != nil {
			return nil, rpcerr.Internal(err.Error())
		}
	}

	h.markSurfaceDirty(p.ID)
	return h.commitResult(ctx, autoCommit)
}

func (h *Handler) doSetFocus(ctx context.Context, _ transport.ClientID, raw json.RawMessage, _ bool) (any, *rpcerr.Error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if _, ok := h.core.GetSurface(p.ID); !ok {
		return nil, rpcerr.EntityNotFound("surface", p.ID)
	}
	if err := h.cap.SetInputFocus(p.ID, true); err != nil && err != capability.ErrUnavailable {
		return nil, rpcerr.Internal(err.Error())
	}
	h.core.SetFocus(ctx, p.ID, true)
	return commitResultWire{Success: true, Committed: true}, nil
}

func (h *Handler) doCommit(ctx context.Context, _ transport.ClientID, _ json.RawMessage, _ bool) (any, *rpcerr.Error) {
	if err := h.flush(ctx); err != nil {
		return nil, err
	}
	return commitResultWire{Success: true, Committed: true}, nil
}

func (h *Handler) commitResult(ctx context.Context, autoCommit bool) (any, *rpcerr.Error) {
	committed, err := h.maybeFlush(ctx, autoCommit)
	if err != nil {
		return nil, err
	}
	return commitResultWire{Success: true, Committed: committed}, nil
}

// --- subscriptions ---

type topicsParams struct {
	EventTypes []string `json:"event_types"`
}

func (h *Handler) doSubscribe(ctx context.Context, client transport.ClientID, raw json.RawMessage, _ bool) (any, *rpcerr.Error) {
	var p topicsParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	topics, err := parseTopics(p.EventTypes)
	if err != nil {
		return nil, err
	}
	h.subs.Subscribe(subscription.ClientID(client), topics)
	return commitResultWire{Success: true}, nil
}

func (h *Handler) doUnsubscribe(ctx context.Context, client transport.ClientID, raw json.RawMessage, _ bool) (any, *rpcerr.Error) {
	var p topicsParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	topics, err := parseTopics(p.EventTypes)
	if err != nil {
		return nil, err
	}
	h.subs.Unsubscribe(subscription.ClientID(client), topics)
	return commitResultWire{Success: true}, nil
}

func (h *Handler) doListSubscriptions(ctx context.Context, client transport.ClientID, _ json.RawMessage, _ bool) (any, *rpcerr.Error) {
	topics := h.subs.GetSubscriptions(subscription.ClientID(client))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		out = append(out, t.String())
	}
	return out, nil
}

func (h *Handler) doSetLayerVisibility(ctx context.Context, _ transport.ClientID, raw json.RawMessage, autoCommit bool) (any, *rpcerr.Error) {
	var p visibilityParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if _, ok := h.core.GetLayer(p.ID); !ok {
		return nil, rpcerr.EntityNotFound("layer", p.ID)
	}
	if err := h.cap.SetLayerVisibility(p.ID, p.Visible); err != nil {
		return nil, rpcerr.Internal(err.Error())
	}
	h.markLayerDirty(p.ID)
	return h.commitResult(ctx, autoCommit)
}

func (h *Handler) doSetLayerOpacity(ctx context.Context, _ transport.ClientID, raw json.RawMessage, autoCommit bool) (any, *rpcerr.Error) {
	var p opacityParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.InvalidParams("malformed params", nil)
	}
	if err := validate.Opacity(p.Opacity); err != nil {
		return nil, rpcerr.InvalidParams(err.Error(), err)
	}
	if _, ok := h.core.GetLayer(p.ID); !ok {
		return nil, rpcerr.EntityNotFound("layer", p.ID)
	}
	if err := h.cap.SetLayerOpacity(p.ID, p.Opacity); err != nil {
		return nil, rpcerr.Internal(err.Error())
	}
	h.markLayerDirty(p.ID)
	return h.commitResult(ctx, autoCommit)
}

func parseTopics(names []string) ([]notifcore.EventType, *rpcerr.Error) {
	out := make([]notifcore.EventType, 0, len(names))
	for _, n := range names {
		t, ok := eventTypeByName[n]
		if !ok {
			return nil, rpcerr.InvalidParams(fmt.Sprintf("unrecognized event_type %q", n), nil)
		}
		out = append(out, t)
	}
	return out, nil
}
