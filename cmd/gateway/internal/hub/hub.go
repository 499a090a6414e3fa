package hub

import (
	"strings"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/instrument"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/session"
)

// Hub translates protocol requests from a transport into session operations.
type Hub struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func NewHub(sessions *session.Manager, logger *zap.Logger) *Hub {
	return &Hub{
		sessions: sessions,
		logger:   logger,
	}
}

// Register opens a session for a freshly connected client and returns its id.
func (h *Hub) Register(client session.Client) string {
	return h.sessions.Connect(client).ID()
}

func (h *Hub) HandleCommand(sessionID string, client session.Client, req protocol.WSRequest) {
	switch req.Action {
	case protocol.ActionAuthenticate:
		h.handleAuthenticate(sessionID, client, req)
	case protocol.ActionSubscriptionUpdate:
		h.handleSubscriptionUpdate(sessionID, client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleAuthenticate(sessionID string, client session.Client, req protocol.WSRequest) {
	identity := strings.TrimSpace(req.Payload.Identity)
	if identity == "" {
		h.sendError(client, req.ID, "identity is required")
		return
	}

	if _, err := h.sessions.Authenticate(sessionID, identity); err != nil {
		h.sendError(client, req.ID, err.Error())
	}
}

func (h *Hub) handleSubscriptionUpdate(sessionID string, client session.Client, req protocol.WSRequest) {
	symbols := make([]string, 0, len(req.Payload.Symbols))
	for _, s := range req.Payload.Symbols {
		symbols = append(symbols, instrument.Normalize(s))
	}

	set, ok := h.sessions.UpdateSubscriptions(sessionID, symbols)
	if !ok {
		return
	}
	h.sendAck(client, req.ID, set.Symbols())
}

// Unregister tears the session down; safe to call more than once.
func (h *Hub) Unregister(sessionID string) {
	h.sessions.Disconnect(sessionID)
}

func (h *Hub) sendAck(c session.Client, id string, symbols []string) {
	h.send(c, protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: "success", Data: symbols})
}

func (h *Hub) sendError(c session.Client, id, msg string) {
	h.send(c, protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: "error", Message: msg})
}

func (h *Hub) send(c session.Client, resp protocol.WSResponse) {
	if err := c.SendJSON(resp); err != nil {
		h.logger.Debug("Failed to send response", zap.String("type", resp.Type), zap.Error(err))
	}
}
