package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
)

const (
	WS_READ_LIMIT    = 512 * 1024
	WS_READ_DEADLINE = 60 * time.Second
)

// Asker is the part of RAGService the websocket endpoint needs.
type Asker interface {
	Ask(ctx context.Context, req types.AskRequest) (*types.AskResponse, error)
}

type WebSocketService struct {
	asker    Asker
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWebSocketService(asker Asker, logger *zap.Logger) *WebSocketService {
	return &WebSocketService{
		asker:  asker,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (adjust for production)
			},
		},
	}
}

// HandleAsk serves one websocket connection. Every "ask" message is answered
// with an "ask" message carrying an AskResponse, or an "error" message.
func (s *WebSocketService) HandleAsk(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(WS_READ_LIMIT)
	conn.SetReadDeadline(time.Now().Add(WS_READ_DEADLINE))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(WS_READ_DEADLINE))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(WS_READ_DEADLINE))

		res := s.handleMessage(ctx, p)
		if err := conn.WriteJSON(res); err != nil {
			s.logger.Warn("websocket write error", zap.Error(err))
			return
		}
	}
}

func (s *WebSocketService) handleMessage(ctx context.Context, p []byte) types.WebSocketResponse {
	var req types.WebsocketRequest
	if err := json.Unmarshal(p, &req); err != nil {
		return wsError("invalid message")
	}

	switch req.Type {
	case types.TypeWebsocketPing:
		return types.WebSocketResponse{Type: types.TypeWebsocketPong}
	case types.TypeWebsocketAsk:
		payloadBytes, err := json.Marshal(req.Payload)
		if err != nil {
			return wsError("invalid payload")
		}
		var askReq types.AskRequest
		if err := json.Unmarshal(payloadBytes, &askReq); err != nil {
			return wsError("invalid payload")
		}
		resp, err := s.asker.Ask(ctx, askReq)
		if err != nil {
			s.logger.Warn("websocket ask failed", zap.Error(err))
			return wsError(err.Error())
		}
		return types.WebSocketResponse{Type: types.TypeWebsocketAsk, Payload: resp}
	default:
		return wsError("unknown message type: " + req.Type)
	}
}

func wsError(message string) types.WebSocketResponse {
	return types.WebSocketResponse{
		Type:    types.TypeWebsocketError,
		Payload: types.WebSocketErrorResponse{Message: message},
	}
}
