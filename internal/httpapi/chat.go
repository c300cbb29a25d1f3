package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beholdhq/behold-agent/internal/agent"
	"github.com/beholdhq/behold-agent/internal/protocol"
	"github.com/beholdhq/behold-agent/internal/session"
)

// handleChatWS runs one chat connection. Each client_message is answered by
// the dialogue collaborator with the conversation digest injected, and the
// completed turn lands in the conversation context.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("chat websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var (
		userID    string
		sessionID string
	)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		decoded, err := protocol.Decode(raw)
		if err != nil {
			s.writeChatError(conn, "bad_message", "message could not be decoded")
			continue
		}
		msg, ok := decoded.(protocol.ClientMessage)
		if !ok {
			s.writeChatError(conn, "unexpected_type", "only client_message is accepted")
			continue
		}

		if userID == "" {
			if msg.UserID == "" {
				s.writeChatError(conn, "missing_user", "first message must carry user_id")
				continue
			}
			userID = msg.UserID
			sessionID = msg.SessionID
			if sessionID == "" {
				sessionID = session.NewSessionID()
			}
			_ = conn.WriteJSON(protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: sessionID,
				Event:     "session_started",
			})
		}

		ctx := s.contexts.GetOrCreate(userID, sessionID)
		s.metrics.ActiveContexts.Set(float64(s.contexts.Len()))

		reply, err := s.responder.Reply(r.Context(), agent.Request{
			UserID:         userID,
			SessionID:      sessionID,
			Text:           msg.Text,
			ContextSummary: ctx.Summary(),
		})
		if err != nil {
			log.Printf("responder failed for session %s: %v", sessionID, err)
			s.writeChatError(conn, "responder_failed", "the assistant could not reply, try again")
			continue
		}

		ctx.RecordTurn(msg.Text, reply, nil)
		s.metrics.ChatTurns.Inc()

		if err := conn.WriteJSON(protocol.AssistantMessage{
			Type:      protocol.TypeAssistantMessage,
			SessionID: sessionID,
			Text:      reply,
			TSMs:      time.Now().UnixMilli(),
		}); err != nil {
			return
		}
	}
}

func (s *Server) writeChatError(conn *websocket.Conn, code, message string) {
	_ = conn.WriteJSON(protocol.ErrorEvent{
		Type:    protocol.TypeErrorEvent,
		Code:    code,
		Message: message,
	})
}
