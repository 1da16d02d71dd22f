package hub

import (
	"Murmur/internal/model"
)

// MonitorService gathers hub statistics for the monitor API.
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a monitor bound to the hub.
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats snapshots connections, presence, typing, and router state.
func (ms *MonitorService) GetStats() model.MonitorResponse {
	clients := ms.clientList()

	status := "healthy"
	if len(clients) == 0 {
		status = "idle"
	}

	online := ms.hub.presence.OnlineUsers()
	if online == nil {
		online = []string{}
	}

	return model.MonitorResponse{
		Status: status,
		Connections: model.ConnectionStats{
			TotalConnections: len(clients),
		},
		Presence: model.PresenceStats{
			OnlineUsers: len(online),
			UserIDs:     online,
		},
		Typing: model.TypingStats{
			ActiveIndicators: ms.hub.typing.ActiveCount(),
		},
		Router: model.RouterStats{
			ActiveQueues: ms.hub.router.ActiveQueues(),
		},
		Clients: clients,
	}
}

func (ms *MonitorService) clientList() []model.ClientInfo {
	ms.hub.clientsMu.RLock()
	defer ms.hub.clientsMu.RUnlock()

	clients := make([]model.ClientInfo, 0, len(ms.hub.clients))
	for _, c := range ms.hub.clients {
		clients = append(clients, model.ClientInfo{
			ConnectionID:  c.ID,
			UserID:        c.userID,
			Conversations: c.joinedConversations(),
		})
	}
	return clients
}
