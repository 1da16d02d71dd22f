package model

// Monitor API response models.

// MonitorResponse is the top-level payload of GET /api/monitor/stats.
type MonitorResponse struct {
	Status      string         `json:"status"` // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"`
	Presence    PresenceStats   `json:"presence"`
	Typing      TypingStats     `json:"typing"`
	Router      RouterStats     `json:"router"`
	Clients     []ClientInfo    `json:"clients"`
}

// ConnectionStats holds socket-level counters.
type ConnectionStats struct {
	TotalConnections int `json:"totalConnections"`
}

// PresenceStats summarizes the presence registry.
type PresenceStats struct {
	OnlineUsers int      `json:"onlineUsers"`
	UserIDs     []string `json:"userIds"`
}

// TypingStats summarizes live typing indicators.
type TypingStats struct {
	ActiveIndicators int `json:"activeIndicators"`
}

// RouterStats summarizes the message router's per-conversation queues.
type RouterStats struct {
	ActiveQueues int `json:"activeQueues"`
}

// ClientInfo describes one live connection.
type ClientInfo struct {
	ConnectionID  string   `json:"connectionId"`
	UserID        string   `json:"userId"`
	Conversations []string `json:"conversations"`
}
