package models

type PlaybackStatus string

const (
	PlaybackIdle     PlaybackStatus = "idle"
	PlaybackRunning  PlaybackStatus = "running"
	PlaybackFinished PlaybackStatus = "finished"
)

type ScrollDirection string

const (
	ScrollNone ScrollDirection = ""
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

// PlaybackFrame is the virtual hardware state rendered by the visualizer.
// Current is -1 when no step is highlighted.
type PlaybackFrame struct {
	Type          string          `json:"type"` // always "playback"
	Status        PlaybackStatus  `json:"status"`
	Current       int             `json:"current"`
	ActiveKeys    []string        `json:"activeKeys"`
	ActiveButtons []string        `json:"activeButtons"`
	Scroll        ScrollDirection `json:"scroll"`
	Timestamp     int64           `json:"timestamp"`
}
