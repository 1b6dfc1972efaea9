package monitor

import "time"

// TurnMetrics summarizes one orchestrated turn for logs and responses.
type TurnMetrics struct {
	Rounds    int           `json:"rounds"`
	ToolCalls int           `json:"tool_calls"`
	Duration  time.Duration `json:"duration"`
}

func (m TurnMetrics) ElapsedMs() int64 {
	return m.Duration.Milliseconds()
}
