package protocol

// SUBSCRIBE (client -> server). First message on the observer connection;
// may be re-sent to change the sampling interval.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EveryRounds     int    `json:"every_rounds,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	RunID           string       `json:"run_id"`
	Round           uint64       `json:"round"`
	Params          RunParams    `json:"params"`
	Monkeys         []MonkeyInfo `json:"monkeys"`
}

type RunParams struct {
	Mode          string `json:"mode"`
	Rounds        int    `json:"rounds"`
	RoundRateHz   int    `json:"round_rate_hz"`
	ReliefDivisor int64  `json:"relief_divisor,omitempty"`
	Modulus       int64  `json:"modulus,omitempty"`
}

type MonkeyInfo struct {
	ID        int    `json:"id"`
	Operation string `json:"operation"`
	Divisor   int64  `json:"divisor"`
	IfTrue    int    `json:"if_true"`
	IfFalse   int    `json:"if_false"`
}

// ROUND (server -> client).
type RoundMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RunID           string  `json:"run_id"`
	Round           uint64  `json:"round"`
	Digest          string  `json:"digest"`
	Inspected       []int64 `json:"inspected"`
	Held            []int   `json:"held"`
	Throws          int     `json:"throws"`
}

// SCORE (server -> client). Sent once when the run completes.
type ScoreMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RunID           string  `json:"run_id"`
	Round           uint64  `json:"round"`
	Inspected       []int64 `json:"inspected"`
	Score           int64   `json:"score"`
}

// ERROR (server -> client). Sent when the run aborts.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
