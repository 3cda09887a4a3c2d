package types

import "github.com/DoyleJ11/esports-livescore/internal/livescore"

const (
	MsgLiveScore = "LiveScore"
	MsgNoData    = "NoData"
	MsgError     = "Error"

	CmdRefresh = "Refresh"
)

type ClientMessage struct {
	Type string `json:"type"` // "Refresh"
}

type ServerMessage struct {
	Type    string           `json:"type"` // "LiveScore" | "NoData" | "Error"
	MatchID string           `json:"matchId,omitempty"`
	Score   *livescore.Event `json:"score,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func LiveScore(ev livescore.Event) ServerMessage {
	return ServerMessage{Type: MsgLiveScore, MatchID: ev.MatchID, Score: &ev}
}

func NoData(matchID string) ServerMessage {
	return ServerMessage{Type: MsgNoData, MatchID: matchID}
}

func Error(msg string) ServerMessage {
	return ServerMessage{Type: MsgError, Error: msg}
}
