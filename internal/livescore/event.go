package livescore

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusLive     Status = "live"
	StatusFinished Status = "finished"
)

// MapUndetermined is reported as CurrentMap while the map in progress is unknown.
const MapUndetermined = "TBD"

// Event is one normalized score snapshot for a match.
type Event struct {
	MatchID        string    `json:"matchId"`
	Team1Score     int       `json:"team1Score"`
	Team2Score     int       `json:"team2Score"`
	CurrentMap     string    `json:"currentMap"`
	MapNumber      int       `json:"mapNumber"`
	Team1RoundsWon int       `json:"team1RoundsWon"`
	Team2RoundsWon int       `json:"team2RoundsWon"`
	CurrentRound   int       `json:"currentRound"`
	Status         Status    `json:"status"`
	LastUpdate     time.Time `json:"lastUpdate"` // when the snapshot was produced
}

// CurrentRound derives the round in progress from rounds won on the map.
// It is a display value only: overtime is not modelled, the result is just
// clamped to [1, maxRound].
func CurrentRound(team1Rounds, team2Rounds, maxRound int) int {
	r := max(team1Rounds, 0) + max(team2Rounds, 0) + 1
	if maxRound > 0 && r > maxRound {
		return maxRound
	}
	return r
}

// Normalize fills defaults and clamps out of range values.
func (e Event) Normalize(matchID string, maxRound int, now time.Time) Event {
	if matchID != "" {
		e.MatchID = matchID
	}
	e.Team1Score = max(e.Team1Score, 0)
	e.Team2Score = max(e.Team2Score, 0)
	e.Team1RoundsWon = max(e.Team1RoundsWon, 0)
	e.Team2RoundsWon = max(e.Team2RoundsWon, 0)
	if e.CurrentMap == "" {
		e.CurrentMap = MapUndetermined
	}
	if e.MapNumber < 1 {
		e.MapNumber = 1
	}
	if e.CurrentRound < 1 {
		e.CurrentRound = CurrentRound(e.Team1RoundsWon, e.Team2RoundsWon, maxRound)
	} else if maxRound > 0 && e.CurrentRound > maxRound {
		e.CurrentRound = maxRound
	}
	if e.Status != StatusFinished {
		e.Status = StatusLive
	}
	if e.LastUpdate.IsZero() {
		e.LastUpdate = now
	}
	return e
}

// wireEvent tolerates missing fields; anything absent falls back to a default.
type wireEvent struct {
	MatchID        *string `json:"matchId"`
	Team1Score     *int    `json:"team1Score"`
	Team2Score     *int    `json:"team2Score"`
	CurrentMap     *string `json:"currentMap"`
	MapNumber      *int    `json:"mapNumber"`
	Team1RoundsWon *int    `json:"team1RoundsWon"`
	Team2RoundsWon *int    `json:"team2RoundsWon"`
	CurrentRound   *int    `json:"currentRound"`
	Status         *string `json:"status"`
	LastUpdate     *string `json:"lastUpdate"`
}

// ParseEvent decodes a push payload. Only malformed JSON is an error;
// unknown fields are ignored and missing ones defaulted.
func ParseEvent(matchID string, data []byte, maxRound int, now time.Time) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("decode live score: %w", err)
	}

	var e Event
	if w.MatchID != nil {
		e.MatchID = *w.MatchID
	}
	e.Team1Score = deref(w.Team1Score)
	e.Team2Score = deref(w.Team2Score)
	if w.CurrentMap != nil {
		e.CurrentMap = *w.CurrentMap
	}
	e.MapNumber = deref(w.MapNumber)
	e.Team1RoundsWon = deref(w.Team1RoundsWon)
	e.Team2RoundsWon = deref(w.Team2RoundsWon)
	e.CurrentRound = deref(w.CurrentRound)
	if w.Status != nil {
		e.Status = Status(*w.Status)
	}
	if w.LastUpdate != nil {
		if ts, err := time.Parse(time.RFC3339, *w.LastUpdate); err == nil {
			e.LastUpdate = ts
		}
	}
	return e.Normalize(matchID, maxRound, now), nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
