package hltv

import (
	"time"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
)

// Match is the subset of the upstream match document used for live scores.
type Match struct {
	ID     int          `json:"id"`
	Live   bool         `json:"live"`
	Result *SeriesScore `json:"result"`
	Maps   []MapResult  `json:"maps"`
}

type SeriesScore struct {
	Team1Score *int `json:"team1Score"`
	Team2Score *int `json:"team2Score"`
}

type MapResult struct {
	Name   string     `json:"name"`
	Result *MapRounds `json:"result"`
}

type MapRounds struct {
	Team1Rounds int `json:"team1Rounds"`
	Team2Rounds int `json:"team2Rounds"`
}

// Normalize converts an upstream match into a livescore event.
// The map in progress is the first one without a result; once every map has
// a result the last one is reported.
func Normalize(matchID string, m Match, maxRound int, now time.Time) livescore.Event {
	ev := livescore.Event{
		MatchID:    matchID,
		CurrentMap: livescore.MapUndetermined,
		MapNumber:  len(m.Maps),
		Status:     livescore.StatusLive,
		LastUpdate: now,
	}

	current := -1
	for i, mp := range m.Maps {
		if mp.Result == nil {
			current = i
			ev.MapNumber = i + 1
			break
		}
	}
	if current < 0 && len(m.Maps) > 0 {
		current = len(m.Maps) - 1
	}

	if current >= 0 {
		mp := m.Maps[current]
		if mp.Name != "" {
			ev.CurrentMap = mp.Name
		}
		if mp.Result != nil {
			ev.Team1RoundsWon = mp.Result.Team1Rounds
			ev.Team2RoundsWon = mp.Result.Team2Rounds
		}
	}
	ev.CurrentRound = livescore.CurrentRound(ev.Team1RoundsWon, ev.Team2RoundsWon, maxRound)

	if m.Result != nil {
		if m.Result.Team1Score != nil {
			ev.Team1Score = *m.Result.Team1Score
			ev.Status = livescore.StatusFinished
		}
		if m.Result.Team2Score != nil {
			ev.Team2Score = *m.Result.Team2Score
		}
	}

	return ev.Normalize(matchID, maxRound, now)
}
