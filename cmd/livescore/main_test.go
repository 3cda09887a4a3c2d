package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
)

func sampleEvent() livescore.Event {
	return livescore.Event{
		MatchID:        "hltv-2371",
		Team1Score:     1,
		CurrentMap:     "Nuke",
		MapNumber:      2,
		Team1RoundsWon: 8,
		Team2RoundsWon: 6,
		CurrentRound:   15,
		Status:         livescore.StatusLive,
		LastUpdate:     time.Date(2024, 5, 1, 18, 4, 5, 0, time.UTC),
	}
}

func TestPrintEvent_Text(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, sampleEvent(), false)
	assert.Equal(t, "18:04:05  live  map 2 Nuke  8-6 (round 15)  series 1-0\n", buf.String())
}

func TestPrintEvent_JSON(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, sampleEvent(), true)

	var got livescore.Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Nuke", got.CurrentMap)
	assert.Equal(t, 15, got.CurrentRound)
}

func TestCommandsRequireMatchID(t *testing.T) {
	for _, cmd := range []*cobra.Command{watchCmd(), fetchCmd()} {
		cmd.SetArgs([]string{})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		assert.Error(t, cmd.Execute(), cmd.Use)
	}
}
