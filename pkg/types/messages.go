package types

// Client -> Server (over /ws?match={matchId})
// Refresh:
//   type: "Refresh"
//   asks for a one-shot pull of the current score, answered with LiveScore or NoData

// Server -> Client
// LiveScore:
//   matchId: string
//   score: LiveScore (see snapshot.go)
//
// NoData:
//   matchId: string
//   sent when a Refresh could not produce a snapshot; keep showing the last one
//
// Error:
//   error: "bad json" | "unknown type"
