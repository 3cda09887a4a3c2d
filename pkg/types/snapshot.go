package types

// LiveScore:
//   matchId: string
//   team1Score: number        // maps won
//   team2Score: number
//   currentMap: string        // "TBD" until known
//   mapNumber: number         // 1-based
//   team1RoundsWon: number    // on the current map
//   team2RoundsWon: number
//   currentRound: number      // display value, rounds won + 1, capped
//   status: "live" | "finished"
//   lastUpdate: string        // RFC 3339, when the snapshot was produced
//
// Status (GET /matches/{matchId}/status):
//   matchId: string
//   observers: number
//   transport: "push" | "poll" | "none"
//   pushFailures: number
//   reconnectPending: boolean
//   pushDisabled: boolean
//   finished: boolean
