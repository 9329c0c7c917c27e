package session

import (
	"slices"

	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// View is what the local player needs to render a snapshot.
type View struct {
	Code   string
	Local  entity.Slot
	Status entity.Status
	Turn   int

	Me       entity.Player
	Opponent entity.Player

	OpponentPresent bool
	// Leading is true when the local slot opens the current turn.
	Leading     bool
	NeedsAction bool
	Terminal    bool
	Result      Result
	SecondsLeft int

	History []string
}

// Derive computes the local facts of a snapshot. now is in store milliseconds.
func Derive(m *entity.Match, local entity.Slot, now int64, turnTimeoutMs int64) View {
	view := View{
		Code:     m.Code,
		Local:    local,
		Status:   m.Status,
		Turn:     m.TurnNumber,
		Leading:  m.IsPlaying() && m.Turn == local,
		Terminal: m.IsTerminal(),
		History:  slices.Clone(m.History),
	}

	if me := m.Player(local); me != nil {
		view.Me = *me
	}

	if opponent := m.Player(local.Opponent()); opponent != nil {
		view.Opponent = *opponent
		view.OpponentPresent = true
	}

	if expected, ok := m.ExpectedActor(); ok && expected == local {
		view.NeedsAction = true
		view.SecondsLeft = int(max(0, turnTimeoutMs-(now-turnAnchor(m, local))) / 1000)
	}

	if view.Terminal {
		switch m.Winner {
		case entity.Draw:
			view.Result = ResultDraw
		case local:
			view.Result = ResultWin
		default:
			view.Result = ResultLoss
		}
	}

	return view
}

// turnAnchor is the moment the local countdown starts: the end of the previous turn for the
// leader, the leader's submission for the responder.
func turnAnchor(m *entity.Match, local entity.Slot) int64 {
	if m.Turn == local {
		return m.LastTurnProcessedAt
	}

	if leader := m.Player(m.Turn); leader != nil && leader.ActedAt > 0 {
		return leader.ActedAt
	}

	return m.LastTurnProcessedAt
}
