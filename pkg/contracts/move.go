package contracts

// Move is the single next action the runtime must take for a turn.
type Move string

const (
	MoveWait               Move = "wait"
	MoveClarify            Move = "clarify"
	MoveConfirm            Move = "confirm"
	MoveDispatchTool       Move = "dispatch_tool"
	MoveDispatchSimulation Move = "dispatch_simulation"
	MoveExplain            Move = "explain"
	MoveRespond            Move = "respond"
	MoveRefuse             Move = "refuse"
)

// Valid reports whether m is one of the eight next-move kinds.
func (m Move) Valid() bool {
	switch m {
	case MoveWait, MoveClarify, MoveConfirm, MoveDispatchTool,
		MoveDispatchSimulation, MoveExplain, MoveRespond, MoveRefuse:
		return true
	default:
		return false
	}
}

// IsDispatch reports whether m hands work to a tool or simulation engine.
func (m Move) IsDispatch() bool {
	return m == MoveDispatchTool || m == MoveDispatchSimulation
}
