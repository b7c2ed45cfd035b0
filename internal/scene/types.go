package scene

// Capacity limits shared with the wire protocol.
const (
	// MaxActions is the maximum number of steps in a scene.
	MaxActions = 8

	// MaxActs is the maximum number of device writes per step.
	MaxActs = 8

	// NameLen is the maximum byte length of a scene name.
	NameLen = 16
)

// ActFlagUseAction selects action execution for an act; otherwise the
// act id and first parameter form a single status write.
const ActFlagUseAction = 1 << 0

// CondOp is a comparison operator in a scene condition.
type CondOp uint8

// Condition operators.
const (
	OpEqual CondOp = iota
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
)

// Eval applies the operator to (have, want).
func (op CondOp) Eval(have, want uint16) bool {
	switch op {
	case OpEqual:
		return have == want
	case OpGreater:
		return have > want
	case OpGreaterEqual:
		return have >= want
	case OpLess:
		return have < want
	case OpLessEqual:
		return have <= want
	default:
		return false
	}
}

// Condition gates a scene step on a device's current status.
type Condition struct {
	DevID    uint32
	StatusID uint16
	Op       CondOp
	Value    uint16
}

// Act is one device write within a scene step.
type Act struct {
	Flag   uint8
	DevID  uint32
	ID     uint16
	Param1 uint16
	Param2 uint32
}

// Action is one step of a scene: an optional condition, a start offset
// on the scene's clock, and up to MaxActs device writes.
type Action struct {
	// Delay is the step's start offset in seconds from scene start.
	// Steps run in order; offsets are non-decreasing.
	Delay uint8

	HasCond   bool
	Condition Condition

	Acts []Act
}

// Scene is a named, ordered list of steps.
type Scene struct {
	Name    string
	Actions []Action
}

// DeepCopy returns a copy sharing no mutable state with the original.
func (s *Scene) DeepCopy() *Scene {
	cp := &Scene{Name: s.Name}
	if s.Actions != nil {
		cp.Actions = make([]Action, len(s.Actions))
		copy(cp.Actions, s.Actions)
		for i := range s.Actions {
			if s.Actions[i].Acts != nil {
				cp.Actions[i].Acts = make([]Act, len(s.Actions[i].Acts))
				copy(cp.Actions[i].Acts, s.Actions[i].Acts)
			}
		}
	}
	return cp
}
