package fightsim

import fightarena "github.com/arenabets/fightarena"

// ActionState is the public animation/combat state of a fighter.
type ActionState string

const (
	StateIdle          ActionState = "idle"
	StateWalking       ActionState = "walking"
	StateAttackLight   ActionState = "attacking-light"
	StateAttackMedium  ActionState = "attacking-medium"
	StateAttackHeavy   ActionState = "attacking-heavy"
	StateAttackSpecial ActionState = "attacking-special"
	StateHurt          ActionState = "hurt"
	StateBlocking      ActionState = "blocking"
	StateKnockedOut    ActionState = "knocked-out"
)

func (s ActionState) attacking() bool {
	switch s {
	case StateAttackLight, StateAttackMedium, StateAttackHeavy, StateAttackSpecial:
		return true
	}
	return false
}

// FighterView is the public per-frame snapshot of one fighter. It is a
// plain value so whole snapshots compare with ==.
type FighterView struct {
	ID       fightarena.Side `json:"id"`
	X        float64         `json:"x"`
	Health   int             `json:"healthPoints"`
	State    ActionState     `json:"actionState"`
	Facing   int             `json:"facing"`
	Combo    int             `json:"comboCounter"`
	Blocking bool            `json:"blocking"`
}

// fighter is the mutable simulation entity. It exists only for the duration
// of one battle; only the outcome survives.
type fighter struct {
	id       fightarena.Side
	x        float64
	health   int
	state    ActionState
	facing   int
	combo    int
	blocking bool

	// Frame-counted cooldowns. Real-time callbacks are not reproducible
	// from a seed, so every delay in the original design is a frame index
	// checked each step.
	recoverAtFrame    int // hurt ends
	attackDoneAtFrame int // attack animation ends
	comboResetAtFrame int // combo streak expires
}

func newFighter(id fightarena.Side, x float64, facing int) *fighter {
	return &fighter{
		id:     id,
		x:      x,
		health: initialHealth,
		state:  StateIdle,
		facing: facing,
	}
}

func (f *fighter) view() FighterView {
	return FighterView{
		ID:       f.id,
		X:        f.x,
		Health:   f.health,
		State:    f.state,
		Facing:   f.facing,
		Combo:    f.combo,
		Blocking: f.blocking,
	}
}

// busy reports whether an in-progress action blocks a new decision.
func (f *fighter) busy(frame int) bool {
	if f.state == StateHurt && frame < f.recoverAtFrame {
		return true
	}
	if f.state.attacking() && frame < f.attackDoneAtFrame {
		return true
	}
	return false
}

// settleCooldowns expires hurt/attack/combo windows whose frame has passed.
func (f *fighter) settleCooldowns(frame int) {
	if f.state == StateHurt && frame >= f.recoverAtFrame {
		f.state = StateIdle
	}
	if f.state.attacking() && frame >= f.attackDoneAtFrame {
		f.state = StateIdle
	}
	if f.combo > 0 && frame >= f.comboResetAtFrame {
		f.combo = 0
	}
}
