package bot

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmkv/sweepduel/internal/board"
	"github.com/dmkv/sweepduel/internal/pattern"
	"github.com/dmkv/sweepduel/internal/strategy"
)

type fakeHost struct {
	snap       *board.Snapshot
	snapErr    error
	state      strategy.Competitive
	applied    []Action
	outcome    Outcome
	applyErr   error
	statePanic bool
}

func (h *fakeHost) Snapshot() (*board.Snapshot, error) {
	return h.snap, h.snapErr
}

func (h *fakeHost) Apply(act Action) (Outcome, error) {
	if h.applyErr != nil {
		return Outcome{}, h.applyErr
	}
	h.applied = append(h.applied, act)
	return h.outcome, nil
}

func (h *fakeHost) Competitive() strategy.Competitive {
	if h.statePanic {
		panic("no live game")
	}
	return h.state
}

// perfect removes the imperfection and delay randomness from a test bot.
func perfect() Config {
	cfg := DefaultConfig()
	cfg.Difficulty = Difficulty{Accuracy: 1, MinDelay: time.Hour, MaxDelay: time.Hour}
	return cfg
}

func newTestBot(h Host, cfg Config) *Bot {
	return New(h, pattern.Noop{}, cfg, nil, rand.New(rand.NewPCG(1, 2)))
}

func TestDecideFlagsDisclosedMineFirst(t *testing.T) {
	h := &fakeHost{snap: board.MustParse(2, `
		1 . .
		. . .
		. . .
	`)}
	b := newTestBot(h, perfect())
	b.Disclose([]DisclosedCell{{Pos: board.Position{X: 2, Y: 2}, Mine: true}})

	act, ok := b.decide(time.Now())
	require.True(t, ok)
	assert.Equal(t, ActionFlag, act.Kind)
	assert.Equal(t, board.Position{X: 2, Y: 2}, act.Pos)
}

func TestDecideFlagsProvenMines(t *testing.T) {
	h := &fakeHost{snap: board.MustParse(2, `
		. . .
		1 2 1
		0 0 0
	`)}
	b := newTestBot(h, perfect())

	act, ok := b.decide(time.Now())
	require.True(t, ok)
	assert.Equal(t, ActionFlag, act.Kind)
	assert.Equal(t, board.Position{X: 0, Y: 0}, act.Pos, "first proven mine in row-major order")
}

func TestDecideRevealsProvenSafe(t *testing.T) {
	h := &fakeHost{snap: board.MustParse(1, `
		* 1 .
		1 1 .
		0 0 .
	`)}
	b := newTestBot(h, perfect())

	act, ok := b.decide(time.Now())
	require.True(t, ok)
	assert.Equal(t, ActionReveal, act.Kind)
	assert.Equal(t, board.Position{X: 2, Y: 0}, act.Pos)
	assert.Equal(t, "proven safe", act.Reason)
}

func TestDecideUnflagsSuspiciousFlag(t *testing.T) {
	h := &fakeHost{snap: board.MustParse(2, `
		* * .
		1 . .
		. . .
	`)}
	b := newTestBot(h, perfect())

	act, ok := b.decide(time.Now())
	require.True(t, ok)
	assert.Equal(t, ActionUnflag, act.Kind)
	assert.Equal(t, board.Position{X: 0, Y: 0}, act.Pos)
}

func TestDecideGuessesWhenSolverIsStuck(t *testing.T) {
	h := &fakeHost{snap: board.MustParse(2, `
		1 . .
		. . .
		. . .
	`)}
	b := newTestBot(h, perfect())

	act, ok := b.decide(time.Now())
	require.True(t, ok)
	assert.Equal(t, ActionReveal, act.Kind)
	assert.Equal(t, "guess", act.Reason)
	assert.Greater(t, act.Priority, prioFallback)
	assert.Less(t, act.Priority, prioSafeReveal)
}

// With points to spend and no safe moves, the stuck bot reaches for radar
// rather than gambling.
func TestDecideSpendsAbilityWhenStuck(t *testing.T) {
	h := &fakeHost{
		snap: board.MustParse(2, `
			1 . .
			. . .
			. . .
		`),
		state: strategy.Competitive{MyScore: 20, OpponentScore: 20},
	}
	b := newTestBot(h, perfect())

	act, ok := b.decide(time.Now())
	require.True(t, ok)
	assert.Equal(t, ActionUseAbility, act.Kind)
	assert.Equal(t, strategy.AbilityRadar, act.Ability)
}

func TestDecideSkipsCycleOnHostError(t *testing.T) {
	h := &fakeHost{snapErr: errors.New("connection lost")}
	b := newTestBot(h, perfect())

	_, ok := b.decide(time.Now())
	assert.False(t, ok)
}

// A panic anywhere in the think path degrades to the fallback move instead
// of unwinding through the timer goroutine.
func TestDecideRecoversPanicToFallback(t *testing.T) {
	h := &fakeHost{
		snap: board.MustParse(2, `
			1 . .
			. . .
			. . .
		`),
		statePanic: true,
	}
	b := newTestBot(h, perfect())

	act, ok := b.decide(time.Now())
	require.True(t, ok)
	assert.Equal(t, ActionReveal, act.Kind)
	assert.Equal(t, "fallback", act.Reason)
}

func TestFallbackPrefersCornersThenEdges(t *testing.T) {
	b := newTestBot(&fakeHost{}, perfect())

	act, ok := b.fallback(board.MustParse(2, `
		. . .
		. . .
		. . .
	`))
	require.True(t, ok)
	assert.Equal(t, board.Position{X: 0, Y: 0}, act.Pos, "corner first")

	act, ok = b.fallback(board.MustParse(2, `
		* . *
		. . .
		* . *
	`))
	require.True(t, ok)
	assert.Equal(t, board.Position{X: 1, Y: 0}, act.Pos, "edge when corners are gone")

	act, ok = b.fallback(board.MustParse(1, `
		0 0 0
		0 . 0
		0 0 0
	`))
	require.True(t, ok)
	assert.Equal(t, board.Position{X: 1, Y: 1}, act.Pos, "any hidden cell as a last resort")

	_, ok = b.fallback(nil)
	assert.False(t, ok)
}

// Accuracy 0 always substitutes one of the two runners-up for the top
// candidate when there is a choice.
func TestImperfectionSkipsTopCandidate(t *testing.T) {
	h := &fakeHost{snap: board.MustParse(2, `
		. . .
		1 2 1
		0 0 0
	`)}
	cfg := perfect()
	cfg.Difficulty.Accuracy = 0
	b := newTestBot(h, cfg)

	top := Action{Kind: ActionFlag, Pos: board.Position{X: 0, Y: 0}}
	for range 25 {
		act, ok := b.decide(time.Now())
		require.True(t, ok)
		assert.False(t, act.Kind == top.Kind && act.Pos == top.Pos,
			"imperfect pick must not be the top candidate")
	}
}

func TestExecuteRecordsGuessMistake(t *testing.T) {
	mem := pattern.NewMemory()
	h := &fakeHost{outcome: Outcome{HitMine: true}}
	b := New(h, mem, perfect(), nil, rand.New(rand.NewPCG(1, 2)))

	pos := board.Position{X: 1, Y: 1}
	ctx := pattern.Context(99)
	b.lastGuess = &guessRecord{pos: pos, risk: 0.3, ctx: ctx}

	b.execute(Action{Kind: ActionReveal, Pos: pos}, time.Now())

	assert.InDelta(t, 0.07, mem.BiasFor(ctx), 1e-9, "severity is 1-risk")
	assert.Equal(t, 1, b.mistakes)
}

func TestExecuteMarksAbilityUse(t *testing.T) {
	h := &fakeHost{}
	b := newTestBot(h, perfect())

	b.execute(Action{Kind: ActionUseAbility, Ability: strategy.AbilityFreeze}, time.Now())

	assert.Equal(t, 1, b.ledger.Used(strategy.AbilityFreeze))
	require.Len(t, h.applied, 1)
}

func TestExecuteFeedsDisclosuresBack(t *testing.T) {
	h := &fakeHost{outcome: Outcome{Disclosed: []DisclosedCell{
		{Pos: board.Position{X: 3, Y: 3}, Mine: true},
	}}}
	b := newTestBot(h, perfect())

	b.execute(Action{Kind: ActionUseAbility, Ability: strategy.AbilityRadar}, time.Now())

	mine, ok := b.disclosed[board.Position{X: 3, Y: 3}]
	assert.True(t, ok)
	assert.True(t, mine)
}

func TestCycleDoesNothingWhileFrozen(t *testing.T) {
	h := &fakeHost{snap: board.MustParse(2, `
		1 . .
		. . .
		. . .
	`)}
	b := newTestBot(h, perfect())
	b.Start()
	defer b.Stop()
	b.Freeze(time.Hour)

	b.cycle()

	assert.Empty(t, h.applied)
}

func TestCycleDoesNothingAfterStop(t *testing.T) {
	h := &fakeHost{snap: board.MustParse(2, `
		1 . .
		. . .
		. . .
	`)}
	b := newTestBot(h, perfect())
	b.Start()
	b.Stop()
	b.Stop() // idempotent

	b.cycle()

	assert.Empty(t, h.applied)
	assert.Equal(t, StateStopped, b.State())
}

func TestEndGameSummary(t *testing.T) {
	h := &fakeHost{state: strategy.Competitive{MyScore: 7, OpponentScore: 3}}
	b := newTestBot(h, perfect())

	var got pattern.GameSummary
	b.OnGameEnd(func(sum pattern.GameSummary) { got = sum })

	b.Start()
	b.EndGame(true)

	assert.True(t, got.Won)
	assert.Equal(t, 7, got.Score)
	assert.Equal(t, 3, got.OpponentScore)
	assert.Equal(t, string(strategy.MoodBalanced), got.FinalMood)
	assert.Equal(t, StateIdle, b.State())

	best, ok := b.Ledger().BestMood(1)
	require.True(t, ok)
	assert.Equal(t, strategy.MoodBalanced, best)
}

func TestObserveOpponentVelocity(t *testing.T) {
	b := newTestBot(&fakeHost{}, perfect())
	t0 := time.Now()

	b.observeOpponent(strategy.Competitive{OpponentScore: 0}, t0)
	b.observeOpponent(strategy.Competitive{OpponentScore: 2}, t0.Add(time.Second))

	assert.InDelta(t, 1.0, b.oppVelocity, 1e-9, "smoothed half of 2 points/second")

	b.observeOpponent(strategy.Competitive{OpponentScore: 2}, t0.Add(2*time.Second))
	assert.InDelta(t, 0.5, b.oppVelocity, 1e-9, "decays when the opponent stalls")
}

// The engine always proposes something while hidden cells remain, whatever
// the board looks like.
func TestLiveness(t *testing.T) {
	boards := []*board.Snapshot{
		board.MustParse(2, `
			. . .
			. . .
			. . .
		`),
		board.MustParse(2, `
			1 . .
			. . .
			. . .
		`),
		board.MustParse(2, `
			. . .
			1 2 1
			0 0 0
		`),
		board.MustParse(1, `
			* 1 .
			1 1 .
			0 0 .
		`),
	}
	for i, snap := range boards {
		b := newTestBot(&fakeHost{snap: snap}, perfect())
		_, ok := b.decide(time.Now())
		assert.True(t, ok, "board %d", i)
	}
}
