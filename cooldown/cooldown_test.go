package cooldown

import (
	"errors"
	"testing"
	"time"

	"github.com/RicheyJang/PaimengGate/admission"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func userEvent(user int64) admission.Event {
	return admission.Event{Capability: "draw", UserID: user, GroupID: 900, Session: admission.SessionGroup}
}

func TestDrawScenario(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock)
	require.NoError(t, e.AddRules("draw", Rule{
		Duration: 3 * time.Second,
		Scope:    admission.ScopeUser,
		Session:  admission.SessionAll,
		Hint:     "还有{remaining}秒",
	}))
	ev := userEvent(1)

	require.True(t, e.Check("draw", ev).OK())
	clock.Advance(time.Second)
	res := e.Check("draw", ev)
	require.False(t, res.OK())
	require.Equal(t, "还有2.00秒", res.Hint())
	require.Equal(t, 2*time.Second, e.Remaining("draw", ev))

	clock.Advance(3 * time.Second)
	require.True(t, e.Check("draw", ev).OK())

	// 其他用户不受影响
	require.True(t, e.Check("draw", userEvent(2)).OK())
}

func TestBoundary(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock)
	require.NoError(t, e.AddRules("draw", Rule{Duration: 3 * time.Second}))
	ev := userEvent(1)
	require.True(t, e.Check("draw", ev).OK())
	clock.Advance(3*time.Second - time.Millisecond)
	res := e.Check("draw", ev)
	require.False(t, res.OK())
	require.Empty(t, res.Hint())
	clock.Advance(2 * time.Millisecond)
	require.True(t, e.Check("draw", ev).OK())
}

// 链路中后面的规则拒绝时，前面规则的时间戳不应被记录
func TestAllOrNothingCommit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock)
	require.NoError(t, e.AddRules("draw",
		Rule{Duration: 2 * time.Second, Scope: admission.ScopeUser, Hint: "user"},
		Rule{Duration: 10 * time.Second, Scope: admission.ScopeGroup, Hint: "group"},
	))
	require.True(t, e.Check("draw", userEvent(1)).OK())

	clock.Advance(5 * time.Second)
	// 用户2首次调用：用户规则通过，但群规则拒绝
	res := e.Check("draw", userEvent(2))
	require.Equal(t, "group", res.Hint())
	_, recorded := e.checkers["draw"][0].last[2]
	require.False(t, recorded)

	clock.Advance(5 * time.Second)
	require.True(t, e.Check("draw", userEvent(2)).OK())
	require.Equal(t, "user", e.Check("draw", userEvent(2)).Hint())
}

func TestSessionFilter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock)
	require.NoError(t, e.AddRules("draw", Rule{Duration: time.Minute, Session: admission.SessionPrivate, Hint: "slow"}))
	group := userEvent(1)
	require.True(t, e.Check("draw", group).OK())
	require.True(t, e.Check("draw", group).OK())

	private := admission.Event{UserID: 1, Session: admission.SessionPrivate}
	require.True(t, e.Check("draw", private).OK())
	require.Equal(t, "slow", e.Check("draw", private).Hint())
}

func TestNoRules(t *testing.T) {
	e := NewEngine(nil)
	require.False(t, e.Has("draw"))
	require.True(t, e.Check("draw", userEvent(1)).OK())
	err := e.AddRules("draw", Rule{Duration: 0})
	require.True(t, errors.Is(err, ErrInvalidRule))
	require.False(t, e.Has("draw"))
}

func TestPersistence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock)
	require.NoError(t, e.AddRules("draw", Rule{Duration: 3 * time.Second}, Rule{Duration: time.Hour, Scope: admission.ScopeGroup}))
	require.Empty(t, e.TakeDirty())
	require.True(t, e.Check("draw", userEvent(1)).OK())
	blobs := e.TakeDirty()
	require.Contains(t, blobs, "draw")
	require.Empty(t, e.TakeDirty())

	restored := NewEngine(clock)
	require.NoError(t, restored.AddRules("draw", Rule{Duration: 3 * time.Second}, Rule{Duration: time.Hour, Scope: admission.ScopeGroup}))
	require.NoError(t, restored.Restore("draw", blobs["draw"]))
	require.False(t, restored.Check("draw", userEvent(1)).OK())

	require.Error(t, restored.Restore("draw", []byte("{broken")))
}

func TestExpiredStampsPruned(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock)
	require.NoError(t, e.AddRules("draw", Rule{Duration: time.Second}))
	require.True(t, e.Check("draw", userEvent(1)).OK())
	clock.Advance(2 * time.Second)
	e.MarkDirty("draw")
	blobs := e.TakeDirty()
	require.JSONEq(t, `{"checkers":[{}]}`, string(blobs["draw"]))
}
