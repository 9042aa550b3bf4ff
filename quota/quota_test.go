package quota

import (
	"errors"
	"testing"

	"github.com/RicheyJang/PaimengGate/admission"

	"github.com/stretchr/testify/require"
)

func gachaEvent(user int64) admission.Event {
	return admission.Event{Capability: "gacha", UserID: user, GroupID: 7, Session: admission.SessionGroup}
}

func TestGachaScenario(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddRules("gacha", Rule{Limit: 5, Period: Day, Hint: "每天只能抽{limit}次"}))
	ev := gachaEvent(1)
	for i := 0; i < 5; i++ {
		require.True(t, e.Check("gacha", ev).OK(), i)
	}
	res := e.Check("gacha", ev)
	require.False(t, res.OK())
	require.Equal(t, "每天只能抽5次", res.Hint())

	// 其他周期的重置不影响
	e.Reset(Hour)
	require.False(t, e.Check("gacha", ev).OK())

	e.Reset(Day)
	require.True(t, e.Check("gacha", ev).OK())
	require.Equal(t, 1, e.checkers["gacha"][0].counters[1][Day])
	left, limited := e.Remaining("gacha", ev)
	require.True(t, limited)
	require.Equal(t, 4, left)
}

// 后面的规则拒绝时，前面已通过的规则依然计数
func TestIncrementAsEvaluated(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddRules("gacha",
		Rule{Limit: 10, Period: Day, Scope: admission.ScopeUser},
		Rule{Limit: 1, Period: Hour, Scope: admission.ScopeGroup, Hint: "group"},
	))
	require.True(t, e.Check("gacha", gachaEvent(1)).OK())
	require.Equal(t, "group", e.Check("gacha", gachaEvent(2)).Hint())
	require.Equal(t, 1, e.checkers["gacha"][0].counters[2][Day])
	require.Equal(t, 1, e.checkers["gacha"][1].counters[7][Hour])
}

func TestSessionFilterAndPrivateGroupScope(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddRules("gacha", Rule{Limit: 1, Period: Week, Session: admission.SessionPrivate}))
	for i := 0; i < 3; i++ {
		require.True(t, e.Check("gacha", gachaEvent(1)).OK())
	}
	private := admission.Event{UserID: 1, Session: admission.SessionPrivate}
	require.True(t, e.Check("gacha", private).OK())
	require.False(t, e.Check("gacha", private).OK())

	_, limited := e.Remaining("other", private)
	require.False(t, limited)
}

func TestInvalidRule(t *testing.T) {
	e := NewEngine()
	require.True(t, errors.Is(e.AddRules("gacha", Rule{Limit: 0, Period: Day}), ErrInvalidRule))
	require.True(t, errors.Is(e.AddRules("gacha", Rule{Limit: 1, Period: Period(9)}), ErrInvalidRule))
	require.False(t, e.Has("gacha"))
}

func TestResetAcrossCapabilities(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddRules("a", Rule{Limit: 1, Period: Month}))
	require.NoError(t, e.AddRules("b", Rule{Limit: 1, Period: Month}, Rule{Limit: 1, Period: Year}))
	require.True(t, e.Check("a", gachaEvent(1)).OK())
	require.True(t, e.Check("b", gachaEvent(1)).OK())
	e.TakeDirty()

	e.Reset(Month)
	require.True(t, e.Check("a", gachaEvent(1)).OK())
	require.False(t, e.Check("b", gachaEvent(1)).OK()) // 年度限额仍然生效
	require.Equal(t, 1, e.checkers["b"][0].counters[1][Month])
}

func TestPersistence(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddRules("gacha", Rule{Limit: 2, Period: Day}))
	require.Empty(t, e.TakeDirty())
	require.True(t, e.Check("gacha", gachaEvent(1)).OK())
	require.True(t, e.Check("gacha", gachaEvent(1)).OK())
	blobs := e.TakeDirty()
	require.Len(t, blobs, 1)
	require.Empty(t, e.TakeDirty())

	restored := NewEngine()
	require.NoError(t, restored.AddRules("gacha", Rule{Limit: 2, Period: Day}))
	require.NoError(t, restored.Restore("gacha", blobs["gacha"]))
	require.False(t, restored.Check("gacha", gachaEvent(1)).OK())
	require.True(t, restored.Check("gacha", gachaEvent(2)).OK())

	require.Error(t, restored.Restore("gacha", []byte("[1,2")))
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]Period{"hour": Hour, "Day": Day, "周": Week, "月": Month, "year": Year} {
		got, err := ParsePeriod(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParsePeriod("decade")
	require.Error(t, err)
	require.Equal(t, "week", Week.String())
}
