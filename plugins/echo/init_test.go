package echo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/RicheyJang/PaimengGate/admission"
	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/storage"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	levelstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/tidwall/gjson"
)

func setup(t *testing.T) (*manager.Manager, clockwork.FakeClock) {
	db, err := storage.OpenDB(storage.DBConfig{Type: storage.SQLite, Name: filepath.Join(t.TempDir(), "gate.db")})
	require.NoError(t, err)
	ldb, err := leveldb.Open(levelstorage.NewMemStorage(), nil)
	require.NoError(t, err)
	kv := storage.NewLevelKV(ldb)
	t.Cleanup(func() { _ = kv.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2022, 6, 1, 12, 0, 0, 0, time.Local))
	m := manager.New(manager.Config{Clock: clock}, db, kv)
	require.NoError(t, Setup(m))
	require.NoError(t, m.Init(context.Background()))
	return m, clock
}

func TestEchoAdmission(t *testing.T) {
	m, clock := setup(t)
	ev := func(user, group int64) admission.Event {
		e := admission.Event{Capability: "echo", UserID: user, GroupID: group, Session: admission.SessionPrivate, Time: clock.Now()}
		if group != 0 {
			e.Session = admission.SessionGroup
		}
		return e
	}

	assert.True(t, m.Admit(ev(1, 100)).OK())
	clock.Advance(time.Second)
	res := m.Admit(ev(2, 100))
	assert.False(t, res.OK())
	assert.Contains(t, res.Hint(), "复读太快啦")
	// 私聊不受群CD限制
	assert.True(t, m.Admit(ev(2, 0)).OK())

	clock.Advance(5 * time.Second)
	assert.True(t, m.Admit(ev(2, 100)).OK())
}

func TestGreetTargets(t *testing.T) {
	m, _ := setup(t)
	_, changed := m.SetGroupPluginEnabled(100, "早安问候")
	require.True(t, changed)
	m.DisableBot(300)

	list := gjson.Parse(`[{"group_id":100},{"group_id":200},{"group_id":300}]`)
	assert.Equal(t, []int64{100}, greetTargets(list, greetProxy.AllowedInGroup))

	_, changed = m.SetGroupPluginEnabled(300, "echo_greet")
	require.True(t, changed)
	assert.Equal(t, []int64{100}, greetTargets(list, greetProxy.AllowedInGroup))
	m.EnableBot(300)
	assert.Equal(t, []int64{100, 300}, greetTargets(list, greetProxy.AllowedInGroup))
}
