package dao

import (
	"path/filepath"
	"testing"

	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/directory"
	"github.com/RicheyJang/PaimengGate/perm"
	"github.com/RicheyJang/PaimengGate/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	db, err := storage.OpenDB(storage.DBConfig{Type: storage.SQLite, Name: filepath.Join(t.TempDir(), "gate.db")})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestGroupsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, SaveGroups(db, []directory.GroupRecord{
		{ID: 1, Permission: perm.Good, BotEnabled: true},
		{ID: 2, Permission: perm.Black, BotEnabled: false},
	}))
	// 更新已有记录
	require.NoError(t, SaveGroups(db, []directory.GroupRecord{{ID: 1, Permission: perm.Bad, BotEnabled: false}}))
	require.NoError(t, SaveGroups(db, nil))

	got, err := LoadGroups(db)
	require.NoError(t, err)
	require.ElementsMatch(t, []directory.GroupRecord{
		{ID: 1, Permission: perm.Bad, BotEnabled: false},
		{ID: 2, Permission: perm.Black, BotEnabled: false},
	}, got)
}

func TestUsersClampInvalidLevel(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, SaveUsers(db, []directory.UserRecord{{ID: 7, Permission: perm.Excellent}}))
	require.NoError(t, db.Create(&UserSetting{ID: 8, Permission: 99}).Error)

	got, err := LoadUsers(db)
	require.NoError(t, err)
	require.ElementsMatch(t, []directory.UserRecord{
		{ID: 7, Permission: perm.Excellent},
		{ID: 8, Permission: perm.Clamp(99)},
	}, got)
}

func TestCapabilityStatesByKind(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, SaveCapabilityStates(db, "plugin", []capability.State{
		{ID: "shop", GlobalEnabled: true, EnabledGroups: []int64{10, 20}},
		{ID: "draw", GlobalEnabled: false, DisabledGroups: []int64{30}},
	}))
	require.NoError(t, SaveCapabilityStates(db, "task", []capability.State{{ID: "shop", GlobalEnabled: true}}))
	require.NoError(t, SaveCapabilityStates(db, "plugin", []capability.State{
		{ID: "shop", GlobalEnabled: true, EnabledGroups: []int64{20}},
	}))

	plugins, err := LoadCapabilityStates(db, "plugin")
	require.NoError(t, err)
	require.ElementsMatch(t, []capability.State{
		{ID: "shop", GlobalEnabled: true, EnabledGroups: []int64{20}},
		{ID: "draw", GlobalEnabled: false, DisabledGroups: []int64{30}},
	}, plugins)

	tasks, err := LoadCapabilityStates(db, "task")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Empty(t, tasks[0].EnabledGroups)
}
