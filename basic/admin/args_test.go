package admin

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/perm"
	"github.com/RicheyJang/PaimengGate/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	levelstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/tidwall/gjson"
)

func TestParseDurationWithDay(t *testing.T) {
	cases := map[string]time.Duration{
		"1d":     24 * time.Hour,
		"1d12h":  36 * time.Hour,
		"10d":    240 * time.Hour,
		"30m":    30 * time.Minute,
		"2h30m":  150 * time.Minute,
		"1d1h1m": 25*time.Hour + time.Minute,
	}
	for in, want := range cases {
		got, err := parseDurationWithDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "d", "0d", "abc", "1dx"} {
		_, err := parseDurationWithDay(in)
		assert.Error(t, err, in)
	}
}

func TestParseSwitchArgs(t *testing.T) {
	name, group, err := parseSwitchArgs("draw", 100)
	require.NoError(t, err)
	assert.Equal(t, "draw", name)
	assert.Equal(t, int64(100), group)

	name, group, err = parseSwitchArgs(" 抽卡  200 ", 0)
	require.NoError(t, err)
	assert.Equal(t, "抽卡", name)
	assert.Equal(t, int64(200), group)

	_, _, err = parseSwitchArgs("draw", 0)
	assert.ErrorIs(t, err, errNotEnoughArgs)
	_, _, err = parseSwitchArgs("draw abc", 100)
	assert.ErrorIs(t, err, errBadID)
	_, _, err = parseSwitchArgs("", 100)
	assert.ErrorIs(t, err, errNotEnoughArgs)
}

func TestParseGroupArg(t *testing.T) {
	id, err := parseGroupArg("", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), id)
	id, err = parseGroupArg("300", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(300), id)
	_, err = parseGroupArg("", 0)
	assert.ErrorIs(t, err, errNotEnoughArgs)
	_, err = parseGroupArg("x", 0)
	assert.ErrorIs(t, err, errBadID)
}

func TestParsePermissionArgs(t *testing.T) {
	id, level, d, err := parsePermissionArgs("123 优秀 1d12h")
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)
	assert.Equal(t, perm.Excellent, level)
	assert.Equal(t, 36*time.Hour, d)

	_, level, d, err = parsePermissionArgs("123 0")
	require.NoError(t, err)
	assert.Equal(t, perm.Black, level)
	assert.Zero(t, d)

	_, _, d, err = parsePermissionArgs("123 normal 0")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, _, _, err = parsePermissionArgs("123")
	assert.ErrorIs(t, err, errNotEnoughArgs)
	_, _, _, err = parsePermissionArgs("abc good")
	assert.ErrorIs(t, err, errBadID)
	_, _, _, err = parsePermissionArgs("123 good soon")
	assert.ErrorIs(t, err, errBadDuration)
	_, _, _, err = parsePermissionArgs("123 superb")
	assert.Error(t, err)
}

func TestIsGroupAdmin(t *testing.T) {
	assert.True(t, isGroupAdmin(gjson.Parse(`{"user_id":1,"role":"owner"}`)))
	assert.True(t, isGroupAdmin(gjson.Parse(`{"user_id":1,"role":"admin"}`)))
	assert.False(t, isGroupAdmin(gjson.Parse(`{"user_id":1,"role":"member"}`)))
	assert.False(t, isGroupAdmin(gjson.Parse(`{}`)))
}

func TestParseGroupList(t *testing.T) {
	ids, names := parseGroupList(gjson.Parse(`[
		{"group_id":100,"group_name":"甲"},
		{"group_id":0,"group_name":"无效"},
		{"group_id":200,"group_name":"乙"}
	]`))
	assert.Equal(t, []int64{100, 200}, ids)
	assert.Equal(t, "乙", names[200])
	assert.Len(t, names, 2)
}

func TestSetupAndGroupList(t *testing.T) {
	db, err := storage.OpenDB(storage.DBConfig{Type: storage.SQLite, Name: filepath.Join(t.TempDir(), "gate.db")})
	require.NoError(t, err)
	ldb, err := leveldb.Open(levelstorage.NewMemStorage(), nil)
	require.NoError(t, err)
	kv := storage.NewLevelKV(ldb)
	defer kv.Close()

	m := manager.New(manager.Config{}, db, kv)
	require.NoError(t, Setup(m))
	desc, ok := m.Plugins().Get("admin")
	require.True(t, ok)
	assert.True(t, desc.AlwaysOn)
	msg, changed := m.SetGroupPluginDisabled(100, "准入管理")
	assert.False(t, changed)
	assert.Equal(t, "准入管理(admin)无法被关闭", msg)

	m.Groups().SetPermission(200, perm.Good)
	m.DisableBot(200)
	ids, names := parseGroupList(gjson.Parse(`[{"group_id":100,"group_name":"甲"},{"group_id":200,"group_name":"乙"}]`))
	assert.Equal(t, "群列表：\n甲(100)：normal，机器人开启\n乙(200)：good，机器人关闭", formatGroupList(m, ids, names))
}
