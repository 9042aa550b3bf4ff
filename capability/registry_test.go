package capability

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/RicheyJang/PaimengGate/perm"

	"github.com/stretchr/testify/require"
)

func newShop(t *testing.T, defaultStatus bool) *Registry {
	r := NewRegistry("plugin")
	require.NoError(t, r.Register(Descriptor{
		ID:              "shop",
		Name:            "商店",
		Aliases:         []string{"store"},
		GroupPermission: perm.Normal,
		DefaultStatus:   defaultStatus,
	}))
	return r
}

// 任意开关序列后：启用状态 == 默认状态 XOR 群在非默认集合中
func TestGroupToggleInvariant(t *testing.T) {
	for _, def := range []bool{true, false} {
		r := newShop(t, def)
		rnd := rand.New(rand.NewSource(1))
		expect := make(map[int64]bool)
		for i := 0; i < 500; i++ {
			g := int64(rnd.Intn(8))
			if rnd.Intn(2) == 0 {
				require.True(t, r.SetGroupEnabled("shop", g))
				expect[g] = true
			} else {
				require.True(t, r.SetGroupDisabled("shop", g))
				expect[g] = false
			}
			for gid := int64(0); gid < 8; gid++ {
				want, touched := expect[gid]
				if !touched {
					want = def
				}
				e := r.entries["shop"]
				_, in := e.nonDefault()[gid]
				require.Equal(t, def != in, r.IsEnabledForGroup("shop", gid, perm.Normal))
				require.Equal(t, want, r.IsEnabledForGroup("shop", gid, perm.Normal))
			}
		}
	}
}

func TestToggleIdempotent(t *testing.T) {
	r := newShop(t, true)
	require.True(t, r.SetGroupDisabled("shop", 1))
	before := r.Snapshot()
	require.True(t, r.SetGroupDisabled("shop", 1))
	require.Equal(t, before, r.Snapshot())
	require.False(t, r.IsEnabledForGroup("shop", 1, perm.Excellent))
}

func TestGlobalToggleRestoresGroups(t *testing.T) {
	r := newShop(t, true)
	r.SetGroupDisabled("shop", 1)
	r.SetGroupEnabled("shop", 2)
	before := r.Snapshot()

	require.True(t, r.GlobalDisable("shop"))
	require.False(t, r.GlobalDisable("shop"))
	require.False(t, r.IsEnabledForGroup("shop", 2, perm.Normal))
	require.False(t, r.IsEnabledForUser("shop", perm.Excellent))

	require.True(t, r.GlobalEnable("shop"))
	require.Equal(t, before, r.Snapshot())
	require.False(t, r.IsEnabledForGroup("shop", 1, perm.Normal))
	require.True(t, r.IsEnabledForGroup("shop", 2, perm.Normal))
}

func TestGroupPermissionGate(t *testing.T) {
	r := newShop(t, true)
	require.False(t, r.IsEnabledForGroup("shop", 7, perm.Bad))
	r.SetGroupEnabled("shop", 7)
	require.False(t, r.IsEnabledForGroup("shop", 7, perm.Bad))
	require.True(t, r.IsEnabledForGroup("shop", 7, perm.Normal))
}

func TestAlwaysOn(t *testing.T) {
	r := NewRegistry("plugin")
	require.NoError(t, r.Register(Descriptor{ID: "help", DefaultStatus: true, AlwaysOn: true}))
	require.False(t, r.SetGroupDisabled("help", 1))
	require.False(t, r.GlobalDisable("help"))
	require.True(t, r.IsEnabledForGroup("help", 1, perm.Normal))
	require.True(t, r.SetGroupEnabled("help", 1))
}

func TestRegisterConflictAndUnknown(t *testing.T) {
	r := newShop(t, true)
	err := r.Register(Descriptor{ID: "shop", DefaultStatus: false})
	require.True(t, errors.Is(err, ErrRegistrationConflict))
	d, ok := r.Get("shop")
	require.True(t, ok)
	require.True(t, d.DefaultStatus)

	err = r.RegisterAll(
		Descriptor{ID: ""},
		Descriptor{ID: "gacha", DefaultStatus: true},
		Descriptor{ID: "shop"},
	)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidDescriptor))
	require.True(t, errors.Is(err, ErrRegistrationConflict))
	_, ok = r.Get("gacha")
	require.True(t, ok)

	require.True(t, r.IsEnabledForGroup("unknown", 1, perm.Black))
	require.True(t, r.IsEnabledForUser("unknown", perm.Black))
	require.False(t, r.SetGroupEnabled("unknown", 1))
}

func TestLookup(t *testing.T) {
	r := newShop(t, true)
	for _, name := range []string{"shop", "商店", "store"} {
		d, ok := r.Lookup(name)
		require.True(t, ok, name)
		require.Equal(t, "shop", d.ID)
	}
	_, ok := r.Lookup("bank")
	require.False(t, ok)
}

func TestDirtyAndRestore(t *testing.T) {
	r := newShop(t, false)
	require.Empty(t, r.TakeDirty())
	r.SetGroupEnabled("shop", 3)
	r.GlobalDisable("shop")
	states := r.TakeDirty()
	require.Len(t, states, 1)
	require.Equal(t, State{ID: "shop", GlobalEnabled: false, EnabledGroups: []int64{3}, DisabledGroups: []int64{}}, states[0])
	require.Empty(t, r.TakeDirty())
	r.MarkDirty("shop")
	require.Len(t, r.TakeDirty(), 1)

	// 先读取状态后注册
	fresh := NewRegistry("plugin")
	fresh.Restore(states)
	require.NoError(t, fresh.Register(Descriptor{ID: "shop", GroupPermission: perm.Normal}))
	g, _ := fresh.GlobalStatus("shop")
	require.False(t, g)
	fresh.GlobalEnable("shop")
	require.True(t, fresh.IsEnabledForGroup("shop", 3, perm.Normal))
	require.False(t, fresh.IsEnabledForGroup("shop", 4, perm.Normal))
}

func TestSetRequiredPermission(t *testing.T) {
	r := newShop(t, true)
	require.True(t, r.SetRequiredPermission("shop", perm.Good, perm.Bad))
	require.False(t, r.IsEnabledForGroup("shop", 1, perm.Normal))
	require.True(t, r.IsEnabledForUser("shop", perm.Bad))
	require.False(t, r.SetRequiredPermission("shop", perm.Level(9), perm.Bad))
}

func TestUnsetPermissionRejectsBlack(t *testing.T) {
	r := NewRegistry("plugin")
	require.NoError(t, r.Register(Descriptor{ID: "draw", DefaultStatus: true}))
	d, _ := r.Get("draw")
	require.Equal(t, perm.Bad, d.GroupPermission)
	require.Equal(t, perm.Bad, d.UserPermission)
	require.False(t, r.IsEnabledForGroup("draw", 1, perm.Black))
	require.False(t, r.IsEnabledForUser("draw", perm.Black))
	require.True(t, r.IsEnabledForUser("draw", perm.Bad))

	require.True(t, r.SetRequiredPermission("draw", perm.Black, perm.Black))
	require.False(t, r.IsEnabledForUser("draw", perm.Black))
}
