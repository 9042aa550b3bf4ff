package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	levelstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

func memLevelKV(t *testing.T) KV {
	db, err := leveldb.Open(levelstorage.NewMemStorage(), nil)
	require.NoError(t, err)
	kv := NewLevelKV(db)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func miniRedisKV(t *testing.T) KV {
	mr := miniredis.RunT(t)
	kv := NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "gate:")
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestKVBackends(t *testing.T) {
	backends := map[string]func(*testing.T) KV{
		"leveldb": memLevelKV,
		"redis":   miniRedisKV,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := open(t)

			_, err := kv.Get(ctx, "cooldown.draw")
			require.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, kv.Put(ctx, "cooldown.draw", []byte(`{"checkers":[]}`)))
			require.NoError(t, kv.Put(ctx, "cooldown.shop", []byte("a")))
			require.NoError(t, kv.Put(ctx, "quota.gacha", []byte("b")))

			v, err := kv.Get(ctx, "cooldown.draw")
			require.NoError(t, err)
			require.Equal(t, `{"checkers":[]}`, string(v))

			var keys []string
			require.NoError(t, kv.Scan(ctx, "cooldown.", func(key string, value []byte) error {
				keys = append(keys, key)
				return nil
			}))
			sort.Strings(keys)
			require.Equal(t, []string{"cooldown.draw", "cooldown.shop"}, keys)

			stop := errors.New("stop")
			require.True(t, errors.Is(kv.Scan(ctx, "", func(string, []byte) error { return stop }), stop))

			require.NoError(t, kv.Delete(ctx, "cooldown.draw"))
			_, err = kv.Get(ctx, "cooldown.draw")
			require.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestKVScanLiteralPrefix(t *testing.T) {
	for name, open := range map[string]func(*testing.T) KV{"leveldb": memLevelKV, "redis": miniRedisKV} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := open(t)
			for _, k := range []string{"quota.a*b", "quota.axb", "quota.[g]1", "quota.g1", `quota.\x`} {
				require.NoError(t, kv.Put(ctx, k, []byte("v")))
			}
			scan := func(prefix string) []string {
				var keys []string
				require.NoError(t, kv.Scan(ctx, prefix, func(key string, _ []byte) error {
					keys = append(keys, key)
					return nil
				}))
				sort.Strings(keys)
				return keys
			}
			require.Equal(t, []string{"quota.a*b"}, scan("quota.a*"))
			require.Equal(t, []string{"quota.[g]1"}, scan("quota.[g]"))
			require.Empty(t, scan("quota.?"))
			require.Equal(t, []string{`quota.\x`}, scan(`quota.\`))
		})
	}
}

func TestEscapeGlob(t *testing.T) {
	require.Equal(t, `gate:quota.a\*b\?\[c\]\\`, escapeGlob(`gate:quota.a*b?[c]\`))
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()
	kv, err := OpenKV(ctx, KVConfig{Type: "LevelDB", Path: filepath.Join(t.TempDir(), "leveldb")})
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, "k", []byte("v")))
	require.NoError(t, kv.Close())

	mr := miniredis.RunT(t)
	kv, err = OpenKV(ctx, KVConfig{Type: Redis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	_, err = OpenKV(ctx, KVConfig{Type: "etcd"})
	require.Error(t, err)
}

func TestOpenDB(t *testing.T) {
	db, err := OpenDB(DBConfig{Type: SQLite, Name: filepath.Join(t.TempDir(), "data", "gate.db")})
	require.NoError(t, err)
	require.NotNil(t, db)

	_, err = OpenDB(DBConfig{Type: "oracle"})
	require.Error(t, err)
}
