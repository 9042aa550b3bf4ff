package PaimengGate

import (
	"testing"
	"time"

	"github.com/RicheyJang/PaimengGate/storage"
	"github.com/RicheyJang/PaimengGate/utils/consts"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestManagerConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	c := managerConfigFrom(v)
	assert.Equal(t, storage.SQLite, c.DB.Type)
	assert.Equal(t, consts.DefaultSQLitePath, c.DB.Name)
	assert.Equal(t, storage.LevelDB, c.KV.Type)
	assert.Equal(t, consts.DefaultLevelDBDir, c.KV.Path)
	assert.Equal(t, "@every 5m", c.SaveSpec)
	assert.Equal(t, 350*time.Millisecond, c.GlobalCD)
	assert.Equal(t, 1, c.GlobalBurst)
}

func TestManagerConfigOverride(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("kv.type", storage.Redis)
	v.Set("kv.redis.addr", "10.0.0.1:6379")
	v.Set("limiter.cd", "1s")
	c := managerConfigFrom(v)
	assert.Equal(t, storage.Redis, c.KV.Type)
	assert.Equal(t, "10.0.0.1:6379", c.KV.RedisAddr)
	assert.Equal(t, "gate:", c.KV.Prefix)
	assert.Equal(t, time.Second, c.GlobalCD)
}

func TestMainConfigHooks(t *testing.T) {
	called := 0
	OnMainConfigChange(func() { called++ }, func() { called += 10 })
	callMainConfigHooks()
	assert.Equal(t, 11, called)
}
