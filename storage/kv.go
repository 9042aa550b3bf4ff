// Package storage 提供持久化底座：K-V数据库(goleveldb或redis)用于保存各类状态数据块，
// 关系型数据库(gorm)用于保存群、用户与插件开关记录
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("storage: key not found")

// KV 以字节块为值的K-V存储
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Scan 遍历所有以prefix开头的键，fn返回错误时停止遍历并返回该错误
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	Close() error
}

const (
	LevelDB = "leveldb"
	Redis   = "redis"
)

// KVConfig K-V数据库配置
type KVConfig struct {
	Type      string // leveldb 或 redis
	Path      string // leveldb 目录
	RedisAddr string
	RedisDB   int
	RedisPass string
	Prefix    string // redis 键前缀，用于多个实例共用同一redis
}

// OpenKV 按配置打开K-V数据库
func OpenKV(ctx context.Context, config KVConfig) (KV, error) {
	switch strings.ToLower(config.Type) {
	case "", LevelDB:
		return OpenLevelDB(config.Path)
	case Redis:
		return OpenRedis(ctx, config)
	}
	return nil, fmt.Errorf("storage: unsupported kv type %q", config.Type)
}
