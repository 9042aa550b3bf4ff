package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type redisKV struct {
	client *redis.Client
	prefix string
}

// OpenRedis 连接redis并确认可用
func OpenRedis(ctx context.Context, config KVConfig) (KV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPass,
		DB:       config.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping: %w", err)
	}
	log.Infof("初始化K-V数据库成功：redis(%v)", config.RedisAddr)
	return NewRedisKV(client, config.Prefix), nil
}

// NewRedisKV 包装已有的redis客户端
func NewRedisKV(client *redis.Client, prefix string) KV {
	return &redisKV{client: client, prefix: prefix}
}

func (r *redisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *redisKV) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *redisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *redisKV) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	pattern := escapeGlob(r.prefix+prefix) + "*"
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		value, err := r.client.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) { // 遍历期间被删除
			continue
		}
		if err != nil {
			return err
		}
		if err = fn(strings.TrimPrefix(full, r.prefix), value); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *redisKV) Close() error {
	return r.client.Close()
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// 转义MATCH模式中的通配符
func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
