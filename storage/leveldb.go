package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/RicheyJang/PaimengGate/utils"

	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	levelopt "github.com/syndtr/goleveldb/leveldb/opt"
	levelutil "github.com/syndtr/goleveldb/leveldb/util"
)

type levelKV struct {
	db *leveldb.DB
}

// OpenLevelDB 打开(或创建)指定目录下的goleveldb
func OpenLevelDB(path string) (KV, error) {
	if _, err := utils.MakeDirWithMode(path, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create leveldb dir: %w", err)
	}
	db, err := leveldb.OpenFile(path, &levelopt.Options{
		WriteBuffer: 128 * levelopt.KiB,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb: %w", err)
	}
	log.Infof("初始化K-V数据库成功：goleveldb(%v)", path)
	return &levelKV{db: db}, nil
}

// NewLevelKV 包装已打开的goleveldb
func NewLevelKV(db *leveldb.DB) KV {
	return &levelKV{db: db}
}

func (l *levelKV) Get(_ context.Context, key string) ([]byte, error) {
	v, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (l *levelKV) Put(_ context.Context, key string, value []byte) error {
	return l.db.Put([]byte(key), value, nil)
}

func (l *levelKV) Delete(_ context.Context, key string) error {
	return l.db.Delete([]byte(key), nil)
}

func (l *levelKV) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	iter := l.db.NewIterator(levelutil.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		// 迭代器复用缓冲区，需拷贝
		value := append([]byte(nil), iter.Value()...)
		if err := fn(string(iter.Key()), value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (l *levelKV) Close() error {
	return l.db.Close()
}
