// Package scheduler 负责临时权限：到期后自动将群/用户的权限等级恢复为授予前的等级。
//
// 所有到期操作只由唯一的等待协程(Run)执行；SetOverride 只修改堆与索引并唤醒等待协程。
package scheduler

import (
	"container/heap"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RicheyJang/PaimengGate/directory"
	"github.com/RicheyJang/PaimengGate/perm"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// MinWait 等待协程的最短等待间隔
const MinWait = 100 * time.Millisecond

var (
	ErrAlreadyRunning = errors.New("scheduler is already running")
	ErrUnknownKind    = errors.New("unknown subject kind")
)

// Kind 临时权限的对象类型
type Kind int

const (
	KindUser Kind = iota
	KindGroup
)

func (k Kind) String() string {
	if k == KindGroup {
		return "group"
	}
	return "user"
}

// ParseKind 解析对象类型
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return KindUser, nil
	case "group":
		return KindGroup, nil
	}
	return KindUser, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Override 一条待恢复的临时权限
type Override struct {
	Kind        Kind       `json:"kind"`
	SubjectID   int64      `json:"id"`
	Expiry      time.Time  `json:"expiry"`
	RevertLevel perm.Level `json:"revert"`
}

type key struct {
	kind Kind
	id   int64
}

type item struct {
	Override
	index int
}

func (it *item) key() key {
	return key{kind: it.Kind, id: it.SubjectID}
}

// Scheduler 临时权限调度器
type Scheduler struct {
	clock   clockwork.Clock
	holders map[Kind]directory.PermissionHolder
	wake    chan struct{}

	mu      sync.Mutex
	heap    overrideHeap
	index   map[key]*item
	dirty   bool
	running bool
}

// New 新建调度器
func New(clock clockwork.Clock, users, groups directory.PermissionHolder) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock: clock,
		holders: map[Kind]directory.PermissionHolder{
			KindUser:  users,
			KindGroup: groups,
		},
		wake:  make(chan struct{}, 1),
		index: make(map[key]*item),
	}
}

// SetOverride 设置权限等级；duration<=0 代表永久设置。
// 已存在未到期的临时权限时：永久设置会立即取消它，并先恢复其原等级作为新的基准；
// 再次临时授予只刷新到期时间，恢复等级保持为首次授予前的等级。
func (s *Scheduler) SetOverride(kind Kind, id int64, level perm.Level, duration time.Duration) error {
	holder, ok := s.holders[kind]
	if !ok || holder == nil {
		return fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	if !level.Valid() {
		return fmt.Errorf("invalid permission level %v", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{kind: kind, id: id}
	it, pending := s.index[k]
	switch {
	case duration <= 0:
		if pending {
			heap.Remove(&s.heap, it.index)
			delete(s.index, k)
			holder.SetPermission(id, it.RevertLevel)
			s.dirty = true
		}
		holder.SetPermission(id, level)
		log.Infof("永久设置%v(%v)权限等级为%v", kind, id, level)
	case pending:
		it.Expiry = s.clock.Now().Add(duration)
		heap.Fix(&s.heap, it.index)
		holder.SetPermission(id, level)
		s.dirty = true
		log.Infof("临时设置%v(%v)权限等级为%v，刷新到期时间为%v，届时恢复为%v",
			kind, id, level, it.Expiry.Format("2006-01-02 15:04:05"), it.RevertLevel)
	default:
		it = &item{Override: Override{
			Kind:        kind,
			SubjectID:   id,
			Expiry:      s.clock.Now().Add(duration),
			RevertLevel: holder.Permission(id),
		}}
		heap.Push(&s.heap, it)
		s.index[k] = it
		holder.SetPermission(id, level)
		s.dirty = true
		log.Infof("临时设置%v(%v)权限等级为%v，%v后恢复为%v", kind, id, level, duration, it.RevertLevel)
	}
	s.signal()
	return nil
}

// 唤醒等待协程，不阻塞
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run 等待协程：到期即恢复权限，直至ctx被取消；同一时刻只能运行一个
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		var timer clockwork.Timer
		var timeout <-chan time.Time

		s.mu.Lock()
		now := s.clock.Now()
		for len(s.heap) > 0 && !s.heap[0].Expiry.After(now) {
			it := heap.Pop(&s.heap).(*item)
			delete(s.index, it.key())
			s.holders[it.Kind].SetPermission(it.SubjectID, it.RevertLevel)
			s.dirty = true
			log.Infof("%v(%v)的临时权限到期，恢复为%v", it.Kind, it.SubjectID, it.RevertLevel)
		}
		if len(s.heap) > 0 {
			wait := s.heap[0].Expiry.Sub(now)
			if wait < MinWait {
				wait = MinWait
			}
			timer = s.clock.NewTimer(wait)
			timeout = timer.Chan()
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-s.wake:
		case <-timeout:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Pending 所有未到期的临时权限，按到期时间排序
func (s *Scheduler) Pending() []Override {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

func (s *Scheduler) pendingLocked() []Override {
	res := make([]Override, 0, len(s.heap))
	for _, it := range s.heap {
		res = append(res, it.Override)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Expiry.Before(res[j].Expiry) })
	return res
}

// Lookup 查询指定对象未到期的临时权限
func (s *Scheduler) Lookup(kind Kind, id int64) (Override, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.index[key{kind: kind, id: id}]
	if !ok {
		return Override{}, false
	}
	return it.Override, true
}

// ---- 持久化 ----

// TakeDirty 若有变更，返回编码后的全部未到期临时权限并清除标记
func (s *Scheduler) TakeDirty() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil, false
	}
	data, err := json.Marshal(s.pendingLocked())
	if err != nil {
		log.Errorf("编码临时权限失败：%v", err)
		return nil, false
	}
	s.dirty = false
	return data, true
}

// MarkDirty 保存失败后重新标记
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Restore 载入已保存的临时权限（不修改目录中的当前等级），已过期的会在等待协程运行后立即恢复
func (s *Scheduler) Restore(data []byte) error {
	var overrides []Override
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("decode overrides: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range overrides {
		if _, ok := s.holders[o.Kind]; !ok {
			log.Warnf("忽略未知类型的临时权限：%+v", o)
			continue
		}
		o.RevertLevel = perm.Clamp(int(o.RevertLevel))
		k := key{kind: o.Kind, id: o.SubjectID}
		if it, ok := s.index[k]; ok {
			it.Override = o
			heap.Fix(&s.heap, it.index)
			continue
		}
		it := &item{Override: o}
		heap.Push(&s.heap, it)
		s.index[k] = it
	}
	s.signal()
	return nil
}
