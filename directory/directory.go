// Package directory 维护群与用户的权限等级、机器人开关，
// 并组合插件/任务注册表回答“某群/某用户能否调用某功能”
package directory

import (
	"sort"
	"sync"

	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/perm"
)

// GroupRecord 群记录
type GroupRecord struct {
	ID         int64
	Permission perm.Level
	BotEnabled bool
}

// UserRecord 用户记录
type UserRecord struct {
	ID         int64
	Permission perm.Level
}

// PermissionHolder 可被临时权限调度器读写权限等级的目录
type PermissionHolder interface {
	Permission(id int64) perm.Level
	SetPermission(id int64, level perm.Level)
}

// GroupDirectory 群目录
type GroupDirectory struct {
	plugins *capability.Registry
	tasks   *capability.Registry

	mu      sync.RWMutex
	records map[int64]*GroupRecord
	dirty   map[int64]struct{}
}

// NewGroupDirectory 新建群目录
func NewGroupDirectory(plugins, tasks *capability.Registry) *GroupDirectory {
	return &GroupDirectory{
		plugins: plugins,
		tasks:   tasks,
		records: make(map[int64]*GroupRecord),
		dirty:   make(map[int64]struct{}),
	}
}

// 首次出现的群以默认值创建，调用方需持有写锁
func (d *GroupDirectory) materialize(id int64) *GroupRecord {
	rec, ok := d.records[id]
	if !ok {
		rec = &GroupRecord{ID: id, Permission: perm.Normal, BotEnabled: true}
		d.records[id] = rec
	}
	return rec
}

// Get 获取群记录（副本）
func (d *GroupDirectory) Get(id int64) GroupRecord {
	d.mu.RLock()
	rec, ok := d.records[id]
	if ok {
		res := *rec
		d.mu.RUnlock()
		return res
	}
	d.mu.RUnlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.materialize(id)
}

// Permission 群权限等级
func (d *GroupDirectory) Permission(id int64) perm.Level {
	return d.Get(id).Permission
}

// SetPermission 设置群权限等级
func (d *GroupDirectory) SetPermission(id int64, level perm.Level) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := d.materialize(id)
	rec.Permission = level
	d.dirty[id] = struct{}{}
}

// BotEnabled 机器人在该群是否启用
func (d *GroupDirectory) BotEnabled(id int64) bool {
	return d.Get(id).BotEnabled
}

// EnableBot 在群内启用机器人，状态未改变时返回false
func (d *GroupDirectory) EnableBot(id int64) bool {
	return d.setBot(id, true)
}

// DisableBot 在群内停用机器人，状态未改变时返回false
func (d *GroupDirectory) DisableBot(id int64) bool {
	return d.setBot(id, false)
}

func (d *GroupDirectory) setBot(id int64, status bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := d.materialize(id)
	if rec.BotEnabled == status {
		return false
	}
	rec.BotEnabled = status
	d.dirty[id] = struct{}{}
	return true
}

// CheckPluginAllowed 该群能否调用指定插件
func (d *GroupDirectory) CheckPluginAllowed(groupID int64, id string) bool {
	rec := d.Get(groupID)
	return rec.BotEnabled && d.plugins.IsEnabledForGroup(id, groupID, rec.Permission)
}

// CheckTaskAllowed 该群能否执行指定任务
func (d *GroupDirectory) CheckTaskAllowed(groupID int64, id string) bool {
	rec := d.Get(groupID)
	return rec.BotEnabled && d.tasks.IsEnabledForGroup(id, groupID, rec.Permission)
}

// Load 载入持久化记录
func (d *GroupDirectory) Load(records []GroupRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range records {
		r := r
		r.Permission = perm.Clamp(int(r.Permission))
		d.records[r.ID] = &r
	}
}

// TakeDirty 取出变更过的记录并清除标记
func (d *GroupDirectory) TakeDirty() []GroupRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]GroupRecord, 0, len(d.dirty))
	for id := range d.dirty {
		if rec, ok := d.records[id]; ok {
			res = append(res, *rec)
		}
	}
	d.dirty = make(map[int64]struct{})
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// MarkDirty 保存失败后重新标记
func (d *GroupDirectory) MarkDirty(ids ...int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.dirty[id] = struct{}{}
	}
}

// UserDirectory 用户目录，用户没有机器人开关
type UserDirectory struct {
	plugins *capability.Registry
	tasks   *capability.Registry

	mu      sync.RWMutex
	records map[int64]*UserRecord
	dirty   map[int64]struct{}
}

// NewUserDirectory 新建用户目录
func NewUserDirectory(plugins, tasks *capability.Registry) *UserDirectory {
	return &UserDirectory{
		plugins: plugins,
		tasks:   tasks,
		records: make(map[int64]*UserRecord),
		dirty:   make(map[int64]struct{}),
	}
}

func (d *UserDirectory) materialize(id int64) *UserRecord {
	rec, ok := d.records[id]
	if !ok {
		rec = &UserRecord{ID: id, Permission: perm.Normal}
		d.records[id] = rec
	}
	return rec
}

// Get 获取用户记录（副本）
func (d *UserDirectory) Get(id int64) UserRecord {
	d.mu.RLock()
	rec, ok := d.records[id]
	if ok {
		res := *rec
		d.mu.RUnlock()
		return res
	}
	d.mu.RUnlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.materialize(id)
}

// Permission 用户权限等级
func (d *UserDirectory) Permission(id int64) perm.Level {
	return d.Get(id).Permission
}

// SetPermission 设置用户权限等级
func (d *UserDirectory) SetPermission(id int64, level perm.Level) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.materialize(id).Permission = level
	d.dirty[id] = struct{}{}
}

// CheckPluginAllowed 该用户能否调用指定插件
func (d *UserDirectory) CheckPluginAllowed(userID int64, id string) bool {
	return d.plugins.IsEnabledForUser(id, d.Permission(userID))
}

// CheckTaskAllowed 该用户能否触发指定任务
func (d *UserDirectory) CheckTaskAllowed(userID int64, id string) bool {
	return d.tasks.IsEnabledForUser(id, d.Permission(userID))
}

// Load 载入持久化记录
func (d *UserDirectory) Load(records []UserRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range records {
		r := r
		r.Permission = perm.Clamp(int(r.Permission))
		d.records[r.ID] = &r
	}
}

// TakeDirty 取出变更过的记录并清除标记
func (d *UserDirectory) TakeDirty() []UserRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]UserRecord, 0, len(d.dirty))
	for id := range d.dirty {
		if rec, ok := d.records[id]; ok {
			res = append(res, *rec)
		}
	}
	d.dirty = make(map[int64]struct{})
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// MarkDirty 保存失败后重新标记
func (d *UserDirectory) MarkDirty(ids ...int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.dirty[id] = struct{}{}
	}
}
