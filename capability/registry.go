package capability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/RicheyJang/PaimengGate/perm"

	log "github.com/sirupsen/logrus"
)

var (
	ErrRegistrationConflict = errors.New("capability already registered")
	ErrInvalidDescriptor    = errors.New("invalid capability descriptor")
)

// Descriptor 插件/任务的静态声明，由插件在启动时一次性提供
type Descriptor struct {
	ID              string     // Need 唯一ID
	Name            string     // Option 展示名称，可用于管理命令中查找
	Usage           string     // Option 用法描述
	Aliases         []string   // Option 别名
	GroupPermission perm.Level // Option 群需要达到的最低权限等级，未设置时为Bad
	UserPermission  perm.Level // Option 用户需要达到的最低权限等级，未设置时为Bad
	DefaultStatus   bool       // 未被单独设置的群中是否默认启用
	AlwaysOn        bool       // 是否拒绝一切关闭操作
}

// State 可持久化的开关状态
type State struct {
	ID             string
	GlobalEnabled  bool
	EnabledGroups  []int64 // 被单独开启的群
	DisabledGroups []int64 // 被单独关闭的群
}

type entry struct {
	desc          Descriptor
	globalEnabled bool
	enabled       map[int64]struct{}
	disabled      map[int64]struct{}
}

// 与默认状态不同的群集合：默认启用时为被关闭的群，反之为被开启的群
func (e *entry) nonDefault() map[int64]struct{} {
	if e.desc.DefaultStatus {
		return e.disabled
	}
	return e.enabled
}

func (e *entry) groupEnabled(groupID int64) bool {
	_, in := e.nonDefault()[groupID]
	return e.desc.DefaultStatus != in
}

func (e *entry) state() State {
	return State{
		ID:             e.desc.ID,
		GlobalEnabled:  e.globalEnabled,
		EnabledGroups:  sortedIDs(e.enabled),
		DisabledGroups: sortedIDs(e.disabled),
	}
}

func (e *entry) apply(s State) {
	e.globalEnabled = s.GlobalEnabled
	e.enabled = make(map[int64]struct{}, len(s.EnabledGroups))
	e.disabled = make(map[int64]struct{}, len(s.DisabledGroups))
	for _, id := range s.EnabledGroups {
		e.enabled[id] = struct{}{}
	}
	for _, id := range s.DisabledGroups {
		delete(e.enabled, id) // 同时出现时以关闭为准
		e.disabled[id] = struct{}{}
	}
}

// Registry 插件或任务的开关注册表
type Registry struct {
	kind string

	mu      sync.RWMutex
	entries map[string]*entry
	names   map[string]string // 别名/名称 -> ID
	order   []string
	pending map[string]State // 已读取但尚未注册的状态
	dirty   map[string]struct{}
}

// NewRegistry 新建注册表，kind 仅用于日志
func NewRegistry(kind string) *Registry {
	return &Registry{
		kind:    kind,
		entries: make(map[string]*entry),
		names:   make(map[string]string),
		pending: make(map[string]State),
		dirty:   make(map[string]struct{}),
	}
}

// Kind 注册表种类
func (r *Registry) Kind() string {
	return r.kind
}

// Register 注册一个插件/任务；同一ID以首次注册为准
func (r *Registry) Register(desc Descriptor) error {
	desc.ID = strings.TrimSpace(desc.ID)
	if len(desc.ID) == 0 {
		log.Errorf("%s注册失败：没有设置ID (name=%v)", r.kind, desc.Name)
		return ErrInvalidDescriptor
	}
	if !desc.GroupPermission.Valid() || !desc.UserPermission.Valid() {
		log.Errorf("%s<%s>注册失败：权限等级不合法", r.kind, desc.ID)
		return fmt.Errorf("%w: %s permission out of range", ErrInvalidDescriptor, desc.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[desc.ID]; ok {
		log.Errorf("%s注册失败：已存在同ID的%s<%s>", r.kind, r.kind, desc.ID)
		return fmt.Errorf("%w: %s", ErrRegistrationConflict, desc.ID)
	}
	desc.Aliases = append([]string(nil), desc.Aliases...)
	desc.GroupPermission = perm.Required(desc.GroupPermission)
	desc.UserPermission = perm.Required(desc.UserPermission)
	e := &entry{
		desc:          desc,
		globalEnabled: true,
		enabled:       make(map[int64]struct{}),
		disabled:      make(map[int64]struct{}),
	}
	if s, ok := r.pending[desc.ID]; ok {
		e.apply(s)
		delete(r.pending, desc.ID)
	}
	r.entries[desc.ID] = e
	r.order = append(r.order, desc.ID)
	for _, name := range append([]string{desc.Name}, desc.Aliases...) {
		if len(name) == 0 {
			continue
		}
		if _, ok := r.names[name]; ok {
			log.Warnf("%s<%s>的别名%q已被占用，忽略", r.kind, desc.ID, name)
			continue
		}
		r.names[name] = desc.ID
	}
	log.Infof("成功注册%s：%s", r.kind, desc.ID)
	return nil
}

// RegisterAll 批量注册，单个失败不影响其它
func (r *Registry) RegisterAll(descs ...Descriptor) error {
	var errs []error
	for _, desc := range descs {
		if err := r.Register(desc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get 获取声明
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Lookup 通过ID、名称或别名查找
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	name = strings.TrimSpace(name)
	if d, ok := r.Get(name); ok {
		return d, true
	}
	r.mu.RLock()
	id, ok := r.names[name]
	r.mu.RUnlock()
	if !ok {
		return Descriptor{}, false
	}
	return r.Get(id)
}

// All 按注册顺序返回全部声明
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.entries[id].desc)
	}
	return res
}

// IsEnabledForGroup 指定群能否使用；未注册的ID一律放行
func (r *Registry) IsEnabledForGroup(id string, groupID int64, groupPerm perm.Level) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return true
	}
	return e.globalEnabled && groupPerm.AtLeast(e.desc.GroupPermission) && e.groupEnabled(groupID)
}

// IsEnabledForUser 指定用户能否使用；未注册的ID一律放行
func (r *Registry) IsEnabledForUser(id string, userPerm perm.Level) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return true
	}
	return e.globalEnabled && userPerm.AtLeast(e.desc.UserPermission)
}

// GroupStatus 群内单独的开关状态（不考虑全局开关与权限）
func (r *Registry) GroupStatus(id string, groupID int64) (enabled bool, known bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return true, false
	}
	return e.groupEnabled(groupID), true
}

// GlobalStatus 全局开关状态
func (r *Registry) GlobalStatus(id string) (enabled bool, known bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return true, false
	}
	return e.globalEnabled, true
}

// SetGroupEnabled 在指定群中开启
func (r *Registry) SetGroupEnabled(id string, groupID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	_, inD := e.disabled[groupID]
	_, inE := e.enabled[groupID]
	if !inD && inE {
		return true
	}
	delete(e.disabled, groupID)
	e.enabled[groupID] = struct{}{}
	r.dirty[id] = struct{}{}
	return true
}

// SetGroupDisabled 在指定群中关闭，AlwaysOn的插件会拒绝
func (r *Registry) SetGroupDisabled(id string, groupID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.desc.AlwaysOn {
		return false
	}
	_, inD := e.disabled[groupID]
	_, inE := e.enabled[groupID]
	if inD && !inE {
		return true
	}
	delete(e.enabled, groupID)
	e.disabled[groupID] = struct{}{}
	r.dirty[id] = struct{}{}
	return true
}

// GlobalEnable 全局开启，各群的单独设置保持不变；返回状态是否发生变化
func (r *Registry) GlobalEnable(id string) bool {
	return r.setGlobal(id, true)
}

// GlobalDisable 全局关闭；返回状态是否发生变化
func (r *Registry) GlobalDisable(id string) bool {
	return r.setGlobal(id, false)
}

func (r *Registry) setGlobal(id string, status bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.globalEnabled == status {
		return false
	}
	if !status && e.desc.AlwaysOn {
		return false
	}
	e.globalEnabled = status
	r.dirty[id] = struct{}{}
	log.Infof("%s<%s>全局状态：%v", r.kind, id, status)
	return true
}

// SetRequiredPermission 重设最低权限等级（来自配置文件），不参与持久化；低于Bad的等级按Bad处理
func (r *Registry) SetRequiredPermission(id string, group, user perm.Level) bool {
	if !group.Valid() || !user.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.desc.GroupPermission = perm.Required(group)
	e.desc.UserPermission = perm.Required(user)
	return true
}

// ---- 持久化 ----

// Restore 载入已持久化的状态；尚未注册的ID会在注册时生效
func (r *Registry) Restore(states []State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range states {
		if e, ok := r.entries[s.ID]; ok {
			e.apply(s)
			continue
		}
		r.pending[s.ID] = s
	}
}

// TakeDirty 取出所有变更过的状态并清除变更标记，保存失败时应调用 MarkDirty
func (r *Registry) TakeDirty() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]State, 0, len(r.dirty))
	for id := range r.dirty {
		if e, ok := r.entries[id]; ok {
			res = append(res, e.state())
		}
	}
	r.dirty = make(map[string]struct{})
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// MarkDirty 重新标记为待保存
func (r *Registry) MarkDirty(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.dirty[id] = struct{}{}
	}
}

// Snapshot 全部状态
func (r *Registry) Snapshot() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]State, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.entries[id].state())
	}
	return res
}

func sortedIDs(set map[int64]struct{}) []int64 {
	res := make([]int64, 0, len(set))
	for id := range set {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
