package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/cooldown"
	"github.com/RicheyJang/PaimengGate/directory"
	"github.com/RicheyJang/PaimengGate/quota"
	"github.com/RicheyJang/PaimengGate/scheduler"
	"github.com/RicheyJang/PaimengGate/storage"
	"github.com/RicheyJang/PaimengGate/utils/rules"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	zero "github.com/wdvxdr1123/ZeroBot"
	"gorm.io/gorm"
)

const (
	KindPlugin = "plugin"
	KindTask   = "task"
)

type FileHook func(event fsnotify.Event) error

// Config 管理器配置
type Config struct {
	DB          storage.DBConfig
	KV          storage.KVConfig
	SaveSpec    string        // 定时保存的cron表达式，为空时使用 @every 5m
	GlobalCD    time.Duration // 全局限流CD，<=0 时不限流
	GlobalBurst int
	Clock       clockwork.Clock // 为空时使用真实时钟
}

// Manager 准入控制管理器：持有全部注册表、目录、检查器与临时权限调度器，
// 进程内只应创建一个，并以句柄的形式传递给各插件
type Manager struct {
	config  Config
	clock   clockwork.Clock
	engine  *zero.Engine // zeroBot引擎
	configs *viper.Viper // 插件配置
	db      *gorm.DB
	kv      storage.KV
	cron    *cron.Cron

	plugins   *capability.Registry
	tasks     *capability.Registry
	groups    *directory.GroupDirectory
	users     *directory.UserDirectory
	cooldowns *cooldown.Engine
	quotas    *quota.Engine
	limiter   *cooldown.GlobalLimiter
	scheduler *scheduler.Scheduler

	mu          sync.RWMutex
	proxies     map[string]*Proxy // 插件/任务ID -> 代理
	configHooks []FileHook

	saveMu sync.Mutex
}

// Open 按配置连接数据库并新建管理器
func Open(ctx context.Context, config Config) (*Manager, error) {
	db, err := storage.OpenDB(config.DB)
	if err != nil {
		log.Errorf("初始化数据库失败；%v", err)
		return nil, err
	}
	kv, err := storage.OpenKV(ctx, config.KV)
	if err != nil {
		log.Errorf("初始化K-V数据库失败；%v", err)
		return nil, err
	}
	return New(config, db, kv), nil
}

// New 以已打开的数据库新建管理器
func New(config Config, db *gorm.DB, kv storage.KV) *Manager {
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if len(config.SaveSpec) == 0 {
		config.SaveSpec = "@every 5m"
	}
	m := &Manager{
		config:  config,
		clock:   clock,
		engine:  zero.New(),
		configs: viper.New(),
		db:      db,
		kv:      kv,
		proxies: make(map[string]*Proxy),

		plugins:   capability.NewRegistry(KindPlugin),
		tasks:     capability.NewRegistry(KindTask),
		cooldowns: cooldown.NewEngine(clock),
		quotas:    quota.NewEngine(),
		limiter:   cooldown.NewGlobalLimiter(clock, config.GlobalCD, config.GlobalBurst),
	}
	m.groups = directory.NewGroupDirectory(m.plugins, m.tasks)
	m.users = directory.NewUserDirectory(m.plugins, m.tasks)
	m.scheduler = scheduler.New(clock, m.users, m.groups)
	m.cron = m.newCron()
	m.engine.UsePreHandler(rules.SkipGuildMessage, rules.SkipGroupAnonymous)
	return m
}

// Declaration 插件/任务的静态声明：描述与挂载的CD、限额规则
type Declaration struct {
	capability.Descriptor
	Cooldowns []cooldown.Rule
	Quotas    []quota.Rule
}

// Register 注册一个插件，并返回插件代理，用于添加事件动作、读写配置、添加定时任务
func (m *Manager) Register(decl Declaration) (*Proxy, error) {
	return m.register(m.plugins, decl)
}

// RegisterTask 注册一个定时任务
func (m *Manager) RegisterTask(decl Declaration) (*Proxy, error) {
	return m.register(m.tasks, decl)
}

func (m *Manager) register(registry *capability.Registry, decl Declaration) (*Proxy, error) {
	decl.ID = strings.TrimSpace(decl.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proxies[decl.ID]; ok {
		log.Errorf("%s注册失败：ID<%s>已被使用", registry.Kind(), decl.ID)
		return nil, fmt.Errorf("%w: %s", capability.ErrRegistrationConflict, decl.ID)
	}
	// 任一部分失败时整体不注册
	if err := m.cooldowns.AddRules(decl.ID, decl.Cooldowns...); err != nil {
		log.Errorf("%s<%s>注册失败：%v", registry.Kind(), decl.ID, err)
		return nil, err
	}
	if err := m.quotas.AddRules(decl.ID, decl.Quotas...); err != nil {
		m.cooldowns.Remove(decl.ID)
		log.Errorf("%s<%s>注册失败：%v", registry.Kind(), decl.ID, err)
		return nil, err
	}
	if err := registry.Register(decl.Descriptor); err != nil {
		m.cooldowns.Remove(decl.ID)
		m.quotas.Remove(decl.ID)
		return nil, err
	}
	proxy := &Proxy{id: decl.ID, kind: registry.Kind(), u: m}
	m.proxies[decl.ID] = proxy
	m.addLevelConfig(decl.Descriptor)
	return proxy, nil
}

// RegisterAll 批量注册插件，单个失败不影响其它
func (m *Manager) RegisterAll(decls ...Declaration) (map[string]*Proxy, error) {
	res := make(map[string]*Proxy, len(decls))
	var errs []error
	for _, decl := range decls {
		proxy, err := m.Register(decl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res[decl.ID] = proxy
	}
	return res, errors.Join(errs...)
}

// ---- 组件 ----

// Engine zeroBot引擎
func (m *Manager) Engine() *zero.Engine { return m.engine }

// Plugins 插件注册表
func (m *Manager) Plugins() *capability.Registry { return m.plugins }

// Tasks 任务注册表
func (m *Manager) Tasks() *capability.Registry { return m.tasks }

// Groups 群目录
func (m *Manager) Groups() *directory.GroupDirectory { return m.groups }

// Users 用户目录
func (m *Manager) Users() *directory.UserDirectory { return m.users }

// Cooldowns CD检查器
func (m *Manager) Cooldowns() *cooldown.Engine { return m.cooldowns }

// Quotas 限额检查器
func (m *Manager) Quotas() *quota.Engine { return m.quotas }

// Scheduler 临时权限调度器
func (m *Manager) Scheduler() *scheduler.Scheduler { return m.scheduler }

// SetGlobalLimit 重设全局限流，cd<=0 时不限流
func (m *Manager) SetGlobalLimit(cd time.Duration, burst int) {
	m.limiter.Reset(cd, burst)
}

// GetDB 获取数据库
func (m *Manager) GetDB() *gorm.DB { return m.db }

// GetKV 获取K-V数据库
func (m *Manager) GetKV() storage.KV { return m.kv }

// Conditions 所有插件与任务的当前状况
func (m *Manager) Conditions() []Condition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Condition
	for _, registry := range []*capability.Registry{m.plugins, m.tasks} {
		for _, desc := range registry.All() {
			enabled, _ := registry.GlobalStatus(desc.ID)
			c := Condition{Descriptor: desc, Kind: registry.Kind(), GlobalEnabled: enabled}
			if p, ok := m.proxies[desc.ID]; ok {
				c.NormalCmd, c.SuperCmd = p.commands()
			}
			res = append(res, c)
		}
	}
	return res
}

// 按ID、名称或别名查找插件或任务
func (m *Manager) lookup(name string) (capability.Descriptor, *capability.Registry, bool) {
	for _, registry := range []*capability.Registry{m.plugins, m.tasks} {
		if desc, ok := registry.Lookup(name); ok {
			return desc, registry, true
		}
	}
	return capability.Descriptor{}, nil, false
}
