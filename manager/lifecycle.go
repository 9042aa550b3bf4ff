package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RicheyJang/PaimengGate/basic/dao"
	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/storage"
	"github.com/RicheyJang/PaimengGate/utils/consts"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Init 从数据库中载入全部状态，须在所有插件注册之后调用；
// 已损坏的数据会被记录并视为空，不会中止启动
func (m *Manager) Init(ctx context.Context) error {
	if err := dao.Migrate(m.db); err != nil {
		return err
	}
	// 1. 开关状态
	for _, registry := range []*capability.Registry{m.plugins, m.tasks} {
		states, err := dao.LoadCapabilityStates(m.db, registry.Kind())
		if err != nil {
			return fmt.Errorf("load %s states: %w", registry.Kind(), err)
		}
		registry.Restore(states)
	}
	// 2. 群与用户
	groups, err := dao.LoadGroups(m.db)
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	m.groups.Load(groups)
	users, err := dao.LoadUsers(m.db)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	m.users.Load(users)
	// 3. CD与限额
	err = m.kv.Scan(ctx, consts.KVCooldownPrefix, func(key string, value []byte) error {
		if err := m.cooldowns.Restore(strings.TrimPrefix(key, consts.KVCooldownPrefix), value); err != nil {
			log.Warnf("忽略已损坏的CD状态(%v)：%v", key, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load cooldowns: %w", err)
	}
	err = m.kv.Scan(ctx, consts.KVQuotaPrefix, func(key string, value []byte) error {
		if err := m.quotas.Restore(strings.TrimPrefix(key, consts.KVQuotaPrefix), value); err != nil {
			log.Warnf("忽略已损坏的限额计数(%v)：%v", key, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load quotas: %w", err)
	}
	// 4. 临时权限
	data, err := m.kv.Get(ctx, consts.KVOverridesKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load overrides: %w", err)
	default:
		if err = m.scheduler.Restore(data); err != nil {
			log.Warnf("忽略已损坏的临时权限记录：%v", err)
		}
	}
	log.Infof("载入完毕：群%d个 用户%d个 临时权限%d条", len(groups), len(users), len(m.scheduler.Pending()))
	return nil
}

// Save 保存所有变更过的状态；失败的部分会在下次保存时重试
func (m *Manager) Save(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	var errs []error
	for _, registry := range []*capability.Registry{m.plugins, m.tasks} {
		states := registry.TakeDirty()
		if err := dao.SaveCapabilityStates(m.db, registry.Kind(), states); err != nil {
			registry.MarkDirty(stateIDs(states)...)
			errs = append(errs, fmt.Errorf("save %s states: %w", registry.Kind(), err))
		}
	}
	if groups := m.groups.TakeDirty(); len(groups) > 0 {
		if err := dao.SaveGroups(m.db, groups); err != nil {
			ids := make([]int64, 0, len(groups))
			for _, g := range groups {
				ids = append(ids, g.ID)
			}
			m.groups.MarkDirty(ids...)
			errs = append(errs, fmt.Errorf("save groups: %w", err))
		}
	}
	if users := m.users.TakeDirty(); len(users) > 0 {
		if err := dao.SaveUsers(m.db, users); err != nil {
			ids := make([]int64, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			m.users.MarkDirty(ids...)
			errs = append(errs, fmt.Errorf("save users: %w", err))
		}
	}
	for id, data := range m.cooldowns.TakeDirty() {
		if err := m.kv.Put(ctx, consts.KVCooldownPrefix+id, data); err != nil {
			m.cooldowns.MarkDirty(id)
			errs = append(errs, fmt.Errorf("save cooldown %s: %w", id, err))
		}
	}
	for id, data := range m.quotas.TakeDirty() {
		if err := m.kv.Put(ctx, consts.KVQuotaPrefix+id, data); err != nil {
			m.quotas.MarkDirty(id)
			errs = append(errs, fmt.Errorf("save quota %s: %w", id, err))
		}
	}
	if data, dirty := m.scheduler.TakeDirty(); dirty {
		if err := m.kv.Put(ctx, consts.KVOverridesKey, data); err != nil {
			m.scheduler.MarkDirty()
			errs = append(errs, fmt.Errorf("save overrides: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run 运行临时权限调度器与各定时任务，直至ctx被取消
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.scheduler.Run(ctx)
	})
	g.Go(func() error {
		m.cron.Start()
		<-ctx.Done()
		<-m.cron.Stop().Done()
		return nil
	})
	return g.Wait()
}

// Serve 运行直至ctx被取消，待调度器与定时任务全部退出后再保存并关闭数据库
func (m *Manager) Serve(ctx context.Context) error {
	runErr := m.Run(ctx)
	if runErr != nil {
		log.Errorf("准入管理器运行出错：%v", runErr)
	}
	return errors.Join(runErr, m.Close())
}

// Close 最后一次保存并关闭数据库
func (m *Manager) Close() error {
	var errs []error
	if err := m.Save(context.Background()); err != nil {
		log.Errorf("退出前保存失败：%v", err)
		errs = append(errs, err)
	}
	if err := m.kv.Close(); err != nil {
		errs = append(errs, err)
	}
	if sqlDB, err := m.db.DB(); err == nil {
		if err = sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func stateIDs(states []capability.State) []string {
	ids := make([]string, 0, len(states))
	for _, s := range states {
		ids = append(ids, s.ID)
	}
	return ids
}
