package manager

import (
	"fmt"
	"path/filepath"

	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/perm"
	"github.com/RicheyJang/PaimengGate/utils"
	"github.com/RicheyJang/PaimengGate/utils/consts"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// FlushConfig 从文件中刷新所有插件配置，若文件不存在将会把配置写入该文件；之后文件变更时自动重新载入
func (m *Manager) FlushConfig(configPath string, configFileName string) error {
	m.configs.AddConfigPath(configPath)
	fullPath := filepath.Join(configPath, configFileName)
	m.configs.SetConfigFile(fullPath)
	if utils.FileExists(fullPath) { // 配置文件已存在：合并自配置文件后重新写入
		err := m.configs.MergeInConfig()
		if err != nil {
			log.Error("FlushConfig error in MergeInConfig err: ", err)
			return err
		}
		_ = m.configs.WriteConfigAs(fullPath)
	} else { // 配置文件不存在：写入配置
		err := m.configs.SafeWriteConfigAs(fullPath)
		if err != nil {
			log.Error("FlushConfig error in SafeWriteConfig err: ", err)
			return err
		}
	}
	m.callAllConfigChangeHooks(fsnotify.Event{
		Name: fullPath,
		Op:   fsnotify.Create,
	})
	m.configs.OnConfigChange(func(in fsnotify.Event) {
		m.callAllConfigChangeHooks(in)
		log.Infof("reload plugins config from %v", in.Name)
	})
	m.configs.WatchConfig()
	return nil
}

// WhenConfigFileChange 添加配置文件变更时的hook
func (m *Manager) WhenConfigFileChange(hook ...FileHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configHooks = append(m.configHooks, hook...)
}

func (m *Manager) callAllConfigChangeHooks(in fsnotify.Event) {
	m.FlushAllLevelsFromConfig() // 单独调用
	m.mu.RLock()
	hooks := append([]FileHook(nil), m.configHooks...)
	m.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(in); err != nil {
			log.Errorf("处理配置文件(%v)变更时出错：%v", in.Name, err)
		}
	}
}

// FlushAllLevelsFromConfig 从插件配置中刷新所有插件/任务的最低权限等级，
// 配置项 ID.grouplevel 与 ID.userlevel 优先级高于代码中的声明
func (m *Manager) FlushAllLevelsFromConfig() {
	for _, registry := range []*capability.Registry{m.plugins, m.tasks} {
		for _, desc := range registry.All() {
			group := m.levelFromConfig(desc.ID, consts.PluginConfigGroupLevelKey, desc.GroupPermission)
			user := m.levelFromConfig(desc.ID, consts.PluginConfigUserLevelKey, desc.UserPermission)
			if group == desc.GroupPermission && user == desc.UserPermission {
				continue
			}
			registry.SetRequiredPermission(desc.ID, group, user)
			log.Infof("依据配置文件，重设<%v>的最低权限等级：群%v 用户%v", desc.ID, group, user)
		}
	}
}

func (m *Manager) levelFromConfig(id, key string, current perm.Level) perm.Level {
	v := m.getConfig(id, key)
	if v == nil {
		return current
	}
	level, err := perm.Parse(cast.ToString(v))
	if err != nil {
		log.Warnf("配置项%v.%v无法解析为权限等级：%v", id, key, err)
		return current
	}
	return perm.Required(level)
}

// 以声明中的权限等级作为配置默认值
func (m *Manager) addLevelConfig(desc capability.Descriptor) {
	m.addConfig(desc.ID, consts.PluginConfigGroupLevelKey, perm.Required(desc.GroupPermission).String())
	m.addConfig(desc.ID, consts.PluginConfigUserLevelKey, perm.Required(desc.UserPermission).String())
}

// 添加配置并设置默认值
func (m *Manager) addConfig(prefix string, key string, defaultValue interface{}) {
	if len(prefix) > 0 {
		key = fmt.Sprintf("%s.%s", prefix, key)
	}
	m.configs.SetDefault(key, defaultValue)
}

// 获取配置
func (m *Manager) getConfig(prefix string, key string) interface{} {
	if len(prefix) > 0 {
		key = fmt.Sprintf("%s.%s", prefix, key)
	}
	return m.configs.Get(key)
}
