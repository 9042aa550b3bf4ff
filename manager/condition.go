package manager

import "github.com/RicheyJang/PaimengGate/capability"

// Condition 插件/任务状况，用于帮助与管理命令的展示
type Condition struct {
	capability.Descriptor            // 插件声明（只读）
	Kind                  string     // plugin 或 task
	GlobalEnabled         bool       // 是否全局启用
	NormalCmd             [][]string // 普通用户专用命令
	SuperCmd              [][]string // 超级用户专用命令
}

// EnabledIn 该插件在指定群中是否单独开启（不考虑全局开关与权限）
func (m *Manager) EnabledIn(id string, groupID int64) bool {
	for _, registry := range []*capability.Registry{m.plugins, m.tasks} {
		if enabled, known := registry.GroupStatus(id, groupID); known {
			return enabled
		}
	}
	return true
}
