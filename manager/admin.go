package manager

import (
	"fmt"
	"strings"
	"time"

	"github.com/RicheyJang/PaimengGate/perm"
	"github.com/RicheyJang/PaimengGate/quota"
	"github.com/RicheyJang/PaimengGate/scheduler"

	log "github.com/sirupsen/logrus"
)

// 管理命令：均返回 回复文本 与 是否成功(状态是否发生变化)

// SetGroupPluginEnabled 在指定群中开启功能
func (m *Manager) SetGroupPluginEnabled(groupID int64, name string) (string, bool) {
	desc, registry, ok := m.lookup(name)
	if !ok {
		return fmt.Sprintf("没有找到功能%v", name), false
	}
	if enabled, _ := registry.GroupStatus(desc.ID, groupID); enabled {
		return "请不要重复开关功能哦", false
	}
	if !registry.SetGroupEnabled(desc.ID, groupID) {
		return "失败了...", false
	}
	log.Infof("在群%v中开启%s<%s>", groupID, registry.Kind(), desc.ID)
	return fmt.Sprintf("已在群%v中开启%v", groupID, displayName(desc.ID, desc.Name)), true
}

// SetGroupPluginDisabled 在指定群中关闭功能
func (m *Manager) SetGroupPluginDisabled(groupID int64, name string) (string, bool) {
	desc, registry, ok := m.lookup(name)
	if !ok {
		return fmt.Sprintf("没有找到功能%v", name), false
	}
	if desc.AlwaysOn {
		return fmt.Sprintf("%v无法被关闭", displayName(desc.ID, desc.Name)), false
	}
	if enabled, _ := registry.GroupStatus(desc.ID, groupID); !enabled {
		return "请不要重复开关功能哦", false
	}
	if !registry.SetGroupDisabled(desc.ID, groupID) {
		return "失败了...", false
	}
	log.Infof("在群%v中关闭%s<%s>", groupID, registry.Kind(), desc.ID)
	return fmt.Sprintf("已在群%v中关闭%v", groupID, displayName(desc.ID, desc.Name)), true
}

// GlobalEnablePlugin 全局开启功能，各群的单独设置保持不变
func (m *Manager) GlobalEnablePlugin(name string) (string, bool) {
	desc, registry, ok := m.lookup(name)
	if !ok {
		return fmt.Sprintf("没有找到功能%v", name), false
	}
	if !registry.GlobalEnable(desc.ID) {
		return fmt.Sprintf("%v已经是全局开启状态", displayName(desc.ID, desc.Name)), false
	}
	return fmt.Sprintf("已全局开启%v", displayName(desc.ID, desc.Name)), true
}

// GlobalDisablePlugin 全局关闭功能
func (m *Manager) GlobalDisablePlugin(name string) (string, bool) {
	desc, registry, ok := m.lookup(name)
	if !ok {
		return fmt.Sprintf("没有找到功能%v", name), false
	}
	if desc.AlwaysOn {
		return fmt.Sprintf("%v无法被关闭", displayName(desc.ID, desc.Name)), false
	}
	if !registry.GlobalDisable(desc.ID) {
		return fmt.Sprintf("%v已经是全局关闭状态", displayName(desc.ID, desc.Name)), false
	}
	return fmt.Sprintf("已全局关闭%v", displayName(desc.ID, desc.Name)), true
}

// SetUserPermission 设置用户权限等级，duration<=0 时永久生效
func (m *Manager) SetUserPermission(userID int64, level perm.Level, duration time.Duration) (string, bool) {
	return m.setPermission(scheduler.KindUser, userID, level, duration)
}

// SetGroupPermission 设置群权限等级，duration<=0 时永久生效
func (m *Manager) SetGroupPermission(groupID int64, level perm.Level, duration time.Duration) (string, bool) {
	return m.setPermission(scheduler.KindGroup, groupID, level, duration)
}

func (m *Manager) setPermission(kind scheduler.Kind, id int64, level perm.Level, duration time.Duration) (string, bool) {
	subject := "用户"
	if kind == scheduler.KindGroup {
		subject = "群"
	}
	if err := m.scheduler.SetOverride(kind, id, level, duration); err != nil {
		log.Errorf("设置%v%v权限等级失败：%v", subject, id, err)
		return "失败了...", false
	}
	if duration <= 0 {
		return fmt.Sprintf("已将%v%v的权限等级设为%v", subject, id, level), true
	}
	o, _ := m.scheduler.Lookup(kind, id)
	return fmt.Sprintf("已将%v%v的权限等级设为%v，将于%v恢复为%v",
		subject, id, level, o.Expiry.Format("2006-01-02 15:04:05"), o.RevertLevel), true
}

// ResetQuota 重置指定周期的限额计数
func (m *Manager) ResetQuota(period quota.Period) (string, bool) {
	if !period.Valid() {
		return "未知的周期", false
	}
	m.quotas.Reset(period)
	return fmt.Sprintf("已重置所有%v限额", period), true
}

// EnableBot 在指定群中开启机器人
func (m *Manager) EnableBot(groupID int64) (string, bool) {
	if !m.groups.EnableBot(groupID) {
		return "我已经在这里啦", false
	}
	log.Infof("在群%v中开启机器人", groupID)
	return "好哒", true
}

// DisableBot 在指定群中关闭机器人
func (m *Manager) DisableBot(groupID int64) (string, bool) {
	if !m.groups.DisableBot(groupID) {
		return "已经是关闭状态啦", false
	}
	log.Infof("在群%v中关闭机器人", groupID)
	return "那我先睡觉了...", true
}

// ShowOverrides 列出所有未到期的临时权限
func (m *Manager) ShowOverrides() (string, bool) {
	pending := m.scheduler.Pending()
	if len(pending) == 0 {
		return "当前没有临时权限", true
	}
	var b strings.Builder
	b.WriteString("临时权限：")
	for _, o := range pending {
		subject := "用户"
		if o.Kind == scheduler.KindGroup {
			subject = "群"
		}
		current := m.users.Permission
		if o.Kind == scheduler.KindGroup {
			current = m.groups.Permission
		}
		_, _ = fmt.Fprintf(&b, "\n%v%v：%v，%v后恢复为%v", subject, o.SubjectID, current(o.SubjectID),
			o.Expiry.Sub(m.clock.Now()).Round(time.Second), o.RevertLevel)
	}
	return b.String(), true
}

// ShowGroupStatus 列出指定群中各功能的开关状态
func (m *Manager) ShowGroupStatus(groupID int64) (string, bool) {
	var b strings.Builder
	if m.groups.BotEnabled(groupID) {
		_, _ = fmt.Fprintf(&b, "群%v(%v)：", groupID, m.groups.Permission(groupID))
	} else {
		_, _ = fmt.Fprintf(&b, "群%v(%v)：机器人已关闭", groupID, m.groups.Permission(groupID))
	}
	for _, c := range m.Conditions() {
		mark := "√"
		if !c.GlobalEnabled {
			mark = "×(全局关闭)"
		} else if !m.EnabledIn(c.ID, groupID) {
			mark = "×"
		}
		_, _ = fmt.Fprintf(&b, "\n%v %v", mark, displayName(c.ID, c.Name))
	}
	return b.String(), true
}

func displayName(id, name string) string {
	if len(name) == 0 || name == id {
		return id
	}
	return fmt.Sprintf("%v(%v)", name, id)
}
