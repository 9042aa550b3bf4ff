package manager

import (
	"time"

	"github.com/RicheyJang/PaimengGate/admission"

	log "github.com/sirupsen/logrus"
	zero "github.com/wdvxdr1123/ZeroBot"
)

// EventFromCtx 将zeroBot事件转换为待准入的事件
func EventFromCtx(ctx *zero.Ctx, id string) admission.Event {
	ev := admission.Event{Capability: id, Session: admission.SessionPrivate, Time: time.Now()}
	if ctx == nil || ctx.Event == nil {
		return ev
	}
	ev.UserID = ctx.Event.UserID
	ev.GroupID = ctx.Event.GroupID
	if ev.GroupID != 0 {
		ev.Session = admission.SessionGroup
	}
	if ctx.Event.Time > 0 {
		ev.Time = time.Unix(ctx.Event.Time, 0)
	}
	return ev
}

// Admit 依次经过 目录(开关与权限) -> 全局限流 -> CD -> 限额 检查；目录与全局限流拦截时不给出提示
func (m *Manager) Admit(ev admission.Event) admission.Result {
	if ev.GroupID != 0 && !m.groups.CheckPluginAllowed(ev.GroupID, ev.Capability) {
		log.Debugf("<%s>在群%v中未启用", ev.Capability, ev.GroupID)
		return admission.Rejected("")
	}
	if !m.users.CheckPluginAllowed(ev.UserID, ev.Capability) {
		log.Debugf("用户%v无法使用<%s>", ev.UserID, ev.Capability)
		return admission.Rejected("")
	}
	if !m.limiter.Allow(ev.UserID) {
		log.Warnf("limiter：用户%v频率超出全局限流", ev.UserID)
		return admission.Rejected("")
	}
	if res := m.cooldowns.Check(ev.Capability, ev); !res.OK() {
		return res
	}
	return m.quotas.Check(ev.Capability, ev)
}

// AdmitTask 任务能否在指定群中执行
func (m *Manager) AdmitTask(id string, groupID int64) bool {
	return m.groups.CheckTaskAllowed(groupID, id)
}
