// Package admin 准入管理命令：功能开关、权限等级、临时权限、限额重置与机器人开关
package admin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/quota"
	"github.com/RicheyJang/PaimengGate/utils"

	log "github.com/sirupsen/logrus"
	zero "github.com/wdvxdr1123/ZeroBot"
)

var info = capability.Descriptor{
	ID:   "admin",
	Name: "准入管理",
	Usage: `
用法：（群主、群管理员可在本群中使用开关类命令）
	开启功能 [功能名] [群号]：在指定群中开启功能，群聊中可省略群号
	关闭功能 [功能名] [群号]：在指定群中关闭功能
	开启机器人 [群号] / 关闭机器人 [群号]
	功能状态 [群号]：查看各功能在群中的开关状态
超级用户用法：
	全局开启功能 [功能名] / 全局关闭功能 [功能名]
	设置用户权限 [QQ号] [等级] [时长]：时长省略或为0时永久生效
	设置群权限 [群号] [等级] [时长]
	临时权限：查看所有未到期的临时权限
	重置限额 [周期]：周期可为 小时/天/周/月/年
	群列表：查看所有群的权限等级与机器人状态
等级：黑名单/差/普通/良好/优秀 或 0-4
示例：
	设置用户权限 123456 优秀 1d12h：1天12小时后恢复为原等级`,
	AlwaysOn:      true,
	DefaultStatus: true,
}

var proxy *manager.Proxy

// Setup 注册管理命令
func Setup(m *manager.Manager) error {
	var err error
	proxy, err = m.Register(manager.Declaration{Descriptor: info})
	if err != nil {
		return err
	}
	proxy.OnCommands([]string{"开启功能"}, groupAdminOrSuper).SetBlock(true).FirstPriority().Handle(switchHandler(true))
	proxy.OnCommands([]string{"关闭功能"}, groupAdminOrSuper).SetBlock(true).FirstPriority().Handle(switchHandler(false))
	proxy.OnCommands([]string{"功能状态"}).SetBlock(true).FirstPriority().Handle(statusHandler)
	// 机器人被关闭后仍需响应开启命令
	proxy.OnCommandsUnchecked([]string{"开启机器人"}, groupAdminOrSuper).SetBlock(true).FirstPriority().Handle(botHandler(true))
	proxy.OnCommands([]string{"关闭机器人"}, groupAdminOrSuper).SetBlock(true).FirstPriority().Handle(botHandler(false))

	proxy.OnSuperCommands([]string{"全局开启功能"}).SetBlock(true).FirstPriority().Handle(globalHandler(true))
	proxy.OnSuperCommands([]string{"全局关闭功能"}).SetBlock(true).FirstPriority().Handle(globalHandler(false))
	proxy.OnSuperCommands([]string{"设置用户权限"}).SetBlock(true).FirstPriority().Handle(permissionHandler(false))
	proxy.OnSuperCommands([]string{"设置群权限"}).SetBlock(true).FirstPriority().Handle(permissionHandler(true))
	proxy.OnSuperCommands([]string{"临时权限"}).SetBlock(true).FirstPriority().Handle(overridesHandler)
	proxy.OnSuperCommands([]string{"重置限额"}).SetBlock(true).FirstPriority().Handle(resetHandler)
	proxy.OnSuperCommands([]string{"群列表"}).SetBlock(true).FirstPriority().Handle(groupListHandler)
	return nil
}

// Rule: 超级用户，或在群聊中的群主、管理员
func groupAdminOrSuper(ctx *zero.Ctx) bool {
	if ctx.Event == nil {
		return false
	}
	if utils.IsSuperUser(ctx.Event.UserID) {
		return true
	}
	if !utils.IsMessageGroup(ctx) {
		return false
	}
	member := ctx.GetGroupMemberInfo(ctx.Event.GroupID, ctx.Event.UserID, false)
	return isGroupAdmin(member)
}

// 群管理员只能操作本群
func targetAllowed(ctx *zero.Ctx, groupID int64) bool {
	return utils.IsSuperUser(ctx.Event.UserID) || groupID == ctx.Event.GroupID
}

func reply(ctx *zero.Ctx, err error) {
	if errors.Is(err, errNotEnoughArgs) || errors.Is(err, errBadID) || errors.Is(err, errBadDuration) {
		ctx.Send(err.Error())
		return
	}
	log.Warnf("解析管理命令参数失败：%v", err)
	ctx.Send("参数格式错误，请查看帮助")
}

func switchHandler(status bool) func(ctx *zero.Ctx) {
	return func(ctx *zero.Ctx) {
		name, groupID, err := parseSwitchArgs(utils.GetArgs(ctx), ctx.Event.GroupID)
		if err != nil {
			reply(ctx, err)
			return
		}
		if !targetAllowed(ctx, groupID) {
			ctx.Send("只能设置本群哦")
			return
		}
		var msg string
		if status {
			msg, _ = proxy.Manager().SetGroupPluginEnabled(groupID, name)
		} else {
			msg, _ = proxy.Manager().SetGroupPluginDisabled(groupID, name)
		}
		ctx.Send(msg)
	}
}

func botHandler(status bool) func(ctx *zero.Ctx) {
	return func(ctx *zero.Ctx) {
		groupID, err := parseGroupArg(utils.GetArgs(ctx), ctx.Event.GroupID)
		if err != nil {
			reply(ctx, err)
			return
		}
		if !targetAllowed(ctx, groupID) {
			ctx.Send("只能设置本群哦")
			return
		}
		var msg string
		if status {
			msg, _ = proxy.Manager().EnableBot(groupID)
		} else {
			msg, _ = proxy.Manager().DisableBot(groupID)
		}
		ctx.Send(msg)
	}
}

func statusHandler(ctx *zero.Ctx) {
	groupID, err := parseGroupArg(utils.GetArgs(ctx), ctx.Event.GroupID)
	if err != nil {
		reply(ctx, err)
		return
	}
	msg, _ := proxy.Manager().ShowGroupStatus(groupID)
	ctx.Send(msg)
}

func globalHandler(status bool) func(ctx *zero.Ctx) {
	return func(ctx *zero.Ctx) {
		name := strings.TrimSpace(utils.GetArgs(ctx))
		if len(name) == 0 {
			ctx.Send("请指定功能名")
			return
		}
		var msg string
		if status {
			msg, _ = proxy.Manager().GlobalEnablePlugin(name)
		} else {
			msg, _ = proxy.Manager().GlobalDisablePlugin(name)
		}
		ctx.Send(msg)
	}
}

func permissionHandler(group bool) func(ctx *zero.Ctx) {
	return func(ctx *zero.Ctx) {
		id, level, duration, err := parsePermissionArgs(utils.GetArgs(ctx))
		if err != nil {
			reply(ctx, err)
			return
		}
		var msg string
		if group {
			msg, _ = proxy.Manager().SetGroupPermission(id, level, duration)
		} else {
			msg, _ = proxy.Manager().SetUserPermission(id, level, duration)
		}
		ctx.Send(msg)
	}
}

func overridesHandler(ctx *zero.Ctx) {
	msg, _ := proxy.Manager().ShowOverrides()
	ctx.Send(msg)
}

func resetHandler(ctx *zero.Ctx) {
	period, err := quota.ParsePeriod(utils.GetArgs(ctx))
	if err != nil {
		ctx.Send("周期可为 小时/天/周/月/年")
		return
	}
	msg, _ := proxy.Manager().ResetQuota(period)
	ctx.Send(msg)
}

func groupListHandler(ctx *zero.Ctx) {
	ids, names := parseGroupList(ctx.GetGroupList())
	if len(ids) == 0 {
		ctx.Send("还没有加入任何群")
		return
	}
	ctx.Send(formatGroupList(proxy.Manager(), ids, names))
}

func formatGroupList(m *manager.Manager, ids []int64, names map[int64]string) string {
	var b strings.Builder
	b.WriteString("群列表：")
	for _, id := range ids {
		rec := m.Groups().Get(id)
		state := "开启"
		if !rec.BotEnabled {
			state = "关闭"
		}
		_, _ = fmt.Fprintf(&b, "\n%v(%v)：%v，机器人%v", utils.StringLimit(names[id], 12), id, rec.Permission, state)
	}
	return b.String()
}
