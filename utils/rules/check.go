// Package rules 通用的zeroBot Rule
package rules

import (
	"github.com/RicheyJang/PaimengGate/utils"

	zero "github.com/wdvxdr1123/ZeroBot"
)

// SkipGuildMessage Rule:不处理频道消息事件
func SkipGuildMessage(ctx *zero.Ctx) bool {
	return !utils.IsMessageGuild(ctx)
}

// SkipGroupAnonymous Rule:不处理群匿名消息
func SkipGroupAnonymous(ctx *zero.Ctx) bool {
	return !(utils.IsMessageGroup(ctx) && ctx.Event.SubType == "anonymous")
}
