package utils

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	zero "github.com/wdvxdr1123/ZeroBot"
)

// GetArgs 获取命令参数
func GetArgs(ctx *zero.Ctx) string {
	res, ok := ctx.State["args"]
	if !ok {
		return ""
	}
	return cast.ToString(res)
}

// GetBotNickname 获取机器人昵称
func GetBotNickname() string {
	nick := zero.BotConfig.NickName
	if len(nick) == 0 || len(nick[0]) == 0 {
		return "我"
	}
	return nick[0]
}

// IsSuperUser userID是否为超级用户
func IsSuperUser(userID int64) bool {
	for _, su := range zero.BotConfig.SuperUsers {
		if su == userID {
			return true
		}
	}
	return false
}

// ParseSuperUsers 将配置中的超级用户列表转换为QQ号，无法解析的项会被忽略
func ParseSuperUsers(v interface{}) []int64 {
	var res []int64
	for _, s := range cast.ToStringSlice(v) {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil || id <= 0 {
			log.Warnf("忽略无法解析的超级用户：%q", s)
			continue
		}
		res = append(res, id)
	}
	return res
}

// IsMessage 是否为消息事件
func IsMessage(ctx *zero.Ctx) bool {
	return ctx.Event != nil && ctx.Event.PostType == "message"
}

// IsMessageGroup 是否为群消息
func IsMessageGroup(ctx *zero.Ctx) bool {
	return IsMessage(ctx) && ctx.Event.DetailType == "group"
}

// IsMessagePrivate 是否为私聊消息
func IsMessagePrivate(ctx *zero.Ctx) bool {
	return IsMessage(ctx) && ctx.Event.DetailType == "private"
}

// IsMessageGuild 是否为频道消息
func IsMessageGuild(ctx *zero.Ctx) bool {
	return IsMessage(ctx) && ctx.Event.DetailType == "guild"
}

// GetBotCtx 获取一个全局ctx，无可用后端时返回nil
func GetBotCtx() *zero.Ctx {
	var res *zero.Ctx
	zero.RangeBot(func(id int64, ctx *zero.Ctx) bool {
		if ctx != nil {
			res = ctx
			return false
		}
		return true
	})
	return res
}
