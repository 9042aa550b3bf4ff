package help

import (
	"strings"

	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/utils"

	zero "github.com/wdvxdr1123/ZeroBot"
)

var proxy *manager.Proxy
var info = capability.Descriptor{
	ID:   "help",
	Name: "帮助",
	Usage: `
用法：
	帮助：展示你可以使用的所有功能
	帮助[功能名或命令]：展示具体某个功能的详细帮助
`,
	AlwaysOn:      true,
	DefaultStatus: true,
}

// Setup 注册帮助插件
func Setup(m *manager.Manager) error {
	var err error
	if proxy, err = m.Register(manager.Declaration{Descriptor: info}); err != nil {
		return err
	}
	proxy.OnCommands([]string{"帮助", "help", "功能"}, zero.OnlyToMe).SetBlock(true).SetPriority(5).Handle(helpHandle)
	return nil
}

func helpHandle(ctx *zero.Ctx) {
	v := newViewer(proxy.Manager(), ctx.Event.UserID, ctx.Event.GroupID)
	arg := strings.TrimSpace(utils.GetArgs(ctx))
	if len(arg) == 0 {
		ctx.Send(formSummaryHelpMsg(proxy.Manager().Conditions(), v))
	} else {
		ctx.Send(formSingleHelpMsg(proxy.Manager().Conditions(), arg, v))
	}
}
