package echo

import (
	"strings"
	"time"

	"github.com/RicheyJang/PaimengGate/admission"
	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/cooldown"
	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/perm"
	"github.com/RicheyJang/PaimengGate/quota"
	"github.com/RicheyJang/PaimengGate/utils"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	zero "github.com/wdvxdr1123/ZeroBot"
	"github.com/wdvxdr1123/ZeroBot/message"
)

var info = manager.Declaration{
	Descriptor: capability.Descriptor{
		ID:      "echo",
		Name:    "复读",
		Aliases: []string{"复读机"},
		Usage: `
用法：
	echo 复读内容：将echo后的内容进行复读
每人每天最多复读20次，同一群内5秒只能复读一次`,
		UserPermission: perm.Bad,
		DefaultStatus:  true,
	},
	Cooldowns: []cooldown.Rule{{
		Duration: 5 * time.Second,
		Scope:    admission.ScopeGroup,
		Session:  admission.SessionGroup,
		Hint:     "复读太快啦，{remaining}秒后再试吧",
	}},
	Quotas: []quota.Rule{{
		Limit:   20,
		Scope:   admission.ScopeUser,
		Session: admission.SessionAll,
		Period:  quota.Day,
		Hint:    "今天已经复读{limit}次了，明天再来吧",
	}},
}

var greetInfo = manager.Declaration{
	Descriptor: capability.Descriptor{
		ID:   "echo_greet",
		Name: "早安问候",
		Usage: `
每天定时在群中发送问候语，默认关闭
可在各群中使用"开启功能 早安问候"开启`,
		DefaultStatus: false,
	},
}

var (
	proxy      *manager.Proxy
	greetProxy *manager.Proxy
)

// Setup 注册复读插件与早安问候任务
func Setup(m *manager.Manager) error {
	var err error
	if proxy, err = m.Register(info); err != nil {
		return err
	}
	proxy.OnCommands([]string{"echo"}).SetBlock(true).FirstPriority().Handle(EchoHandler)
	proxy.AddConfig("times", 1)

	greetProxy, err = m.RegisterTask(greetInfo)
	if err != nil {
		return err
	}
	greetProxy.AddConfig("spec", "0 8 * * *")
	greetProxy.AddConfig("text", "早上好")
	_, err = greetProxy.AddScheduleFunc(greetProxy.GetConfigString("spec"), greet)
	return err
}

// EchoHandler 复读
func EchoHandler(ctx *zero.Ctx) {
	str := strings.TrimSpace(utils.GetArgs(ctx))
	if len(str) == 0 {
		return
	}
	tm := proxy.GetConfigInt64("times")
	if tm <= 0 {
		tm = 1
	}
	for i := int64(0); i < tm; i++ {
		ctx.Send(str)
	}
}

func greet() {
	ctx := utils.GetBotCtx()
	if ctx == nil {
		log.Warn("早安问候：没有可用的机器人")
		return
	}
	text := greetProxy.GetConfigString("text")
	for _, id := range greetTargets(ctx.GetGroupList(), greetProxy.AllowedInGroup) {
		ctx.SendGroupMessage(id, message.Text(text))
	}
}

// 群列表中允许执行任务的群
func greetTargets(list gjson.Result, allowed func(int64) bool) []int64 {
	var res []int64
	list.ForEach(func(_, g gjson.Result) bool {
		if id := g.Get("group_id").Int(); id != 0 && allowed(id) {
			res = append(res, id)
		}
		return true
	})
	return res
}
