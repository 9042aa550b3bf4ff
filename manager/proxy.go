package manager

import (
	"fmt"
	"sync"

	"github.com/RicheyJang/PaimengGate/storage"
	"github.com/RicheyJang/PaimengGate/utils"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	zero "github.com/wdvxdr1123/ZeroBot"
	"gorm.io/gorm"
)

// Proxy 插件代理，呈现给插件，用于添加事件动作、读写配置、添加定时任务
// 经代理添加的事件动作都会在最后经过准入检查
type Proxy struct {
	id   string   // 插件/任务ID
	kind string   // plugin 或 task
	u    *Manager // 所从属的管理器

	mu        sync.Mutex
	normalCmd [][]string
	superCmd  [][]string
}

// ID 插件ID
func (p *Proxy) ID() string { return p.id }

// Manager 所从属的管理器
func (p *Proxy) Manager() *Manager { return p.u }

// ---- 事件动作 ----

// On 添加新的指定消息类型的匹配器
func (p *Proxy) On(tp string, rules ...zero.Rule) *zero.Matcher {
	return p.u.engine.On(tp, p.withAdmission(rules)...)
}

// OnMessage 添加新的消息匹配器
func (p *Proxy) OnMessage(rules ...zero.Rule) *zero.Matcher {
	return p.u.engine.OnMessage(p.withAdmission(rules)...)
}

// OnCommands 添加新的命令匹配器
func (p *Proxy) OnCommands(cmd []string, rules ...zero.Rule) *zero.Matcher {
	p.recordCommands(cmd, false)
	return p.u.engine.OnCommandGroup(cmd, p.withAdmission(rules)...)
}

// OnSuperCommands 添加超级用户专用的命令匹配器
func (p *Proxy) OnSuperCommands(cmd []string, rules ...zero.Rule) *zero.Matcher {
	p.recordCommands(cmd, true)
	rules = append(rules, zero.SuperUserPermission)
	return p.u.engine.OnCommandGroup(cmd, p.withAdmission(rules)...)
}

// OnFullMatch 添加新的完全匹配匹配器
func (p *Proxy) OnFullMatch(src []string, rules ...zero.Rule) *zero.Matcher {
	p.recordCommands(src, false)
	return p.u.engine.OnFullMatchGroup(src, p.withAdmission(rules)...)
}

// OnCommandsUnchecked 添加不经过准入检查的命令匹配器，用于机器人在群内被关闭时仍需响应的命令
func (p *Proxy) OnCommandsUnchecked(cmd []string, rules ...zero.Rule) *zero.Matcher {
	p.recordCommands(cmd, false)
	return p.u.engine.OnCommandGroup(cmd, rules...)
}

func (p *Proxy) recordCommands(cmd []string, super bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if super {
		p.superCmd = append(p.superCmd, cmd)
	} else {
		p.normalCmd = append(p.normalCmd, cmd)
	}
}

func (p *Proxy) commands() (normal, super [][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]string(nil), p.normalCmd...), append([][]string(nil), p.superCmd...)
}

// 准入检查须放在最后：只有其它条件全部满足的事件才会计入CD与限额
func (p *Proxy) withAdmission(rules []zero.Rule) []zero.Rule {
	res := make([]zero.Rule, 0, len(rules)+1)
	res = append(res, rules...)
	return append(res, p.admissionRule)
}

func (p *Proxy) admissionRule(ctx *zero.Ctx) bool {
	if ctx.Event == nil || ctx.Event.UserID == 0 {
		return true
	}
	if utils.IsSuperUser(ctx.Event.UserID) {
		return true
	}
	res := p.u.Admit(EventFromCtx(ctx, p.id))
	if res.OK() {
		log.Debugf("[Begin] 事件即将被 <%s> 插件处理", p.id)
		return true
	}
	log.Infof("<%s> 插件拒绝处理用户%v(群%v)的事件：%v", p.id, ctx.Event.UserID, ctx.Event.GroupID, res)
	if hint := res.Hint(); len(hint) > 0 {
		ctx.Send(hint)
	}
	return false
}

// ---- 定时任务 ----

// AddScheduleFunc 添加定时任务，spec 为cron表达式
func (p *Proxy) AddScheduleFunc(spec string, fn func()) (cron.EntryID, error) {
	id, err := p.u.cron.AddFunc(spec, fn)
	if err != nil {
		log.Errorf("<%s>添加定时任务(%v)失败：%v", p.id, spec, err)
		return 0, err
	}
	return id, nil
}

// AllowedInGroup 任务能否在指定群中执行
func (p *Proxy) AllowedInGroup(groupID int64) bool {
	return p.u.AdmitTask(p.id, groupID)
}

// ---- 配置 ----

// AddConfig 添加配置
func (p *Proxy) AddConfig(key string, defaultValue interface{}) {
	p.u.addConfig(fmt.Sprintf("plugins.%s", p.id), key, defaultValue)
}

// GetConfig 获取配置
func (p *Proxy) GetConfig(key string) interface{} {
	return p.u.getConfig(fmt.Sprintf("plugins.%s", p.id), key)
}

// GetConfigString 获取String配置
func (p *Proxy) GetConfigString(key string) string {
	return cast.ToString(p.GetConfig(key))
}

// GetConfigInt64 获取Int64配置
func (p *Proxy) GetConfigInt64(key string) int64 {
	return cast.ToInt64(p.GetConfig(key))
}

// GetConfigBool 获取Bool配置
func (p *Proxy) GetConfigBool(key string) bool {
	return cast.ToBool(p.GetConfig(key))
}

// ---- 数据库 ----

// GetDB 获取数据库
func (p *Proxy) GetDB() *gorm.DB {
	return p.u.db
}

// GetKV 获取K-V数据库
func (p *Proxy) GetKV() storage.KV {
	return p.u.kv
}
