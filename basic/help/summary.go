package help

import (
	"sort"
	"strings"

	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/perm"
	"github.com/RicheyJang/PaimengGate/utils"
)

// 查看帮助的用户所处的环境
type viewer struct {
	isSuper    bool
	groupID    int64 // 私聊时为0
	userLevel  perm.Level
	groupLevel perm.Level
	enabledIn  func(id string, groupID int64) bool
}

func newViewer(m *manager.Manager, userID, groupID int64) viewer {
	v := viewer{
		isSuper:   utils.IsSuperUser(userID),
		groupID:   groupID,
		userLevel: m.Users().Permission(userID),
		enabledIn: m.EnabledIn,
	}
	if groupID != 0 {
		v.groupLevel = m.Groups().Permission(groupID)
	}
	return v
}

// 功能对该用户是否可见
func (v viewer) couldShow(c manager.Condition) bool {
	if v.isSuper {
		return true
	}
	if len(c.NormalCmd) == 0 && len(c.SuperCmd) > 0 {
		return false // 仅含超级用户命令
	}
	if !c.GlobalEnabled || !v.userLevel.AtLeast(c.UserPermission) {
		return false
	}
	return v.groupID == 0 || v.groupLevel.AtLeast(c.GroupPermission)
}

const (
	defaultClassify = "一般功能"
	taskClassify    = "定时任务"
	superClassify   = "超级用户"
)

func classifyOf(c manager.Condition) string {
	switch {
	case c.Kind == manager.KindTask:
		return taskClassify
	case len(c.NormalCmd) == 0 && len(c.SuperCmd) > 0:
		return superClassify
	default:
		return defaultClassify
	}
}

func formSummaryHelpMsg(conditions []manager.Condition, v viewer) string {
	helps := make(map[string][]string)
	for _, c := range conditions {
		if !v.couldShow(c) {
			continue
		}
		name := c.Name
		if len(name) == 0 {
			name = c.ID
		}
		if v.groupID != 0 && !v.enabledIn(c.ID, v.groupID) {
			name += "（本群已关闭）"
		} else if !c.GlobalEnabled {
			name += "（全局关闭）"
		}
		classify := classifyOf(c)
		helps[classify] = append(helps[classify], name)
	}
	if len(helps) == 0 {
		return "暂时没有可以使用的功能"
	}
	var b strings.Builder
	b.WriteString("全部功能：")
	for _, classify := range []string{defaultClassify, taskClassify, superClassify} {
		names, ok := helps[classify]
		if !ok {
			continue
		}
		sort.Strings(names)
		b.WriteString("\n" + classify + "：\n\t")
		b.WriteString(strings.Join(names, "\n\t"))
	}
	return b.String()
}
