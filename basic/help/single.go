package help

import (
	"fmt"
	"strings"

	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/utils"
)

func formSingleHelpMsg(conditions []manager.Condition, cmd string, v viewer) string {
	var selected *manager.Condition
	for i := range conditions { // 优先找ID、名称与别名
		c := &conditions[i]
		if (c.ID == cmd || c.Name == cmd || utils.StringSliceContain(c.Aliases, cmd)) && v.couldShow(*c) {
			selected = c
			break
		}
	}
	if selected == nil { // 尝试通过命令
		for i := range conditions {
			c := &conditions[i]
			if isCmdContains(*c, cmd, v.isSuper) && v.couldShow(*c) {
				selected = c
				break
			}
		}
	}
	if selected == nil {
		return "没有找到这个功能哦"
	}
	name := selected.Name
	if len(name) == 0 {
		name = selected.ID
	}
	if v.isSuper {
		name += fmt.Sprintf("（ID：%v）", selected.ID)
	}
	var b strings.Builder
	b.WriteString(name)
	if v.groupID != 0 && !v.enabledIn(selected.ID, v.groupID) {
		b.WriteString("\n本群已关闭该功能")
	}
	if len(selected.Aliases) > 0 {
		b.WriteString("\n别名：" + strings.Join(selected.Aliases, "、"))
	}
	if usage := strings.TrimSpace(selected.Usage); len(usage) > 0 {
		b.WriteString("\n" + usage)
	}
	return b.String()
}

func isCmdContains(c manager.Condition, cmd string, isSuper bool) bool {
	if isSuper {
		for _, pCmds := range c.SuperCmd {
			if utils.StringSliceContain(pCmds, cmd) {
				return true
			}
		}
	}
	for _, pCmds := range c.NormalCmd {
		if utils.StringSliceContain(pCmds, cmd) {
			return true
		}
	}
	return false
}
