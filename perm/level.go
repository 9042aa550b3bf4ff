package perm

import (
	"fmt"
	"strconv"
	"strings"
)

// Level 权限等级，数值越大权限越高
type Level int

const (
	Black     Level = iota // 黑名单
	Bad                    // 较差
	Normal                 // 普通（默认）
	Good                   // 良好
	Excellent              // 优秀
)

var levelNames = [...]string{"black", "bad", "normal", "good", "excellent"}

// 中文别名，供管理命令使用
var levelAlias = map[string]Level{
	"黑名单": Black,
	"差":   Bad,
	"普通":  Normal,
	"良好":  Good,
	"优秀":  Excellent,
}

// Valid 是否为合法等级
func (l Level) Valid() bool {
	return l >= Black && l <= Excellent
}

func (l Level) String() string {
	if !l.Valid() {
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l]
}

// AtLeast l是否不低于need
func (l Level) AtLeast(need Level) bool {
	return l >= need
}

// Parse 解析权限等级：支持英文名、中文别名以及数字0~4
func Parse(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if s == name {
			return Level(i), nil
		}
	}
	if l, ok := levelAlias[s]; ok {
		return l, nil
	}
	n, err := strconv.Atoi(s)
	if err == nil && Level(n).Valid() {
		return Level(n), nil
	}
	return Normal, fmt.Errorf("unknown permission level %q", s)
}

// Clamp 将任意整数限制在合法等级范围内，用于读取持久化数据或配置
func Clamp(n int) Level {
	if n < int(Black) {
		return Black
	}
	if n > int(Excellent) {
		return Excellent
	}
	return Level(n)
}

// Required 功能要求的最低等级至少为Bad，黑名单无法使用任何功能
func Required(l Level) Level {
	if l < Bad {
		return Bad
	}
	return l
}
