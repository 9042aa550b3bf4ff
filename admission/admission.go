// Package admission 定义准入判定链路中各组件共享的事件与结果类型
package admission

import (
	"fmt"
	"strings"
	"time"
)

// Session 会话类型
type Session int

const (
	SessionAll     Session = iota // 仅用于规则过滤：任意会话
	SessionPrivate                // 私聊
	SessionGroup                  // 群聊
)

func (s Session) String() string {
	switch s {
	case SessionPrivate:
		return "private"
	case SessionGroup:
		return "group"
	default:
		return "all"
	}
}

// Match 规则的会话过滤是否包含事件会话
func (s Session) Match(event Session) bool {
	return s == SessionAll || s == event
}

// ParseSession 解析会话过滤配置
func ParseSession(s string) (Session, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return SessionAll, nil
	case "private":
		return SessionPrivate, nil
	case "group":
		return SessionGroup, nil
	}
	return SessionAll, fmt.Errorf("unknown session kind %q", s)
}

// Scope 限流/限额的计数身份
type Scope int

const (
	ScopeUser  Scope = iota // 按用户计
	ScopeGroup              // 按群计
)

func (s Scope) String() string {
	if s == ScopeGroup {
		return "group"
	}
	return "user"
}

// ParseScope 解析计数身份配置
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "user":
		return ScopeUser, nil
	case "group":
		return ScopeGroup, nil
	}
	return ScopeUser, fmt.Errorf("unknown scope %q", s)
}

// Event 一次待准入的事件，由协议适配层构造
type Event struct {
	Capability string    // 将要处理该事件的插件/任务ID
	UserID     int64     // 触发用户
	GroupID    int64     // 所在群，私聊时为0
	Session    Session   // 会话类型
	Time       time.Time // 事件到达时间
}

// Identity 依据计数身份取得事件的身份ID；群身份在私聊中退化为用户ID
func (e Event) Identity(scope Scope) int64 {
	if scope == ScopeGroup && e.GroupID != 0 {
		return e.GroupID
	}
	return e.UserID
}

// Result 准入结果：Allowed 或 Rejected(hint)，hint为空代表静默拦截
type Result struct {
	allowed bool
	hint    string
}

// Allowed 放行
func Allowed() Result {
	return Result{allowed: true}
}

// Rejected 拒绝，并附带可为空的提示语
func Rejected(hint string) Result {
	return Result{hint: hint}
}

// OK 是否放行
func (r Result) OK() bool {
	return r.allowed
}

// Hint 拒绝时的提示语
func (r Result) Hint() string {
	return r.hint
}

func (r Result) String() string {
	if r.allowed {
		return "allowed"
	}
	if r.hint == "" {
		return "rejected"
	}
	return fmt.Sprintf("rejected(%s)", r.hint)
}
