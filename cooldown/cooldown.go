package cooldown

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RicheyJang/PaimengGate/admission"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// RemainingPlaceholder 提示语中的剩余时间占位符，替换为保留两位小数的秒数
const RemainingPlaceholder = "{remaining}"

var ErrInvalidRule = errors.New("invalid cooldown rule")

// Rule CD规则
type Rule struct {
	Duration time.Duration     // CD时长
	Scope    admission.Scope   // 按用户或按群计
	Session  admission.Session // 生效的会话类型
	Hint     string            // 被拦截时的提示语，为空时静默拦截
}

// Validate 检查规则是否合法
func (r Rule) Validate() error {
	if r.Duration <= 0 {
		return fmt.Errorf("%w: duration %v", ErrInvalidRule, r.Duration)
	}
	return nil
}

func (r Rule) hint(remaining time.Duration) string {
	if len(r.Hint) == 0 {
		return ""
	}
	return strings.ReplaceAll(r.Hint, RemainingPlaceholder, fmt.Sprintf("%.2f", remaining.Seconds()))
}

type checker struct {
	rule Rule
	last map[int64]time.Time // 身份ID -> 上次调用时间
}

// Engine 插件CD检查器，每个插件可按声明顺序挂载多条规则
type Engine struct {
	clock clockwork.Clock

	mu       sync.Mutex
	checkers map[string][]*checker
	dirty    map[string]struct{}
}

// NewEngine 新建CD检查器
func NewEngine(clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		clock:    clock,
		checkers: make(map[string][]*checker),
		dirty:    make(map[string]struct{}),
	}
}

// AddRules 为插件追加CD规则
func (e *Engine) AddRules(id string, rules ...Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("<%s>: %w", id, err)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rules {
		e.checkers[id] = append(e.checkers[id], &checker{rule: r, last: make(map[int64]time.Time)})
	}
	return nil
}

// Remove 移除插件的全部规则与状态
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.checkers, id)
	delete(e.dirty, id)
}

// Has 插件是否设置了CD
func (e *Engine) Has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.checkers[id]) > 0
}

// Check 依次检查所有规则；全部通过后才统一记录本次调用时间
func (e *Engine) Check(id string, event admission.Event) admission.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	chain := e.checkers[id]
	if len(chain) == 0 {
		return admission.Allowed()
	}
	now := e.clock.Now()
	for _, c := range chain {
		if !c.rule.Session.Match(event.Session) {
			continue
		}
		last, ok := c.last[event.Identity(c.rule.Scope)]
		if !ok {
			continue
		}
		if elapsed := now.Sub(last); elapsed < c.rule.Duration {
			return admission.Rejected(c.rule.hint(c.rule.Duration - elapsed))
		}
	}
	for _, c := range chain {
		if !c.rule.Session.Match(event.Session) {
			continue
		}
		c.last[event.Identity(c.rule.Scope)] = now
	}
	e.dirty[id] = struct{}{}
	return admission.Allowed()
}

// Remaining 指定身份在该插件上仍需等待的最长时间，不记录调用
func (e *Engine) Remaining(id string, event admission.Event) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	var res time.Duration
	for _, c := range e.checkers[id] {
		if !c.rule.Session.Match(event.Session) {
			continue
		}
		last, ok := c.last[event.Identity(c.rule.Scope)]
		if !ok {
			continue
		}
		if left := c.rule.Duration - now.Sub(last); left > res {
			res = left
		}
	}
	return res
}

// ---- 持久化 ----

// 每条规则一项：身份ID -> 上次调用时间(UnixNano)
type blob struct {
	Checkers []map[int64]int64 `json:"checkers"`
}

// TakeDirty 将变更过的插件状态编码为 插件ID -> 数据，并清除变更标记；已过期的记录不会被保存
func (e *Engine) TakeDirty() map[string][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	res := make(map[string][]byte, len(e.dirty))
	for id := range e.dirty {
		var b blob
		for _, c := range e.checkers[id] {
			stamps := make(map[int64]int64)
			for who, at := range c.last {
				if now.Sub(at) >= c.rule.Duration {
					delete(c.last, who)
					continue
				}
				stamps[who] = at.UnixNano()
			}
			b.Checkers = append(b.Checkers, stamps)
		}
		data, err := json.Marshal(b)
		if err != nil {
			log.Errorf("编码<%s>的CD状态失败：%v", id, err)
			continue
		}
		res[id] = data
	}
	e.dirty = make(map[string]struct{})
	return res
}

// MarkDirty 保存失败后重新标记
func (e *Engine) MarkDirty(ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		e.dirty[id] = struct{}{}
	}
}

// Restore 载入插件的CD状态，须在 AddRules 之后调用；数据损坏时返回错误且不修改任何状态
func (e *Engine) Restore(id string, data []byte) error {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("decode cooldown state of %s: %w", id, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	chain := e.checkers[id]
	if len(b.Checkers) != len(chain) {
		log.Warnf("<%s>的CD规则数量(%d)与已保存的状态(%d)不一致，按顺序尽量恢复", id, len(chain), len(b.Checkers))
	}
	for i := 0; i < len(chain) && i < len(b.Checkers); i++ {
		for who, at := range b.Checkers[i] {
			chain[i].last[who] = time.Unix(0, at)
		}
	}
	return nil
}
