package quota

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/RicheyJang/PaimengGate/admission"

	log "github.com/sirupsen/logrus"
)

// Period 限额周期
type Period int

const (
	Hour Period = iota
	Day
	Week
	Month
	Year

	periodCount = 5
)

var periodNames = [periodCount]string{"hour", "day", "week", "month", "year"}

var periodAlias = map[string]Period{
	"小时": Hour,
	"时":  Hour,
	"天":  Day,
	"日":  Day,
	"周":  Week,
	"月":  Month,
	"年":  Year,
}

// Periods 全部周期
func Periods() []Period {
	return []Period{Hour, Day, Week, Month, Year}
}

func (p Period) String() string {
	if p < 0 || p >= periodCount {
		return "period(" + strconv.Itoa(int(p)) + ")"
	}
	return periodNames[p]
}

// Valid 是否为合法周期
func (p Period) Valid() bool {
	return p >= 0 && p < periodCount
}

// ParsePeriod 解析周期，支持英文名与中文
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range periodNames {
		if s == name {
			return Period(i), nil
		}
	}
	if p, ok := periodAlias[s]; ok {
		return p, nil
	}
	return Day, fmt.Errorf("unknown quota period %q", s)
}

// LimitPlaceholder 提示语中的限额次数占位符
const LimitPlaceholder = "{limit}"

var ErrInvalidRule = errors.New("invalid quota rule")

// Rule 限额规则：每个周期内最多调用Limit次
type Rule struct {
	Limit   int
	Scope   admission.Scope
	Session admission.Session
	Period  Period
	Hint    string
}

// Validate 检查规则是否合法
func (r Rule) Validate() error {
	if r.Limit <= 0 || !r.Period.Valid() {
		return fmt.Errorf("%w: limit=%d period=%v", ErrInvalidRule, r.Limit, r.Period)
	}
	return nil
}

func (r Rule) hint() string {
	return strings.ReplaceAll(r.Hint, LimitPlaceholder, strconv.Itoa(r.Limit))
}

type counters [periodCount]int

type checker struct {
	rule     Rule
	counters map[int64]*counters
}

func (c *checker) of(who int64) *counters {
	cnt, ok := c.counters[who]
	if !ok {
		cnt = new(counters)
		c.counters[who] = cnt
	}
	return cnt
}

// Engine 插件限额检查器
type Engine struct {
	mu       sync.Mutex
	checkers map[string][]*checker
	dirty    map[string]struct{}
}

// NewEngine 新建限额检查器
func NewEngine() *Engine {
	return &Engine{
		checkers: make(map[string][]*checker),
		dirty:    make(map[string]struct{}),
	}
}

// AddRules 为插件追加限额规则
func (e *Engine) AddRules(id string, rules ...Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("<%s>: %w", id, err)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rules {
		e.checkers[id] = append(e.checkers[id], &checker{rule: r, counters: make(map[int64]*counters)})
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

// Has 插件是否设置了限额
func (e *Engine) Has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.checkers[id]) > 0
}

// Check 依次检查所有规则：未达上限的规则立即计数，遇到达到上限的规则即拒绝；
// 拒绝前已计数的规则不回退
func (e *Engine) Check(id string, event admission.Event) admission.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.checkers[id] {
		if !c.rule.Session.Match(event.Session) {
			continue
		}
		cnt := c.of(event.Identity(c.rule.Scope))
		if cnt[c.rule.Period] >= c.rule.Limit {
			return admission.Rejected(c.rule.hint())
		}
		cnt[c.rule.Period]++
		e.dirty[id] = struct{}{}
	}
	return admission.Allowed()
}

// Remaining 在所有生效规则中剩余次数的最小值；limited为false代表没有生效的规则
func (e *Engine) Remaining(id string, event admission.Event) (left int, limited bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.checkers[id] {
		if !c.rule.Session.Match(event.Session) {
			continue
		}
		n := c.rule.Limit
		if cnt, ok := c.counters[event.Identity(c.rule.Scope)]; ok {
			n -= cnt[c.rule.Period]
		}
		if n < 0 {
			n = 0
		}
		if !limited || n < left {
			left = n
		}
		limited = true
	}
	return
}

// Reset 将所有插件、所有身份在指定周期上的计数清零
func (e *Engine) Reset(period Period) {
	if !period.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for id, chain := range e.checkers {
		touched := false
		for _, c := range chain {
			for _, cnt := range c.counters {
				if cnt[period] != 0 {
					cnt[period] = 0
					touched = true
					count++
				}
			}
		}
		if touched {
			e.dirty[id] = struct{}{}
		}
	}
	log.Infof("已重置%v周期限额，涉及计数%d条", period, count)
}

// ---- 持久化 ----

type blob struct {
	Checkers []map[int64]counters `json:"checkers"`
}

// TakeDirty 将变更过的插件计数编码为 插件ID -> 数据，并清除变更标记
func (e *Engine) TakeDirty() map[string][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := make(map[string][]byte, len(e.dirty))
	for id := range e.dirty {
		var b blob
		for _, c := range e.checkers[id] {
			m := make(map[int64]counters, len(c.counters))
			for who, cnt := range c.counters {
				if *cnt == (counters{}) {
					delete(c.counters, who)
					continue
				}
				m[who] = *cnt
			}
			b.Checkers = append(b.Checkers, m)
		}
		data, err := json.Marshal(b)
		if err != nil {
			log.Errorf("编码<%s>的限额计数失败：%v", id, err)
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

// Restore 载入插件的限额计数，须在 AddRules 之后调用
func (e *Engine) Restore(id string, data []byte) error {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("decode quota state of %s: %w", id, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	chain := e.checkers[id]
	if len(b.Checkers) != len(chain) {
		log.Warnf("<%s>的限额规则数量(%d)与已保存的计数(%d)不一致，按顺序尽量恢复", id, len(chain), len(b.Checkers))
	}
	for i := 0; i < len(chain) && i < len(b.Checkers); i++ {
		for who, cnt := range b.Checkers[i] {
			cnt := cnt
			chain[i].counters[who] = &cnt
		}
	}
	return nil
}
