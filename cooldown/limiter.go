package cooldown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// GlobalLimiter 全局限流器，以用户区分，防止频繁调用、刷屏
type GlobalLimiter struct {
	clock clockwork.Clock

	mu       sync.Mutex
	cd       time.Duration
	burst    int
	limiters map[int64]*subLimiter
}

// 子Limiter，指定了某个特定用户
type subLimiter struct {
	limiter *rate.Limiter
	lastGet time.Time // 上一次获取token的时间
}

// NewGlobalLimiter 新建全局限流器，cd<=0 时不限流
func NewGlobalLimiter(clock clockwork.Clock, cd time.Duration, burst int) *GlobalLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := &GlobalLimiter{clock: clock, limiters: make(map[int64]*subLimiter)}
	l.Reset(cd, burst)
	return l
}

// CD 当前CD
func (l *GlobalLimiter) CD() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cd
}

// Reset 重设CD与突发数，已有的子Limiter全部作废
func (l *GlobalLimiter) Reset(cd time.Duration, burst int) {
	if burst <= 0 {
		burst = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cd == cd && l.burst == burst {
		return
	}
	l.cd, l.burst = cd, burst
	l.limiters = make(map[int64]*subLimiter)
	log.Infof("全局限流设置：CD=%v, burst=%v", cd, burst)
}

// Allow 判断指定用户能否拿到令牌
func (l *GlobalLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cd <= 0 {
		return true
	}
	now := l.clock.Now()
	sub, ok := l.limiters[userID]
	if !ok {
		sub = &subLimiter{limiter: rate.NewLimiter(rate.Every(l.cd), l.burst)}
		l.limiters[userID] = sub
	}
	sub.lastGet = now
	return sub.limiter.AllowN(now, 1)
}

// GC 回收超过3倍CD(至少1分钟)未使用的子Limiter，返回回收数量
func (l *GlobalLimiter) GC() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	ttl := time.Minute
	if l.cd*3 > ttl {
		ttl = l.cd * 3
	}
	now := l.clock.Now()
	count := 0
	for id, sub := range l.limiters {
		if sub.lastGet.Add(ttl).Before(now) {
			delete(l.limiters, id)
			count++
		}
	}
	return count
}
