package manager

import (
	"context"

	"github.com/RicheyJang/PaimengGate/quota"
	"github.com/RicheyJang/PaimengGate/utils"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// 各限额周期的重置时刻
var periodSpecs = map[quota.Period]string{
	quota.Hour:  "0 * * * *",
	quota.Day:   "0 0 * * *",
	quota.Week:  "0 0 * * 1",
	quota.Month: "0 0 1 * *",
	quota.Year:  "0 0 1 1 *",
}

func (m *Manager) newCron() *cron.Cron {
	logger := utils.NewCronLogger()
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
		cron.WithLocation(m.clock.Now().Location()),
	)
	for _, period := range quota.Periods() {
		period := period
		if _, err := c.AddFunc(periodSpecs[period], func() { m.ResetQuota(period) }); err != nil {
			log.Errorf("添加%v限额重置任务失败：%v", period, err)
		}
	}
	if _, err := c.AddFunc(m.config.SaveSpec, m.saveJob); err != nil {
		log.Errorf("添加定时保存任务(%v)失败：%v", m.config.SaveSpec, err)
	}
	_, err := c.AddFunc("@every 10m", func() { // 清理长时间未使用的全局限流器
		if n := m.limiter.GC(); n > 0 {
			log.Debugf("清理了%d个空闲的全局限流器", n)
		}
	})
	if err != nil {
		log.Errorf("添加全局限流器清理任务失败：%v", err)
	}
	return c
}

func (m *Manager) saveJob() {
	if err := m.Save(context.Background()); err != nil {
		log.Errorf("定时保存失败，将在下次重试：%v", err)
	}
}
