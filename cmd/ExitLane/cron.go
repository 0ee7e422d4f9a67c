package main

import (
	"context"
	"time"

	"ExitLane/internal/biz"
	"ExitLane/pkg/llm"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// StartMaintenanceCron 启动后台维护定时任务
// - 每 5 分钟清理一次过期的 LLM 响应缓存
// - 每小时将闲置超龄的进行中面谈标记为 abandoned
func StartMaintenanceCron(uc *biz.ConversationUseCase, lm *llm.Client, logger log.Logger) *cron.Cron {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())

	// 每 5 分钟执行一次（秒 分 时 日 月 周）
	_, err := c.AddFunc("0 */5 * * * *", func() {
		removed := lm.Cache().SweepExpired()
		if removed > 0 {
			helper.Infow("msg", "response cache sweep completed",
				"type", "scheduler",
				"removed", removed)
		}
	})
	if err != nil {
		helper.Errorw("msg", "failed to register cache sweep cron job", "error", err)
		return nil
	}

	// 每小时整点执行一次
	_, err = c.AddFunc("0 0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := uc.ExpireStaleInterviews(ctx); err != nil {
			helper.Errorw("msg", "stale interview expiry task failed", "error", err)
		}
	})
	if err != nil {
		helper.Errorw("msg", "failed to register stale interview cron job", "error", err)
		return nil
	}

	c.Start()
	helper.Info("Maintenance cron started: cache sweep every 5 minutes, stale interview expiry hourly")

	return c
}
