package controller

import (
	"college_orbit_backend/internal/service"
	"college_orbit_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

// CronController 外部定时任务（如 Vercel Cron）触发的批处理入口
type CronController struct {
	PatternService  *service.RecurringPatternService
	ReminderService *service.ReminderService
	Now             func() time.Time
}

func NewCronController(patternService *service.RecurringPatternService, reminderService *service.ReminderService) *CronController {
	return &CronController{
		PatternService:  patternService,
		ReminderService: reminderService,
		Now:             time.Now,
	}
}

// TopUpRecurring godoc
// @Summary 补齐重复规则实例
// @Tags 定时任务
// @Produce  json
// @Param   X-Cron-Secret header string true "定时任务密钥"
// @Success 200 {object} util.Response{data=service.TopUpResult}
// @Failure 401 {object} util.Response
// @Router /cron/recurring/top-up [post]
func (c *CronController) TopUpRecurring(ctx *gin.Context) {
	result, err := c.PatternService.TopUpActivePatterns(ctx.Request.Context(), c.Now())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// SendDeadlineReminders godoc
// @Summary 发送截止提醒
// @Tags 定时任务
// @Produce  json
// @Param   X-Cron-Secret header string true "定时任务密钥"
// @Success 200 {object} util.Response{data=service.ReminderResult}
// @Failure 401 {object} util.Response
// @Router /cron/reminders/deadlines [post]
func (c *CronController) SendDeadlineReminders(ctx *gin.Context) {
	result, err := c.ReminderService.SendDeadlineReminders(ctx.Request.Context(), c.Now())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
