package service

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"college_orbit_backend/pkg/logger"
	"college_orbit_backend/pkg/monitoring"
	"college_orbit_backend/pkg/notification"
	"college_orbit_backend/pkg/tracing"
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReminderResult 一次提醒扫描的统计
type ReminderResult struct {
	Deadlines int `json:"deadlines"`
	Users     int `json:"users"`
	Pushed    int `json:"pushed"`
	Emailed   int `json:"emailed"`
	Failed    int `json:"failed"`
}

type ReminderService struct {
	InstanceRepo *repository.InstanceRepository
	UserRepo     *repository.UserRepository
	DeviceRepo   *repository.DeviceTokenRepository
	Push         notification.PushProvider
	Email        notification.EmailProvider
	Config       *config.SchedulerConfig
	Now          func() time.Time
}

func NewReminderService(
	instanceRepo *repository.InstanceRepository,
	userRepo *repository.UserRepository,
	deviceRepo *repository.DeviceTokenRepository,
	push notification.PushProvider,
	email notification.EmailProvider,
	cfg *config.SchedulerConfig,
) *ReminderService {
	return &ReminderService{
		InstanceRepo: instanceRepo,
		UserRepo:     userRepo,
		DeviceRepo:   deviceRepo,
		Push:         push,
		Email:        email,
		Config:       cfg,
		Now:          time.Now,
	}
}

func (s *ReminderService) lookahead() time.Duration {
	if s.Config == nil || s.Config.ReminderLookhead <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.Config.ReminderLookhead) * time.Hour
}

// RegisterDevice 登记推送 token
func (s *ReminderService) RegisterDevice(ctx context.Context, userID uint, token, platform string) (*model.DeviceToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, util.Invalid("device token is required")
	}
	switch platform {
	case "ios", "android", "web":
	default:
		return nil, util.Invalid("unsupported platform %q", platform)
	}

	device := &model.DeviceToken{UserID: userID, Token: token, Platform: platform}
	if err := s.DeviceRepo.Upsert(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *ReminderService) UnregisterDevice(ctx context.Context, userID uint, token string) error {
	n, err := s.DeviceRepo.Delete(ctx, userID, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return util.ErrNotFound
	}
	return nil
}

// SendDeadlineReminders 对即将到期且尚未提醒的 deadline 发送推送和邮件
func (s *ReminderService) SendDeadlineReminders(ctx context.Context, now time.Time) (_ *ReminderResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "reminders.deadlines")
	defer func() { tracing.EndSpan(span, err) }()

	now = now.UTC()
	deadlines, err := s.InstanceRepo.FindDeadlinesForReminder(ctx, now, now.Add(s.lookahead()))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("deadlines.due", len(deadlines)))

	result := &ReminderResult{Deadlines: len(deadlines)}
	if len(deadlines) == 0 {
		return result, nil
	}

	// 已按 user_id 排序
	byUser := make(map[uint][]model.Deadline)
	var order []uint
	for _, d := range deadlines {
		if _, ok := byUser[d.UserID]; !ok {
			order = append(order, d.UserID)
		}
		byUser[d.UserID] = append(byUser[d.UserID], d)
	}
	result.Users = len(order)

	for _, userID := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		items := byUser[userID]
		pushed, emailed, err := s.notifyUser(ctx, userID, items)
		if err != nil {
			result.Failed += len(items)
			logger.Log.Warn("Deadline reminder failed",
				zap.Uint("userID", userID),
				zap.Int("deadlines", len(items)),
				zap.Error(err))
			continue
		}
		if pushed {
			result.Pushed++
		}
		if emailed {
			result.Emailed++
		}

		ids := make([]string, 0, len(items))
		for _, d := range items {
			ids = append(ids, d.ID)
		}
		if err := s.InstanceRepo.MarkReminderSent(ctx, ids, now); err != nil {
			return result, err
		}
	}

	logger.Log.Info("Deadline reminders processed",
		zap.Int("deadlines", result.Deadlines),
		zap.Int("users", result.Users),
		zap.Int("pushed", result.Pushed),
		zap.Int("emailed", result.Emailed),
		zap.Int("failed", result.Failed))
	return result, nil
}

// notifyUser 至少一个渠道成功即视为已提醒
func (s *ReminderService) notifyUser(ctx context.Context, userID uint, items []model.Deadline) (pushed, emailed bool, err error) {
	var (
		user    *model.User
		devices []model.DeviceToken
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.UserRepo.FindByID(gctx, userID)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		d, err := s.DeviceRepo.FindByUserID(gctx, userID)
		if err != nil {
			return err
		}
		devices = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, false, err
	}

	msg := reminderMessage(items, user.TimezoneOffset)
	var errs []string

	if s.Push != nil && len(devices) > 0 {
		targets := make([]notification.Device, 0, len(devices))
		for _, d := range devices {
			targets = append(targets, notification.Device{Token: d.Token, Platform: d.Platform})
		}
		sent, err := s.Push.SendPush(ctx, targets, msg)
		if err != nil {
			errs = append(errs, "push: "+err.Error())
		}
		if sent > 0 {
			pushed = true
			monitoring.RemindersSent.WithLabelValues("push").Inc()
		}
	}

	if s.Email != nil && user.Email != "" {
		if err := s.Email.SendEmail(ctx, user.Name, user.Email, msg); err != nil {
			errs = append(errs, "email: "+err.Error())
		} else {
			emailed = true
			monitoring.RemindersSent.WithLabelValues("email").Inc()
		}
	}

	if !pushed && !emailed {
		if len(errs) == 0 {
			return false, false, notification.ErrNoRecipients
		}
		return false, false, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return pushed, emailed, nil
}

func reminderMessage(items []model.Deadline, tzOffset int) notification.Message {
	local := func(t time.Time) string {
		return t.UTC().Add(-time.Duration(tzOffset) * time.Minute).Format("Jan 2 15:04")
	}

	msg := notification.Message{Data: map[string]string{"type": string(model.ItemDeadline)}}
	if len(items) == 1 {
		d := items[0]
		msg.Title = "Deadline coming up: " + d.Title
		msg.Body = fmt.Sprintf("%s is due %s.", d.Title, local(d.DueAt))
		msg.Data["id"] = d.ID
		return msg
	}

	msg.Title = fmt.Sprintf("%d deadlines coming up", len(items))
	lines := make([]string, 0, len(items))
	for _, d := range items {
		lines = append(lines, fmt.Sprintf("%s (due %s)", d.Title, local(d.DueAt)))
	}
	msg.Body = strings.Join(lines, "\n")
	msg.Data["count"] = fmt.Sprintf("%d", len(items))
	return msg
}
