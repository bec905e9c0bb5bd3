package notification

import (
	"college_orbit_backend/pkg/logger"
	"context"

	"go.uber.org/zap"
)

// LogNotifier 未配置 FCM / SendGrid 时使用，只写日志
type LogNotifier struct{}

func (LogNotifier) SendPush(_ context.Context, devices []Device, msg Message) (int, error) {
	if len(devices) == 0 {
		return 0, ErrNoRecipients
	}
	logger.Log.Info("push notification (log only)", zap.Int("devices", len(devices)), zap.String("title", msg.Title))
	return len(devices), nil
}

func (LogNotifier) SendEmail(_ context.Context, _, toAddress string, msg Message) error {
	if toAddress == "" {
		return ErrNoRecipients
	}
	logger.Log.Info("email notification (log only)", zap.String("to", toAddress), zap.String("subject", msg.Title))
	return nil
}
