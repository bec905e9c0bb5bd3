package notification

import (
	"college_orbit_backend/pkg/logger"
	"context"
	"encoding/base64"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCMService 通过 Firebase Cloud Messaging 逐个发送
type FCMService struct {
	client *messaging.Client
}

// NewFCMService 优先读取 FCM_SERVICE_ACCOUNT_JSON (base64)，否则使用本地凭证文件
func NewFCMService(ctx context.Context, credentialsFile string) (*FCMService, error) {
	var opt option.ClientOption

	if encoded := os.Getenv("FCM_SERVICE_ACCOUNT_JSON"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
	} else {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file %q: %w", credentialsFile, err)
		}
		opt = option.WithCredentialsFile(credentialsFile)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

func (s *FCMService) SendPush(ctx context.Context, devices []Device, msg Message) (int, error) {
	if len(devices) == 0 {
		return 0, ErrNoRecipients
	}

	sent, failed := 0, 0
	for _, d := range devices {
		m := &messaging.Message{
			Token: d.Token,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
		}
		switch d.Platform {
		case "ios":
			m.APNS = &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			}
		default:
			m.Android = &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			}
		}

		if _, err := s.client.Send(ctx, m); err != nil {
			logger.Log.Warn("FCM send failed", zap.String("platform", d.Platform), zap.Error(err))
			failed++
			continue
		}
		sent++
	}

	if sent == 0 && failed > 0 {
		return 0, fmt.Errorf("all %d push notifications failed", failed)
	}
	return sent, nil
}
