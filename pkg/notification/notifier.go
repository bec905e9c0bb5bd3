// Package notification 推送与邮件通知渠道
package notification

import (
	"context"
	"errors"
)

var ErrNoRecipients = errors.New("notification: no recipients")

// Message 一条提醒内容
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Device 推送目标
type Device struct {
	Token    string
	Platform string
}

type PushProvider interface {
	SendPush(ctx context.Context, devices []Device, msg Message) (sent int, err error)
}

type EmailProvider interface {
	SendEmail(ctx context.Context, toName, toAddress string, msg Message) error
}
