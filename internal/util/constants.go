package util

const (
	DateFormat  = "2006-01-02"
	MonthFormat = "2006-01"
	ClockFormat = "15:04"
	TimeFormat  = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeCalendar = "text/calendar"
)

// CronSecretHeader 定时任务触发接口的鉴权头
const CronSecretHeader = "X-Cron-Secret"

// 时区偏移范围（分钟，UTC - 本地）
const (
	MinTimezoneOffset = -14 * 60
	MaxTimezoneOffset = 12 * 60
)
