package config

import "github.com/kelseyhightower/envconfig"

// Config holds daemon configuration loaded from environment variables.
type Config struct {
	Addr           string `envconfig:"ADDR" default:":8080"`
	DBPath         string `envconfig:"DB_PATH" default:"reminders.db"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	CheckpointCron string `envconfig:"CHECKPOINT_CRON" default:"@hourly"`
	DesktopNotify  bool   `envconfig:"DESKTOP_NOTIFY" default:"true"`
	NotifyCommand  string `envconfig:"NOTIFY_COMMAND" default:""` // optional hook run per alert
	NotifyWebhook  string `envconfig:"NOTIFY_WEBHOOK" default:""` // optional URL POSTed per alert
	NotifyWorkers  int    `envconfig:"NOTIFY_WORKERS" default:"2"`
	Debug          bool   `envconfig:"DEBUG" default:"false"` // pprof endpoints
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
