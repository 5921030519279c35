package structures

import (
	"net/http"
	"time"
)

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Route struct {
	Url     string
	Handler http.Handler
}

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type MqttConfig struct {
	Host           string        `yaml:"host" validate:"required"`
	Port           int           `yaml:"port" validate:"required|uint|min:1"`
	ClientID       string        `yaml:"clientId"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	KeepAlive      time.Duration `yaml:"keepAlive" validate:"required|min:1"`
	ConnectTimeout time.Duration `yaml:"connectTimeout" validate:"required|min:1"`
	CleanSession   bool          `yaml:"cleanSession"`
	Qos            int           `yaml:"qos" validate:"in:0,1,2"`
	TopicPrefix    string        `yaml:"topicPrefix" validate:"required"`
	DemoTopic      string        `yaml:"demoTopic"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" validate:"required|in:postgres,sqlite"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name" validate:"required"`
	SslMode  string `yaml:"sslMode"`
	LogSQL   bool   `yaml:"logSql"`
}

type MonitoringConfig struct {
	DeviceTimeout        time.Duration `yaml:"deviceTimeout" validate:"required|min:1"`
	TimeoutCheckInterval time.Duration `yaml:"timeoutCheckInterval" validate:"required|min:1"`
	AlertCheckInterval   time.Duration `yaml:"alertCheckInterval" validate:"required|min:1"`
	LowBatteryThreshold  int           `yaml:"lowBatteryThreshold" validate:"required|min:1|max:100"`
	WeakSignalThreshold  int           `yaml:"weakSignalThreshold" validate:"required"`
	HighTempThreshold    float64       `yaml:"highTempThreshold"`
}

type ArchiveConfig struct {
	ArchiveAfterDays int    `yaml:"archiveAfterDays" validate:"required|min:1"`
	DeleteAfterDays  int    `yaml:"deleteAfterDays" validate:"required|min:1"`
	MaxArchiveDays   int    `yaml:"maxArchiveDays" validate:"required|min:1"`
	Schedule         string `yaml:"schedule" validate:"required"`
	CleanupSchedule  string `yaml:"cleanupSchedule" validate:"required"`
	Codec            string `yaml:"codec" validate:"required|in:zstd,gzip"`
	ColdStorageDir   string `yaml:"coldStorageDir"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName    string
	Debug      bool
	Path       string
	Mqtt       MqttConfig       `yaml:"mqtt"`
	Database   DatabaseConfig   `yaml:"database"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Redis      RedisConfig      `yaml:"redis"`
	WebServer  Server           `yaml:"webServer"`
	Logger     LoggerConfig     `yaml:"logger"`
	Cache      CacheConfig      `yaml:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}
