package providers

import (
	"fmt"
	"github.com/spf13/viper"
	"iotd/internal/structures"
	"path/filepath"
	"strings"
)

func setConfigDefaults() {
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.keepAlive", "30s")
	viper.SetDefault("mqtt.connectTimeout", "15s")
	viper.SetDefault("mqtt.cleanSession", true)
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.topicPrefix", "iot")
	viper.SetDefault("mqtt.demoTopic", "topicTemp")

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslMode", "disable")

	viper.SetDefault("monitoring.deviceTimeout", "300s")
	viper.SetDefault("monitoring.timeoutCheckInterval", "60s")
	viper.SetDefault("monitoring.alertCheckInterval", "300s")
	viper.SetDefault("monitoring.lowBatteryThreshold", 20)
	viper.SetDefault("monitoring.weakSignalThreshold", -80)
	viper.SetDefault("monitoring.highTempThreshold", 30)

	viper.SetDefault("archive.archiveAfterDays", 30)
	viper.SetDefault("archive.deleteAfterDays", 365)
	viper.SetDefault("archive.maxArchiveDays", 730)
	viper.SetDefault("archive.schedule", "0 0 2 * * *")
	viper.SetDefault("archive.cleanupSchedule", "0 0 3 * * 0")
	viper.SetDefault("archive.codec", "zstd")

	viper.SetDefault("redis.key", "iotd:subscriptions")
	viper.SetDefault("cache.ttl", "10s")
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")
	setConfigDefaults()

	viper.BindEnv("logger.level", "IOTD_LOG_LEVEL")
	viper.BindEnv("mqtt.host", "IOTD_MQTT_HOST")
	viper.BindEnv("mqtt.port", "IOTD_MQTT_PORT")
	viper.BindEnv("mqtt.username", "IOTD_MQTT_USERNAME")
	viper.BindEnv("mqtt.password", "IOTD_MQTT_PASSWORD")
	viper.BindEnv("database.host", "IOTD_DB_HOST")
	viper.BindEnv("database.password", "IOTD_DB_PASSWORD")
	viper.BindEnv("redis.enabled", "IOTD_REDIS_ENABLED")
	viper.BindEnv("redis.addr", "IOTD_REDIS_ADDR")
	viper.BindEnv("cache.enabled", "IOTD_CACHE_ENABLED")
	viper.BindEnv("cache.size", "IOTD_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "IotDeviceDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
