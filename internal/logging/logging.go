package logging

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// New builds the process-wide structured logger. JSON output so log
// aggregators can index fields; level comes from config.
func New() *logrus.Logger {
	viper.SetDefault("log.level", "info")

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
