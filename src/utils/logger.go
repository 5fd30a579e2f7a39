package utils

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
)

// SetupLogger applies LOG_LEVEL (fallback debug) and LOG_FORMAT (text or json).
func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

// LoadEnvFile loads KEY=VALUE pairs from path when the file exists. Variables
// already set in the environment win.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
