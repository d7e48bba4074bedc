package config

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies level and format to the standard logrus logger.
func ConfigureLogging(cfg LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	log.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
