package conf

import (
	"fmt"
)

// ValidateSettings checks the loaded settings for values that would
// misconfigure the service in ways that are hard to diagnose at runtime.
func ValidateSettings(settings *Settings) error {
	if settings.Detector.Threshold < 0 || settings.Detector.Threshold > 1 {
		return fmt.Errorf("detector.threshold must be between 0.0 and 1.0, got %f", settings.Detector.Threshold)
	}

	if settings.Detector.IoU < 0 || settings.Detector.IoU > 1 {
		return fmt.Errorf("detector.iou must be between 0.0 and 1.0, got %f", settings.Detector.IoU)
	}

	if settings.Detector.MaxDetections < 0 {
		return fmt.Errorf("detector.maxdetections must not be negative, got %d", settings.Detector.MaxDetections)
	}

	if settings.Detector.Roboflow.Timeout <= 0 {
		return fmt.Errorf("detector.roboflow.timeout must be positive, got %d", settings.Detector.Roboflow.Timeout)
	}

	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must be set when sqlite output is enabled")
	}

	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			return fmt.Errorf("output.mysql.host and output.mysql.database must be set when mysql output is enabled")
		}
	}

	if settings.Realtime.MQTT.Enabled && settings.Realtime.MQTT.Broker == "" {
		return fmt.Errorf("realtime.mqtt.broker must be set when mqtt is enabled")
	}

	return nil
}
