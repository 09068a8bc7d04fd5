// Package conf loads and provides access to application configuration.
package conf

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Settings contains all configuration options for the foodlens-go application.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this foodlens-go node
		Log  LogConfig // logging configuration
	}

	Detector DetectorConfig // inference backend configuration

	Realtime RealtimeSettings // realtime broadcast settings

	WebServer struct {
		Debug   bool   // true to enable web server debug mode
		Enabled bool   // true to enable web server
		Port    string // port for web server
	}

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
}

// DetectorConfig holds the settings for the inference router and its backends.
type DetectorConfig struct {
	ModelPath     string         // path to local detection model weights
	LabelPath     string         // path to class label file for the local model
	Threshold     float64        // default confidence threshold for detections
	IoU           float64        // default IoU threshold for non-max suppression
	MaxDetections int            // default cap on detections per image, 0 for unlimited
	Roboflow      RoboflowConfig // remote hosted-inference backend
}

// RoboflowConfig holds the settings for the Roboflow hosted inference API.
type RoboflowConfig struct {
	APIKey    string // API key, typically from ROBOFLOW_API_KEY
	Workspace string // workspace slug
	Project   string // project slug
	Version   string // model version
	Endpoint  string // base URL of the hosted inference service
	Timeout   int    // request timeout in seconds
}

// RealtimeSettings contains settings for the live broadcast pipeline.
type RealtimeSettings struct {
	StatsInterval int        // minimum seconds between statistics_update broadcasts
	MQTT          MQTTConfig // optional MQTT publishing of new predictions
}

// MQTTConfig holds the settings for the optional MQTT publisher.
type MQTTConfig struct {
	Enabled  bool   // true to enable MQTT publishing
	Broker   string // MQTT broker URL, e.g. tcp://localhost:1883
	Topic    string // topic for new prediction messages
	Username string // broker username
	Password string // broker password
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/foodlens-go")
	viper.AddConfigPath("/etc/foodlens-go")

	viper.SetEnvPrefix("foodlens")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The Roboflow variables keep their upstream names so existing
	// deployments keep working without a config file.
	bindRoboflowEnv()

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, run on defaults and environment
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

func bindRoboflowEnv() {
	for key, env := range map[string]string{
		"detector.roboflow.apikey":    "ROBOFLOW_API_KEY",
		"detector.roboflow.workspace": "ROBOFLOW_WORKSPACE",
		"detector.roboflow.project":   "ROBOFLOW_PROJECT",
		"detector.roboflow.version":   "ROBOFLOW_VERSION",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Printf("error binding %s: %v", env, err)
		}
	}
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
