// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FoodLens-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "foodlens.log")

	viper.SetDefault("detector.modelpath", "weights/foodlens.tflite")
	viper.SetDefault("detector.labelpath", "weights/labels.txt")
	viper.SetDefault("detector.threshold", 0.25)
	viper.SetDefault("detector.iou", 0.45)
	viper.SetDefault("detector.maxdetections", 0)

	viper.SetDefault("detector.roboflow.apikey", "")
	viper.SetDefault("detector.roboflow.workspace", "")
	viper.SetDefault("detector.roboflow.project", "")
	viper.SetDefault("detector.roboflow.version", "")
	viper.SetDefault("detector.roboflow.endpoint", "https://detect.roboflow.com")
	viper.SetDefault("detector.roboflow.timeout", 30)

	viper.SetDefault("realtime.statsinterval", 5)
	viper.SetDefault("realtime.mqtt.enabled", false)
	viper.SetDefault("realtime.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("realtime.mqtt.topic", "foodlens/predictions")
	viper.SetDefault("realtime.mqtt.username", "")
	viper.SetDefault("realtime.mqtt.password", "")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "prediction_logs.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "foodlens")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "foodlens")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
