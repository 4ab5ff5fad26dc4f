package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadConfig resolves the config from the bound flags, falling back to env vars. It returns
// nil when neither names a usable source.
func LoadConfig() *Config {
	configType := viper.GetString(FlagConfigType)
	if configType == "" {
		configType = os.Getenv(EnvVarConfigType)
	}
	if configType == "" {
		configType = LocalConfig
	}
	switch configType {
	case AWSConfig:
		awsSecretKey := viper.GetString(FlagConfigAwsSecretKey)
		awsRegion := viper.GetString(FlagConfigAwsRegion)
		if awsSecretKey == "" || awsRegion == "" {
			return nil
		}
		content, err := GetSecret(awsSecretKey, awsRegion)
		if err != nil {
			fmt.Printf("get aws config error, err=%s\n", err.Error())
			return nil
		}
		return ParseConfigFromJson(content)
	case LocalConfig:
		configFilePath := viper.GetString(FlagConfigPath)
		if configFilePath == "" {
			configFilePath = os.Getenv(EnvVarConfigFilePath)
		}
		if configFilePath == "" {
			return nil
		}
		return ParseConfigFromFile(configFilePath)
	default:
		return nil
	}
}

// DBPassword picks the db password from the flag, the env, an aws secret, then the config file.
func DBPassword(cfg *DBConfig) string {
	if password := viper.GetString(FlagConfigDbPass); password != "" {
		return password
	}
	if password := os.Getenv(EnvVarDBUserPass); password != "" {
		return password
	}
	if cfg.AWSSecretName != "" {
		result, err := GetSecret(cfg.AWSSecretName, cfg.AWSRegion)
		if err != nil {
			panic(err)
		}
		var secret struct {
			DbPass string `json:"db_pass"`
		}
		if err = json.Unmarshal([]byte(result), &secret); err != nil {
			panic(err)
		}
		return secret.DbPass
	}
	return cfg.Password
}
