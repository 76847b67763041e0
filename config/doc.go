// Package config loads configuration into a struct from a YAML file, a .env
// file and the environment, using Viper and godotenv.
//
// Keys follow the struct's mapstructure tags. Every leaf key can be
// overridden from the environment as PREFIX_KEY_PATH, for example
// RESTCLIENT_LOG_LEVEL for log.level.
//
//	var cfg AppConfig
//	err := config.Load("restclient", &cfg, config.WithConfigFile(path))
package config
