// Package logger provides structured logging on top of zerolog.
//
// # Configuration
//
//	log:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg, "restclient").WithComponent("rest")
//	log.Debug("request sent", logger.Fields("method", "GET", "status", 200))
package logger
