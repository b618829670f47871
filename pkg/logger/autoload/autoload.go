// Package autoload initializes the global logger from LOG_* environment
// variables as a side effect of being imported.
package autoload

import (
	configx "github.com/brightline-consulting/discovery/pkg/config"
	logx "github.com/brightline-consulting/discovery/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		cfg = logx.DefaultConfig
	}
	logx.Init(*cfg)
}
