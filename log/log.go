// Package log holds the process-wide zap logger.
package log

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GlobalConfig defines the global logger configurations.
type GlobalConfig struct {
	Zap            *zap.Config `yaml:"zap"`
	RedirectStdLog bool        `yaml:"stdLogRedirect"`
}

var _subLoggers = map[string]*zap.Logger{}

func init() {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.Level.SetLevel(zap.InfoLevel)
	l, err := zapCfg.Build()
	if err != nil {
		log.Println("Failed to init zap global logger, no zap log will be shown till zap is properly initialized: ", err)
		return
	}
	zap.ReplaceGlobals(l)
}

// L wraps zap.L().
func L() *zap.Logger { return zap.L() }

// S wraps zap.S().
func S() *zap.SugaredLogger { return zap.S() }

// Logger returns the sub logger of the given name, or the global
// logger named name if none was registered.
func Logger(name string) *zap.Logger {
	if logger, ok := _subLoggers[name]; ok {
		return logger
	}
	return L().Named(name)
}

// InitLoggers replaces the global logger with one built from globalCfg
// and registers the given sub logger names under it.
func InitLoggers(globalCfg GlobalConfig, subLoggers ...string) error {
	if globalCfg.Zap == nil {
		zapCfg := zap.NewProductionConfig()
		globalCfg.Zap = &zapCfg
	} else {
		globalCfg.Zap.EncoderConfig = zap.NewProductionEncoderConfig()
	}
	logger, err := globalCfg.Zap.Build()
	if err != nil {
		return err
	}
	if globalCfg.RedirectStdLog {
		zap.RedirectStdLog(logger)
	}
	zap.ReplaceGlobals(logger)
	for _, name := range subLoggers {
		_subLoggers[name] = logger.Named(name)
	}
	return nil
}
