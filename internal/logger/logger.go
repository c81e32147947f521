package logger

import (
	"log"
	"sync/atomic"

	d2logger "github.com/d2r2/go-logger"
)

// i2cPackage is the d2r2/go-i2c logger name; its debug output traces every
// register transfer.
const i2cPackage = "i2c"

var verboseLogging atomic.Bool

func init() {
	log.SetFlags(0)
	d2logger.ChangePackageLogLevel(i2cPackage, d2logger.InfoLevel)
}

// SetVerbose enables info output and raises the I2C bus log level to debug.
func SetVerbose(enabled bool) {
	verboseLogging.Store(enabled)

	level := d2logger.InfoLevel
	if enabled {
		level = d2logger.DebugLevel
	}
	d2logger.ChangePackageLogLevel(i2cPackage, level)
}

func Verbose() bool {
	return verboseLogging.Load()
}

// Infof logs only if verbose logging is enabled
func Infof(format string, v ...any) {
	if Verbose() {
		log.Printf(format, v...)
	}
}

func Infoln(v ...any) {
	if Verbose() {
		log.Println(v...)
	}
}

// Errorf is always logged
func Errorf(format string, v ...any) {
	log.Printf(format, v...)
}

func Fatalf(format string, v ...any) {
	log.Fatalf(format, v...)
}
