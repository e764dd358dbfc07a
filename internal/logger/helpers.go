package logger

import "fmt"

// Icons used in alarm and status lines rendered on the operator overlay.
const (
	IconOK      = "✓"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
)

// Success logs an operator-visible success message.
func Success(args ...interface{}) {
	defaultLogger.Info(IconOK + " " + fmt.Sprint(args...))
}

// Alarm logs an operator-visible alarm line, e.g. "⚠ Azimuth Servo Fault".
func Alarm(args ...interface{}) {
	defaultLogger.Warn(IconWarning + " " + fmt.Sprint(args...))
}

// Alarmf logs a formatted alarm line.
func Alarmf(format string, args ...interface{}) {
	Alarm(fmt.Sprintf(format, args...))
}
