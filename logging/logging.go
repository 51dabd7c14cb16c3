package logging

import (
    wwlogging "github.com/PelionIoT/wigwag-go-logger/logging"
)

// Log is the process-wide logger shared by every dbsync package.
var Log = wwlogging.Log

func SetLoggingLevel(ll string) {
    wwlogging.SetLoggingLevel(ll)
}

func LogLevelIsValid(ll string) bool {
    return wwlogging.LogLevelIsValid(ll)
}
