/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Package log is the leveled, journal-aware logger shared by every
// subsystem. It is deliberately separate from the NDJSON event stream that
// events.Writer puts on stdout: this is the operator-facing debug log, not
// the GUI-facing event contract.
package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/journal"
)

const (
	logFormat          = "%c [%s] %s\n"
	logComponentFormat = "%c [%s] [%s] %s\n"

	dateTimeFormat = "02/Jan/2006:15:04:05 -0700"

	journalComponentFormat = "[%s] %s"
)

var (
	levelToInitial = map[LogLevel]rune{
		FATAL:   'X',
		ERROR:   'E',
		WARNING: 'W',
		INFO:    'I',
		DEBUG:   'D',
	}

	logger struct {
		writer         io.Writer
		level          LogLevel
		journalEnabled bool
	}
)

// LogLevel is a subset of the severity levels named by CUPS, kept for
// familiarity with the rest of this codebase's ancestry.
type LogLevel uint8

const (
	FATAL LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

func LevelFromString(level string) (LogLevel, bool) {
	switch strings.ToLower(level) {
	case "fatal":
		return FATAL, true
	case "error":
		return ERROR, true
	case "warning":
		return WARNING, true
	case "info":
		return INFO, true
	case "debug":
		return DEBUG, true
	default:
		return 0, false
	}
}

func (l LogLevel) priority() journal.Priority {
	switch l {
	case FATAL:
		return journal.PriCrit
	case ERROR:
		return journal.PriErr
	case WARNING:
		return journal.PriWarning
	case INFO:
		return journal.PriInfo
	case DEBUG:
		return journal.PriDebug
	default:
		return journal.PriDebug
	}
}

func init() {
	logger.writer = os.Stderr
	logger.level = INFO
}

// SetWriter sets the io.Writer to log to. Default is os.Stderr. The
// valnarrator binary's run() wires this to a lumberjack.Logger when a log
// file is configured.
func SetWriter(w io.Writer) {
	logger.writer = w
}

// SetLevel sets the minimum severity level to log. Default is INFO.
func SetLevel(l LogLevel) {
	logger.level = l
}

// SetJournalEnabled enables or disables mirroring to the systemd journal.
// Default is false.
func SetJournalEnabled(b bool) {
	logger.journalEnabled = b
}

// log writes one line, optionally tagged with a component (a subsystem
// name, a socket id, a room JID) the same way the ancestor logger tagged
// lines with a printer or job id.
func log(level LogLevel, component, format string, args ...interface{}) {
	if level > logger.level {
		return
	}

	levelInitial := levelToInitial[level]
	dateTime := time.Now().Format(dateTimeFormat)
	var message string
	if format == "" {
		message = fmt.Sprint(args...)
	} else {
		message = fmt.Sprintf(format, args...)
	}

	journalVars := make(map[string]string)
	var journalMessage string
	if component != "" {
		fmt.Fprintf(logger.writer, logComponentFormat, levelInitial, dateTime, component, message)
		journalVars["COMPONENT"] = component
		journalMessage = fmt.Sprintf(journalComponentFormat, component, message)
	} else {
		fmt.Fprintf(logger.writer, logFormat, levelInitial, dateTime, message)
		journalMessage = message
	}

	if logger.journalEnabled {
		pc := make([]uintptr, 1)
		runtime.Callers(3, pc)
		f := runtime.FuncForPC(pc[0])
		journalVars["CODE_FUNC"] = f.Name()
		file, line := f.FileLine(pc[0])
		journalVars["CODE_FILE"] = file
		journalVars["CODE_LINE"] = strconv.Itoa(line)
		journal.Send(journalMessage, level.priority(), journalVars)
	}
}

func Fatal(args ...interface{})                    { log(FATAL, "", "", args...) }
func Fatalf(format string, args ...interface{})    { log(FATAL, "", format, args...) }
func FatalC(component string, args ...interface{}) { log(FATAL, component, "", args...) }
func FatalCf(component, format string, args ...interface{}) {
	log(FATAL, component, format, args...)
}

func Error(args ...interface{})                    { log(ERROR, "", "", args...) }
func Errorf(format string, args ...interface{})    { log(ERROR, "", format, args...) }
func ErrorC(component string, args ...interface{}) { log(ERROR, component, "", args...) }
func ErrorCf(component, format string, args ...interface{}) {
	log(ERROR, component, format, args...)
}

func Warning(args ...interface{})                    { log(WARNING, "", "", args...) }
func Warningf(format string, args ...interface{})    { log(WARNING, "", format, args...) }
func WarningC(component string, args ...interface{}) { log(WARNING, component, "", args...) }
func WarningCf(component, format string, args ...interface{}) {
	log(WARNING, component, format, args...)
}

func Info(args ...interface{})                    { log(INFO, "", "", args...) }
func Infof(format string, args ...interface{})    { log(INFO, "", format, args...) }
func InfoC(component string, args ...interface{}) { log(INFO, component, "", args...) }
func InfoCf(component, format string, args ...interface{}) {
	log(INFO, component, format, args...)
}

func Debug(args ...interface{})                    { log(DEBUG, "", "", args...) }
func Debugf(format string, args ...interface{})    { log(DEBUG, "", format, args...) }
func DebugC(component string, args ...interface{}) { log(DEBUG, component, "", args...) }
func DebugCf(component, format string, args ...interface{}) {
	log(DEBUG, component, format, args...)
}
