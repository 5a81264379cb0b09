/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/log"
	"github.com/valnarrator/connector/supervisor"
)

var logToConsoleFlag = flag.Bool("log-to-console", false, "Log to STDERR, in addition to file")

func main() {
	os.Exit(run())
}

func run() int {
	config, err := lib.ConfigFromFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config file: %s\n", err)
		return 1
	}

	var logWriter io.Writer = os.Stderr
	if config.LogFilename != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   config.LogFilename,
			MaxSize:    int(config.LogFileMaxMegabytes),
			MaxBackups: int(config.LogMaxFiles),
			LocalTime:  true,
		}
		if *logToConsoleFlag {
			logWriter = io.MultiWriter(fileWriter, os.Stderr)
		} else {
			logWriter = fileWriter
		}
	}
	logLevel, ok := log.LevelFromString(config.LogLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "log level %q is not recognized\n", config.LogLevel)
		return 1
	}
	log.SetLevel(logLevel)
	log.SetWriter(logWriter)

	log.InfoCf("main", "valnarrator %s starting, mode=%s", lib.Version, config.Mode)

	bus := events.NewBus()
	writer := events.NewWriter(os.Stdout)
	go writer.Pump(bus.Subscribe())

	return supervisor.New(config, bus).Run()
}
