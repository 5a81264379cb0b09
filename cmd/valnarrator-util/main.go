/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Command valnarrator-util is the maintenance CLI sibling of the
// valnarrator supervisor binary (spec.md's expanded §4.10), grounded on
// gcp-connector-util: lockfile inspection, ConfigMITM response dumping,
// and a standalone TTS smoke test against the configured audio helper.
package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"

	"github.com/satori/go.uuid"
	"github.com/urfave/cli"

	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/voice"
)

var commands = []cli.Command{
	{
		Name:   "lockfile-info",
		Usage:  "Locate and print the parsed Riot lockfile contents",
		Action: lockfileInfo,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "lockfile-path",
				Usage: "Lockfile path; empty uses the platform default",
			},
		},
	},
	{
		Name:   "clientconfig-dump",
		Usage:  "Fetch and pretty-print a running ConfigMITM's rewritten player config",
		Action: clientconfigDump,
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "config-mitm-port",
				Usage: "ConfigMITM loopback port",
				Value: lib.DefaultConfigMITMPort,
			},
		},
	},
	{
		Name:   "tts-test",
		Usage:  "Speak one utterance through the configured audio helper, without a game client",
		Action: ttsTest,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "helper-path",
				Usage: "Path to the audio helper binary",
			},
			cli.IntFlag{
				Name:  "rate",
				Usage: "TTS engine rate passed through to the helper",
				Value: lib.DefaultTTSRate,
			},
		},
	},
}

func main() {
	log.SetFlags(0)

	app := cli.NewApp()
	app.Name = "valnarrator-util"
	app.Usage = "ValNarrator maintenance tools"
	app.Version = lib.Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config-filename",
			Usage: "Name of config file",
			Value: *lib.ConfigFilename,
		},
	}
	app.Commands = commands

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func lockfileInfo(c *cli.Context) error {
	rec, err := lib.ReadLockfile(c.String("lockfile-path"))
	if err != nil {
		return err
	}
	fmt.Printf("name:     %s\n", rec.Name)
	fmt.Printf("pid:      %d\n", rec.PID)
	fmt.Printf("port:     %d\n", rec.Port)
	fmt.Printf("password: %s\n", rec.Password)
	fmt.Printf("protocol: %s\n", rec.Protocol)
	return nil
}

func clientconfigDump(c *cli.Context) error {
	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/config/player", c.Int("config-mitm-port"))
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("no ConfigMITM listening on that port: %s", err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		fmt.Println(string(body))
		return nil
	}

	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func ttsTest(c *cli.Context) error {
	helperPath := c.String("helper-path")
	if helperPath == "" {
		return fmt.Errorf("-helper-path is required")
	}

	jobID := uuid.NewV4().String()

	synth := voice.NewHelperBinarySynth(helperPath)
	u := voice.Utterance{Text: "ValNarrator text to speech test.", Rate: c.Int("rate")}
	if err := synth.Speak(u); err != nil {
		return fmt.Errorf("helper speak failed: %s", err)
	}
	fmt.Printf("spoke test utterance, job %s\n", jobID)
	return nil
}
