/*
Copyright 2014 Google Inc. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package lib

import (
	"encoding/json"
	"flag"
	"io/ioutil"
)

const (
	DefaultConfigMITMPort   = 35479
	DefaultXmppMITMPort     = 35478
	DefaultStartupWindowSec = 3
	DefaultShutdownWaitSec  = 5
	DefaultLogLevel         = "info"
	DefaultLogFileMaxMB     = 10
	DefaultLogMaxFiles      = 3
	DefaultTTSRate          = 0

	// ModeMITM runs ConfigMITM + XmppMITM (spec.md §4.1-4.2); ModeBridge
	// runs the authenticating XMPP Bridge instead (spec.md §4.3). Both
	// emit the same event contract; a deployment picks one (spec.md §9).
	ModeMITM   = "mitm"
	ModeBridge = "bridge"
)

var ConfigFilename = flag.String("config-filename", "valnarrator.config.json", "Name of config file")

// Config is the on-disk, flag-overridable configuration for the
// supervisor binary. Everything below the JSON config is a ChatConfig,
// mutated at runtime by the GUI collaborator rather than persisted here.
type Config struct {
	// Loopback port ConfigMITM listens on.
	ConfigMITMPort uint16 `json:"config_mitm_port"`

	// Loopback port XmppMITM listens on.
	XmppMITMPort uint16 `json:"xmpp_mitm_port"`

	// Seconds to watch the MITM's stdout for a fatal error before
	// declaring it ready.
	StartupWindowSec uint `json:"startup_window_sec"`

	// Path to the Riot client binary to launch once the MITM is ready.
	RiotClientPath string `json:"riot_client_path"`

	// Path to the lockfile written by the game launcher.
	LockfilePath string `json:"lockfile_path,omitempty"`

	// Name of the virtual audio playback device ("CABLE" substring match).
	VirtualAudioDevice string `json:"virtual_audio_device"`

	// Path to a log file; rotated with lumberjack. Empty disables file
	// logging (stderr only).
	LogFilename string `json:"log_filename,omitempty"`

	// One of fatal/error/warning/info/debug.
	LogLevel string `json:"log_level"`

	// Rotated log file size, in megabytes.
	LogFileMaxMegabytes uint `json:"log_file_max_megabytes"`

	// Rotated log file count to retain.
	LogMaxFiles uint `json:"log_max_files"`

	// Path to the Unix-domain statusmonitor socket.
	StatusSocketPath string `json:"status_socket_path,omitempty"`

	// "mitm" or "bridge" (ModeMITM / ModeBridge); selects which chat-ingest
	// path the supervisor starts (spec.md §9).
	Mode string `json:"mode"`

	// Path to the audio-routing helper binary (voice.HelperBinaryRouter).
	AudioHelperPath string `json:"audio_helper_path,omitempty"`

	// Whether the TTS queue drives a push-to-talk key before each
	// utterance.
	PTTEnabled bool `json:"ptt_enabled"`

	// OS TTS engine rate, passed through to voice.Utterance verbatim.
	TTSRate int `json:"tts_rate"`

	// Initial chat narration configuration.
	Chat ChatConfig `json:"chat"`
}

var DefaultConfig = Config{
	ConfigMITMPort:      DefaultConfigMITMPort,
	XmppMITMPort:        DefaultXmppMITMPort,
	StartupWindowSec:    DefaultStartupWindowSec,
	VirtualAudioDevice:  "CABLE",
	LogLevel:            DefaultLogLevel,
	LogFileMaxMegabytes: DefaultLogFileMaxMB,
	LogMaxFiles:         DefaultLogMaxFiles,
	Mode:                ModeMITM,
	PTTEnabled:          true,
	TTSRate:             DefaultTTSRate,
	Chat:                DefaultChatConfig(),
}

func ConfigFromFile() (*Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}

	config := DefaultConfig

	b, err := ioutil.ReadFile(*ConfigFilename)
	if err != nil {
		return &config, err
	}

	if err = json.Unmarshal(b, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) ToFile() error {
	if !flag.Parsed() {
		flag.Parse()
	}

	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(*ConfigFilename, b, 0600)
}
