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

// MessageKind classifies a ChatMessage by the MUC room or whisper it
// arrived through.
type MessageKind uint8

const (
	PARTY MessageKind = iota
	TEAM
	ALL
	WHISPER
)

func (k MessageKind) String() string {
	switch k {
	case PARTY:
		return "PARTY"
	case TEAM:
		return "TEAM"
	case ALL:
		return "ALL"
	case WHISPER:
		return "WHISPER"
	default:
		return "UNKNOWN"
	}
}

// ChatConfig is a value type, published atomically by the single
// configuration writer (the GUI collaborator) and read by value by the
// router on every incoming message. See lib.ChatConfigStore for the
// publish/snapshot discipline.
type ChatConfig struct {
	EnabledChannels    map[MessageKind]bool `json:"enabled_channels"`
	IgnoredPlayerIDs   map[string]bool      `json:"ignored_player_ids"`
	IncludeOwnMessages bool                 `json:"include_own_messages"`
	WhispersEnabled    bool                 `json:"whispers_enabled"`
	Disabled           bool                 `json:"disabled"`
}

// DefaultChatConfig matches spec.md §4.4: PARTY and TEAM enabled,
// whispers enabled, own messages included.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		EnabledChannels: map[MessageKind]bool{
			PARTY: true,
			TEAM:  true,
		},
		IgnoredPlayerIDs:   map[string]bool{},
		IncludeOwnMessages: true,
		WhispersEnabled:    true,
		Disabled:           false,
	}
}

// Clone returns a deep copy so that a caller can mutate the result and
// publish it as a new snapshot without aliasing the original's maps.
func (c ChatConfig) Clone() ChatConfig {
	clone := c
	clone.EnabledChannels = make(map[MessageKind]bool, len(c.EnabledChannels))
	for k, v := range c.EnabledChannels {
		clone.EnabledChannels[k] = v
	}
	clone.IgnoredPlayerIDs = make(map[string]bool, len(c.IgnoredPlayerIDs))
	for k, v := range c.IgnoredPlayerIDs {
		clone.IgnoredPlayerIDs[k] = v
	}
	return clone
}
