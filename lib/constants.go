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

// Well-known endpoints and identifiers for the services ValNarrator
// intercepts or calls directly. These never vary by installation, unlike
// the values in Config.
const (
	ClientConfigURL = "https://clientconfig.rpg.riotgames.com/api/v1/config/player"
	EntitlementsURL = "https://entitlements.auth.riotgames.com/api/token/v1"
	RiotGeoURL      = "https://riot-geo.pas.si.riotgames.com/pas/v1/service/chat"

	RiotClientAuthScheme = "Basic"
	RiotChatTokenScheme  = "Bearer"

	Version = "0.1.0"
)
