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

import "sync/atomic"

// ChatConfigStore implements the single-writer/many-reader atomic
// snapshot discipline spec.md §5 requires for ChatConfig: writers compose
// a full new ChatConfig value and Publish it; readers Snapshot a
// consistent value without ever observing a partially-written config.
type ChatConfigStore struct {
	v atomic.Value
}

// NewChatConfigStore creates a store pre-loaded with the given config.
func NewChatConfigStore(initial ChatConfig) *ChatConfigStore {
	s := &ChatConfigStore{}
	s.v.Store(initial)
	return s
}

// Publish installs a new ChatConfig snapshot. Safe to call from any
// goroutine; only one goroutine (the configuration thread) is expected to
// call this per spec.md §3's ownership rule, but nothing here enforces
// single-writer beyond the atomic.Value semantics.
func (s *ChatConfigStore) Publish(c ChatConfig) {
	s.v.Store(c)
}

// Snapshot returns the current ChatConfig by value.
func (s *ChatConfigStore) Snapshot() ChatConfig {
	return s.v.Load().(ChatConfig)
}
