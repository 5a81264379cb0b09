/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package supervisor

import (
	"fmt"

	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/log"
)

// Go runs fn in its own goroutine under panic recovery. An uncaught panic
// is converted into a code-500 error event and fn is restarted; per
// spec.md §7 only the fatal startup codes are allowed to end the process,
// so a panicking subsystem task must not take the whole process down with
// it.
func Go(bus *events.Bus, name string, fn func()) {
	go runSupervised(bus, name, fn)
}

func runSupervised(bus *events.Bus, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorCf(name, "recovered panic: %v", r)
			bus.Publish(events.Error(events.ErrInternal, fmt.Sprintf("%s panicked: %v", name, r)))
			go runSupervised(bus, name, fn)
		}
	}()
	fn()
}
