/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package voice

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/valnarrator/connector/log"
)

const virtualDeviceNameSubstr = "CABLE"

// Router is the audio-routing capability from spec.md §9's redesign
// note: the Voice Generator asks "route playback of my process to
// device D" and is told synchronously whether it worked. The backing
// implementation (OS API, helper binary, PowerShell module) is a
// plug-in choice, not a core concern of this package.
type Router interface {
	// EnsureDevicePresent reports whether a playback device whose name
	// contains virtualDeviceNameSubstr exists on this system.
	EnsureDevicePresent() (bool, error)

	// RouteProcessAudio asks that pid's audio output be routed to the
	// virtual device, returning whether the request succeeded.
	RouteProcessAudio(pid int) (bool, error)
}

// HelperBinaryRouter is a Router backed by an external helper program,
// mirroring the ancestor implementation's reliance on a shelled-out
// per-application audio routing tool. The helper's path and argument
// convention are configured by the caller; HelperBinaryRouter only
// defines the calling convention, not the binary itself.
type HelperBinaryRouter struct {
	// HelperPath is the path to the routing helper executable.
	HelperPath string
}

func NewHelperBinaryRouter(helperPath string) *HelperBinaryRouter {
	return &HelperBinaryRouter{HelperPath: helperPath}
}

// EnsureDevicePresent shells out to "<helper> list-devices" and checks
// for a substring match on the virtual cable device's name.
func (h *HelperBinaryRouter) EnsureDevicePresent() (bool, error) {
	out, err := exec.Command(h.HelperPath, "list-devices").Output()
	if err != nil {
		return false, fmt.Errorf("list-devices failed: %s", err)
	}
	return strings.Contains(string(out), virtualDeviceNameSubstr), nil
}

// RouteProcessAudio shells out to "<helper> route <pid> <device>".
func (h *HelperBinaryRouter) RouteProcessAudio(pid int) (bool, error) {
	cmd := exec.Command(h.HelperPath, "route", fmt.Sprintf("%d", pid), virtualDeviceNameSubstr)
	if err := cmd.Run(); err != nil {
		log.WarningCf("voice", "audio routing for pid %d failed: %s", pid, err)
		return false, err
	}
	return true, nil
}
