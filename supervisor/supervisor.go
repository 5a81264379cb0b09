/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Package supervisor owns process lifecycle: building the chosen
// chat-ingest path (MITM or Bridge), the startup validation window, the
// chat router and TTS queue, the game client launch, and graceful
// shutdown (spec.md §4.6, §5, §7).
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/valnarrator/connector/configmitm"
	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/log"
	"github.com/valnarrator/connector/router"
	"github.com/valnarrator/connector/statusmonitor"
	"github.com/valnarrator/connector/voice"
	"github.com/valnarrator/connector/xmppbridge"
	"github.com/valnarrator/connector/xmppmitm"
)

// Supervisor wires every subsystem together and drives the process
// lifecycle described in spec.md §4.6 (mirroring the teacher's
// connector() function: config load, component construction in
// dependency order, startup validation, signal handling, shutdown).
type Supervisor struct {
	config *lib.Config
	bus    *events.Bus

	cm     *configmitm.ConfigMITM
	xm     *xmppmitm.XmppMITM
	bridge *xmppbridge.Bridge
	rt     *router.Router
	queue  *voice.Queue
	status *statusmonitor.Monitor

	selfPUUID atomic.Value // string

	riotCmd *exec.Cmd
}

// New builds a Supervisor. Subsystems are not started until Run.
func New(config *lib.Config, bus *events.Bus) *Supervisor {
	s := &Supervisor{config: config, bus: bus}
	s.selfPUUID.Store("")
	return s
}

// Run builds and starts every subsystem, waits out the startup validation
// window, launches the Riot client, and blocks until shutdown. It returns
// a process exit code exactly like the teacher's connector() does: 0 on a
// clean shutdown, 1 on any fatal startup condition.
func (s *Supervisor) Run() int {
	configStore := lib.NewChatConfigStore(s.config.Chat)

	var synth voice.Synth = voice.NoopSynth{}
	var ptt voice.KeyController = voice.NoopKeyController{}
	if s.config.AudioHelperPath != "" {
		synth = voice.NewHelperBinarySynth(s.config.AudioHelperPath)
		ptt = voice.NewHelperBinaryKeyController(s.config.AudioHelperPath)
	} else {
		s.bus.Publish(events.Info("no audio_helper_path configured; TTS synthesis is a no-op"))
	}
	s.queue = voice.NewQueue(s.bus, synth, ptt, s.config.PTTEnabled, s.config.TTSRate)

	s.rt = router.New(configStore, s.selfPUUIDFunc(), s.queue)
	go s.rt.Run(s.bus.Subscribe())

	if s.config.AudioHelperPath != "" {
		r := voice.NewHelperBinaryRouter(s.config.AudioHelperPath)
		if present, err := r.EnsureDevicePresent(); err != nil || !present {
			s.bus.Publish(events.Info(fmt.Sprintf("virtual audio device %q not detected; narration will be silent", s.config.VirtualAudioDevice)))
		} else if routed, err := r.RouteProcessAudio(os.Getpid()); err != nil || !routed {
			s.bus.Publish(events.Info("failed to route this process's audio output to the virtual device"))
		}
	}

	switch s.config.Mode {
	case lib.ModeBridge:
		if err := s.startBridge(); err != nil {
			s.bus.Publish(events.Error(events.ErrInternal, err.Error()))
			return 1
		}
	default:
		if err := s.startMITM(); err != nil {
			s.bus.Publish(events.Error(events.ErrInternal, err.Error()))
			return 1
		}
	}

	if s.config.StatusSocketPath != "" {
		if mon, err := statusmonitor.New(s.statsSource(), s.config.StatusSocketPath); err != nil {
			log.ErrorCf("supervisor", "statusmonitor failed to start: %s", err)
		} else {
			s.status = mon
		}
	}

	if fatalCode, ok := s.watchStartupWindow(); ok {
		s.bus.Publish(events.Error(fatalCode, "fatal error observed during startup validation window"))
		s.teardown()
		return 1
	}

	httpPort := s.config.ConfigMITMPort
	if s.cm != nil {
		httpPort = uint16(s.cm.Port())
	}
	if err := s.launchRiotClient(httpPort); err != nil {
		s.bus.Publish(events.Error(events.ErrInternal, "failed to launch Riot client: "+err.Error()))
		s.teardown()
		return 1
	}

	s.bus.Publish(events.Startup(os.Getpid(), lib.Version))
	log.InfoCf("supervisor", "ready, mode=%s", s.config.Mode)

	s.waitForShutdown()

	s.bus.Publish(events.Shutdown("signal received"))
	s.teardown()
	return 0
}

// startMITM builds ConfigMITM and XmppMITM in dependency order (leaves
// first, per spec.md §2): XmppMITM needs ConfigMITM's AffinityMap before
// it can dial upstream.
func (s *Supervisor) startMITM() error {
	cm, err := configmitm.New(s.bus, fmt.Sprintf("127.0.0.1:%d", s.config.ConfigMITMPort), int(s.config.XmppMITMPort))
	if err != nil {
		return err
	}
	s.cm = cm

	xm, err := xmppmitm.New(s.bus, fmt.Sprintf("127.0.0.1:%d", s.config.XmppMITMPort), cm.Affinities())
	if err != nil {
		return err
	}
	s.xm = xm

	Go(s.bus, "selfjid-watcher", func() { s.watchSelfJID(s.bus.Subscribe()) })

	return nil
}

// startBridge builds the XMPP Bridge and wires its stdin command reader.
func (s *Supervisor) startBridge() error {
	b := xmppbridge.New(s.bus, s.config.LockfilePath)
	s.bridge = b
	Go(s.bus, "xmppbridge", b.Run)
	go b.ReadCommands(os.Stdin)
	return nil
}

// statsSource builds the statusmonitor accessor set for whichever
// chat-ingest path is active; the unused side's counter is left nil,
// which statusmonitor.Monitor treats as a flat 0.
func (s *Supervisor) statsSource() statusmonitor.StatsSource {
	src := statusmonitor.StatsSource{Router: s.rt}
	if s.xm != nil {
		src.ActivePairsCount = s.xm.ActivePairs
	}
	if s.bridge != nil {
		src.JoinedRoomCount = s.bridge.JoinedRoomCount
	}
	return src
}

// selfPUUIDFunc returns the lazily-evaluated accessor the Router needs.
// In MITM mode it is fed by watchSelfJID; in Bridge mode the Bridge
// already knows its own credentials.
func (s *Supervisor) selfPUUIDFunc() func() string {
	return func() string {
		if s.bridge != nil {
			return s.bridge.SelfPUUID()
		}
		return s.selfPUUID.Load().(string)
	}
}

// watchSelfJID observes incoming resource-bind IQ results on the event
// bus to learn the local account's puuid, since the MITM path never runs
// its own handshake (it only relays the game client's).
func (s *Supervisor) watchSelfJID(ch <-chan events.Event) {
	for e := range ch {
		if e.Type != events.TypeIncoming {
			continue
		}
		if puuid, ok := router.ExtractBindJID(e.Data); ok {
			s.selfPUUID.Store(puuid)
		}
	}
}

// watchStartupWindow subscribes to the bus for StartupWindowSec seconds
// and reports the first fatal-startup error code seen, per spec.md §5.
func (s *Supervisor) watchStartupWindow() (code int, fatal bool) {
	window := time.Duration(s.config.StartupWindowSec) * time.Second
	if window <= 0 {
		window = lib.DefaultStartupWindowSec * time.Second
	}
	ch := s.bus.Subscribe()
	deadline := time.After(window)
	for {
		select {
		case e := <-ch:
			if e.Type == events.TypeError && events.IsFatalStartupCode(e.Code) {
				return e.Code, true
			}
		case <-deadline:
			return 0, false
		}
	}
}

// launchRiotClient invokes the configured Riot client binary with the
// exact flags spec.md §6 names. An empty RiotClientPath is treated as
// "nothing to launch" (useful for development against a client started
// by hand).
func (s *Supervisor) launchRiotClient(httpPort uint16) error {
	if s.config.RiotClientPath == "" {
		log.InfoCf("supervisor", "riot_client_path unset, not launching a client process")
		return nil
	}

	cmd := exec.Command(s.config.RiotClientPath,
		fmt.Sprintf("--client-config-url=http://127.0.0.1:%d", httpPort),
		"--launch-product=valorant",
		"--launch-patchline=live",
	)
	if err := cmd.Start(); err != nil {
		return err
	}
	s.riotCmd = cmd
	return nil
}

// waitForShutdown blocks until SIGINT/SIGTERM, mirroring the teacher's
// waitIndefinitely but without its hard os.Exit on a second signal: the
// supervisor has its own bounded shutdown wait below.
func (s *Supervisor) waitForShutdown() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}

// teardown closes every subsystem and waits up to lib.DefaultShutdownWaitSec
// seconds for the launched Riot client to exit before returning, per
// spec.md §5.
func (s *Supervisor) teardown() {
	if s.status != nil {
		s.status.Quit()
	}
	if s.queue != nil {
		s.queue.Stop()
	}
	if s.xm != nil {
		s.xm.Close()
	}
	if s.cm != nil {
		s.cm.Close()
	}
	if s.bridge != nil {
		s.bridge.Stop()
	}

	if s.riotCmd != nil && s.riotCmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- s.riotCmd.Wait() }()
		select {
		case <-done:
		case <-time.After(lib.DefaultShutdownWaitSec * time.Second):
			s.riotCmd.Process.Kill()
		}
	}

	s.bus.Close()
}
