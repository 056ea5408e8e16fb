/*
 * Copyright (c) 2026 The Annotix Authors.
 * This software is part of the Annotix audio annotation project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"annotix/internal/annot"
	"annotix/internal/dispatch"
	"annotix/internal/ident"
	"annotix/internal/prefs"
	"annotix/internal/session"
	"annotix/pkg/audioengine"
	"annotix/pkg/spec"
)

const (
	appName = "Annotix Studio"
	usage   = `commands:
  open <file>      load a wav/opus recording
  close            close the current recording
  play | pause     transport control (toggle with no audio args)
  stop             stop and return to ready
  seek <ms>        jump to a position
  seekby <ms>      jump relative to the current position
  start            rewind to the beginning
  replay           replay the last 200ms window
  last             replay from the previous play position
  vol <db>         playback loudness in powers of two
  ann <ms> <text>  commit an annotation
  del <index>      delete an annotation
  clear            delete all annotations
  list             show the annotation log
  save             write the working annotation file
  done             finalize annotations for this recording
  status           show the session snapshot
  quit`
)

// studio ties the session engine to the terminal. All engine state lives on
// the dispatch bus; the REPL only ever touches it through Invoke.
type studio struct {
	bus    *dispatch.Bus
	player *audioengine.BeepPlayer
	mgr    *session.Manager
	prefs  prefs.Prefs

	log      *annot.Log
	meta     annot.Metadata
	workPath string
	donePath string
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	pr, err := prefs.Load(prefs.DefaultPath())
	if err != nil {
		slog.Warn("preferences unreadable, using defaults", "error", err)
		pr = prefs.Default()
	}

	bus := dispatch.New()
	player := audioengine.NewBeepPlayer()
	mgr := session.NewManager(bus, player, player, session.Config{
		ForcedListen:   pr.ForcedListen,
		MinBandHz:      pr.MinBandHz,
		MaxBandHz:      pr.MaxBandHz,
		ChunkSeconds:   pr.ChunkSeconds,
		PreRollSeconds: pr.PreRollSeconds,
	})
	player.SetVolume(pr.Loudness)
	s := &studio{bus: bus, player: player, mgr: mgr, prefs: pr, log: annot.NewLog()}

	dispatch.Subscribe(bus, func(ev session.StateChanged) {
		snap := ev.Snapshot
		if snap.State == session.Failed {
			fmt.Printf("\n[%s] %s\n", snap.State, snap.ErrorMessage)
			return
		}
		fmt.Printf("\n[%s] frame %d/%d\n", snap.State, snap.CurrentFrame, snap.TotalFrames)
	})

	rl, err := readline.NewEx(&readline.Config{Prompt: "annotix> "})
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("%s %s (annotator: %s)\n", appName, spec.Version, pr.Annotator)
	fmt.Println("type 'help' for commands")

	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		if err := s.dispatchCmd(fields[0], fields[1:]); err != nil {
			if errors.Is(err, session.ErrIllegalCommand) {
				fmt.Printf("not now: %v\n", err)
			} else {
				fmt.Printf("error: %v\n", err)
			}
		}
	}

	s.mgr.Shutdown()
	bus.Close()
}

func (s *studio) dispatchCmd(cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Println(usage)
		return nil
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("usage: open <file>")
		}
		return s.open(args[0])
	case "close":
		return s.invoke(func() error { return s.mgr.Close() })
	case "play":
		return s.invoke(func() error { return s.mgr.Play() })
	case "pause":
		return s.invoke(func() error { return s.mgr.Pause() })
	case "stop":
		return s.invoke(func() error { return s.mgr.Stop() })
	case "toggle":
		return s.invoke(func() error { return s.mgr.TogglePlayPause() })
	case "seek":
		ms, err := parseMillis(args)
		if err != nil {
			return err
		}
		return s.invoke(func() error { return s.mgr.Seek(s.mgr.MillisToFrame(ms)) })
	case "seekby":
		ms, err := parseMillis(args)
		if err != nil {
			return err
		}
		return s.invoke(func() error { return s.mgr.SeekBy(s.mgr.MillisToFrame(ms)) })
	case "start":
		return s.invoke(func() error { return s.mgr.SeekToStart() })
	case "replay":
		return s.invoke(func() error { return s.mgr.ReplayLast() })
	case "last":
		return s.invoke(func() error { return s.mgr.ReplayLastPlay() })
	case "vol":
		if len(args) != 1 {
			return fmt.Errorf("usage: vol <db>")
		}
		db, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bad volume %q", args[0])
		}
		s.player.SetVolume(db)
		return nil
	case "ann":
		return s.annotate(args)
	case "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: del <index>")
		}
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad index %q", args[0])
		}
		return s.mutateLog(func() error { return s.log.RemoveAt(idx) })
	case "clear":
		return s.mutateLog(func() error { s.log.RemoveAll(); return nil })
	case "list":
		s.bus.Invoke(func() {
			for i, e := range s.log.Entries() {
				fmt.Printf("%3d  %9.1fms  %-10s %s\n", i, e.Time, e.Type, e.Text)
			}
		})
		return nil
	case "save":
		return s.invoke(func() error { return s.saveLog() })
	case "done":
		return s.finalize()
	case "status":
		s.status()
		return nil
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
}

// invoke runs fn on the dispatch bus and carries its error back.
func (s *studio) invoke(fn func() error) error {
	var err error
	s.bus.Invoke(func() { err = fn() })
	return err
}

// open loads a recording and its working annotation file. An already
// finalized recording is refused so a completed pass cannot be edited by
// accident.
func (s *studio) open(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	donePath := base + "." + spec.AnnotationFileExtension
	workPath := base + "." + spec.TemporaryAnnotationFileExtension
	if _, err := os.Stat(donePath); err == nil {
		return fmt.Errorf("%s already finalized (%s exists)", filepath.Base(path), filepath.Base(donePath))
	}

	return s.invoke(func() error {
		if err := s.mgr.Open(path); err != nil {
			return err
		}

		if _, err := os.Stat(workPath); err == nil {
			log, meta, err := annot.LoadLog(workPath, s.prefs.IntrusionMarker)
			if err != nil {
				return fmt.Errorf("resume annotations: %w", err)
			}
			s.log = log
			s.meta = meta
			fmt.Printf("resumed %d annotation(s) from %s\n", log.Len(), filepath.Base(workPath))
		} else {
			fp, err := ident.FingerprintReader(s.player, s.mgr.Handle(), s.mgr.Snapshot().TotalFrames)
			if err != nil {
				slog.Warn("audio fingerprint failed", "error", err)
				fp = ""
			}
			s.log = annot.NewLog()
			s.meta = annot.NewMetadata(s.prefs.Annotator, map[string]string{
				"audio_file":        filepath.Base(path),
				"audio_fingerprint": fp,
			})
		}
		s.workPath = workPath
		s.donePath = donePath
		return nil
	})
}

func (s *studio) annotate(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: ann <ms> <text>")
	}
	ms, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("bad time %q", args[0])
	}
	text := strings.Join(args[1:], " ")

	return s.invoke(func() error {
		if s.workPath == "" {
			return fmt.Errorf("no recording open")
		}
		if !s.mgr.CanAnnotateAt(ms) {
			return fmt.Errorf("forced listen: playback has not reached %.0fms yet", ms)
		}
		typ := annot.ClassifyText(text, s.prefs.IntrusionMarker)
		e, err := annot.NewEntry(ms, text, typ, s.prefs.Annotator)
		if err != nil {
			return err
		}
		s.log.Add(e)
		if err := s.saveLog(); err != nil {
			return err
		}
		dispatch.Publish(s.bus, session.LogChanged{Count: s.log.Len()})
		return nil
	})
}

// mutateLog applies a log mutation followed by an immediate durable save, so
// no annotation edit survives only in memory.
func (s *studio) mutateLog(fn func() error) error {
	return s.invoke(func() error {
		if s.workPath == "" {
			return fmt.Errorf("no recording open")
		}
		if err := fn(); err != nil {
			return err
		}
		if err := s.saveLog(); err != nil {
			return err
		}
		dispatch.Publish(s.bus, session.LogChanged{Count: s.log.Len()})
		return nil
	})
}

func (s *studio) saveLog() error {
	if s.workPath == "" {
		return fmt.Errorf("no recording open")
	}
	return annot.Save(s.log, s.meta, s.workPath)
}

// finalize promotes the working file to the permanent annotation document.
func (s *studio) finalize() error {
	return s.invoke(func() error {
		if s.workPath == "" {
			return fmt.Errorf("no recording open")
		}
		if err := s.saveLog(); err != nil {
			return err
		}
		if err := annot.Finalize(s.workPath, s.donePath); err != nil {
			return err
		}
		fmt.Printf("finalized %s (%d annotations)\n", filepath.Base(s.donePath), s.log.Len())
		return nil
	})
}

func (s *studio) status() {
	s.bus.Invoke(func() {
		snap := s.mgr.Snapshot()
		fmt.Printf("state     : %s\n", snap.State)
		if snap.State == session.Failed {
			fmt.Printf("error     : %s\n", snap.ErrorMessage)
		}
		if snap.Path != "" {
			fmt.Printf("file      : %s\n", snap.Path)
			fmt.Printf("position  : %.1fms (frame %d/%d @ %dHz)\n",
				s.mgr.FrameToMillis(snap.CurrentFrame), snap.CurrentFrame, snap.TotalFrames, snap.SampleRate)
			fmt.Printf("heard upto: %.1fms\n", s.mgr.FrameToMillis(s.mgr.Tracker().GreatestFrame()))
		}
		fmt.Printf("annotations: %d\n", s.log.Len())
	})
}

func parseMillis(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected a time in milliseconds")
	}
	ms, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("bad time %q", args[0])
	}
	return ms, nil
}
