/*
 * Copyright (c) 2026 The Annotix Authors.
 * This software is part of the Annotix audio annotation project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"annotix/pkg/audioengine"
	"annotix/pkg/spec"
)

const (
	appName      = "Annotix Player Debug Tools"
	generalUsage = "Usage: ./atx-player-debug <path to .wav or .opus>"
)

// Debug harness for the audio backend: plays a file front to back, printing
// every precision event and a live position bar. Not for production use.
func main() {
	fmt.Println("========================================")
	fmt.Printf("%s version %s\n", appName, spec.Version)
	fmt.Println("CTRL + C stop and exit")

	if len(os.Args) < 2 {
		fmt.Printf("\n%s\n", generalUsage)
		return
	}

	player := audioengine.NewBeepPlayer()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		player.Close()
	}()

	handle, meta, err := player.Open(os.Args[1])
	if err != nil {
		fmt.Printf("[!] Error opening audio: %v\n", err)
		return
	}
	fmt.Printf("File      : %s\n", handle.Path())
	fmt.Printf("Frames    : %d\n", meta.TotalFrames)
	fmt.Printf("Rate      : %d Hz, %d channel(s)\n", meta.SampleRate, meta.Channels)
	fmt.Printf("Duration  : %.2f sec\n", float64(meta.TotalFrames)/float64(meta.SampleRate))

	probe := make([]float64, meta.SampleRate)
	if n, err := player.ReadSamples(handle, 0, probe); err == nil && n > 0 {
		fmt.Printf("Peak      : %.3f (first second)\n", audioengine.PeakAmplitude(probe[:n]))
	}

	bar := NewPositionBar(meta.TotalFrames)

	if err := player.PlayAt(handle, 0); err != nil {
		fmt.Printf("[!] Error starting playback: %v\n", err)
		return
	}

	events := player.Events()
	progress := player.Progress()
	for events != nil {
		select {
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			fmt.Printf("\n%s\n", e.String())
			switch e.(type) {
			case audioengine.EndOfMedia, audioengine.PlaybackError:
				player.Close()
			}
		case f, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			bar.Set(f)
		}
	}
	fmt.Println()
}
