package main

import (
	"fmt"
	"strings"
)

// PositionBar renders playback position as a single redrawn terminal line.
type PositionBar struct {
	total int64
}

func NewPositionBar(total int64) *PositionBar {
	return &PositionBar{total: total}
}

func (p *PositionBar) Set(frame int64) {
	if p.total <= 0 {
		return
	}
	width := 30
	percent := float64(frame) / float64(p.total)
	filled := int(float64(width) * percent)
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	// \r keeps the bar on one line
	fmt.Printf("\r [PLAYING] [%s] %d%% (frame %d/%d)", bar, int(percent*100), frame, p.total)
}
