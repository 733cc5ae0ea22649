package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/reelsmith/reelsmith/internal/assets"
)

func runAssets(out io.Writer) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	catalog := assets.NewCatalog(cfg.AssetsDir(), logger)

	transitions, err := catalog.Transitions()
	if err != nil {
		return fmt.Errorf("read transitions: %w", err)
	}
	tracks, err := catalog.Tracks()
	if err != nil {
		return fmt.Errorf("read tracks: %w", err)
	}
	if transitions == nil {
		transitions = []assets.Transition{}
	}
	if tracks == nil {
		tracks = []assets.Track{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Root        string              `json:"root"`
		Transitions []assets.Transition `json:"transitions"`
		Tracks      []assets.Track      `json:"tracks"`
	}{catalog.Root(), transitions, tracks})
}
