package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/reelsmith/reelsmith/internal/media"
)

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	}
}

// parseProbe converts ffprobe JSON into a media.Probe.
func parseProbe(data []byte) (media.Probe, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return media.Probe{}, fmt.Errorf("parse ffprobe json: %w", err)
	}

	var p media.Probe
	p.Duration = parseFloat(out.Format.Duration)
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if p.HasVideo {
				continue
			}
			p.HasVideo = true
			p.Width, p.Height = s.Width, s.Height
			p.FPS = parseRate(s.AvgFrameRate)
			if p.FPS == 0 {
				p.FPS = parseRate(s.RFrameRate)
			}
			if p.Duration == 0 {
				p.Duration = parseFloat(s.Duration)
			}
		case "audio":
			p.HasAudio = true
			if p.Duration == 0 {
				p.Duration = parseFloat(s.Duration)
			}
		}
	}
	if !p.HasVideo && !p.HasAudio {
		return p, fmt.Errorf("no audio or video streams")
	}
	return p, nil
}

// parseRate reads ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
