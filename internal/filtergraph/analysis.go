package filtergraph

import "fmt"

// TraceInterval is the spacing of loudness samples, in seconds.
const TraceInterval = 0.1

// SilenceDetect emits silence_start / silence_end events on stderr.
func SilenceDetect(thresholdDB, minDuration float64) []Filter {
	return []Filter{
		F("silencedetect", KV("noise", fmt.Sprintf("%sdB", Num(thresholdDB))), KV("d", Num(minDuration))),
	}
}

// LoudnessTrace writes one RMS level per TraceInterval window to path.
func LoudnessTrace(path string) []Filter {
	samples := int(mixRate * TraceInterval)
	return []Filter{
		F("aresample", Pos(mixRate)),
		F("asetnsamples", KV("n", samples), KV("p", 0)),
		F("astats", KV("metadata", 1), KV("reset", 1)),
		F("ametadata", KV("mode", "print"), KV("key", "lavfi.astats.Overall.RMS_level"), KV("file", path)),
	}
}

// Subtitles burns a caption file into the video stream.
func Subtitles(path, forceStyle string) []Filter {
	params := []Param{KV("filename", path)}
	if forceStyle != "" {
		params = append(params, KV("force_style", forceStyle))
	}
	return []Filter{F("subtitles", params...)}
}
