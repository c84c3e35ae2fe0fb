package audio

import "math"

// silenceFloorDB is reported for empty or all-zero buffers.
const silenceFloorDB = -100

// LevelDB returns the RMS level of PCM16 audio in dBFS.
func LevelDB(pcm []byte) float64 {
	return energyDB(PCM16ToFloat(pcm))
}

func energyDB(samples []float32) float64 {
	if len(samples) == 0 {
		return silenceFloorDB
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms < 1e-10 {
		return silenceFloorDB
	}
	return 20 * math.Log10(rms)
}
