package whisper

import "github.com/go-audio/audio"

// intBufferToFloat32Mono down-mixes a decoded PCM buffer to mono float32
// samples normalised to [-1.0, 1.0], averaging across channels per frame.
// whisper.cpp expects exactly this format: 16 kHz mono float32 in [-1, 1].
func intBufferToFloat32Mono(buf *audio.IntBuffer) []float32 {
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	maxAmplitude := float32(32768.0)
	if buf.SourceBitDepth > 0 {
		maxAmplitude = float32(int(1) << (buf.SourceBitDepth - 1))
	}

	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(buf.Data[i*channels+ch]) / maxAmplitude
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
