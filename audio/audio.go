//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

// Package audio produces the opus frame streams consumed by the voice
// gateway: it transcodes arbitrary input through ffmpeg, encodes PCM with
// opus, and paces frames onto a session at the stream cadence.
package audio

import "time"

// Params describes the opus stream fed to a voice session.
type Params struct {
	Channels   int // number of channels
	SampleRate int // samples per second
	FrameSize  int // samples per frame
	Bitrate    int // bits per second
}

// Default is the stereo 48kHz, 20ms stream the voice server expects.
var Default = Params{
	Channels:   2,
	SampleRate: 48000,
	FrameSize:  960,
	Bitrate:    64000,
}

// FrameTime is the wall-clock duration of one frame.
func (p Params) FrameTime() time.Duration {
	return time.Second * time.Duration(p.FrameSize) / time.Duration(p.SampleRate)
}

// tocConfigs maps the legal frame times to the opus TOC configuration used
// when fabricating silence.
var tocConfigs = map[time.Duration]byte{
	time.Millisecond * 5 / 2: 28,
	time.Millisecond * 5:     29,
	time.Millisecond * 10:    30,
	time.Millisecond * 20:    31,
}

// Valid reports whether the frame time is one the voice server accepts.
func (p Params) Valid() bool {
	_, ok := tocConfigs[p.FrameTime()]
	return ok
}

// Silence returns one encoded silence frame matching the stream parameters.
func (p Params) Silence() []byte {
	return []byte{tocConfigs[p.FrameTime()] << 3, 0xff, 0xfe}
}
