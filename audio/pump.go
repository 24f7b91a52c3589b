//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package audio

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"foghorn/vgate"
)

// Sink is the part of a voice session the pump drives.
type Sink interface {
	Play(frame vgate.AudioFrame) error
	Stop() error
}

// silenceTail is the number of silence frames appended when the source runs
// dry, flushing the decoder on the receiving end.
const silenceTail = 5

// Pump paces frames from ch onto sink at the stream cadence. When the
// channel runs dry it pads with a short silence tail and clears the
// speaking state until more audio arrives. Pump returns when ch closes or
// ctx is cancelled.
func Pump(ctx context.Context, sink Sink, ch <-chan []byte, p Params) error {
	var (
		next     time.Time
		playing  bool
		silent   = silenceTail
		underrun int
	)
	defer func() {
		if underrun > 0 {
			logrus.WithField("underruns", underrun).Debug("voice pump finished")
		}
	}()
	for ctx.Err() == nil {
		var data []byte
		if silent < silenceTail {
			// mid-burst: take a frame if one is ready, otherwise pad
			select {
			case frame, ok := <-ch:
				if !ok {
					return nil
				}
				data = frame
			default:
				underrun++
			}
		} else {
			// drained: clear the speaking state and block for more audio
			if playing {
				if err := sink.Stop(); err != nil {
					return err
				}
				playing = false
			}
			select {
			case frame, ok := <-ch:
				if !ok {
					return nil
				}
				data = frame
			case <-ctx.Done():
				return ctx.Err()
			}
			next = time.Now()
		}
		if data == nil {
			data = p.Silence()
			silent++
			if silent == silenceTail {
				underrun -= silenceTail
			}
		} else {
			silent = 0
		}
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		}
		next = next.Add(p.FrameTime())
		if err := sink.Play(vgate.AudioFrame{Opus: data, FrameCount: uint32(p.FrameSize)}); err != nil {
			return err
		}
		playing = true
	}
	return ctx.Err()
}
