//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	"layeh.com/gopus"
)

const maxFrameBytes = 1200

// EncodeStream transcodes r through ffmpeg into raw PCM, encodes it frame by
// frame with opus, and delivers the frames on out. It returns when the input
// drains or ctx is cancelled. The out channel is left open; closing it is
// the caller's business.
func EncodeStream(ctx context.Context, out chan<- []byte, r io.Reader, p Params) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	enc, err := gopus.NewEncoder(p.SampleRate, p.Channels, gopus.Audio)
	if err != nil {
		return errors.Wrap(err, "creating opus encoder")
	}
	enc.SetBitrate(p.Bitrate)

	proc := exec.CommandContext(ctx, "ffmpeg",
		"-i", "-",
		"-f", "s16le",
		"-ar", strconv.Itoa(p.SampleRate),
		"-ac", strconv.Itoa(p.Channels),
		"-loglevel", "error",
		"-",
	)
	proc.Stdin = r
	proc.Stderr = os.Stderr
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return err
	}
	if err := proc.Start(); err != nil {
		return errors.Wrap(err, "starting ffmpeg")
	}

	pcmbuf := bufio.NewReaderSize(stdout, p.FrameSize*p.Channels*8)
	for {
		pcm := make([]int16, p.FrameSize*p.Channels)
		if err := binary.Read(pcmbuf, binary.LittleEndian, &pcm); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			} else if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return err
		}
		frame, err := enc.Encode(pcm, p.FrameSize, maxFrameBytes)
		if err != nil {
			return errors.Wrap(err, "encoding opus frame")
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	cancel()
	return proc.Wait()
}
