package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os/exec"

	"github.com/your-org/tracepipe/internal/models"
)

// DecodeError classifies a Frame Decoder failure, surfaced to the
// Analysis Registry as the FAILED state's error_message.
type DecodeError struct {
	Code    string // DECODE_UNOPENABLE or DECODE_CORRUPT
	Message string
}

func (e *DecodeError) Error() string { return e.Code + ": " + e.Message }

// Decoder opens a video file with ffprobe/ffmpeg and yields a lazy,
// finite, non-restartable sequence of sampled Frames, adapting the
// stdout-piping discipline the rest of this codebase uses for ffmpeg
// subprocesses to a one-shot file decode instead of a live stream.
type Decoder struct {
	FFmpegPath  string
	FFprobePath string
}

func NewDecoder() *Decoder {
	return &Decoder{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

type probeInfo struct {
	Streams []struct {
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (d *Decoder) probe(ctx context.Context, videoPath string) (width, height int, fps float64, err error) {
	cmd := exec.CommandContext(ctx, d.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-of", "json",
		videoPath,
	)
	out, runErr := cmd.Output()
	if runErr != nil {
		return 0, 0, 0, &DecodeError{Code: "DECODE_UNOPENABLE", Message: fmt.Sprintf("probe %s: %v", videoPath, runErr)}
	}

	var info probeInfo
	if jsonErr := json.Unmarshal(out, &info); jsonErr != nil || len(info.Streams) == 0 {
		return 0, 0, 0, &DecodeError{Code: "DECODE_UNOPENABLE", Message: "no video stream found"}
	}

	s := info.Streams[0]
	fps = parseFrameRate(s.RFrameRate)
	if fps <= 0 || s.Width <= 0 || s.Height <= 0 {
		return 0, 0, 0, &DecodeError{Code: "DECODE_UNOPENABLE", Message: "invalid stream dimensions/frame rate"}
	}
	return s.Width, s.Height, fps, nil
}

func parseFrameRate(s string) float64 {
	var num, den float64
	if n, err := fmt.Sscanf(s, "%f/%f", &num, &den); err == nil && n == 2 && den != 0 {
		return num / den
	}
	if n, err := fmt.Sscanf(s, "%f", &num); err == nil && n == 1 {
		return num
	}
	return 0
}

// Frames decodes videoPath and returns a channel of Frames surviving the
// sample_interval_seconds sub-sampling rule, plus a channel that
// receives at most one error (decode failure or clean nil-close on
// success). The Frames channel is closed when decoding ends for any
// reason. Cancelling ctx stops the underlying ffmpeg process.
func (d *Decoder) Frames(ctx context.Context, videoPath string, sampleIntervalSeconds float64) (<-chan *models.Frame, <-chan error) {
	frames := make(chan *models.Frame, 4)
	errc := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errc)

		width, height, fps, err := d.probe(ctx, videoPath)
		if err != nil {
			errc <- err
			return
		}

		every := int(math.Round(fps * sampleIntervalSeconds))
		if every < 1 {
			every = 1
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		cmd := exec.CommandContext(ctx, d.FFmpegPath,
			"-hide_banner", "-loglevel", "error",
			"-i", videoPath,
			"-f", "rawvideo",
			"-pix_fmt", "rgb24",
			"pipe:1",
		)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errc <- &DecodeError{Code: "DECODE_UNOPENABLE", Message: err.Error()}
			return
		}
		if err := cmd.Start(); err != nil {
			errc <- &DecodeError{Code: "DECODE_UNOPENABLE", Message: err.Error()}
			return
		}

		frameSize := width * height * 3
		reader := bufio.NewReaderSize(stdout, frameSize)
		buf := make([]byte, frameSize)

		sourceIndex := 0
		lastTimestamp := -1.0
		for {
			if ctx.Err() != nil {
				_ = cmd.Process.Kill()
				break
			}

			_, readErr := io.ReadFull(reader, buf)
			if readErr != nil {
				if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
					break
				}
				errc <- &DecodeError{Code: "DECODE_CORRUPT", Message: readErr.Error()}
				_ = cmd.Process.Kill()
				return
			}

			if sourceIndex%every == 0 {
				timestamp := float64(sourceIndex) / fps
				if timestamp <= lastTimestamp {
					timestamp = lastTimestamp + 1e-6
				}
				lastTimestamp = timestamp

				pixels := make([]byte, frameSize)
				copy(pixels, buf)

				select {
				case frames <- &models.Frame{
					Index:            sourceIndex,
					TimestampSeconds: timestamp,
					Width:            width,
					Height:           height,
					Pixels:           pixels,
				}:
				case <-ctx.Done():
					_ = cmd.Process.Kill()
					return
				}
			}
			sourceIndex++
		}

		_ = cmd.Wait()
	}()

	return frames, errc
}
