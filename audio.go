package spectrum

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// SampleSource is what the Acquirer stage pulls time-domain samples
// from. Two implementations are provided: a malgo-backed live capture
// device and a WAV-file replay source; both downmix to mono by
// averaging channels rather than keeping only the first one.
type SampleSource interface {
	Initialize(numSamples, sampleRate uint32) (bool, error)
	Poll() []float32
	Close() error
}

// LiveCapture reads from a real input device through malgo, buffering
// the device's own callback-delivered frames until a full Poll-sized
// chunk is available.
type LiveCapture struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	deviceName string
	numSamples uint32

	buf chan float32
}

// NewLiveCapture creates a capture source targeting deviceName (a
// case-insensitive substring match against available device names, or
// "" for the system default).
func NewLiveCapture(deviceName string) *LiveCapture {
	return &LiveCapture{deviceName: deviceName}
}

func (c *LiveCapture) Initialize(numSamples, sampleRate uint32) (bool, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return false, fmt.Errorf("%w: init malgo context: %v", ErrDeviceInitFailure, err)
	}
	c.ctx = ctx
	c.numSamples = numSamples

	// Buffer a few Poll()-chunks worth of headroom so the device
	// callback never blocks waiting for a slow consumer.
	c.buf = make(chan float32, numSamples*8)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	if c.deviceName != "" {
		if infos, err := ctx.Devices(malgo.Capture); err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(c.deviceName)) {
					deviceConfig.Capture.DeviceID = info.ID.Pointer()
					break
				}
			}
		}
	}

	onRecvFrames := func(_, pInputSamples []byte, framecount uint32) {
		if len(pInputSamples) == 0 || framecount == 0 {
			return
		}
		samples := unsafe.Slice((*float32)(unsafe.Pointer(&pInputSamples[0])), int(framecount))
		for _, s := range samples {
			select {
			case c.buf <- s:
			default:
				// Consumer fell behind; drop the oldest sample to make
				// room rather than blocking the audio callback.
				select {
				case <-c.buf:
				default:
				}
				c.buf <- s
			}
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return false, fmt.Errorf("%w: init device: %v", ErrDeviceInitFailure, err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		return false, fmt.Errorf("%w: start device: %v", ErrDeviceInitFailure, err)
	}
	return true, nil
}

// Poll returns the next numSamples buffered samples, non-blocking. If
// fewer than numSamples are buffered it returns an empty slice and
// leaves them buffered (ErrTransientInputUnderflow territory, handled
// by the caller).
func (c *LiveCapture) Poll() []float32 {
	if uint32(len(c.buf)) < c.numSamples {
		return nil
	}
	out := make([]float32, 0, c.numSamples)
	for uint32(len(out)) < c.numSamples {
		select {
		case s := <-c.buf:
			out = append(out, s)
		default:
			return out
		}
	}
	return out
}

func (c *LiveCapture) Close() error {
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}

// WavReplay reads 16-bit PCM samples from a WAV file and paces itself
// to real time with a ticker, so it can stand in for LiveCapture in
// tests and offline runs without racing ahead of the pipeline.
type WavReplay struct {
	file       *os.File
	channels   int
	sampleRate uint32
	numSamples uint32
	ticker     *time.Ticker
}

// NewWavReplay opens path for replay; sampleRate validity against the
// file's own rate is the caller's responsibility (Initialize's
// sampleRate argument is used only for pacing).
func NewWavReplay(path string) (*WavReplay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDeviceInitFailure, path, err)
	}

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDeviceInitFailure, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		f.Close()
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrDeviceInitFailure)
	}

	var channels int
	var fileSampleRate uint32
	var bitsPerSample int
	foundFmt, foundData := false, false

	for !foundData {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: truncated wav file", ErrDeviceInitFailure)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])
		padding := int64(chunkSize % 2)

		switch chunkID {
		case "fmt ":
			fmtData := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, fmtData); err != nil {
				f.Close()
				return nil, fmt.Errorf("%w: %v", ErrDeviceInitFailure, err)
			}
			channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			fileSampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
			bitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true
			if padding > 0 {
				f.Seek(padding, io.SeekCurrent)
			}
		case "data":
			foundData = true
		default:
			f.Seek(int64(chunkSize)+padding, io.SeekCurrent)
		}
	}

	if !foundFmt {
		f.Close()
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrDeviceInitFailure)
	}
	if bitsPerSample != 16 {
		f.Close()
		return nil, fmt.Errorf("%w: only 16-bit PCM supported, got %d", ErrDeviceInitFailure, bitsPerSample)
	}

	return &WavReplay{file: f, channels: channels, sampleRate: fileSampleRate}, nil
}

func (w *WavReplay) Initialize(numSamples, sampleRate uint32) (bool, error) {
	w.numSamples = numSamples
	period := time.Duration(float64(numSamples) / float64(sampleRate) * float64(time.Second))
	w.ticker = time.NewTicker(period)
	return true, nil
}

// Poll blocks until the next pacing tick, then returns up to numSamples
// mono frames read from the file, downmixed by averaging channels.
func (w *WavReplay) Poll() []float32 {
	<-w.ticker.C

	buf := make([]byte, int(w.numSamples)*w.channels*2)
	n, err := io.ReadFull(w.file, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil
	}

	numFrames := n / (2 * w.channels)
	out := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		var sum float32
		for ch := 0; ch < w.channels; ch++ {
			offset := i*2*w.channels + ch*2
			val := int16(binary.LittleEndian.Uint16(buf[offset : offset+2]))
			sum += float32(val) / 32768.0
		}
		out[i] = sum / float32(w.channels)
	}
	return out
}

func (w *WavReplay) Close() error {
	w.ticker.Stop()
	return w.file.Close()
}

// RunAcquirerStage pulls frames from src at whatever pace it produces
// them and pushes them to out until proceed clears.
func RunAcquirerStage(proceed *ProceedFlag, src SampleSource, expectedSamples uint32, out *Queue[[]float32], obs Observer) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("acquirer: recovered from panic", "panic", r)
			proceed.Stop()
		}
	}()
	defer out.Stop()

	for proceed.Get() {
		frame := src.Poll()
		if uint32(len(frame)) < expectedSamples {
			Logger.Warn("acquirer: transient input underflow", "got", len(frame), "want", expectedSamples)
			continue
		}
		obs.RecordCall(StageAcquirer)
		if out.Push(&frame) {
			obs.OverflowDrain("rawSamples")
		}
	}
}
