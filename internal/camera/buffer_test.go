package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/dudu/facefx/internal/pipeline"
)

var errTimeout = errors.New("timeout")

// fakeDevice plays back scripted WaitForFrame results, then a final error.
type fakeDevice struct {
	mu      sync.Mutex
	waits   []error
	frames  [][]byte
	end     error
	closed  bool
	started bool
}

func (d *fakeDevice) StartStreaming() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *fakeDevice) WaitForFrame(uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.waits) == 0 {
		if d.end != nil {
			return d.end
		}
		time.Sleep(time.Millisecond)
		return errTimeout
	}
	err := d.waits[0]
	d.waits = d.waits[1:]
	return err
}

func (d *fakeDevice) ReadFrame() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.frames[0]
	d.frames = d.frames[1:]
	return f, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func isFakeTimeout(err error) bool { return errors.Is(err, errTimeout) }

func TestCamBufferDeliversFrame(t *testing.T) {
	dev := &fakeDevice{waits: []error{errTimeout, nil}, frames: [][]byte{{1, 2, 3}}}
	buf := newCamBuffer(isFakeTimeout)
	buf.start(dev)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f, err := buf.next(ctx)
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if !bytes.Equal(f, []byte{1, 2, 3}) {
		t.Errorf("frame = %v", f)
	}

	buf.stop()
	<-buf.done
	if buf.err != nil || !dev.closed {
		t.Errorf("after stop err = %v, closed = %v", buf.err, dev.closed)
	}
}

func TestCamBufferKeepsNewestFrame(t *testing.T) {
	dev := &fakeDevice{
		waits:  []error{nil, nil, nil},
		frames: [][]byte{{1}, {2}, {3}},
		end:    errors.New("unplugged"),
	}
	buf := newCamBuffer(isFakeTimeout)
	buf.start(dev)
	<-buf.done

	f, err := buf.next(context.Background())
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if len(f) != 1 || f[0] != 3 {
		t.Errorf("frame = %v; want newest [3]", f)
	}
	if _, err := buf.next(context.Background()); err == nil || errors.Is(err, pipeline.ErrEndOfStream) {
		t.Errorf("next() after failure = %v; want wrapped device error", err)
	}
}

func TestCamBufferCleanStopEndsStream(t *testing.T) {
	buf := newCamBuffer(isFakeTimeout)
	buf.start(&fakeDevice{})
	buf.stop()
	<-buf.done

	if _, err := buf.next(context.Background()); !errors.Is(err, pipeline.ErrEndOfStream) {
		t.Errorf("next() = %v; want ErrEndOfStream", err)
	}
}

func TestCamBufferContextCancel(t *testing.T) {
	buf := newCamBuffer(isFakeTimeout)
	buf.start(&fakeDevice{})
	defer buf.stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := buf.next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("next() = %v; want context.Canceled", err)
	}
}

func TestDecodeMJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	src.SetRGBA(0, 0, color.RGBA{A: 255})
	var b bytes.Buffer
	if err := jpeg.Encode(&b, src, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}

	c, err := decodeMJPEG(b.Bytes(), nil)
	if err != nil {
		t.Fatalf("decodeMJPEG() error = %v", err)
	}
	if c.Width() != 16 || c.Height() != 8 {
		t.Errorf("size = %dx%d; want 16x8", c.Width(), c.Height())
	}

	again, err := decodeMJPEG(b.Bytes(), c)
	if err != nil || again != c {
		t.Errorf("same-size decode did not reuse canvas (err %v)", err)
	}

	if _, err := decodeMJPEG([]byte("not a jpeg"), nil); err == nil {
		t.Error("decodeMJPEG(garbage) error = nil")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(Config{Backend: "carrier-pigeon"}); err == nil {
		t.Error("Open(unknown) error = nil")
	}
}
