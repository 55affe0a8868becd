package gpu

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
)

// ErrDeviceClosed is returned for commands enqueued after Close.
var ErrDeviceClosed = errors.New("gpu: device closed")

// softAdapter is the shared allocation space behind a software device and
// its siblings. One mutex guards all pixel storage on the adapter; command
// ordering across contexts is still fence-driven, the mutex only keeps
// individual pixel operations atomic.
type softAdapter struct {
	mu sync.Mutex
}

// softDevice is an in-memory Device implementation. It backs the engine
// when the host supplies no hardware device, and all tests. Each context
// runs its command queue on its own goroutine, so submission and
// composition genuinely execute as two asynchronous streams ordered only
// by fences.
type softDevice struct {
	adapter *softAdapter

	mu       sync.Mutex
	contexts []*softContext
	closed   bool
}

// NewSoftwareDevice creates a software device on a fresh adapter.
func NewSoftwareDevice() Device {
	return &softDevice{adapter: &softAdapter{}}
}

type pixelStore struct {
	adapter *softAdapter
	desc    TextureDesc
	pix     *image.RGBA
}

type softTexture struct {
	store *pixelStore
}

func (t *softTexture) Desc() TextureDesc { return t.store.desc }

func (t *softTexture) Handle() (SharedHandle, error) {
	return t.store, nil
}

type softFence struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
}

func newSoftFence() *softFence {
	f := &softFence{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *softFence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *softFence) WaitCPU(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.completed < value {
		f.cond.Wait()
	}
}

func (f *softFence) Handle() (SharedHandle, error) {
	return f, nil
}

func (f *softFence) signal(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
		f.cond.Broadcast()
	}
}

type softContext struct {
	dev  *softDevice
	cmds chan func()
}

func (d *softDevice) CreateTexture(desc TextureDesc) (Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("gpu: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	if desc.Format == FormatUnknown {
		return nil, errors.New("gpu: cannot create texture with unknown format")
	}
	return &softTexture{store: &pixelStore{
		adapter: d.adapter,
		desc:    desc,
		pix:     image.NewRGBA(image.Rect(0, 0, desc.Width, desc.Height)),
	}}, nil
}

func (d *softDevice) ImportTexture(h SharedHandle) (Texture, error) {
	store, ok := h.(*pixelStore)
	if !ok {
		return nil, fmt.Errorf("gpu: foreign texture handle %T", h)
	}
	if store.adapter != d.adapter {
		return nil, errors.New("gpu: texture handle belongs to a different adapter")
	}
	return &softTexture{store: store}, nil
}

func (d *softDevice) CreateFence() (Fence, error) {
	return newSoftFence(), nil
}

func (d *softDevice) ImportFence(h SharedHandle) (Fence, error) {
	f, ok := h.(*softFence)
	if !ok {
		return nil, fmt.Errorf("gpu: foreign fence handle %T", h)
	}
	return f, nil
}

func (d *softDevice) NewContext() (Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	ctx := &softContext{dev: d, cmds: make(chan func(), 256)}
	d.contexts = append(d.contexts, ctx)
	go ctx.run()
	return ctx, nil
}

func (d *softDevice) Sibling() (Device, error) {
	return &softDevice{adapter: d.adapter}, nil
}

func (d *softDevice) Snapshot(t Texture) (*image.RGBA, error) {
	st, err := storeOf(t)
	if err != nil {
		return nil, err
	}
	st.adapter.mu.Lock()
	defer st.adapter.mu.Unlock()
	out := image.NewRGBA(st.pix.Rect)
	copy(out.Pix, st.pix.Pix)
	return out, nil
}

func (d *softDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for _, ctx := range d.contexts {
		close(ctx.cmds)
	}
	d.contexts = nil
	return nil
}

func (c *softContext) run() {
	for cmd := range c.cmds {
		cmd()
	}
}

func (c *softContext) enqueue(cmd func()) error {
	c.dev.mu.Lock()
	if c.dev.closed {
		c.dev.mu.Unlock()
		return ErrDeviceClosed
	}
	c.dev.mu.Unlock()
	c.cmds <- cmd
	return nil
}

func (c *softContext) Upload(dst Texture, pix *image.RGBA) error {
	st, err := storeOf(dst)
	if err != nil {
		return err
	}
	// Clone at enqueue time so the caller may reuse its buffer.
	cloned := image.NewRGBA(pix.Rect)
	copy(cloned.Pix, pix.Pix)
	return c.enqueue(func() {
		st.adapter.mu.Lock()
		defer st.adapter.mu.Unlock()
		draw.Draw(st.pix, st.pix.Rect, cloned, cloned.Rect.Min, draw.Src)
	})
}

func (c *softContext) CopyRegion(dst, src Texture, region image.Rectangle) error {
	ds, err := storeOf(dst)
	if err != nil {
		return err
	}
	ss, err := storeOf(src)
	if err != nil {
		return err
	}
	return c.enqueue(func() {
		ss.adapter.mu.Lock()
		defer ss.adapter.mu.Unlock()
		r := region.Intersect(ss.pix.Rect)
		draw.Draw(ds.pix, image.Rect(0, 0, r.Dx(), r.Dy()), ss.pix, r.Min, draw.Src)
	})
}

func (c *softContext) Transparency(dst, src Texture, region image.Rectangle, params TransparencyParams) error {
	ds, err := storeOf(dst)
	if err != nil {
		return err
	}
	ss, err := storeOf(src)
	if err != nil {
		return err
	}
	return c.enqueue(func() {
		ss.adapter.mu.Lock()
		defer ss.adapter.mu.Unlock()
		transparencyKernel(ds.pix, ss.pix, region.Intersect(ss.pix.Rect), params)
	})
}

func (c *softContext) Signal(f Fence, value uint64) error {
	sf, ok := f.(*softFence)
	if !ok {
		return fmt.Errorf("gpu: foreign fence %T", f)
	}
	return c.enqueue(func() { sf.signal(value) })
}

func (c *softContext) Wait(f Fence, value uint64) error {
	sf, ok := f.(*softFence)
	if !ok {
		return fmt.Errorf("gpu: foreign fence %T", f)
	}
	// Stalls this context's queue, not the caller.
	return c.enqueue(func() { sf.WaitCPU(value) })
}

func storeOf(t Texture) (*pixelStore, error) {
	st, ok := t.(*softTexture)
	if !ok {
		return nil, fmt.Errorf("gpu: foreign texture %T", t)
	}
	return st.store, nil
}

// transparencyKernel is the CPU port of the compositor's transparency
// compute pass: output alpha is params.Alpha wherever the source pixel
// matches the key color (or everywhere when no key is set); RGB is copied
// through untouched. dst receives the region at its origin.
func transparencyKernel(dst, src *image.RGBA, region image.Rectangle, params TransparencyParams) {
	alpha := uint8(params.Alpha*255 + 0.5)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			px := src.RGBAAt(x, y)
			a := uint8(255)
			if !params.HasKey || (px.R == params.Key.R && px.G == params.Key.G && px.B == params.Key.B) {
				a = alpha
			}
			dst.SetRGBA(x-region.Min.X, y-region.Min.Y, color.RGBA{R: px.R, G: px.G, B: px.B, A: a})
		}
	}
}
