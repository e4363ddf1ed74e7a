package dialog

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/neurlang/wayland/wl"
	"golang.org/x/sys/unix"
)

// bufferCount is the number of shared buffers in the pool. Two is enough
// for a dialog that redraws on input and blink ticks: one on screen, one
// being drawn.
const bufferCount = 2

// frameBuffer is one shared pixel buffer. busy is true from attach until
// the compositor's release notification; the pool never hands out a busy
// buffer, so pixels are never written while the compositor holds them.
// busy is atomic because releases arrive on the dispatch pump goroutine
// while the loop goroutine acquires and commits.
type frameBuffer struct {
	wlBuffer *wl.Buffer
	pix      []byte
	busy     atomic.Bool
}

// HandleBufferRelease marks the buffer writable again. Runs during event
// dispatch on the pump goroutine.
func (fb *frameBuffer) HandleBufferRelease(wl.BufferReleaseEvent) {
	fb.busy.Store(false)
}

// BufferPool owns the shared memory backing the window: one memfd, mapped
// once at session start and sliced into fixed-size ARGB8888 buffers.
type BufferPool struct {
	data    []byte
	pool    *wl.ShmPool
	buffers [bufferCount]*frameBuffer
	width   int
	height  int
	stride  int
}

// NewBufferPool allocates and maps the shared buffers. All failures wrap
// ErrBufferAllocation and are fatal to the session.
func NewBufferPool(shm *wl.Shm, width, height int) (*BufferPool, error) {
	stride := width * 4
	size := stride * height
	total := size * bufferCount

	fd, err := unix.MemfdCreate("wayentry-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("%w: memfd: %v", ErrBufferAllocation, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(total)); err != nil {
		return nil, fmt.Errorf("%w: ftruncate: %v", ErrBufferAllocation, err)
	}

	data, err := unix.Mmap(fd, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrBufferAllocation, err)
	}

	pool, err := shm.CreatePool(uintptr(fd), int32(total))
	if err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("%w: create pool: %v", ErrBufferAllocation, err)
	}

	p := &BufferPool{
		data:   data,
		pool:   pool,
		width:  width,
		height: height,
		stride: stride,
	}
	for i := 0; i < bufferCount; i++ {
		buf, err := pool.CreateBuffer(int32(i*size), int32(width), int32(height), int32(stride), wl.ShmFormatArgb8888)
		if err != nil {
			p.Destroy()
			return nil, fmt.Errorf("%w: create buffer %d: %v", ErrBufferAllocation, i, err)
		}
		fb := &frameBuffer{
			wlBuffer: buf,
			pix:      data[i*size : (i+1)*size],
		}
		buf.AddReleaseHandler(fb)
		p.buffers[i] = fb
	}
	return p, nil
}

// Acquire returns a buffer the compositor does not hold. With two buffers
// and release tracking this only fails if the compositor stops releasing.
func (p *BufferPool) Acquire() (*frameBuffer, error) {
	for _, fb := range p.buffers {
		if fb != nil && !fb.busy.Load() {
			return fb, nil
		}
	}
	return nil, fmt.Errorf("%w: all buffers held by compositor", ErrBufferAllocation)
}

// Commit attaches fb to the surface with the given damage and commits.
// Must run on the event-loop goroutine, the single caller by construction.
func (p *BufferPool) Commit(surface *wl.Surface, fb *frameBuffer, damage image.Rectangle) {
	surface.Attach(fb.wlBuffer, 0, 0)
	surface.Damage(int32(damage.Min.X), int32(damage.Min.Y), int32(damage.Dx()), int32(damage.Dy()))
	surface.Commit()
	fb.busy.Store(true)
}

// Destroy releases the protocol objects and the mapping.
func (p *BufferPool) Destroy() {
	for i, fb := range p.buffers {
		if fb != nil && fb.wlBuffer != nil {
			fb.wlBuffer.Destroy()
		}
		p.buffers[i] = nil
	}
	if p.pool != nil {
		p.pool.Destroy()
		p.pool = nil
	}
	if p.data != nil {
		unix.Munmap(p.data)
		p.data = nil
	}
}
