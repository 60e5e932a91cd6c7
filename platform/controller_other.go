//go:build !unix

package platform

import "sync"

// hostController is the non-unix fallback: it tracks the masked state
// in-process without touching OS signal masks, since unix.PthreadSigmask
// is unavailable outside unix platforms.
type hostController struct {
	mu     sync.Mutex
	masked bool
}

func newHostController() *hostController {
	return &hostController{}
}

func (c *hostController) Mask(ceiling int) InterruptMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior := InterruptMask(0)
	if c.masked {
		prior = 1
	}
	c.masked = true
	return prior
}

func (c *hostController) Restore(mask InterruptMask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mask == 0 {
		c.masked = false
	}
}

func (c *hostController) DataBarrier()        {}
func (c *hostController) InstructionBarrier() {}
