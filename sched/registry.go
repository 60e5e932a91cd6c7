package sched

import (
	"rtos-go/kerrors"
)

// MaxSchedulers bounds the registry's fixed slot table (§4.H).
const MaxSchedulers = 8

const registryMagic = 0x53434844 // "SCHD"
const descriptorMagic = 0x53445343 // "SDSC"

// DescriptorState is a scheduler descriptor's lifecycle state.
type DescriptorState int

const (
	Inactive DescriptorState = iota
	Active
	SuspendedDescriptor
	ErrorState
)

func (s DescriptorState) String() string {
	switch s {
	case Inactive:
		return "INACTIVE"
	case Active:
		return "ACTIVE"
	case SuspendedDescriptor:
		return "SUSPENDED"
	case ErrorState:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Descriptor is one registered scheduler (§3 "Scheduler descriptor").
type Descriptor struct {
	ID        int
	Scheduler Scheduler
	State     DescriptorState
	TaskCount int
	magic     uint32
}

func (d *Descriptor) recomputeMagic() {
	d.magic = descriptorMagic
}

func (d *Descriptor) valid() bool {
	return d.magic == descriptorMagic && d.Scheduler != nil
}

// Registry holds up to MaxSchedulers descriptors and tracks which one
// is active; at most one descriptor may be ACTIVE at a time (§3).
type Registry struct {
	magic     uint32
	slots     [MaxSchedulers]*Descriptor
	activeID  int
	hasActive bool
	nextID    int
}

// NewRegistry constructs an empty scheduler registry.
func NewRegistry() *Registry {
	return &Registry{magic: registryMagic}
}

// Register adds s to the first free slot, refusing exhaustion. It
// returns the assigned descriptor id.
func (r *Registry) Register(s Scheduler) (int, error) {
	if s == nil {
		return 0, kerrors.New(kerrors.InvalidParameter, "register", "nil scheduler")
	}
	slot := -1
	for i := range r.slots {
		if r.slots[i] == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		return 0, kerrors.New(kerrors.LimitExceeded, "register", "scheduler registry is full")
	}
	id := r.nextID
	r.nextID++
	d := &Descriptor{ID: id, Scheduler: s, State: Inactive}
	d.recomputeMagic()
	r.slots[slot] = d
	return id, nil
}

// Unregister removes the descriptor with the given id, invoking its
// vtable's Deinit and clearing Active if it pointed here.
func (r *Registry) Unregister(id int) error {
	for i := range r.slots {
		d := r.slots[i]
		if d == nil || d.ID != id {
			continue
		}
		if err := d.Scheduler.Deinit(); err != nil {
			return kerrors.Wrap(err, kerrors.Internal, "unregister")
		}
		if r.hasActive && r.activeID == id {
			r.hasActive = false
		}
		r.slots[i] = nil
		return nil
	}
	return kerrors.New(kerrors.InvalidParameter, "unregister", "no such scheduler id")
}

// SetActive marks the descriptor with id as the active scheduler,
// demoting any previously-active descriptor to INACTIVE.
func (r *Registry) SetActive(id int) error {
	target := r.find(id)
	if target == nil {
		return kerrors.New(kerrors.InvalidParameter, "set_active", "no such scheduler id")
	}
	if r.hasActive {
		if prev := r.find(r.activeID); prev != nil {
			prev.State = Inactive
		}
	}
	target.State = Active
	r.activeID = id
	r.hasActive = true
	return nil
}

// GetActive returns the currently-active scheduler, if any.
func (r *Registry) GetActive() (Scheduler, error) {
	if !r.hasActive {
		return nil, kerrors.New(kerrors.NotInitialized, "get_active", "no active scheduler")
	}
	d := r.find(r.activeID)
	if d == nil {
		return nil, kerrors.New(kerrors.Internal, "get_active", "active id has no descriptor")
	}
	return d.Scheduler, nil
}

// GetByID looks up a descriptor by id.
func (r *Registry) GetByID(id int) (*Descriptor, error) {
	d := r.find(id)
	if d == nil {
		return nil, kerrors.New(kerrors.InvalidParameter, "get_by_id", "no such scheduler id")
	}
	return d, nil
}

func (r *Registry) find(id int) *Descriptor {
	for _, d := range r.slots {
		if d != nil && d.ID == id {
			return d
		}
	}
	return nil
}

// Validate checks the registry's own magic and every live descriptor's
// magic, scheduler presence, and task-count bound, and that at most one
// descriptor is ACTIVE.
func (r *Registry) Validate() bool {
	if r.magic != registryMagic {
		return false
	}
	activeCount := 0
	for _, d := range r.slots {
		if d == nil {
			continue
		}
		if !d.valid() {
			return false
		}
		if d.TaskCount < 0 {
			return false
		}
		if d.State == Active {
			activeCount++
		}
	}
	return activeCount <= 1
}
