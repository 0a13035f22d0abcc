// Package portmanager allocates disjoint TCP port blocks to devices across
// the three protocol pools, mirroring
// original_source/src/port_manager.py's PortPool/IntelligentPortManager.
package portmanager

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// PortPool manages a single protocol's contiguous port range, tracking
// which ports are allocated versus available.
type PortPool struct {
	StartPort int
	EndPort   int
	Protocol  string

	allocated map[int]struct{}
	available map[int]struct{}
}

// NewPortPool builds a pool covering [startPort, endPort] inclusive.
func NewPortPool(startPort, endPort int, protocol string) *PortPool {
	p := &PortPool{
		StartPort: startPort,
		EndPort:   endPort,
		Protocol:  protocol,
		allocated: make(map[int]struct{}),
		available: make(map[int]struct{}),
	}
	for port := startPort; port <= endPort; port++ {
		p.available[port] = struct{}{}
	}
	return p
}

// Clone returns a copy of p with the same allocation state, used by
// ValidatePlan to simulate allocation without mutating the live pools.
func (p *PortPool) Clone() *PortPool {
	c := NewPortPool(p.StartPort, p.EndPort, p.Protocol)
	for port := range p.allocated {
		c.allocated[port] = struct{}{}
		delete(c.available, port)
	}
	return c
}

// Allocate reserves a contiguous block of count ports, preferring
// preferredStart when non-zero and available. Returns nil if the pool
// cannot satisfy the request.
func (p *PortPool) Allocate(count int, preferredStart int) []int {
	if count <= 0 {
		return []int{}
	}
	if len(p.available) < count {
		log.Warn().Str("protocol", p.Protocol).Int("requested", count).
			Int("available", len(p.available)).Msg("not enough ports available")
		return nil
	}

	var allocated []int
	if preferredStart != 0 && p.canAllocateFrom(preferredStart, count) {
		allocated = make([]int, count)
		for i := 0; i < count; i++ {
			allocated[i] = preferredStart + i
		}
	} else {
		allocated = p.findContiguousBlock(count)
	}

	if allocated == nil {
		return nil
	}

	for _, port := range allocated {
		p.allocated[port] = struct{}{}
		delete(p.available, port)
	}
	log.Info().Str("protocol", p.Protocol).Ints("ports", allocated).
		Int("remaining", len(p.available)).Msg("allocated ports")
	return allocated
}

func (p *PortPool) canAllocateFrom(start, count int) bool {
	for port := start; port < start+count; port++ {
		if _, ok := p.available[port]; !ok {
			return false
		}
	}
	return true
}

func (p *PortPool) findContiguousBlock(count int) []int {
	sorted := make([]int, 0, len(p.available))
	for port := range p.available {
		sorted = append(sorted, port)
	}
	sort.Ints(sorted)

	for i := 0; i+count <= len(sorted); i++ {
		start := sorted[i]
		if p.canAllocateFrom(start, count) {
			block := make([]int, count)
			for j := 0; j < count; j++ {
				block[j] = start + j
			}
			return block
		}
	}
	return nil
}

// Deallocate returns ports to the available set.
func (p *PortPool) Deallocate(ports []int) {
	for _, port := range ports {
		if _, ok := p.allocated[port]; ok {
			delete(p.allocated, port)
			p.available[port] = struct{}{}
		}
	}
	log.Info().Str("protocol", p.Protocol).Int("count", len(ports)).Msg("deallocated ports")
}

// AvailableCount reports how many ports remain unallocated.
func (p *PortPool) AvailableCount() int { return len(p.available) }

// AllocatedCount reports how many ports are currently allocated.
func (p *PortPool) AllocatedCount() int { return len(p.allocated) }

// IsPortAvailable reports whether a specific port is free.
func (p *PortPool) IsPortAvailable(port int) bool {
	_, ok := p.available[port]
	return ok
}
