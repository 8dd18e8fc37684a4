package main

import (
	"errors"
	"fmt"
	"net/netip"
)

const (
	// commandRingLen is how many recent command tags each session keeps
	// for diagnostics.
	commandRingLen = 8
)

// ErrClientTableFull is returned by Push when every slot is taken.
var ErrClientTableFull = errors.New("client table at capacity")

// Client is one live session keyed by its observed UDP source address.
// LANPort/LANIP are the client's self-reported LAN address, kept for
// same-LAN peer connection setup.
type Client struct {
	LANPort      uint16
	LANIP        uint32
	CharacterEID uint64
	AccountID    uint64
	Addr         netip.AddrPort
	LastSeenTick uint64

	commands [commandRingLen]byte
	cmdPos   int
}

// RecordCommand notes a dispatched command tag in the diagnostic ring.
func (c *Client) RecordCommand(tag byte) {
	c.commands[c.cmdPos] = tag
	c.cmdPos = (c.cmdPos + 1) % commandRingLen
}

// RecentCommands returns the diagnostic ring, oldest first.
func (c *Client) RecentCommands() []byte {
	out := make([]byte, 0, commandRingLen)
	for i := 0; i < commandRingLen; i++ {
		out = append(out, c.commands[(c.cmdPos+i)%commandRingLen])
	}
	return out
}

// ClientTable is a flat capacity-bounded array of session slots. Slot 0 is
// a permanent zero-valued sentinel meaning "no client": every lookup miss
// returns 0 and callers must treat handle 0 as not-found. The table is
// guarded externally by the client lock.
type ClientTable struct {
	items  []Client
	length int
}

// NewClientTable creates a table with the given capacity (including the
// sentinel slot).
func NewClientTable(capacity int) *ClientTable {
	if capacity < 2 {
		panic("client table capacity must leave room beyond the sentinel")
	}
	return &ClientTable{
		items:  make([]Client, capacity),
		length: 1, // slot 0 is the sentinel
	}
}

// Len returns the number of occupied slots, sentinel included.
func (t *ClientTable) Len() int {
	return t.length
}

// Cap returns the table capacity.
func (t *ClientTable) Cap() int {
	return len(t.items)
}

// Sessions returns the number of live sessions (slots holding a real
// address).
func (t *ClientTable) Sessions() int {
	n := 0
	for i := 1; i < t.length; i++ {
		if t.items[i].Addr.IsValid() {
			n++
		}
	}
	return n
}

// At returns the slot at the given handle. Handle 0 is the sentinel and
// may be inspected but never written; writing it is a contract violation.
func (t *ClientTable) At(handle int) *Client {
	if handle < 0 || handle >= t.length {
		panic(fmt.Sprintf("client handle %d out of range (len %d)", handle, t.length))
	}
	return &t.items[handle]
}

// Push registers a new session for addr. A slot whose session has no
// character yet is reused first (scanning from 1); otherwise the table
// grows by one slot, or fails at capacity.
func (t *ClientTable) Push(addr netip.AddrPort, tick uint64) (int, error) {
	fresh := Client{Addr: addr, LastSeenTick: tick}

	for i := 1; i < t.length; i++ {
		if t.items[i].CharacterEID == 0 {
			t.items[i] = fresh
			return i, nil
		}
	}

	if t.length == len(t.items) {
		return 0, ErrClientTableFull
	}
	t.items[t.length] = fresh
	t.length++
	return t.length - 1, nil
}

// FindByAddr returns the handle of the session with the given source
// address, or 0.
func (t *ClientTable) FindByAddr(addr netip.AddrPort) int {
	for i := 1; i < t.length; i++ {
		if t.items[i].Addr == addr {
			return i
		}
	}
	return 0
}

// FindByEntityID returns the handle of the session owning the given
// character entity, or 0.
func (t *ClientTable) FindByEntityID(entityID uint64) int {
	if entityID == 0 {
		return 0
	}
	for i := 1; i < t.length; i++ {
		if t.items[i].CharacterEID == entityID {
			return i
		}
	}
	return 0
}

// DeleteByEntityID zeroes the session owning the given character entity.
func (t *ClientTable) DeleteByEntityID(entityID uint64) bool {
	handle := t.FindByEntityID(entityID)
	if handle == 0 {
		return false
	}
	t.items[handle] = Client{}
	return true
}

// EvictTimedOut zeroes every session that has not been heard from within
// timeoutTicks. Returns the evicted handles.
func (t *ClientTable) EvictTimedOut(currentTick, timeoutTicks uint64) []int {
	var evicted []int
	for i := 1; i < t.length; i++ {
		c := &t.items[i]
		if !c.Addr.IsValid() {
			continue // already empty
		}
		if c.LastSeenTick+timeoutTicks < currentTick {
			*c = Client{}
			evicted = append(evicted, i)
		}
	}
	return evicted
}
