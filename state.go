package main

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultUDPAddr = ":7777"

	maxClients       = 16
	laneCount        = 4
	ticksPerSecond   = 4
	tickDuration     = time.Second / ticksPerSecond
	sendSweepsPerSec = 4
	sendSweepPeriod  = time.Second / sendSweepsPerSec

	// clientTimeoutTicks evicts a session after three silent seconds.
	clientTimeoutTicks = ticksPerSecond * 3

	entityChunkSize  = 64
	accountChunkSize = 64
	commandQueueLen  = 64
	outgoingQueueLen = 64
)

// State is the whole of the server's shared mutable state, constructed
// once in main before any goroutine starts and passed by reference to the
// network loops, the simulation lanes, and the ops monitor.
//
// Two locks guard it: clientMu for the client table, mu for everything
// else. Lane 0 takes clientMu then mu; neither lock is ever held across a
// blocking queue operation or a barrier wait. The two queues synchronize
// themselves and need no external locking.
type State struct {
	clientMu sync.Mutex
	mu       sync.Mutex

	clients     *ClientTable
	accounts    *AccountStore
	entities    *ChunkedStore[Entity]
	entityPool  *ChunkPool[Entity]
	accountPool *ChunkPool[Account]
	nextEID     uint64

	tick atomic.Uint64

	recvQueue *Queue[Command]
	sendQueue *Queue[Datagram]

	events *EventLog
	debug  bool
}

// NewState builds the server context. events may be nil (journal disabled).
func NewState(events *EventLog, debug bool) *State {
	entityPool := &ChunkPool[Entity]{}
	accountPool := &ChunkPool[Account]{}
	return &State{
		clients:     NewClientTable(maxClients),
		accounts:    NewAccountStore(accountChunkSize, accountPool),
		entities:    NewChunkedStore[Entity](entityChunkSize, entityPool),
		entityPool:  entityPool,
		accountPool: accountPool,
		nextEID:     1, // entity id 0 is the "no character" sentinel
		recvQueue:   NewQueue[Command](commandQueueLen),
		sendQueue:   NewQueue[Datagram](outgoingQueueLen),
		events:      events,
		debug:       debug,
	}
}

// Tick returns the current simulation tick.
func (st *State) Tick() uint64 {
	return st.tick.Load()
}

// ServerStats is the live snapshot the ops monitor streams. Accounts and
// entities are counts only; the monitor never reaches into the stores.
type ServerStats struct {
	Tick         uint64 `msgpack:"tick" json:"tick"`
	Sessions     int    `msgpack:"sessions" json:"sessions"`
	Accounts     int    `msgpack:"accounts" json:"accounts"`
	Entities     int    `msgpack:"entities" json:"entities"`
	EntityChunks int    `msgpack:"entity_chunks" json:"entity_chunks"`
	FreeChunks   int    `msgpack:"free_chunks" json:"free_chunks"`
	RecvQueueLen int    `msgpack:"recv_queue" json:"recv_queue"`
	SendQueueLen int    `msgpack:"send_queue" json:"send_queue"`
}

// Stats samples the server state under its locks.
func (st *State) Stats() ServerStats {
	st.clientMu.Lock()
	sessions := st.clients.Sessions()
	st.clientMu.Unlock()

	st.mu.Lock()
	accounts := st.accounts.Len()
	entities := st.entities.Len()
	chunks := st.entities.Chunks()
	free := st.entityPool.Len()
	st.mu.Unlock()

	return ServerStats{
		Tick:         st.Tick(),
		Sessions:     sessions,
		Accounts:     accounts,
		Entities:     entities,
		EntityChunks: chunks,
		FreeChunks:   free,
		RecvQueueLen: st.recvQueue.Len(),
		SendQueueLen: st.sendQueue.Len(),
	}
}
