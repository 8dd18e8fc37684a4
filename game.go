package main

import (
	"log"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// Simulation runs the fixed-rate tick loop across laneCount worker
// goroutines. Lane 0 does the narrow (serialized) work of draining the
// inbound queue and mutating shared state; every lane then meets at the
// barrier before the wide phase, so future per-lane partitioned work can
// safely read what lane 0 just wrote and all lanes start a phase together.
type Simulation struct {
	state    *State
	lanes    int
	barrier  *Barrier
	stop     chan struct{}
	stopping atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSimulation creates a simulation with the given number of lanes.
func NewSimulation(state *State, lanes int) *Simulation {
	if lanes <= 0 {
		lanes = 1
	}
	return &Simulation{
		state:   state,
		lanes:   lanes,
		barrier: NewBarrier(lanes),
		stop:    make(chan struct{}),
	}
}

// Run starts the lane goroutines and returns.
func (sim *Simulation) Run() {
	for i := 0; i < sim.lanes; i++ {
		sim.wg.Add(1)
		go sim.laneLoop(i)
	}
}

// Stop terminates the lanes after the tick in flight and waits for them.
func (sim *Simulation) Stop() {
	sim.stopOnce.Do(func() { close(sim.stop) })
	sim.wg.Wait()
}

func (sim *Simulation) laneLoop(lane int) {
	defer sim.wg.Done()
	log.Printf("lane %d of %d starting", lane, sim.lanes)

	// Private per-lane scratch for the wide phase, cleared every tick.
	scratch := NewSwapList[Entity](entityChunkSize)

	for {
		start := time.Now()

		if lane == 0 {
			// Only lane 0 reads the stop channel; the flag crosses the
			// barrier so every lane exits on the same tick.
			select {
			case <-sim.stop:
				sim.stopping.Store(true)
			default:
				sim.state.step()
			}
		}

		sim.barrier.Wait()
		if sim.stopping.Load() {
			return
		}

		// Wide phase: per-lane partitioned simulation goes here once the
		// world has rooms to split across lanes. Each lane will walk its
		// slice of the partition using scratch.
		scratch.Reset()

		if remaining := tickDuration - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// step is lane 0's narrow phase: advance the tick and drain the inbound
// queue under both locks, dispatching each command. TryPop keeps the tick
// from ever stalling on an empty queue; reply sends are non-blocking so
// the locks are never held across a queue wait.
func (st *State) step() {
	tick := st.tick.Add(1)

	st.clientMu.Lock()
	st.mu.Lock()
	for {
		cmd, ok := st.recvQueue.TryPop()
		if !ok {
			break
		}
		st.dispatch(cmd, tick)
	}
	st.mu.Unlock()
	st.clientMu.Unlock()
}

// dispatch handles one parsed command. Caller holds both locks.
func (st *State) dispatch(cmd Command, tick uint64) {
	handle := st.clients.FindByAddr(cmd.Sender)

	switch cmd.Type {
	case CmdKeepAlive:
		if handle == 0 {
			if st.debug {
				log.Printf("keep-alive from unknown address %s", cmd.Sender)
			}
			return
		}
		c := st.clients.At(handle)
		c.LastSeenTick = tick
		c.RecordCommand(cmd.Type)

	case CmdLogin:
		st.dispatchLogin(cmd, handle, tick)

	case CmdCreateCharacter:
		st.dispatchCreateCharacter(cmd, handle, tick)

	default:
		// Decode already rejects unknown tags; reaching here is a bug.
		log.Printf("dispatch: unhandled command tag %d", cmd.Type)
	}
}

func (st *State) dispatchLogin(cmd Command, handle int, tick uint64) {
	if handle == 0 {
		h, err := st.clients.Push(cmd.Sender, tick)
		if err != nil {
			log.Printf("login from %s rejected: %v", cmd.Sender, err)
			return
		}
		handle = h
		if st.debug {
			log.Printf("new client handle=%d addr=%s", handle, cmd.Sender)
		}
	}
	c := st.clients.At(handle)
	c.LastSeenTick = tick
	c.RecordCommand(cmd.Type)
	c.LANPort = cmd.LANPort
	c.LANIP = cmd.LANIP

	acct := st.accounts.FindByName(cmd.Name)
	if acct != nil {
		if !acct.PasswordMatches(cmd.Pass) {
			st.reply(cmd.Sender, EncodeBadPw())
			st.events.Record(EvtBadPassword, tick, acct.ID, cmd.Name)
			return
		}
	} else {
		acct = st.accounts.Create(cmd.Name, cmd.Pass)
		log.Printf("new account created id=%d name=%q", acct.ID, acct.Name)
		st.events.Record(EvtAccountCreated, tick, acct.ID, acct.Name)
	}

	c.AccountID = acct.ID
	if acct.EntityID != 0 {
		c.CharacterEID = acct.EntityID
		st.reply(cmd.Sender, EncodeCharacterID(acct.EntityID))
	} else {
		st.reply(cmd.Sender, EncodeNewAccountCreated())
	}
	st.events.Record(EvtLogin, tick, acct.ID, cmd.Name)
}

func (st *State) dispatchCreateCharacter(cmd Command, handle int, tick uint64) {
	if handle == 0 {
		log.Printf("create character from unknown session %s", cmd.Sender)
		return
	}
	c := st.clients.At(handle)
	c.LastSeenTick = tick
	c.RecordCommand(cmd.Type)

	acct := st.accounts.FindByID(c.AccountID)
	if acct == nil {
		log.Printf("create character from session %d with no account", handle)
		return
	}
	if c.CharacterEID != 0 || acct.EntityID != 0 {
		log.Printf("session %d tried to create a second character", handle)
		return
	}

	character := Entity{
		Type:     EntityCharacter,
		ID:       st.nextEID,
		Changed:  true,
		Features: FeaturesForType(EntityCharacter),
		Color:    cmd.Color,
	}
	st.nextEID++
	st.entities.Append(character)

	c.CharacterEID = character.ID
	acct.EntityID = character.ID
	log.Printf("character id=%d created for account id=%d", character.ID, acct.ID)
	st.events.Record(EvtCharacterCreated, tick, acct.ID, acct.Name)

	st.reply(cmd.Sender, EncodeCharacterID(character.ID))
}

// reply enqueues an outbound datagram without blocking; a full send queue
// drops the message with a log, never a retry.
func (st *State) reply(to netip.AddrPort, bytes []byte) {
	if !st.sendQueue.TryPush(Datagram{Bytes: bytes, To: to}) {
		log.Printf("send queue full, dropping %d-byte reply to %s", len(bytes), to)
	}
}
