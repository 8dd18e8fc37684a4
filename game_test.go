package main

import (
	"encoding/binary"
	"net/netip"
	"testing"
	"time"
)

func pushLogin(t *testing.T, st *State, sender netip.AddrPort, name, pass string) {
	t.Helper()
	buf, err := EncodeLogin(1000, 0x7F000001, name, []byte(pass))
	if err != nil {
		t.Fatalf("encode login: %v", err)
	}
	cmd, err := DecodeCommand(buf, sender)
	if err != nil {
		t.Fatalf("decode login: %v", err)
	}
	st.recvQueue.Push(cmd)
}

func popReply(t *testing.T, st *State) Datagram {
	t.Helper()
	dg, ok := st.sendQueue.TryPop()
	if !ok {
		t.Fatal("expected a queued reply")
	}
	return dg
}

func TestLoginCreatesAccount(t *testing.T) {
	st := NewState(nil, false)
	alice := addrN(1)

	pushLogin(t, st, alice, "alice", "secret")
	st.step()

	if st.accounts.Len() != 1 {
		t.Fatalf("expected 1 account, got %d", st.accounts.Len())
	}
	acct := st.accounts.FindByName("alice")
	if acct == nil {
		t.Fatal("account alice not found")
	}
	if acct.ID == 0 {
		t.Error("account id 0 assigned")
	}

	reply := popReply(t, st)
	if reply.To != alice {
		t.Errorf("reply addressed to %s", reply.To)
	}
	if reply.Bytes[0] != MsgNewAccountCreated {
		t.Errorf("expected NewAccountCreated, got tag %d", reply.Bytes[0])
	}

	h := st.clients.FindByAddr(alice)
	if h == 0 {
		t.Fatal("no session registered for alice")
	}
	if st.clients.At(h).AccountID != acct.ID {
		t.Error("session not linked to account")
	}
	if st.clients.At(h).LANPort != 1000 || st.clients.At(h).LANIP != 0x7F000001 {
		t.Error("LAN address not recorded on session")
	}
}

func TestCreateCharacter(t *testing.T) {
	st := NewState(nil, false)
	alice := addrN(1)

	pushLogin(t, st, alice, "alice", "secret")
	st.step()
	popReply(t, st)

	cmd, _ := DecodeCommand(EncodeCreateCharacter(2), alice)
	st.recvQueue.Push(cmd)
	st.step()

	reply := popReply(t, st)
	if reply.Bytes[0] != MsgCharacterID {
		t.Fatalf("expected CharacterId, got tag %d", reply.Bytes[0])
	}
	eid := binary.LittleEndian.Uint64(reply.Bytes[1:])
	if eid == 0 {
		t.Fatal("entity id 0 assigned")
	}

	if st.entities.Len() != 1 {
		t.Fatalf("expected 1 entity, got %d", st.entities.Len())
	}
	e, _ := st.entities.Get(0)
	if e.ID != eid || e.Type != EntityCharacter || e.Color != 2 {
		t.Errorf("unexpected entity %+v", e)
	}
	if !e.Changed {
		t.Error("new entity not marked changed")
	}
	if e.Features != FeatureWalksAround|FeatureCanFight {
		t.Errorf("unexpected features %b", e.Features)
	}

	acct := st.accounts.FindByName("alice")
	if acct.EntityID != eid {
		t.Error("account not linked to character")
	}
	if h := st.clients.FindByEntityID(eid); h == 0 {
		t.Error("session not linked to character")
	}
}

func TestSecondCharacterRejected(t *testing.T) {
	st := NewState(nil, false)
	alice := addrN(1)

	pushLogin(t, st, alice, "alice", "secret")
	cmd, _ := DecodeCommand(EncodeCreateCharacter(2), alice)
	st.recvQueue.Push(cmd)
	cmd, _ = DecodeCommand(EncodeCreateCharacter(5), alice)
	st.recvQueue.Push(cmd)
	st.step()

	if st.entities.Len() != 1 {
		t.Errorf("expected 1 entity after duplicate create, got %d", st.entities.Len())
	}
	// NewAccountCreated + one CharacterId, nothing for the duplicate.
	popReply(t, st)
	popReply(t, st)
	if _, ok := st.sendQueue.TryPop(); ok {
		t.Error("duplicate create produced a reply")
	}
}

func TestBadPasswordRejected(t *testing.T) {
	st := NewState(nil, false)
	alice := addrN(1)
	intruder := addrN(2)

	pushLogin(t, st, alice, "alice", "secret")
	st.step()
	popReply(t, st)
	accountsBefore := st.accounts.Len()

	pushLogin(t, st, intruder, "alice", "wrong")
	st.step()

	reply := popReply(t, st)
	if reply.Bytes[0] != MsgBadPw {
		t.Fatalf("expected BadPw, got tag %d", reply.Bytes[0])
	}
	if reply.To != intruder {
		t.Errorf("BadPw sent to %s", reply.To)
	}
	if st.accounts.Len() != accountsBefore {
		t.Error("failed login mutated the account store")
	}
	acct := st.accounts.FindByName("alice")
	if h := st.clients.FindByAddr(intruder); h != 0 && st.clients.At(h).AccountID == acct.ID {
		t.Error("failed login linked the session to the account")
	}
}

func TestReloginWithCharacterGetsCharacterID(t *testing.T) {
	st := NewState(nil, false)
	alice := addrN(1)

	pushLogin(t, st, alice, "alice", "secret")
	cmd, _ := DecodeCommand(EncodeCreateCharacter(1), alice)
	st.recvQueue.Push(cmd)
	st.step()
	popReply(t, st)
	created := popReply(t, st)
	eid := binary.LittleEndian.Uint64(created.Bytes[1:])

	// Same player from a new address (say, after a reconnect).
	again := addrN(3)
	pushLogin(t, st, again, "alice", "secret")
	st.step()

	reply := popReply(t, st)
	if reply.Bytes[0] != MsgCharacterID {
		t.Fatalf("expected CharacterId on re-login, got tag %d", reply.Bytes[0])
	}
	if got := binary.LittleEndian.Uint64(reply.Bytes[1:]); got != eid {
		t.Errorf("expected entity id %d, got %d", eid, got)
	}
}

func TestKeepAliveRefreshesSession(t *testing.T) {
	st := NewState(nil, false)
	alice := addrN(1)

	pushLogin(t, st, alice, "alice", "secret")
	st.step()
	h := st.clients.FindByAddr(alice)

	before := st.clients.At(h).LastSeenTick
	cmd, _ := DecodeCommand(EncodeKeepAlive(), alice)
	st.recvQueue.Push(cmd)
	st.step()

	if got := st.clients.At(h).LastSeenTick; got <= before {
		t.Errorf("last seen tick not refreshed: before=%d after=%d", before, got)
	}

	// Keep-alive from an address that never logged in touches nothing.
	stranger := addrN(9)
	cmd, _ = DecodeCommand(EncodeKeepAlive(), stranger)
	st.recvQueue.Push(cmd)
	st.step()
	if st.clients.At(0).LastSeenTick != 0 {
		t.Error("stranger keep-alive wrote the sentinel slot")
	}
}

func TestEvictedSlotReusedByNextLogin(t *testing.T) {
	st := NewState(nil, false)
	alice := addrN(1)

	pushLogin(t, st, alice, "alice", "secret")
	st.step()
	h := st.clients.FindByAddr(alice)
	st.clients.At(h).CharacterEID = 99 // pretend a character exists so only eviction frees the slot

	// Let the timeout elapse with no inbound traffic.
	for i := 0; i < clientTimeoutTicks+2; i++ {
		st.step()
	}
	evicted := st.clients.EvictTimedOut(st.Tick(), clientTimeoutTicks)
	if len(evicted) != 1 || evicted[0] != h {
		t.Fatalf("expected eviction of handle %d, got %v", h, evicted)
	}

	bob := addrN(2)
	pushLogin(t, st, bob, "bob", "hunter2")
	st.step()
	if got := st.clients.FindByAddr(bob); got != h {
		t.Errorf("expected bob to reuse slot %d, got %d", h, got)
	}
}

func TestSimulationRunStop(t *testing.T) {
	st := NewState(nil, false)
	sim := NewSimulation(st, laneCount)
	sim.Run()

	deadline := time.After(5 * time.Second)
	for st.Tick() < 2 {
		select {
		case <-deadline:
			t.Fatal("simulation did not tick")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	sim.Stop()
	after := st.Tick()
	time.Sleep(2 * tickDuration)
	if st.Tick() != after {
		t.Error("simulation kept ticking after Stop")
	}
}

func TestSimulationProcessesQueuedCommands(t *testing.T) {
	st := NewState(nil, false)
	sim := NewSimulation(st, laneCount)
	sim.Run()
	defer sim.Stop()

	pushLogin(t, st, addrN(1), "alice", "secret")

	deadline := time.After(5 * time.Second)
	for {
		st.mu.Lock()
		n := st.accounts.Len()
		st.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("lane 0 never processed the login")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
