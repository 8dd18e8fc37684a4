package main

import (
	"log"
	"net"
	"net/netip"
	"sync"
	"time"
)

// Server owns the UDP socket and the two network goroutines: a receive
// loop that decodes datagrams onto the inbound queue, and a send loop that
// drains the outbound queue at a fixed rate and runs the session timeout
// sweep. It shares no state with the simulation beyond State's queues and
// locks.
type Server struct {
	state    *State
	conn     *net.UDPConn
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer binds the UDP socket.
func NewServer(state *State, addr string) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		state: state,
		conn:  conn,
		stop:  make(chan struct{}),
	}, nil
}

// LocalAddr returns the bound address, useful when listening on port 0.
func (s *Server) LocalAddr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Run starts the receive and send loops and returns.
func (s *Server) Run() {
	s.wg.Add(2)
	go s.receiveLoop()
	go s.sendLoop()
}

// Stop closes the socket (unblocking the receive loop) and waits for both
// loops to exit.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.conn.Close()
	s.wg.Wait()
}

func (s *Server) receiveLoop() {
	defer s.wg.Done()

	buf := make([]byte, MaxDatagramLen)
	for {
		n, sender, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			log.Printf("udp read: %v", err)
			continue
		}

		// Normalize 4-in-6 mapped sources so address equality in the
		// client table is consistent.
		sender = netip.AddrPortFrom(sender.Addr().Unmap(), sender.Port())

		cmd, err := DecodeCommand(buf[:n], sender)
		if err != nil {
			log.Printf("dropping datagram from %s: %v", sender, err)
			continue
		}
		if s.state.debug {
			log.Printf("%d bytes: %s from %s", n, CommandName(cmd.Type), sender)
		}

		// Blocking push: a saturated simulation backpressures the socket
		// rather than growing without bound.
		s.state.recvQueue.Push(cmd)
	}
}

func (s *Server) sendLoop() {
	defer s.wg.Done()

	st := s.state
	for {
		start := time.Now()

		// 1. Drain the outbound queue.
		for {
			dg, ok := st.sendQueue.TryPop()
			if !ok {
				break
			}
			if _, err := s.conn.WriteToUDPAddrPort(dg.Bytes, dg.To); err != nil {
				log.Printf("udp write to %s: %v", dg.To, err)
			}
		}

		// 2. Sweep timed-out sessions.
		tick := st.Tick()
		st.clientMu.Lock()
		evicted := st.clients.EvictTimedOut(tick, clientTimeoutTicks)
		st.clientMu.Unlock()
		for _, handle := range evicted {
			log.Printf("evicted idle client handle=%d at tick %d", handle, tick)
			st.events.Record(EvtClientEvicted, tick, 0, "")
		}

		select {
		case <-s.stop:
			return
		default:
		}

		if remaining := sendSweepPeriod - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}
