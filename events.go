package main

import (
	"database/sql"
	"log"
	"sync"
	"time"
)

// Event types for the protocol journal
const (
	EvtLogin            = "login"
	EvtBadPassword      = "bad_password"
	EvtAccountCreated   = "account_created"
	EvtCharacterCreated = "character_created"
	EvtClientEvicted    = "client_evicted"
)

// Event is a single journaled protocol event.
type Event struct {
	Type      string
	Tick      uint64
	AccountID uint64
	Detail    string
	Timestamp time.Time
}

// EventLog journals protocol events with batched background writes so
// lane 0 never blocks on the database. A nil *EventLog is valid and
// records nothing.
type EventLog struct {
	db     *DB
	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewEventLog creates and starts the journal writer.
func NewEventLog(db *DB) *EventLog {
	l := &EventLog{
		db:     db,
		events: make(chan Event, 1024),
		stop:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

// Record enqueues an event for async persistence (non-blocking).
func (l *EventLog) Record(evtType string, tick uint64, accountID uint64, detail string) {
	if l == nil {
		return
	}
	select {
	case l.events <- Event{
		Type:      evtType,
		Tick:      tick,
		AccountID: accountID,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Channel full — drop the event rather than stalling the tick
	}
}

// Stop flushes pending events and shuts the writer down.
func (l *EventLog) Stop() {
	if l == nil {
		return
	}
	close(l.stop)
	l.wg.Wait()
}

// writer is the background goroutine that batches and writes events.
func (l *EventLog) writer() {
	defer l.wg.Done()

	batch := make([]Event, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-l.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-l.stop:
			// Drain remaining events
			close(l.events)
			for evt := range l.events {
				batch = append(batch, evt)
			}
			if len(batch) > 0 {
				l.flush(batch)
			}
			return
		}
	}
}

// flush writes a batch of events to the database.
func (l *EventLog) flush(events []Event) {
	if l.db == nil || len(events) == 0 {
		return
	}
	tx, err := l.db.conn.Begin()
	if err != nil {
		log.Printf("event log: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (event_type, tick, account_id, detail, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("event log: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		aid := sql.NullInt64{Int64: int64(evt.AccountID), Valid: evt.AccountID > 0}
		detail := sql.NullString{String: evt.Detail, Valid: evt.Detail != ""}
		if _, err := stmt.Exec(evt.Type, evt.Tick, aid, detail, evt.Timestamp.Format(time.RFC3339)); err != nil {
			log.Printf("event log: insert error: %v", err)
		}
	}
	tx.Commit()
}
