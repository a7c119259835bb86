// Package tickets implements the authoritative ticket backing store.
//
// Tickets are the source of truth the memory core reconciles against:
// the conflict resolver and the escalation rules both read ticket state,
// but never own it. The store persists all tickets as a single JSON
// document keyed by ticket id, and every write is verified by reading
// the file back before the in-memory state advances.
package tickets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Ticket status values.
const (
	StatusNew       = "New"
	StatusOpen      = "Open"
	StatusEscalated = "Escalated"
	StatusResolved  = "Resolved"
)

// Ticket priority levels.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// DateLayout is the layout used for created_at and last_updated.
const DateLayout = "2006-01-02"

// ErrVerification indicates a ticket save could not be read back intact.
var ErrVerification = errors.New("ticket save verification failed")

// Note is a single annotation on a ticket.
type Note struct {
	Timestamp string `json:"timestamp"`
	Author    string `json:"author"`
	Text      string `json:"text"`
}

// Ticket is the authoritative support-ticket record.
type Ticket struct {
	Status       string `json:"status"`
	Issue        string `json:"issue"`
	Description  string `json:"description"`
	Device       string `json:"device"`
	Priority     string `json:"priority"`
	CreatedAt    string `json:"created_at"`
	LastUpdated  string `json:"last_updated"`
	CustomerName string `json:"customer_name"`
	Notes        []Note `json:"notes"`
}

// ToolResult is the envelope a ticket operation hands to the memory core.
// Status carries the operation outcome ("created", "updated"); Ticket
// carries the authoritative record the conflict resolver and escalation
// rules inspect.
type ToolResult struct {
	TicketID string  `json:"ticket_id,omitempty"`
	Status   string  `json:"status,omitempty"`
	Message  string  `json:"message,omitempty"`
	Ticket   *Ticket `json:"ticket,omitempty"`
}

// Update describes a partial ticket update. Empty fields are unchanged.
type Update struct {
	Note   string
	Device string
	Status string
}

// Store is a durable, file-backed ticket database keyed by ticket id.
type Store struct {
	path string
	mu   sync.Mutex
	db   map[string]*Ticket
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open loads the ticket database at path, creating an empty one if the
// file does not exist yet.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path: path,
		db:   make(map[string]*Ticket),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ticket db: %w", err)
	}
	if err := json.Unmarshal(data, &s.db); err != nil {
		return nil, fmt.Errorf("parse ticket db %s: %w", path, err)
	}
	return s, nil
}

// Lookup returns the ticket for id. A missing id is not an error: the
// second result is false.
func (s *Store) Lookup(id string) (*ToolResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.db[id]
	if !ok {
		log.Printf("[TICKETS] Lookup miss: %s", id)
		return nil, false, nil
	}
	return &ToolResult{TicketID: id, Ticket: cloneTicket(t)}, true, nil
}

// Create opens a new ticket and persists it. Device defaults to "-" and
// priority to Medium when unset.
func (s *Store) Create(customerName, issue, device, priority string) (*ToolResult, error) {
	if device == "" {
		device = "-"
	}
	if priority == "" {
		priority = PriorityMedium
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID()
	now := s.now().UTC()
	ticket := &Ticket{
		Status:       StatusNew,
		Issue:        issue,
		Description:  issue,
		Device:       device,
		Priority:     priority,
		CreatedAt:    now.Format(DateLayout),
		LastUpdated:  now.Format(DateLayout),
		CustomerName: customerName,
		Notes: []Note{{
			Timestamp: now.Format(time.RFC3339),
			Author:    "customer",
			Text:      issue,
		}},
	}

	staged := s.stagedCopy()
	staged[id] = ticket
	if err := s.save(staged); err != nil {
		return nil, err
	}
	s.db = staged

	log.Printf("[TICKETS] Created ticket %s for %s (priority=%s)", id, customerName, priority)
	return &ToolResult{
		TicketID: id,
		Status:   "created",
		Message:  fmt.Sprintf("Ticket %s created successfully", id),
		Ticket:   cloneTicket(ticket),
	}, nil
}

// UpdateTicket applies upd to an existing ticket and persists it. A
// missing id is not an error: the second result is false.
func (s *Store) UpdateTicket(id string, upd Update) (*ToolResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.db[id]; !ok {
		log.Printf("[TICKETS] Update miss: %s", id)
		return nil, false, nil
	}

	staged := s.stagedCopy()
	ticket := cloneTicket(staged[id])
	staged[id] = ticket

	now := s.now().UTC()
	if upd.Note != "" {
		ticket.Notes = append(ticket.Notes, Note{
			Timestamp: now.Format(time.RFC3339),
			Author:    "customer",
			Text:      upd.Note,
		})
	}
	if upd.Device != "" && upd.Device != "-" {
		ticket.Device = upd.Device
	}
	if upd.Status != "" {
		ticket.Status = upd.Status
	}
	ticket.LastUpdated = now.Format(DateLayout)

	if err := s.save(staged); err != nil {
		return nil, false, err
	}
	s.db = staged

	log.Printf("[TICKETS] Updated ticket %s", id)
	return &ToolResult{
		TicketID: id,
		Status:   "updated",
		Ticket:   cloneTicket(ticket),
	}, true, nil
}

// Count returns the number of stored tickets.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.db)
}

// nextID allocates the next numeric ticket id. Caller holds the lock.
func (s *Store) nextID() string {
	max := 0
	for id := range s.db {
		if n, err := strconv.Atoi(id); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// stagedCopy returns a shallow copy of the database map so a failed save
// never advances in-memory state. Caller holds the lock.
func (s *Store) stagedCopy() map[string]*Ticket {
	staged := make(map[string]*Ticket, len(s.db)+1)
	for id, t := range s.db {
		staged[id] = t
	}
	return staged
}

// save writes the database to disk and verifies it by reading it back.
// A count mismatch is fatal for the write and reported with the target
// path so the caller can diagnose it.
func (s *Store) save(db map[string]*Ticket) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ticket db dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ticket db: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write ticket db: %w", err)
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: read back %s: %v", ErrVerification, s.path, err)
	}
	var verify map[string]*Ticket
	if err := json.Unmarshal(raw, &verify); err != nil {
		return fmt.Errorf("%w: parse back %s: %v", ErrVerification, s.path, err)
	}
	if len(verify) != len(db) {
		return fmt.Errorf("%w: expected %d tickets, got %d at %s",
			ErrVerification, len(db), len(verify), s.path)
	}
	return nil
}

func cloneTicket(t *Ticket) *Ticket {
	c := *t
	c.Notes = make([]Note, len(t.Notes))
	copy(c.Notes, t.Notes)
	return &c
}
