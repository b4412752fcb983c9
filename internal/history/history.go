// Package history is a write-only transcript of finalized turns, kept for
// audit. It is never read back into a live conversation.
// When a database path is configured the transcript goes to SQLite; if
// opening the DB or executing queries fails, the store keeps an in-memory copy.
package history

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/loanadvisor-go/internal/conversation"
	"github.com/comigor/loanadvisor-go/internal/logger"
)

// Store records transcript messages.
type Store struct {
	mu       sync.Mutex
	messages []Message // in-memory fallback
	db       *sql.DB
}

// Open returns a Store backed by the SQLite file at dbPath. An empty path,
// or a database that cannot be opened, yields an in-memory store.
func Open(dbPath string) *Store {
	s := &Store{}
	if dbPath == "" {
		return s
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err)
		return s
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT,
        turn_id TEXT,
        exchange_id TEXT,
        role TEXT,
        content TEXT,
        has_audio INTEGER,
        created_at DATETIME
    );`); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		db.Close()
		return s
	}
	logger.L.Info("sqlite history DB initialized", "path", dbPath)
	s.db = db
	return s
}

// Save persists a message to the SQLite database when available and always
// keeps an in-memory copy as fallback.
func (s *Store) Save(msg Message) {
	if s.db != nil {
		_, err := s.db.Exec(`INSERT INTO messages (session_id, turn_id, exchange_id, role, content, has_audio, created_at) VALUES (?,?,?,?,?,?,?);`,
			msg.SessionID, msg.TurnID, msg.ExchangeID, msg.Role, msg.Content, msg.HasAudio, msg.CreatedAt)
		if err != nil {
			logger.L.Error("failed to store message in sqlite; falling back to memory", "error", err)
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// List returns all messages of a session in the order they were saved.
func (s *Store) List(sessionID string) []Message {
	var out []Message
	if s.db != nil {
		rows, err := s.db.Query(`SELECT id, session_id, turn_id, exchange_id, role, content, has_audio, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
		if err == nil {
			defer rows.Close()
			for rows.Next() {
				var m Message
				if err := rows.Scan(&m.ID, &m.SessionID, &m.TurnID, &m.ExchangeID, &m.Role, &m.Content, &m.HasAudio, &m.CreatedAt); err == nil {
					out = append(out, m)
				}
			}
			return out
		}
		logger.L.Warn("sqlite query failed; reading in-memory history", "error", err)
	}
	s.mu.Lock()
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	s.mu.Unlock()
	return out
}

// Persistent reports whether messages reach SQLite.
func (s *Store) Persistent() bool { return s.db != nil }

// Close releases the database, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Sink returns an observer that writes one session's finalized turns.
func (s *Store) Sink(sessionID string) conversation.Observer {
	return sink{store: s, sessionID: sessionID}
}

type sink struct {
	store     *Store
	sessionID string
}

func (k sink) TurnFinalized(t conversation.Turn) {
	k.store.Save(Message{
		SessionID:  k.sessionID,
		TurnID:     t.ID,
		ExchangeID: t.ExchangeID,
		Role:       string(t.Role),
		Content:    t.Content,
		HasAudio:   t.HasAudio(),
		CreatedAt:  t.CreatedAt,
	})
}
