// Package journal records published snapshots in SQLite so that the board
// history can be replayed and queried after the fact.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/boardcast/idgen"
	"github.com/hazyhaar/boardcast/snapshot"
)

// ErrNotFound is returned when the journal holds no matching entry.
var ErrNotFound = errors.New("journal: not found")

// Schema creates the journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	seq         INTEGER NOT NULL,
	board       TEXT NOT NULL,
	turn        TEXT NOT NULL,
	is_new_game INTEGER NOT NULL DEFAULT 0,
	result      TEXT NOT NULL DEFAULT '',
	hash        TEXT NOT NULL,
	data        TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
`

// Entry is one recorded snapshot.
type Entry struct {
	ID        string                `json:"id"`
	Seq       uint64                `json:"seq"`
	Hash      string                `json:"hash"`
	CreatedAt time.Time             `json:"created_at"`
	Snapshot  snapshot.GameSnapshot `json:"snapshot"`
}

// Store is the SQLite-backed journal. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator sets the generator for entry IDs. Default: UUIDv7.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies Schema.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, newID: idgen.Default, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records snap under the hub sequence number seq.
func (s *Store) Append(ctx context.Context, seq uint64, snap snapshot.GameSnapshot) (Entry, error) {
	snap = snapshot.Canonical(snap)
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: append: %w", err)
	}
	e := Entry{
		ID:        s.newID(),
		Seq:       seq,
		Hash:      snapshot.Hash(snap),
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
		Snapshot:  snap,
	}
	newGame := 0
	if snap.IsNewGame {
		newGame = 1
	}
	err = execRetry(ctx, s.db,
		`INSERT INTO snapshots (id, seq, board, turn, is_new_game, result, hash, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, int64(seq), snap.Board, string(snap.Turn), newGame, string(snap.GameResult),
		e.Hash, string(data), e.CreatedAt.UnixMilli())
	if err != nil {
		return Entry{}, fmt.Errorf("journal: append: %w", err)
	}
	return e, nil
}

const selectEntry = `SELECT id, seq, hash, data, created_at FROM snapshots`

// Latest returns the most recent entry.
func (s *Store) Latest(ctx context.Context) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` ORDER BY created_at DESC, id DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("journal: latest: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectEntry+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: list: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Games returns the entries that started a new game, newest first.
func (s *Store) Games(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		selectEntry+` WHERE is_new_game = 1 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: games: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: games: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e       Entry
		seq     int64
		data    string
		created int64
	)
	if err := sc.Scan(&e.ID, &seq, &e.Hash, &data, &created); err != nil {
		return Entry{}, err
	}
	snap, err := snapshot.Unmarshal([]byte(data))
	if err != nil {
		return Entry{}, err
	}
	e.Seq = uint64(seq)
	e.Snapshot = snap
	e.CreatedAt = time.UnixMilli(created).UTC()
	return e, nil
}
