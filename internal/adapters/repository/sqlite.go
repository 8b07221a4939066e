package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/lootrota/internal/domain/cascade"
	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/pkg/metrics"
)

// SQLiteStore is a durable Store backed by a single SQLite database file.
type SQLiteStore struct {
	watchers

	db     *sql.DB
	opts   options
	closed atomic.Bool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty db path", ErrInvalidRecord)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers and keeps BEGIN..COMMIT on one conn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &SQLiteStore{db: db, opts: o}
	s.refreshTotals(ctx)
	return s, nil
}

func initPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlite %s: %w", strings.TrimSuffix(p, ";"), err)
		}
	}
	return nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			combat_power TEXT NOT NULL DEFAULT '',
			balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
			class TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			presence TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			rarity TEXT NOT NULL DEFAULT '',
			stats TEXT NOT NULL DEFAULT '',
			chance TEXT NOT NULL DEFAULT '',
			icon_url TEXT NOT NULL DEFAULT '',
			cost INTEGER NOT NULL DEFAULT 0 CHECK (cost >= 0),
			last_recipient_id TEXT NOT NULL DEFAULT '',
			limit_to_top_n INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			item_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('Acquired','Skipped','Absent')),
			cost INTEGER NOT NULL DEFAULT 0,
			ts_ns INTEGER NOT NULL,
			raid_name TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS events_ts ON events(ts_ns DESC, seq DESC);`,
		`CREATE INDEX IF NOT EXISTS events_player ON events(player_id);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

const (
	playerColumns = `id, name, combat_power, balance, class, role, avatar_url, presence`
	itemColumns   = `id, name, rarity, stats, chance, icon_url, cost, last_recipient_id, limit_to_top_n`
	eventColumns  = `id, item_id, player_id, status, cost, ts_ns, raid_name`
)

type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanPlayer(r scanner) (model.Player, error) {
	var p model.Player
	var class, role, presence string
	if err := r.Scan(&p.ID, &p.Name, &p.CombatPower, &p.Balance, &class, &role, &p.AvatarURL, &presence); err != nil {
		return model.Player{}, err
	}
	p.Class, p.Role, p.Presence = model.Class(class), model.Role(role), model.Presence(presence)
	return p, nil
}

func scanItem(r scanner) (model.Item, error) {
	var it model.Item
	var rarity string
	var limit int
	if err := r.Scan(&it.ID, &it.Name, &rarity, &it.Stats, &it.Chance, &it.IconURL, &it.Cost, &it.LastRecipientID, &limit); err != nil {
		return model.Item{}, err
	}
	it.Rarity, it.LimitToTopN = model.Rarity(rarity), limit != 0
	return it, nil
}

func scanEvent(r scanner) (model.LootEvent, error) {
	var e model.LootEvent
	var status string
	var ts int64
	if err := r.Scan(&e.ID, &e.ItemID, &e.PlayerID, &status, &e.Cost, &ts, &e.RaidName); err != nil {
		return model.LootEvent{}, err
	}
	e.Status, e.Timestamp = model.Status(status), time.Unix(0, ts).UTC()
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) check() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// withTx runs fn in a transaction and commits when fn returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := s.check(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreatePlayer(ctx context.Context, p model.Player) (_ model.Player, err error) {
	defer observe("create_player", time.Now(), &err)
	if err := validatePlayer(p); err != nil {
		return model.Player{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := s.check(); err != nil {
		return model.Player{}, err
	}
	if p.ID == "" {
		p.ID = s.opts.newID()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO players (`+playerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.CombatPower, p.Balance, string(p.Class), string(p.Role), p.AvatarURL, string(p.Presence))
	if isUniqueViolation(err) {
		return model.Player{}, fmt.Errorf("%w: player %s", ErrConflict, p.ID)
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("insert player: %w", err)
	}
	s.refreshTotals(ctx)
	s.publish(Change{Collection: CollectionPlayers, Op: OpCreate, ID: p.ID})
	return p, nil
}

func (s *SQLiteStore) UpdatePlayer(ctx context.Context, id string, patch PlayerPatch) (_ model.Player, err error) {
	defer observe("update_player", time.Now(), &err)
	var out model.Player
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getPlayer(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := patch.apply(&p); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE players SET name = ?, combat_power = ?, balance = ?, class = ?, role = ?, avatar_url = ?, presence = ? WHERE id = ?`,
			p.Name, p.CombatPower, p.Balance, string(p.Class), string(p.Role), p.AvatarURL, string(p.Presence), id)
		if err != nil {
			return fmt.Errorf("update player: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Player{}, err
	}
	s.publish(Change{Collection: CollectionPlayers, Op: OpUpdate, ID: id})
	return out, nil
}

func (s *SQLiteStore) DeletePlayer(ctx context.Context, id string) (err error) {
	defer observe("delete_player", time.Now(), &err)
	if err := s.deleteRow(ctx, "players", id); err != nil {
		return fmt.Errorf("%w: player %s", err, id)
	}
	s.publish(Change{Collection: CollectionPlayers, Op: OpDelete, ID: id})
	return nil
}

func (s *SQLiteStore) GetPlayer(ctx context.Context, id string) (model.Player, error) {
	if err := s.check(); err != nil {
		return model.Player{}, err
	}
	return getPlayer(ctx, s.db, id)
}

func getPlayer(ctx context.Context, q querier, id string) (model.Player, error) {
	p, err := scanPlayer(q.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Player{}, fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	return p, err
}

func (s *SQLiteStore) ListPlayers(ctx context.Context) ([]model.Player, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return listPlayers(ctx, s.db)
}

func listPlayers(ctx context.Context, q querier) ([]model.Player, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()
	out := make([]model.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearPlayers(ctx context.Context) error {
	if err := s.clearTable(ctx, "players"); err != nil {
		return err
	}
	s.publish(Change{Collection: CollectionPlayers, Op: OpClear})
	return nil
}

func (s *SQLiteStore) CreateItem(ctx context.Context, it model.Item) (_ model.Item, err error) {
	defer observe("create_item", time.Now(), &err)
	if err := validateItem(it); err != nil {
		return model.Item{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := s.check(); err != nil {
		return model.Item{}, err
	}
	if it.ID == "" {
		it.ID = s.opts.newID()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Name, string(it.Rarity), it.Stats, it.Chance, it.IconURL, it.Cost, it.LastRecipientID, boolInt(it.LimitToTopN))
	if isUniqueViolation(err) {
		return model.Item{}, fmt.Errorf("%w: item %s", ErrConflict, it.ID)
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("insert item: %w", err)
	}
	s.refreshTotals(ctx)
	s.publish(Change{Collection: CollectionItems, Op: OpCreate, ID: it.ID})
	return it, nil
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, id string, patch ItemPatch) (_ model.Item, err error) {
	defer observe("update_item", time.Now(), &err)
	var out model.Item
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		it, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := patch.apply(&it); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE items SET name = ?, rarity = ?, stats = ?, chance = ?, icon_url = ?, cost = ?, last_recipient_id = ?, limit_to_top_n = ? WHERE id = ?`,
			it.Name, string(it.Rarity), it.Stats, it.Chance, it.IconURL, it.Cost, it.LastRecipientID, boolInt(it.LimitToTopN), id)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		out = it
		return nil
	})
	if err != nil {
		return model.Item{}, err
	}
	s.publish(Change{Collection: CollectionItems, Op: OpUpdate, ID: id})
	return out, nil
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) (err error) {
	defer observe("delete_item", time.Now(), &err)
	if err := s.deleteRow(ctx, "items", id); err != nil {
		return fmt.Errorf("%w: item %s", err, id)
	}
	s.publish(Change{Collection: CollectionItems, Op: OpDelete, ID: id})
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (model.Item, error) {
	if err := s.check(); err != nil {
		return model.Item{}, err
	}
	return getItem(ctx, s.db, id)
}

func getItem(ctx context.Context, q querier, id string) (model.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return it, err
}

func (s *SQLiteStore) ListItems(ctx context.Context) ([]model.Item, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return listItems(ctx, s.db)
}

func listItems(ctx context.Context, q querier) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	out := make([]model.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearItems(ctx context.Context) error {
	if err := s.clearTable(ctx, "items"); err != nil {
		return err
	}
	s.publish(Change{Collection: CollectionItems, Op: OpClear})
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context) ([]model.LootEvent, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return listEvents(ctx, s.db)
}

func listEvents(ctx context.Context, q querier) ([]model.LootEvent, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY ts_ns DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	out := make([]model.LootEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearEvents(ctx context.Context) error {
	if err := s.clearTable(ctx, "events"); err != nil {
		return err
	}
	s.publish(Change{Collection: CollectionEvents, Op: OpClear})
	return nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.Players, err = listPlayers(ctx, tx); err != nil {
			return err
		}
		if snap.Items, err = listItems(ctx, tx); err != nil {
			return err
		}
		snap.Events, err = listEvents(ctx, tx)
		return err
	})
	return snap, err
}

// ApplyBatch writes the batch in one transaction. The balance debit is
// computed by SQLite against the committed row, floored at zero.
func (s *SQLiteStore) ApplyBatch(ctx context.Context, b cascade.Batch) (_ []model.LootEvent, err error) {
	defer observe("apply_batch", time.Now(), &err)

	events := make([]model.LootEvent, len(b.Events))
	for i, e := range b.Events {
		if err := validateEvent(e); err != nil {
			return nil, err
		}
		if e.ID == "" {
			e.ID = s.opts.newID()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = s.opts.now()
		}
		events[i] = e
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getItem(ctx, tx, b.ItemID); err != nil {
			return err
		}
		for _, id := range batchPlayerIDs(b) {
			if _, err := getPlayer(ctx, tx, id); err != nil {
				return err
			}
		}
		for _, e := range events {
			_, err := tx.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.ItemID, e.PlayerID, string(e.Status), e.Cost, e.Timestamp.UnixNano(), e.RaidName)
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: event %s", ErrConflict, e.ID)
			}
			if err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
		for id, u := range b.PlayerUpdates {
			if _, err := tx.ExecContext(ctx, `UPDATE players SET balance = MAX(0, balance - ?) WHERE id = ?`, u.Debit, id); err != nil {
				return fmt.Errorf("debit player: %w", err)
			}
		}
		if b.ItemUpdate != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE items SET last_recipient_id = ? WHERE id = ?`, b.ItemUpdate.LastRecipientID, b.ItemID); err != nil {
				return fmt.Errorf("update last recipient: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refreshTotals(ctx)
	s.publish(batchChanges(b, events)...)
	return events, nil
}

func (s *SQLiteStore) deleteRow(ctx context.Context, table, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.refreshTotals(ctx)
	return nil
}

func (s *SQLiteStore) clearTable(ctx context.Context, table string) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	s.refreshTotals(ctx)
	return nil
}

func (s *SQLiteStore) refreshTotals(ctx context.Context) {
	var players, items, events int
	row := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM players),
		(SELECT COUNT(*) FROM items),
		(SELECT COUNT(*) FROM events)`)
	if err := row.Scan(&players, &items, &events); err != nil {
		return
	}
	metrics.UpdateRosterTotals(players, items, events)
}
