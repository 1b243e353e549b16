package cache

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_messages (
	account    TEXT NOT NULL,
	message_id TEXT NOT NULL,
	PRIMARY KEY (account, message_id)
);
`

// SQLiteStore keeps the processed sets of any number of accounts in one
// database. Each store instance reads and writes a single account.
type SQLiteStore struct {
	db      *sqlx.DB
	account string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite db")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling WAL mode")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return db, nil
}

func NewSQLiteStore(db *sqlx.DB, account string) *SQLiteStore {
	return &SQLiteStore{db: db, account: account}
}

func (s *SQLiteStore) Load(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT message_id FROM processed_messages WHERE account = ? ORDER BY message_id", s.account)
	if err != nil {
		return nil, errors.Wrapf(err, "loading processed messages for %s", s.account)
	}
	return ids, nil
}

// Save replaces the account's rows in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM processed_messages WHERE account = ?", s.account); err != nil {
		return errors.Wrapf(err, "clearing processed messages for %s", s.account)
	}

	stmt, err := tx.PreparexContext(ctx, "INSERT INTO processed_messages (account, message_id) VALUES (?, ?)")
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, s.account, id); err != nil {
			return errors.Wrapf(err, "inserting %q", id)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}
