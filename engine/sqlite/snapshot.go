package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/statekit/stash/internal/canonical"
)

// SnapshotInfo describes one stored snapshot without its body.
type SnapshotInfo struct {
	Seq       int64     `json:"seq" yaml:"seq"`
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Hash      string    `json:"hash" yaml:"hash"`
	Size      int64     `json:"size" yaml:"size"`
}

// Save appends the snapshot to the log as canonical JSON.
func (e *Engine) Save(ctx context.Context, snapshot any) error {
	body, err := canonical.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	hash, err := canonical.Hash(snapshot)
	if err != nil {
		return fmt.Errorf("hash snapshot: %w", err)
	}

	_, err = e.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, created_at, hash, body) VALUES (?, ?, ?, ?)`,
		uuid.NewString(),
		time.Now().UTC().Format(time.RFC3339Nano),
		hash,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Load returns the newest snapshot, or nil if the log is empty.
func (e *Engine) Load(ctx context.Context) (any, error) {
	var body string
	err := e.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots ORDER BY seq DESC LIMIT 1`,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	return canonical.Unmarshal([]byte(body))
}

// List returns snapshot metadata, oldest first. Results are ordered by
// seq so listings are stable regardless of wall-clock skew.
func (e *Engine) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT seq, id, created_at, hash, length(body) FROM snapshots ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var createdAt string
		if err := rows.Scan(&info.Seq, &info.ID, &createdAt, &info.Hash, &info.Size); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		info.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return infos, nil
}

// Get returns the body of the snapshot with the given id, decoded.
func (e *Engine) Get(ctx context.Context, id string) (any, error) {
	var body string
	err := e.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE id = ?`, id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot %s: %w", id, err)
	}
	return canonical.Unmarshal([]byte(body))
}

// Prune deletes all but the newest keep snapshots. Returns the number of
// rows removed.
func (e *Engine) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must be >= 0, got %d", keep)
	}
	res, err := e.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE seq NOT IN (
			SELECT seq FROM snapshots ORDER BY seq DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned rows: %w", err)
	}
	return n, nil
}
