package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Actor kinds: internal team members vs external client contacts.
const (
	ActorMember  = "member"
	ActorContact = "contact"
)

// EnsureActor inserts the actor if it does not exist yet. Existing rows keep
// their original kind.
func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID, kind string) error {
	if actorID == "" {
		return errors.New("actor_id required")
	}
	if kind == "" {
		kind = ActorMember
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, kind, created_at) VALUES (?,?,?)`, actorID, kind, now)
	return err
}
