package repo

import (
	"context"
	"database/sql"
	"strings"

	"gighub/internal/domain"
)

// ListEventsAfter returns up to limit events with id greater than afterID,
// oldest first, optionally restricted to a type set. The webhook
// dispatcher polls with this.
func (r Repo) ListEventsAfter(ctx context.Context, afterID int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT id, ts, type, entity_kind, entity_id, actor_id, payload_json FROM events WHERE id > ?`
	args := []any{afterID}
	if len(types) > 0 {
		query += ` AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)`
		for _, t := range types {
			args = append(args, t)
		}
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var evts []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		evts = append(evts, e)
	}
	return evts, rows.Err()
}
