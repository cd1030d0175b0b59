package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

// ErrNotFound is returned when the requested entry does not exist.
var ErrNotFound = errors.New("catalog: entry not found")

const entryColumns = `id, workspace, title, medium, type, status, genre, platform,
	my_rating, start_date, finish_date, episodes_watched, total_episodes,
	price, language, poster, external_id, created_at, updated_at`

// Insert persists a new entry. A missing ID is assigned a fresh UUID; the
// timestamps are always set server-side.
func (s *Store) Insert(ctx context.Context, e *Entry) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("catalog: entry title must not be empty")
	}
	if !e.Workspace.Valid() {
		return fmt.Errorf("catalog: unknown workspace %q", e.Workspace)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	genre, err := encodeList(e.Genre)
	if err != nil {
		return fmt.Errorf("catalog: encode genre: %w", err)
	}
	language, err := encodeList(e.Language)
	if err != nil {
		return fmt.Errorf("catalog: encode language: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, string(e.Workspace), e.Title,
		nullString(e.Medium), nullString(e.Type), nullString(e.Status),
		genre, nullString(e.Platform),
		nullFloat(e.MyRating), nullString(e.StartDate), nullString(e.FinishDate),
		nullInt(e.EpisodesWatched), nullInt(e.TotalEpisodes),
		nullFloat(e.Price), language, nullString(e.Poster), nullString(e.ExternalID),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("catalog: insert entry: %w", err)
	}
	return nil
}

// Get returns the entry with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get entry: %w", err)
	}
	return e, nil
}

// Delete removes the entry with the given ID. Returns ErrNotFound when no
// row was deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: delete entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// patchableColumns is the whitelist of columns a partial update may touch.
// Keys match the action payload vocabulary; anything else is silently
// dropped so that stray LLM output can never reach the SQL layer.
var patchableColumns = map[string]struct{}{
	"title":            {},
	"medium":           {},
	"type":             {},
	"status":           {},
	"genre":            {},
	"platform":         {},
	"my_rating":        {},
	"start_date":       {},
	"finish_date":      {},
	"episodes_watched": {},
	"total_episodes":   {},
	"price":            {},
	"language":         {},
	"poster":           {},
	"external_id":      {},
}

// Patch applies fields as a partial update to the entry with the given ID.
// List values are stored as JSON text. Returns ErrNotFound when the row does
// not exist; a patch with no whitelisted fields is a no-op.
func (s *Store) Patch(ctx context.Context, id string, fields map[string]any) error {
	assignments := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, col := range sortedKeys(fields) {
		if _, ok := patchableColumns[col]; !ok {
			continue
		}
		val, err := encodeValue(fields[col])
		if err != nil {
			return fmt.Errorf("catalog: patch field %q: %w", col, err)
		}
		assignments = append(assignments, col+" = ?")
		args = append(args, val)
	}
	if len(assignments) == 0 {
		return nil
	}

	assignments = append(assignments, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET `+strings.Join(assignments, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("catalog: patch entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: patch entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent returns up to limit entries for the workspace, newest first. This
// is the snapshot the entity resolver and the confirmation surface work from.
func (s *Store) Recent(ctx context.Context, ws action.Workspace, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = action.ResolveWindow
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE workspace = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, string(ws), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list recent entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate entries: %w", err)
	}
	return entries, nil
}

// Matches returns the resolver projection of Recent.
func (s *Store) Matches(ctx context.Context, ws action.Workspace, limit int) ([]action.MatchedEntry, error) {
	entries, err := s.Recent(ctx, ws, limit)
	if err != nil {
		return nil, err
	}
	matches := make([]action.MatchedEntry, len(entries))
	for i := range entries {
		matches[i] = entries[i].Match()
	}
	return matches, nil
}

// EntryCount returns the total number of diary entries across workspaces.
func (s *Store) EntryCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count entries: %w", err)
	}
	return n, nil
}

// --- scanning and value helpers ---

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                          Entry
		workspace                  string
		medium, typ, status        sql.NullString
		genre, platform            sql.NullString
		myRating, price            sql.NullFloat64
		startDate, finishDate      sql.NullString
		epsWatched, epsTotal       sql.NullInt64
		language, poster, external sql.NullString
	)
	err := row.Scan(
		&e.ID, &workspace, &e.Title, &medium, &typ, &status, &genre, &platform,
		&myRating, &startDate, &finishDate, &epsWatched, &epsTotal,
		&price, &language, &poster, &external, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Workspace = action.Workspace(workspace)
	e.Medium = medium.String
	e.Type = typ.String
	e.Status = status.String
	e.Platform = platform.String
	e.StartDate = startDate.String
	e.FinishDate = finishDate.String
	e.Poster = poster.String
	e.ExternalID = external.String
	if myRating.Valid {
		v := myRating.Float64
		e.MyRating = &v
	}
	if price.Valid {
		v := price.Float64
		e.Price = &v
	}
	if epsWatched.Valid {
		v := int(epsWatched.Int64)
		e.EpisodesWatched = &v
	}
	if epsTotal.Valid {
		v := int(epsTotal.Int64)
		e.TotalEpisodes = &v
	}
	if genre.Valid && genre.String != "" {
		if err := json.Unmarshal([]byte(genre.String), &e.Genre); err != nil {
			return nil, fmt.Errorf("decode genre: %w", err)
		}
	}
	if language.Valid && language.String != "" {
		if err := json.Unmarshal([]byte(language.String), &e.Language); err != nil {
			return nil, fmt.Errorf("decode language: %w", err)
		}
	}
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// encodeList marshals a string slice to JSON text, or NULL for an empty one.
func encodeList(list []string) (sql.NullString, error) {
	if len(list) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// encodeValue converts a payload value to its column representation:
// slices become JSON text, scalars pass through unchanged.
func encodeValue(v any) (any, error) {
	switch val := v.(type) {
	case []string:
		ns, err := encodeList(val)
		if err != nil {
			return nil, err
		}
		return ns, nil
	case []any:
		strs := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list element %v is not a string", item)
			}
			strs = append(strs, s)
		}
		ns, err := encodeList(strs)
		if err != nil {
			return nil, err
		}
		return ns, nil
	default:
		return v, nil
	}
}

// sortedKeys returns the map keys in deterministic order so generated SQL is
// stable across runs (helps log diffing and tests).
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
