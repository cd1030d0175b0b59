package catalog

import (
	"context"
	"fmt"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

// apply.go adapts the entries table to the batch executor's store contract:
// confirmed actions arrive as sparse payload maps and are turned into typed
// inserts, partial patches, or deletes.

// CreateFromPayload inserts a new entry built from an action payload and
// returns the assigned entry ID.
func (s *Store) CreateFromPayload(ctx context.Context, ws action.Workspace, payload action.Payload) (string, error) {
	e, err := entryFromPayload(ws, payload)
	if err != nil {
		return "", err
	}
	if err := s.Insert(ctx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}

// PatchFromPayload applies an action payload as a partial update to the
// entry with the given ID.
func (s *Store) PatchFromPayload(ctx context.Context, id string, payload action.Payload) error {
	return s.Patch(ctx, id, map[string]any(payload))
}

// DeleteEntry removes the entry with the given ID.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	return s.Delete(ctx, id)
}

// entryFromPayload maps the sparse payload vocabulary onto a typed Entry.
// Unknown keys are ignored; type mismatches on known keys are errors so a
// malformed create fails loudly instead of silently dropping data.
func entryFromPayload(ws action.Workspace, payload action.Payload) (*Entry, error) {
	e := &Entry{Workspace: ws}

	for key, raw := range payload {
		var err error
		switch key {
		case "title":
			e.Title, err = asString(key, raw)
		case "medium":
			e.Medium, err = asString(key, raw)
		case "type":
			e.Type, err = asString(key, raw)
		case "status":
			e.Status, err = asString(key, raw)
		case "platform":
			e.Platform, err = asString(key, raw)
		case "start_date":
			e.StartDate, err = asString(key, raw)
		case "finish_date":
			e.FinishDate, err = asString(key, raw)
		case "poster":
			e.Poster, err = asString(key, raw)
		case "external_id":
			e.ExternalID, err = asString(key, raw)
		case "genre":
			e.Genre, err = asStringList(key, raw)
		case "language":
			e.Language, err = asStringList(key, raw)
		case "my_rating":
			e.MyRating, err = asFloat(key, raw)
		case "price":
			e.Price, err = asFloat(key, raw)
		case "episodes_watched":
			e.EpisodesWatched, err = asInt(key, raw)
		case "total_episodes":
			e.TotalEpisodes, err = asInt(key, raw)
		default:
			// Not part of the column vocabulary; drop it.
		}
		if err != nil {
			return nil, err
		}
	}

	return e, nil
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("catalog: field %q: expected string, got %T", key, v)
	}
	return s, nil
}

func asStringList(key string, v any) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("catalog: field %q: expected string list, got element %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		// Tolerate a bare string where a list is expected.
		return []string{val}, nil
	default:
		return nil, fmt.Errorf("catalog: field %q: expected string list, got %T", key, v)
	}
}

func asFloat(key string, v any) (*float64, error) {
	switch val := v.(type) {
	case float64:
		return &val, nil
	case int:
		f := float64(val)
		return &f, nil
	default:
		return nil, fmt.Errorf("catalog: field %q: expected number, got %T", key, v)
	}
}

func asInt(key string, v any) (*int, error) {
	switch val := v.(type) {
	case float64:
		n := int(val)
		return &n, nil
	case int:
		return &val, nil
	default:
		return nil, fmt.Errorf("catalog: field %q: expected integer, got %T", key, v)
	}
}
