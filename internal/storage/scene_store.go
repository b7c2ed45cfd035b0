package storage

import (
	"context"
	"fmt"

	"github.com/qubit-star/hsb-core/internal/scene"
)

// SaveScene writes a scene definition in one transaction, replacing
// any previous definition under the same name. The position orders
// scenes across restarts.
func (s *Store) SaveScene(ctx context.Context, sc *scene.Scene, position int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save of scene %q: %w", sc.Name, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scenes (name, position) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET position = excluded.position`,
		sc.Name, position,
	); err != nil {
		return fmt.Errorf("saving scene %q: %w", sc.Name, err)
	}

	for _, table := range []string{"scene_actions", "scene_acts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE scene_name = ?", sc.Name); err != nil {
			return fmt.Errorf("clearing %s of scene %q: %w", table, sc.Name, err)
		}
	}

	for i, action := range sc.Actions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scene_actions (scene_name, idx, delay, has_cond, cond_expr, cond_dev_id, cond_status_id, cond_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.Name, i, action.Delay, action.HasCond, action.Condition.Op,
			action.Condition.DevID, action.Condition.StatusID, action.Condition.Value,
		); err != nil {
			return fmt.Errorf("saving step %d of scene %q: %w", i, sc.Name, err)
		}
		for j, act := range action.Acts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO scene_acts (scene_name, action_idx, idx, flag, dev_id, status_id, param1, param2)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				sc.Name, i, j, act.Flag, act.DevID, act.ID, act.Param1, act.Param2,
			); err != nil {
				return fmt.Errorf("saving act %d.%d of scene %q: %w", i, j, sc.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save of scene %q: %w", sc.Name, err)
	}
	return nil
}

// DeleteScene removes a scene; step and act rows cascade.
func (s *Store) DeleteScene(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM scenes WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting scene %q: %w", name, err)
	}
	return nil
}

// LoadScenes reassembles all persisted scenes in position order.
func (s *Store) LoadScenes(ctx context.Context) ([]*scene.Scene, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM scenes ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*scene.Scene)
	var scenes []*scene.Scene
	for rows.Next() {
		sc := &scene.Scene{}
		if err := rows.Scan(&sc.Name); err != nil {
			return nil, fmt.Errorf("scanning scene row: %w", err)
		}
		byName[sc.Name] = sc
		scenes = append(scenes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenes: %w", err)
	}

	if err := s.loadActions(ctx, byName); err != nil {
		return nil, err
	}
	if err := s.loadActs(ctx, byName); err != nil {
		return nil, err
	}
	return scenes, nil
}

func (s *Store) loadActions(ctx context.Context, byName map[string]*scene.Scene) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scene_name, delay, has_cond, cond_expr, cond_dev_id, cond_status_id, cond_value
		FROM scene_actions ORDER BY scene_name, idx`)
	if err != nil {
		return fmt.Errorf("querying scene steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var action scene.Action
		if err := rows.Scan(&name, &action.Delay, &action.HasCond, &action.Condition.Op,
			&action.Condition.DevID, &action.Condition.StatusID, &action.Condition.Value,
		); err != nil {
			return fmt.Errorf("scanning scene step row: %w", err)
		}
		if sc, ok := byName[name]; ok {
			sc.Actions = append(sc.Actions, action)
		}
	}
	return rows.Err()
}

func (s *Store) loadActs(ctx context.Context, byName map[string]*scene.Scene) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scene_name, action_idx, flag, dev_id, status_id, param1, param2
		FROM scene_acts ORDER BY scene_name, action_idx, idx`)
	if err != nil {
		return fmt.Errorf("querying scene acts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var actionIdx int
		var act scene.Act
		if err := rows.Scan(&name, &actionIdx, &act.Flag, &act.DevID, &act.ID,
			&act.Param1, &act.Param2,
		); err != nil {
			return fmt.Errorf("scanning scene act row: %w", err)
		}
		sc, ok := byName[name]
		if !ok || actionIdx < 0 || actionIdx >= len(sc.Actions) {
			continue
		}
		sc.Actions[actionIdx].Acts = append(sc.Actions[actionIdx].Acts, act)
	}
	return rows.Err()
}
