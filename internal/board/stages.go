package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// TaskRef references a task in a reassignment request. Clients send whole
// task objects; only the id is used.
type TaskRef struct {
	ID string `json:"_id"`
}

// StageGroup is the ordered content of one stage column.
type StageGroup struct {
	Stage string
	Items []TaskRef
}

// StageGroups is the desired end state of a board: one group per stage, tasks
// in display order. Group order is the key order of the JSON object.
type StageGroups []StageGroup

// Placement assigns a task to a stage at a position.
type Placement struct {
	TaskID string
	Stage  string
	Order  int
}

// Outcome is the result of applying one Placement. Project is the snapshot
// right after the update and is nil when the task id matched nothing.
type Outcome struct {
	TaskID  string   `json:"taskId"`
	Stage   string   `json:"stage"`
	Order   int      `json:"order"`
	Updated bool     `json:"updated"`
	Project *Project `json:"-"`
}

// Placements flattens the groups into stage order, then list order. Order is
// the 0-based position within the group.
func (g StageGroups) Placements() []Placement {
	var out []Placement
	for _, group := range g {
		for pos, item := range group.Items {
			out = append(out, Placement{TaskID: item.ID, Stage: group.Stage, Order: pos})
		}
	}
	return out
}

// UnmarshalJSON decodes {"<stage>": {"items": [...]}, ...} keeping key order.
// A repeated key keeps its first position and its last value.
func (g *StageGroups) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("stage groups: expected object, got %v", tok)
	}

	var groups StageGroups
	pos := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		stage, ok := tok.(string)
		if !ok {
			return fmt.Errorf("stage groups: expected stage label, got %v", tok)
		}

		var body struct {
			Items []TaskRef `json:"items"`
		}
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("stage %q: %w", stage, err)
		}

		if i, seen := pos[stage]; seen {
			groups[i].Items = body.Items
			continue
		}
		pos[stage] = len(groups)
		groups = append(groups, StageGroup{Stage: stage, Items: body.Items})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*g = groups
	return nil
}

func sortByOrder(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Order < tasks[j].Order
	})
}
