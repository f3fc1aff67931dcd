package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/timmypass17/wordjamboree/internal/models"
)

// EventKind is the kind of a path-level change notification.
type EventKind int

const (
	ValueChanged EventKind = iota + 1
	ChildAdded
	ChildChanged
	ChildRemoved
)

func (k EventKind) String() string {
	switch k {
	case ValueChanged:
		return "value_changed"
	case ChildAdded:
		return "child_added"
	case ChildChanged:
		return "child_changed"
	case ChildRemoved:
		return "child_removed"
	}
	return fmt.Sprintf("event_kind(%d)", int(k))
}

// Document paths, by their JSON field names.
const (
	PathGameID             = "gameID"
	PathCurrentLetters     = "currentLetters"
	PathSecondsPerTurn     = "secondsPerTurn"
	PathRounds             = "rounds"
	PathCountdownStartTime = "countdownStartTime"
	PathPlayersInfo        = "playersInfo"
	PathWordsUsed          = "wordsUsed"
	PathShake              = "shake"
	PathSuccess            = "success"
	PathExplode            = "explode"
	PathDeath              = "death"
	PathCurrentPlayerTurn  = "currentPlayerTurn"
	PathState              = "state"
)

// Changes within one commit are emitted in this order so that consumers see
// turn and status changes after the values they depend on.
var (
	leadingPaths    = []string{PathGameID, PathCurrentLetters, PathSecondsPerTurn, PathRounds, PathCountdownStartTime}
	collectionPaths = []string{PathPlayersInfo, PathWordsUsed, PathShake, PathSuccess, PathExplode, PathDeath}
	trailingPaths   = []string{PathCurrentPlayerTurn, PathState}
)

// Change is one path-level notification. Value is the new JSON value of the
// path (or of the child for child events) and is nil when it was removed.
//
// Scalar paths only produce ValueChanged. A collection path produces one child
// event per added, changed or removed key, followed by a ValueChanged carrying
// the whole collection.
type Change struct {
	Version int64
	Initial bool
	Path    string
	Kind    EventKind
	Key     string
	Value   json.RawMessage
}

// Scope returns c as a subscription to path with the given kinds sees it.
// A path of the form "collection/key" addresses a single child: its child
// events arrive as ValueChanged on that path, with a nil Value on removal.
func (c Change) Scope(path string, kinds []EventKind) (Change, bool) {
	if parent, key, ok := strings.Cut(path, "/"); ok {
		if c.Path != parent || c.Key != key || c.Kind == ValueChanged {
			return Change{}, false
		}
		c = Change{Version: c.Version, Initial: c.Initial, Path: path, Kind: ValueChanged, Value: c.Value}
	} else if path != "" && path != c.Path {
		return Change{}, false
	}
	if len(kinds) == 0 {
		return c, true
	}
	for _, k := range kinds {
		if k == c.Kind {
			return c, true
		}
	}
	return Change{}, false
}

// Matches reports whether the change passes a subscription filter.
func (c Change) Matches(path string, kinds []EventKind) bool {
	_, ok := c.Scope(path, kinds)
	return ok
}

// ChildPath addresses one child of a collection path, e.g. ChildPath(PathShake, uid).
func ChildPath(collection, key string) string {
	return collection + "/" + key
}

// Diff derives the notifications that turn prev into next. Either side may be nil.
func Diff(prev, next *models.GameDocument) ([]Change, error) {
	a, err := fields(prev)
	if err != nil {
		return nil, err
	}
	b, err := fields(next)
	if err != nil {
		return nil, err
	}

	var changes []Change
	for _, p := range leadingPaths {
		changes = appendValueChange(changes, p, a[p], b[p])
	}
	for _, p := range collectionPaths {
		ca, err := children(a[p])
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", p, err)
		}
		cb, err := children(b[p])
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", p, err)
		}
		n := len(changes)
		changes = appendChildChanges(changes, p, ca, cb)
		if len(changes) > n {
			changes = append(changes, Change{Path: p, Kind: ValueChanged, Value: b[p]})
		}
	}
	for _, p := range trailingPaths {
		changes = appendValueChange(changes, p, a[p], b[p])
	}
	return changes, nil
}

func appendValueChange(changes []Change, path string, old, cur json.RawMessage) []Change {
	if bytes.Equal(old, cur) {
		return changes
	}
	return append(changes, Change{Path: path, Kind: ValueChanged, Value: cur})
}

func appendChildChanges(changes []Change, path string, old, cur map[string]json.RawMessage) []Change {
	keys := make([]string, 0, len(old)+len(cur))
	for k := range old {
		keys = append(keys, k)
	}
	for k := range cur {
		if _, ok := old[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		o, hadOld := old[k]
		c, hasCur := cur[k]
		switch {
		case !hadOld:
			changes = append(changes, Change{Path: path, Kind: ChildAdded, Key: k, Value: c})
		case !hasCur:
			changes = append(changes, Change{Path: path, Kind: ChildRemoved, Key: k})
		case !bytes.Equal(o, c):
			changes = append(changes, Change{Path: path, Kind: ChildChanged, Key: k, Value: c})
		}
	}
	return changes
}

func fields(doc *models.GameDocument) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	if doc == nil {
		return out, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("split document: %w", err)
	}
	return out, nil
}

func children(raw json.RawMessage) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
