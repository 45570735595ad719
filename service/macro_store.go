package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"macrostudio/models"
	"macrostudio/storage"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoActiveMacro = errors.New("no active macro selected")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidImport = errors.New("invalid import")
	ErrPersist       = errors.New("failed to persist macros")
)

// DocumentKey is the key the macro collection is persisted under.
const DocumentKey = "macro_config"

const (
	defaultMacroName  = "New Macro"
	defaultTriggerKey = "F1"
)

const importSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "triggerKey", "actions"],
    "properties": {
      "id":         {"type": "string", "minLength": 1},
      "name":       {"type": "string", "minLength": 1},
      "triggerKey": {"type": "string", "minLength": 1},
      "actions":    {"type": "array"}
    }
  }
}`

var importSchema = jsonschema.MustCompileString("macro_import.json", importSchemaJSON)

// patchableFields are the action fields UpdateAction may overwrite.
var patchableFields = map[string]bool{
	"type": true, "actionState": true, "button": true, "duration": true,
	"x": true, "y": true, "absolute": true, "key": true, "scrollAmount": true,
}

// MacroStore owns the macro collection. Every mutation writes the whole
// collection back to the key-value store before returning.
type MacroStore struct {
	mu       sync.Mutex
	kv       storage.KVStore
	macros   []*models.Macro
	activeID string
	target   models.EditTarget
}

func NewMacroStore(kv storage.KVStore) *MacroStore {
	return &MacroStore{
		kv:     kv,
		target: models.TargetMain,
	}
}

// Load replaces the in-memory collection with the persisted one. A missing or
// unreadable document yields a single empty macro.
func (s *MacroStore) Load(ctx context.Context) error {
	data, err := s.kv.Load(ctx, DocumentKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load macros: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := gjson.ParseBytes(data)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Printf("No saved macros, starting with a default macro")
		s.macros = []*models.Macro{newMacro(defaultMacroName)}
	case !gjson.ValidBytes(data) || !doc.IsArray():
		log.Printf("⚠️ Saved macro document is unreadable, starting with a default macro")
		s.macros = []*models.Macro{newMacro(defaultMacroName)}
	default:
		s.macros = decodeMacros(doc)
	}

	s.activeID = ""
	if len(s.macros) > 0 {
		s.activeID = s.macros[0].ID
	}
	log.Printf("Loaded %d macros", len(s.macros))
	return nil
}

// List returns copies of all macros in display order.
func (s *MacroStore) List() []*models.Macro {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Macro, 0, len(s.macros))
	for _, m := range s.macros {
		out = append(out, m.Clone())
	}
	return out
}

func (s *MacroStore) Get(id string) (*models.Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findLocked(id)
	if m == nil {
		return nil, fmt.Errorf("macro %s: %w", id, ErrNotFound)
	}
	return m.Clone(), nil
}

// Active returns a copy of the selected macro.
func (s *MacroStore) Active() (*models.Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findLocked(s.activeID)
	if m == nil {
		return nil, ErrNoActiveMacro
	}
	return m.Clone(), nil
}

func (s *MacroStore) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *MacroStore) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(id) == nil {
		return fmt.Errorf("macro %s: %w", id, ErrNotFound)
	}
	s.activeID = id
	return nil
}

// SetEditTarget chooses which sequence of the active macro the action
// mutations apply to.
func (s *MacroStore) SetEditTarget(target models.EditTarget) error {
	if target != models.TargetMain && target != models.TargetRelease {
		return fmt.Errorf("edit target %q: %w", target, ErrInvalidInput)
	}
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
	return nil
}

func (s *MacroStore) EditTarget() models.EditTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Create appends a new empty macro and selects it.
func (s *MacroStore) Create(ctx context.Context, name string) (*models.Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		name = defaultMacroName
	}
	m := newMacro(name)
	s.macros = append(s.macros, m)
	s.activeID = m.ID
	return m.Clone(), s.persistLocked(ctx)
}

// MacroPatch names the macro fields an update replaces; nil fields are kept.
type MacroPatch struct {
	Name       *string
	TriggerKey *string
	LoopMode   *models.LoopMode
}

// UpdateMacro applies every field of p at once and persists a single time.
// An invalid loop mode rejects the whole patch.
func (s *MacroStore) UpdateMacro(ctx context.Context, id string, p MacroPatch) (*models.Macro, error) {
	if p.LoopMode != nil && !models.ValidLoopMode(*p.LoopMode) {
		return nil, fmt.Errorf("loop mode %q: %w", *p.LoopMode, ErrInvalidInput)
	}
	var updated *models.Macro
	err := s.mutateMacro(ctx, id, func(m *models.Macro) error {
		if p.Name != nil {
			m.Name = *p.Name
		}
		if p.TriggerKey != nil {
			m.TriggerKey = *p.TriggerKey
		}
		if p.LoopMode != nil {
			m.LoopMode = *p.LoopMode
		}
		updated = m.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a macro. If it was selected, the first remaining macro (or
// none) becomes selected.
func (s *MacroStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("macro %s: %w", id, ErrNotFound)
	}
	s.macros = append(s.macros[:idx], s.macros[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
		if len(s.macros) > 0 {
			s.activeID = s.macros[0].ID
		}
	}
	return s.persistLocked(ctx)
}

// InsertAction inserts a into the edited sequence of the active macro. The
// index is clamped to the list bounds; a missing id is generated.
func (s *MacroStore) InsertAction(ctx context.Context, index int, a models.Action) (models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(s.activeID)
	if m == nil {
		return models.Action{}, ErrNoActiveMacro
	}
	if a.ID == "" {
		a.ID = newID()
	}
	list := m.Sequence(s.target)
	index = min(max(index, 0), len(list))
	list = append(list[:index], append([]models.Action{a}, list[index:]...)...)
	m.SetSequence(s.target, list)
	return a, s.persistLocked(ctx)
}

// UpdateAction merges the top-level fields of patch (a JSON object, wire field
// names) into the action. The id cannot be changed.
func (s *MacroStore) UpdateAction(ctx context.Context, actionID string, patch []byte) (models.Action, error) {
	p := gjson.ParseBytes(patch)
	if !gjson.ValidBytes(patch) || !p.IsObject() {
		return models.Action{}, fmt.Errorf("action patch must be a JSON object: %w", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(s.activeID)
	if m == nil {
		return models.Action{}, ErrNoActiveMacro
	}
	list := m.Sequence(s.target)
	idx := actionIndex(list, actionID)
	if idx < 0 {
		return models.Action{}, fmt.Errorf("action %s: %w", actionID, ErrNotFound)
	}

	doc, err := json.Marshal(list[idx])
	if err != nil {
		return models.Action{}, err
	}
	p.ForEach(func(key, value gjson.Result) bool {
		if !patchableFields[key.String()] {
			return true
		}
		doc, err = sjson.SetRawBytes(doc, key.String(), []byte(value.Raw))
		return err == nil
	})
	if err != nil {
		return models.Action{}, fmt.Errorf("apply patch: %w", err)
	}

	updated := DecodeAction(gjson.ParseBytes(doc))
	updated.ID = list[idx].ID
	list[idx] = updated
	return updated, s.persistLocked(ctx)
}

func (s *MacroStore) RemoveAction(ctx context.Context, actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(s.activeID)
	if m == nil {
		return ErrNoActiveMacro
	}
	list := m.Sequence(s.target)
	idx := actionIndex(list, actionID)
	if idx < 0 {
		return fmt.Errorf("action %s: %w", actionID, ErrNotFound)
	}
	m.SetSequence(s.target, append(list[:idx], list[idx+1:]...))
	return s.persistLocked(ctx)
}

// AppendActions adds main and release actions to the end of the active
// macro's two sequences.
func (s *MacroStore) AppendActions(ctx context.Context, main, release []models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(s.activeID)
	if m == nil {
		return ErrNoActiveMacro
	}
	m.Actions = append(m.Actions, main...)
	m.ReleaseActions = append(m.ReleaseActions, release...)
	return s.persistLocked(ctx)
}

// Import replaces the whole collection with the document in data. Nothing
// changes unless every macro in the document is valid.
func (s *MacroStore) Import(ctx context.Context, data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := importSchema.Validate(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	macros := decodeMacros(gjson.ParseBytes(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.macros = macros
	s.activeID = ""
	if len(macros) > 0 {
		s.activeID = macros[0].ID
	}
	log.Printf("📥 Imported %d macros", len(macros))
	return s.persistLocked(ctx)
}

// Export renders the collection as an indented JSON array.
func (s *MacroStore) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.documentLocked(), "", "  ")
}

func (s *MacroStore) mutateMacro(ctx context.Context, id string, fn func(*models.Macro) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(id)
	if m == nil {
		return fmt.Errorf("macro %s: %w", id, ErrNotFound)
	}
	if err := fn(m); err != nil {
		return err
	}
	return s.persistLocked(ctx)
}

func (s *MacroStore) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.documentLocked())
	if err != nil {
		return err
	}
	if err := s.kv.Save(ctx, DocumentKey, data); err != nil {
		log.Printf("❌ Failed to persist macros: %v", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (s *MacroStore) documentLocked() []*models.Macro {
	if s.macros == nil {
		return []*models.Macro{}
	}
	return s.macros
}

func (s *MacroStore) findLocked(id string) *models.Macro {
	if i := s.indexLocked(id); i >= 0 {
		return s.macros[i]
	}
	return nil
}

func (s *MacroStore) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, m := range s.macros {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func actionIndex(list []models.Action, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func newMacro(name string) *models.Macro {
	return &models.Macro{
		ID:             newID(),
		Name:           name,
		TriggerKey:     defaultTriggerKey,
		LoopMode:       models.LoopOnce,
		Actions:        []models.Action{},
		ReleaseActions: []models.Action{},
	}
}

// decodeMacros reads an array of macro objects. A releaseActions field that is
// missing or not an array becomes empty; an unknown loop mode becomes ONCE.
func decodeMacros(doc gjson.Result) []*models.Macro {
	macros := []*models.Macro{}
	doc.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		mode := models.LoopMode(item.Get("loopMode").String())
		if !models.ValidLoopMode(mode) {
			mode = models.LoopOnce
		}
		id := item.Get("id").String()
		if id == "" {
			id = newID()
		}
		macros = append(macros, &models.Macro{
			ID:             id,
			Name:           item.Get("name").String(),
			TriggerKey:     item.Get("triggerKey").String(),
			LoopMode:       mode,
			Actions:        withIDs(DecodeActions(item.Get("actions"))),
			ReleaseActions: withIDs(DecodeActions(item.Get("releaseActions"))),
		})
		return true
	})
	return macros
}

// withIDs gives anonymous actions an id so they can be edited and removed.
func withIDs(actions []models.Action) []models.Action {
	for i := range actions {
		if actions[i].ID == "" {
			actions[i].ID = newID()
		}
	}
	return actions
}
