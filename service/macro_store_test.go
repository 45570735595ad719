package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"macrostudio/models"
	"macrostudio/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct {
	storage.KVStore
	saveErr error
}

func (f *failingKV) Save(ctx context.Context, key string, value []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.KVStore.Save(ctx, key, value)
}

func newLoadedStore(t *testing.T) (*MacroStore, *storage.MemoryStore) {
	t.Helper()
	kv := storage.NewMemoryStore()
	s := NewMacroStore(kv)
	require.NoError(t, s.Load(context.Background()))
	return s, kv
}

func persisted(t *testing.T, kv storage.KVStore) []*models.Macro {
	t.Helper()
	data, err := kv.Load(context.Background(), DocumentKey)
	require.NoError(t, err)
	var out []*models.Macro
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestMacroStoreLoadDefaults(t *testing.T) {
	s, _ := newLoadedStore(t)

	macros := s.List()
	require.Len(t, macros, 1)
	assert.Equal(t, "F1", macros[0].TriggerKey)
	assert.Equal(t, models.LoopOnce, macros[0].LoopMode)
	assert.Empty(t, macros[0].Actions)
	assert.NotNil(t, macros[0].ReleaseActions)
	assert.Equal(t, macros[0].ID, s.ActiveID())
	assert.Equal(t, models.TargetMain, s.EditTarget())
}

func TestMacroStoreLoadUnreadableDocument(t *testing.T) {
	ctx := context.Background()
	for _, doc := range []string{`{"not":"a list"}`, `garbage`, `"x"`} {
		kv := storage.NewMemoryStore()
		require.NoError(t, kv.Save(ctx, DocumentKey, []byte(doc)))

		s := NewMacroStore(kv)
		require.NoError(t, s.Load(ctx), doc)
		assert.Len(t, s.List(), 1, doc)
	}
}

func TestMacroStoreLoadPersistedDocument(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	doc := `[
		{"id":"m1","name":"One","triggerKey":"F2","loopMode":"REPEAT","actions":[{"id":"a","type":"KEY","key":"x"}]},
		{"id":"m2","name":"Two","triggerKey":"F3","loopMode":"SOMETIMES","actions":[],"releaseActions":"nope"}
	]`
	require.NoError(t, kv.Save(ctx, DocumentKey, []byte(doc)))

	s := NewMacroStore(kv)
	require.NoError(t, s.Load(ctx))

	macros := s.List()
	require.Len(t, macros, 2)
	assert.Equal(t, "m1", s.ActiveID())
	assert.Equal(t, models.LoopRepeat, macros[0].LoopMode)
	require.Len(t, macros[0].Actions, 1)
	assert.Equal(t, "x", macros[0].Actions[0].Key)
	assert.Equal(t, models.LoopOnce, macros[1].LoopMode)
	assert.NotNil(t, macros[1].ReleaseActions)
	assert.Empty(t, macros[1].ReleaseActions)
}

func TestMacroStoreCreateSelectsAndPersists(t *testing.T) {
	ctx := context.Background()
	s, kv := newLoadedStore(t)

	m, err := s.Create(ctx, "Combo")
	require.NoError(t, err)
	assert.Equal(t, "Combo", m.Name)
	assert.Equal(t, m.ID, s.ActiveID())

	blank, err := s.Create(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, defaultMacroName, blank.Name)

	assert.Len(t, persisted(t, kv), 3)
}

type countingKV struct {
	storage.KVStore
	saves int
}

func (c *countingKV) Save(ctx context.Context, key string, value []byte) error {
	c.saves++
	return c.KVStore.Save(ctx, key, value)
}

func ptr[T any](v T) *T { return &v }

func TestMacroStoreMacroEdits(t *testing.T) {
	ctx := context.Background()
	kv := &countingKV{KVStore: storage.NewMemoryStore()}
	s := NewMacroStore(kv)
	require.NoError(t, s.Load(ctx))
	id := s.ActiveID()
	before := kv.saves

	m, err := s.UpdateMacro(ctx, id, MacroPatch{
		Name:       ptr("Renamed"),
		TriggerKey: ptr("F9"),
		LoopMode:   ptr(models.LoopToggle),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", m.Name)
	assert.Equal(t, 1, kv.saves-before, "one patch, one write")

	got := persisted(t, kv)[0]
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "F9", got.TriggerKey)
	assert.Equal(t, models.LoopToggle, got.LoopMode)

	m, err = s.UpdateMacro(ctx, id, MacroPatch{TriggerKey: ptr("F2")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", m.Name)
	assert.Equal(t, "F2", m.TriggerKey)

	_, err = s.UpdateMacro(ctx, "missing", MacroPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMacroStoreUpdateRejectsWholePatch(t *testing.T) {
	ctx := context.Background()
	kv := &countingKV{KVStore: storage.NewMemoryStore()}
	s := NewMacroStore(kv)
	require.NoError(t, s.Load(ctx))
	id := s.ActiveID()
	before := kv.saves

	_, err := s.UpdateMacro(ctx, id, MacroPatch{
		Name:     ptr("Half applied"),
		LoopMode: ptr(models.LoopMode("FOREVER")),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, before, kv.saves)

	m, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, defaultMacroName, m.Name)
	assert.Equal(t, models.LoopOnce, m.LoopMode)
}

func TestMacroStoreLoadAssignsMissingIDs(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	doc := `[
		{"name":"Anonymous","triggerKey":"F4","actions":[{"type":"KEY","key":"q"}]},
		{"id":"","name":"Blank"}
	]`
	require.NoError(t, kv.Save(ctx, DocumentKey, []byte(doc)))

	s := NewMacroStore(kv)
	require.NoError(t, s.Load(ctx))

	macros := s.List()
	require.Len(t, macros, 2)
	first, second := macros[0], macros[1]
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ID, s.ActiveID())
	require.Len(t, first.Actions, 1)
	assert.NotEmpty(t, first.Actions[0].ID)

	require.NoError(t, s.RemoveAction(ctx, first.Actions[0].ID))
	require.NoError(t, s.Select(second.ID))
	_, err := s.UpdateMacro(ctx, second.ID, MacroPatch{Name: ptr("Named")})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, second.ID))

	left := persisted(t, kv)
	require.Len(t, left, 1)
	assert.Equal(t, first.ID, left[0].ID)
}

func TestMacroStoreImportFoldsActionCase(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	doc := `[{"id":"m","name":"n","triggerKey":"F1","actions":[{"id":"a","type":"key","key":"a","actionState":"DOWN"}]}]`
	require.NoError(t, s.Import(ctx, []byte(doc)))

	m, err := s.Active()
	require.NoError(t, err)
	require.Len(t, m.Actions, 1)
	a := m.Actions[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, models.KindKey, a.Type)
	assert.Equal(t, models.StateDown, a.ActionState)

	p, _, _ := newTestPlayer()
	require.True(t, p.Start(m.Actions))
	assertKeys(t, p, "A")
}

func TestMacroStoreDeleteFallsBackToFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	first := s.ActiveID()

	second, err := s.Create(ctx, "Second")
	require.NoError(t, err)
	third, err := s.Create(ctx, "Third")
	require.NoError(t, err)

	// Deleting an unselected macro keeps the selection.
	require.NoError(t, s.Delete(ctx, second.ID))
	assert.Equal(t, third.ID, s.ActiveID())

	require.NoError(t, s.Delete(ctx, third.ID))
	assert.Equal(t, first, s.ActiveID())

	require.NoError(t, s.Delete(ctx, first))
	assert.Empty(t, s.ActiveID())
	_, err = s.Active()
	assert.ErrorIs(t, err, ErrNoActiveMacro)

	assert.ErrorIs(t, s.Delete(ctx, first), ErrNotFound)
}

func TestMacroStoreSelect(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	first := s.ActiveID()
	_, err := s.Create(ctx, "Other")
	require.NoError(t, err)

	require.NoError(t, s.Select(first))
	assert.Equal(t, first, s.ActiveID())
	assert.ErrorIs(t, s.Select("nope"), ErrNotFound)
	assert.Equal(t, first, s.ActiveID())
}

func TestMacroStoreInsertActionClampsIndex(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)

	a, err := s.InsertAction(ctx, 5, models.Action{Type: models.KindKey, Key: "b"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	_, err = s.InsertAction(ctx, -3, models.Action{ID: "first", Type: models.KindKey, Key: "a"})
	require.NoError(t, err)
	_, err = s.InsertAction(ctx, 1, models.Action{ID: "mid", Type: models.KindDelay, Duration: 20})
	require.NoError(t, err)

	m, err := s.Active()
	require.NoError(t, err)
	require.Len(t, m.Actions, 3)
	assert.Equal(t, "first", m.Actions[0].ID)
	assert.Equal(t, "mid", m.Actions[1].ID)
	assert.Equal(t, a.ID, m.Actions[2].ID)
}

func TestMacroStoreEditTargetRoutesMutations(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)

	require.NoError(t, s.SetEditTarget(models.TargetRelease))
	_, err := s.InsertAction(ctx, 0, models.Action{ID: "r1", Type: models.KindKey, Key: "a", ActionState: models.StateUp})
	require.NoError(t, err)

	m, _ := s.Active()
	assert.Empty(t, m.Actions)
	require.Len(t, m.ReleaseActions, 1)

	assert.ErrorIs(t, s.SetEditTarget("sideways"), ErrInvalidInput)
	assert.Equal(t, models.TargetRelease, s.EditTarget())

	require.NoError(t, s.RemoveAction(ctx, "r1"))
	m, _ = s.Active()
	assert.Empty(t, m.ReleaseActions)
}

func TestMacroStoreUpdateActionMergesFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	_, err := s.InsertAction(ctx, 0, models.Action{
		ID: "k", Type: models.KindKey, Key: "a", ActionState: models.StateDown, Button: models.ButtonLeft,
	})
	require.NoError(t, err)

	updated, err := s.UpdateAction(ctx, "k", []byte(`{"key":"b","duration":"250","id":"hijack","unknown":1}`))
	require.NoError(t, err)
	assert.Equal(t, "k", updated.ID)
	assert.Equal(t, "b", updated.Key)
	assert.Equal(t, 250, updated.Duration)
	assert.Equal(t, models.StateDown, updated.ActionState)
	assert.Equal(t, models.KindKey, updated.Type)

	m, _ := s.Active()
	assert.Equal(t, updated, m.Actions[0])

	_, err = s.UpdateAction(ctx, "k", []byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.UpdateAction(ctx, "ghost", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMacroStoreActionEditsNeedActiveMacro(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	require.NoError(t, s.Delete(ctx, s.ActiveID()))

	_, err := s.InsertAction(ctx, 0, models.Action{Type: models.KindDelay})
	assert.ErrorIs(t, err, ErrNoActiveMacro)
	_, err = s.UpdateAction(ctx, "x", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNoActiveMacro)
	assert.ErrorIs(t, s.RemoveAction(ctx, "x"), ErrNoActiveMacro)
	assert.ErrorIs(t, s.AppendActions(ctx, nil, nil), ErrNoActiveMacro)
}

func TestMacroStoreImportRejectsInvalidDocuments(t *testing.T) {
	ctx := context.Background()
	s, kv := newLoadedStore(t)
	before := s.List()
	beforeDoc, _ := kv.Load(ctx, DocumentKey)

	docs := map[string]string{
		"not json":           `{{{`,
		"object root":        `{"id":"m","name":"n","triggerKey":"F1","actions":[]}`,
		"missing triggerKey": `[{"id":"m","name":"n","actions":[]}]`,
		"missing actions":    `[{"id":"m","name":"n","triggerKey":"F1"}]`,
		"empty name":         `[{"id":"m","name":"","triggerKey":"F1","actions":[]}]`,
		"actions not list":   `[{"id":"m","name":"n","triggerKey":"F1","actions":{}}]`,
		"one bad of two":     `[{"id":"a","name":"n","triggerKey":"F1","actions":[]},{"id":"b"}]`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			err := s.Import(ctx, []byte(doc))
			assert.ErrorIs(t, err, ErrInvalidImport)
		})
	}

	assert.Equal(t, before, s.List())
	afterDoc, _ := kv.Load(ctx, DocumentKey)
	assert.Equal(t, beforeDoc, afterDoc)
}

func TestMacroStoreExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	_, err := s.InsertAction(ctx, 0, models.Action{ID: "a1", Type: models.KindClick, ActionState: models.StateClick, Button: models.ButtonMiddle})
	require.NoError(t, err)
	require.NoError(t, s.AppendActions(ctx,
		[]models.Action{{ID: "a2", Type: models.KindScroll, ActionState: models.StateClick, Button: models.ButtonLeft, ScrollAmount: -2}},
		[]models.Action{{ID: "r1", Type: models.KindKey, ActionState: models.StateUp, Button: models.ButtonLeft, Key: "Shift"}},
	))
	_, err = s.Create(ctx, "Second")
	require.NoError(t, err)

	exported, err := s.Export()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(exported), "[\n  {"), "export should be two-space indented")

	other, _ := newLoadedStore(t)
	require.NoError(t, other.Import(ctx, exported))
	assert.Equal(t, s.List(), other.List())
	assert.Equal(t, s.List()[0].ID, other.ActiveID())
}

func TestMacroStoreImportDefaultsReleaseActions(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)

	err := s.Import(ctx, []byte(`[{"id":"m","name":"Legacy","triggerKey":"F4","actions":[{"type":"DELAY","duration":40}]}]`))
	require.NoError(t, err)

	m, err := s.Active()
	require.NoError(t, err)
	assert.Equal(t, "m", m.ID)
	assert.NotNil(t, m.ReleaseActions)
	assert.Empty(t, m.ReleaseActions)
	assert.Equal(t, models.LoopOnce, m.LoopMode)
	require.Len(t, m.Actions, 1)
	assert.Equal(t, 40, m.Actions[0].Duration)

	require.NoError(t, s.Import(ctx, []byte(`[]`)))
	assert.Empty(t, s.List())
	assert.Empty(t, s.ActiveID())
}

func TestMacroStorePersistFailure(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{KVStore: storage.NewMemoryStore()}
	s := NewMacroStore(kv)
	require.NoError(t, s.Load(ctx))

	kv.saveErr = errors.New("disk full")
	_, err := s.Create(ctx, "Doomed")
	assert.ErrorIs(t, err, ErrPersist)
	// The edit stays in memory.
	assert.Len(t, s.List(), 2)
}

func TestMacroStoreCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	_, err := s.InsertAction(ctx, 0, models.Action{ID: "a", Type: models.KindKey, Key: "a"})
	require.NoError(t, err)

	m, _ := s.Active()
	m.Name = "changed"
	m.Actions[0].Key = "z"

	again, _ := s.Active()
	assert.NotEqual(t, "changed", again.Name)
	assert.Equal(t, "a", again.Actions[0].Key)
}
