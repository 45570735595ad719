package service

import (
	"strings"

	"macrostudio/models"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// holdThreshold is the duration (ms) above which a single click or key record
// is read as "press and hold".
const holdThreshold = 10

// defaultDelay is used for DELAY records with no usable duration.
const defaultDelay = 100

var newID = uuid.NewString

// NormalizeJSON parses data and normalizes it. Anything that isn't a JSON
// array produces an empty list.
func NormalizeJSON(data []byte) []models.Action {
	if !gjson.ValidBytes(data) {
		return []models.Action{}
	}
	return Normalize(gjson.ParseBytes(data))
}

// Normalize turns a list of loosely shaped action records into canonical
// actions, in order. Every emitted action gets a fresh id; hold shorthand is
// expanded into explicit down/delay/up steps.
func Normalize(list gjson.Result) []models.Action {
	out := []models.Action{}
	if !list.IsArray() {
		return out
	}
	list.ForEach(func(_, item gjson.Result) bool {
		out = append(out, normalizeRecord(item)...)
		return true
	})
	return out
}

func normalizeRecord(item gjson.Result) []models.Action {
	kind := parseKind(kindOf(item).String())
	state := parseState(item.Get("actionState").String())
	duration := intField(item.Get("duration"))

	base := models.Action{
		Type:         kind,
		Button:       parseButton(item.Get("button").String()),
		X:            intField(item.Get("x")),
		Y:            intField(item.Get("y")),
		Absolute:     item.Get("absolute").Bool(),
		Key:          item.Get("key").String(),
		ScrollAmount: intField(item.Get("scrollAmount")),
	}

	switch {
	case state == models.StateDown || state == models.StateUp:
		out := []models.Action{withState(base, state)}
		// A down record that still carries a duration gets its wait, but the
		// matching up is left to the caller.
		if state == models.StateDown && duration > 0 {
			out = append(out, delayAction(duration))
		}
		return out

	case (kind == models.KindClick || kind == models.KindKey) && duration > holdThreshold:
		return []models.Action{
			withState(base, models.StateDown),
			delayAction(duration),
			withState(base, models.StateUp),
		}
	}

	a := withState(base, models.StateClick)
	if kind == models.KindDelay {
		if duration <= 0 {
			duration = defaultDelay
		}
		a.Duration = duration
	}
	return []models.Action{a}
}

// kindOf reads "type", falling back to the "kind" alias.
func kindOf(item gjson.Result) gjson.Result {
	if r := item.Get("type"); r.Exists() {
		return r
	}
	return item.Get("kind")
}

func withState(base models.Action, state models.ActionState) models.Action {
	base.ID = newID()
	base.ActionState = state
	base.Duration = 0
	return base
}

func delayAction(duration int) models.Action {
	return models.FromStep(newID(), models.DelayStep{Duration: duration})
}

// DecodeAction reads one stored action without expanding it. The id and all
// numeric values are kept; kind, state and button are folded into their closed
// sets the same way Normalize reads them, so hand-edited documents play back.
// Used for imports, persisted documents and single-action edits.
func DecodeAction(item gjson.Result) models.Action {
	return models.Action{
		ID:           item.Get("id").String(),
		Type:         parseKind(kindOf(item).String()),
		ActionState:  parseState(item.Get("actionState").String()),
		Button:       parseButton(item.Get("button").String()),
		Duration:     intField(item.Get("duration")),
		X:            intField(item.Get("x")),
		Y:            intField(item.Get("y")),
		Absolute:     item.Get("absolute").Bool(),
		Key:          item.Get("key").String(),
		ScrollAmount: intField(item.Get("scrollAmount")),
	}
}

// DecodeActions is DecodeAction over an array; non-arrays decode to an empty list.
func DecodeActions(list gjson.Result) []models.Action {
	out := []models.Action{}
	if !list.IsArray() {
		return out
	}
	list.ForEach(func(_, item gjson.Result) bool {
		out = append(out, DecodeAction(item))
		return true
	})
	return out
}

func intField(r gjson.Result) int {
	switch r.Type {
	case gjson.Number, gjson.String:
		return int(r.Int())
	}
	return 0
}

func parseKind(s string) models.ActionKind {
	switch k := models.ActionKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case models.KindClick, models.KindDelay, models.KindMove, models.KindKey, models.KindScroll:
		return k
	}
	return models.KindDelay
}

func parseState(s string) models.ActionState {
	switch st := models.ActionState(strings.ToLower(strings.TrimSpace(s))); st {
	case models.StateClick, models.StateDown, models.StateUp:
		return st
	}
	return ""
}

func parseButton(s string) models.MouseButton {
	switch b := models.MouseButton(strings.ToLower(strings.TrimSpace(s))); b {
	case models.ButtonLeft, models.ButtonRight, models.ButtonMiddle:
		return b
	}
	return models.ButtonLeft
}
