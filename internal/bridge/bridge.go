// Package bridge implements the reactive editor bridge (C9): projects
// session state into per-editor view state, drives autoscroll, and
// forwards editor document changes back into the session as edits.
package bridge

import (
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/editmap"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/session"
)

// Range is a half-open [Start, End) character span.
type Range struct {
	Start int
	End   int
}

func (r Range) empty() bool { return r.Start >= r.End }

// ViewState is the decoration payload pushed to one editor (section 4.9):
// three disjoint ranges delimiting the text already spoken, the chunk
// currently speaking, and the text not yet spoken.
type ViewState struct {
	PlayingBefore Range
	PlayingNow    Range
	PlayingAfter  Range
}

// Empty reports whether this ViewState carries no decorations (used to
// clear a previously active editor).
func (v ViewState) Empty() bool {
	return v.PlayingBefore.empty() && v.PlayingNow.empty() && v.PlayingAfter.empty()
}

// Editor is the minimal surface the bridge needs from an editor host
// (section 6's "editor bridge", restricted to what C9 actually drives).
type Editor interface {
	// ID distinguishes editors for the "active editor changed" transition.
	ID() string
	// SetViewState pushes updated decorations.
	SetViewState(ViewState)
	// ScrollIntoView centers the given range in the editor's viewport.
	ScrollIntoView(r Range, center bool)
}

// TransactionKind classifies an editor document-change notification, used
// to decide whether it should disable autoscroll (section 4.9: "any
// transaction that is not purely a selection or input event").
type TransactionKind int

const (
	// TransactionInput is a normal typed-text or IME input event.
	TransactionInput TransactionKind = iota
	// TransactionSelection is a pure cursor/selection move.
	TransactionSelection
	// TransactionUserScroll or any other user-initiated viewport change.
	TransactionUserScroll
)

// DocChange is one contiguous edit reported by an editor.
type DocChange struct {
	Position int
	Removed  string
	Inserted string
}

// Bridge is the C9 reactive projector for one active session.
type Bridge struct {
	sess *session.Session

	activeEditor Editor
	autoscroll   bool

	unsub func()
}

// New constructs a Bridge wired to sess, with no active editor yet.
func New(sess *session.Session) *Bridge {
	b := &Bridge{
		sess:       sess,
		autoscroll: true,
	}
	b.unsub = sess.PositionSignal().Subscribe(func(int) { b.refresh() })
	return b
}

// SetActiveEditor switches which editor receives decorations. The
// previously active editor (if any) is sent an empty ViewState to clear its
// decorations, matching section 4.9's "active editor changed" transition.
func (b *Bridge) SetActiveEditor(e Editor) {
	prev := b.activeEditor
	b.activeEditor = e
	if prev != nil && (e == nil || prev.ID() != e.ID()) {
		prev.SetViewState(ViewState{})
	}
	b.autoscroll = true
	b.refresh()
}

// refresh recomputes and pushes the current ViewState to the active editor.
func (b *Bridge) refresh() {
	if b.activeEditor == nil {
		return
	}
	vs, focus, ok := b.computeViewState()
	b.activeEditor.SetViewState(vs)
	if ok && b.autoscroll {
		b.activeEditor.ScrollIntoView(focus, true)
	}
}

// computeViewState derives the three decoration ranges from the session's
// chunk list and current position (section 4.9).
func (b *Bridge) computeViewState() (vs ViewState, focus Range, ok bool) {
	chunks := b.sess.Chunks()
	if len(chunks) == 0 {
		return ViewState{}, Range{}, false
	}
	docStart := chunks[0].Start
	docEnd := chunks[len(chunks)-1].End

	cur, has := b.sess.CurrentChunk()
	if !has {
		return ViewState{}, Range{}, false
	}

	vs = ViewState{
		PlayingBefore: Range{Start: docStart, End: cur.Start},
		PlayingNow:    Range{Start: cur.Start, End: cur.End},
		PlayingAfter:  Range{Start: cur.End, End: docEnd},
	}
	return vs, vs.PlayingNow, true
}

// OnUserTransaction disables autoscroll when the editor reports a
// transaction that is not purely a selection or input event (section 4.9).
// Callers re-enable autoscroll implicitly by switching the active editor,
// or may call EnableAutoscroll directly.
func (b *Bridge) OnUserTransaction(kind TransactionKind) {
	if kind == TransactionUserScroll {
		b.autoscroll = false
	}
}

// EnableAutoscroll re-enables autoscroll after a user-initiated disable.
func (b *Bridge) EnableAutoscroll() {
	b.autoscroll = true
}

// ForwardChanges applies editor-reported document changes to the session,
// emitting one remove then one add per change at the same starting
// position (section 4.9), to be called once the editor's transaction has
// settled.
func (b *Bridge) ForwardChanges(changes []DocChange) {
	var edits []editmap.Edit
	for _, c := range changes {
		if c.Removed != "" {
			edits = append(edits, editmap.Edit{Position: c.Position, Kind: editmap.Remove, Text: c.Removed})
		}
		if c.Inserted != "" {
			edits = append(edits, editmap.Edit{Position: c.Position, Kind: editmap.Add, Text: c.Inserted})
		}
	}
	if len(edits) == 0 {
		return
	}
	b.sess.OnMultiTextChanged(edits)
}

// Destroy clears the active editor's decorations and unsubscribes from the
// session.
func (b *Bridge) Destroy() {
	if b.activeEditor != nil {
		b.activeEditor.SetViewState(ViewState{})
	}
	if b.unsub != nil {
		b.unsub()
	}
}
