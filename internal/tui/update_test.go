package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tagvis/internal/expansion"
	"tagvis/internal/render"
	"tagvis/internal/tree"
)

type fakeController struct {
	mu    sync.Mutex
	runs  []string
	paths [][]string
	files []expansion.Row
	err   error
}

func (f *fakeController) StartRun(_ context.Context, tag string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, tag)
	return uint64(len(f.runs))
}

func (f *fakeController) Wait(context.Context) error { return nil }

func (f *fakeController) Files(_ context.Context, path []string) ([]expansion.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return f.files, f.err
}

func sampleTree() *tree.Node {
	root := tree.NewRoot("")
	a := tree.New("#a", 3, []string{"#"})
	a.Children = []*tree.Node{tree.New("#c", 1, []string{"#", "#a"})}
	root.Children = []*tree.Node{a, tree.New("#b", 2, []string{"#"})}
	return root
}

func update(t *testing.T, m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	am, ok := next.(AppModel)
	if !ok {
		t.Fatalf("Update returned %T, want AppModel", next)
	}
	return am, cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func newModel(t *testing.T) (AppModel, *fakeController) {
	t.Helper()
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, render.NewLatest())
	m, _ = update(t, m, MsgSnapshot{Root: sampleTree(), Version: 1})
	return m, ctrl
}

func TestUpdate_Snapshot(t *testing.T) {
	m, _ := newModel(t)

	var names []string
	for _, r := range m.Rows {
		names = append(names, r.Node.Name)
	}
	if got := strings.Join(names, ","); got != "#,#a,#c,#b" {
		t.Errorf("rows = %s, want #,#a,#c,#b", got)
	}
	if m.Rows[2].Depth != 2 {
		t.Errorf("depth of #c = %d, want 2", m.Rows[2].Depth)
	}
	if m.Version != 1 {
		t.Errorf("Version = %d, want 1", m.Version)
	}
}

func TestUpdate_Navigation(t *testing.T) {
	m, _ := newModel(t)

	m, _ = update(t, m, keyMsg("up"))
	if m.SelectedIdx != 0 {
		t.Errorf("up at top: SelectedIdx = %d, want 0", m.SelectedIdx)
	}
	for i := 0; i < 10; i++ {
		m, _ = update(t, m, keyMsg("down"))
	}
	if m.SelectedIdx != 3 {
		t.Errorf("down past end: SelectedIdx = %d, want 3", m.SelectedIdx)
	}
	m, _ = update(t, m, keyMsg("k"))
	if m.Selected().Name != "#c" {
		t.Errorf("Selected = %s, want #c", m.Selected().Name)
	}
	m, _ = update(t, m, keyMsg("g"))
	if m.SelectedIdx != 0 {
		t.Errorf("home: SelectedIdx = %d, want 0", m.SelectedIdx)
	}
}

func TestUpdate_SelectionFollowsNode(t *testing.T) {
	m, _ := newModel(t)
	m.SelectedIdx = 3 // #b

	next := sampleTree()
	next.Children = next.Children[1:] // #a is gone
	m, _ = update(t, m, MsgSnapshot{Root: next, Version: 2})

	if m.Selected() == nil || m.Selected().Name != "#b" {
		t.Fatalf("Selected = %v, want #b", m.Selected())
	}
	if m.SelectedIdx != 1 {
		t.Errorf("SelectedIdx = %d, want 1", m.SelectedIdx)
	}

	m, _ = update(t, m, MsgSnapshot{Root: tree.NewRoot(""), Version: 3})
	if m.SelectedIdx != 0 {
		t.Errorf("SelectedIdx after shrink = %d, want 0", m.SelectedIdx)
	}
}

func TestUpdate_Reroot(t *testing.T) {
	m, ctrl := newModel(t)

	m.SelectedIdx = 2 // #c
	m, cmd := update(t, m, keyMsg("enter"))
	if cmd == nil {
		t.Fatal("enter returned no command")
	}
	msg, ok := cmd().(MsgRunStarted)
	if !ok || msg.Epoch != 1 {
		t.Fatalf("enter command = %#v, want MsgRunStarted{1}", msg)
	}
	if m.SelectedIdx != 0 {
		t.Errorf("SelectedIdx = %d, want 0", m.SelectedIdx)
	}

	// the placeholder root re-roots at itself
	_, cmd = update(t, m, keyMsg("enter"))
	cmd()

	_, cmd = update(t, m, keyMsg("u"))
	cmd()

	want := []string{"#c", "#", ""}
	if strings.Join(ctrl.runs, "|") != strings.Join(want, "|") {
		t.Errorf("runs = %q, want %q", ctrl.runs, want)
	}
}

func TestUpdate_Refresh(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, render.NewLatest())

	_, cmd := update(t, m, keyMsg("r"))
	cmd()

	root := tree.NewRoot("#project")
	m, _ = update(t, m, MsgSnapshot{Root: root, Version: 1})
	_, cmd = update(t, m, keyMsg("r"))
	cmd()

	if strings.Join(ctrl.runs, "|") != "|#project" {
		t.Errorf("runs = %q, want [\"\" #project]", ctrl.runs)
	}
}

func TestUpdate_RunLifecycle(t *testing.T) {
	m, _ := newModel(t)

	m, cmd := update(t, m, MsgRunStarted{Epoch: 2})
	if !m.Loading || m.Epoch != 2 || cmd == nil {
		t.Fatalf("after start: Loading=%v Epoch=%d cmd=%v", m.Loading, m.Epoch, cmd != nil)
	}

	m, _ = update(t, m, MsgRunDone{Epoch: 1})
	if !m.Loading {
		t.Error("an older run finishing must not stop loading")
	}
	m, _ = update(t, m, MsgRunDone{Epoch: 2})
	if m.Loading {
		t.Error("Loading still set after current run finished")
	}

	if done := waitRunCmd(context.Background(), &fakeController{}, 5)(); done != (MsgRunDone{Epoch: 5}) {
		t.Errorf("waitRunCmd = %#v, want MsgRunDone{5}", done)
	}
}

func TestUpdate_Files(t *testing.T) {
	m, ctrl := newModel(t)
	ctrl.files = []expansion.Row{{Label: "notes/a.md", Count: 1}}

	m.SelectedIdx = 2 // #c below #a
	_, cmd := update(t, m, keyMsg("f"))
	if cmd == nil {
		t.Fatal("f returned no command")
	}
	msg, ok := cmd().(MsgFiles)
	if !ok {
		t.Fatalf("files command returned %T", cmd())
	}
	if strings.Join(ctrl.paths[0], ",") != "#a,#c" {
		t.Errorf("Files path = %v, want [#a #c]", ctrl.paths[0])
	}

	m, _ = update(t, m, msg)
	view := m.View()
	if !strings.Contains(view, "notes/a.md") || !strings.Contains(view, "#a + #c") {
		t.Errorf("view missing file pane:\n%s", view)
	}

	// the pane belongs to #c only
	m, _ = update(t, m, keyMsg("down"))
	if strings.Contains(m.View(), "notes/a.md") {
		t.Error("file pane still shown for another node")
	}
}

func TestUpdate_FilesError(t *testing.T) {
	m, ctrl := newModel(t)
	ctrl.err = errors.New("provider down")

	_, cmd := update(t, m, keyMsg("f"))
	msg := cmd()
	if _, ok := msg.(MsgFiles); ok {
		t.Fatal("expected an error message")
	}
	m, _ = update(t, m, msg)
	if m.Err == nil || !strings.Contains(m.View(), "provider down") {
		t.Errorf("error not shown, Err = %v", m.Err)
	}
}

func TestUpdate_Quit(t *testing.T) {
	m, _ := newModel(t)
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := update(t, m, keyMsg(k))
		if cmd == nil {
			t.Fatalf("%s returned no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s did not quit", k)
		}
	}
}

func TestWaitSnapshotCmd(t *testing.T) {
	latest := render.NewLatest()
	ctx := context.Background()

	done := make(chan tea.Msg, 1)
	go func() { done <- waitSnapshotCmd(ctx, latest, 0)() }()

	latest.Render(sampleTree())
	select {
	case msg := <-done:
		snap, ok := msg.(MsgSnapshot)
		if !ok || snap.Version != 1 || snap.Root == nil {
			t.Fatalf("got %#v, want snapshot version 1", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}

	// already newer: returns at once
	if msg := waitSnapshotCmd(ctx, latest, 0)(); msg.(MsgSnapshot).Version != 1 {
		t.Errorf("got %#v", msg)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if msg := waitSnapshotCmd(cancelled, latest, 1)(); msg != nil {
		t.Errorf("cancelled wait returned %#v", msg)
	}
}

func TestView_Waiting(t *testing.T) {
	m := New(context.Background(), &fakeController{}, render.NewLatest())
	view := m.View()
	if !strings.Contains(view, "Waiting for the first result") {
		t.Errorf("view = %q", view)
	}
}

func TestVisibleRange(t *testing.T) {
	m, _ := newModel(t)
	m.WindowSize = tea.WindowSizeMsg{Width: 80, Height: 9} // 3 rows
	m.SelectedIdx = 3

	start, end := m.visibleRange()
	if start != 1 || end != 4 {
		t.Errorf("visibleRange = %d..%d, want 1..4", start, end)
	}
}
