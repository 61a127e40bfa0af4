package game

import (
	"fmt"
	"strings"
	"testing"
)

func TestAddHistoryAppendsInOrder(t *testing.T) {
	s := NewSession("chat-1", "通用奇幻世界")

	s.AddHistory(EntryPlayer, "我要调查箱子", "u1", "爱丽丝")
	s.AddHistory(EntryDM, "箱子里有一把铜钥匙", "", "")

	if len(s.History) != 2 {
		t.Fatalf("history length: got %d want 2", len(s.History))
	}
	if s.History[0].Kind != EntryPlayer || s.History[1].Kind != EntryDM {
		t.Fatalf("history order wrong: %v, %v", s.History[0].Kind, s.History[1].Kind)
	}
	if s.History[0].UserID != "u1" {
		t.Fatalf("actor not recorded: %q", s.History[0].UserID)
	}
}

func TestTrimHistoryShiftsBookmarks(t *testing.T) {
	s := NewSession("chat-1", "通用奇幻世界")
	for i := 0; i < 30; i++ {
		s.AddHistory(EntrySystem, fmt.Sprintf("entry %d", i), "", "")
	}
	s.Story.LastImageIndex = 25
	s.Story.LastSummaryIndex = 5

	removed := s.TrimHistory(10)
	if removed != 20 {
		t.Fatalf("removed: got %d want 20", removed)
	}
	if len(s.History) != 10 {
		t.Fatalf("history length after trim: got %d want 10", len(s.History))
	}
	if s.Story.LastImageIndex != 5 {
		t.Fatalf("image bookmark: got %d want 5", s.Story.LastImageIndex)
	}
	if s.Story.LastSummaryIndex != 0 {
		t.Fatalf("summary bookmark must clamp at 0, got %d", s.Story.LastSummaryIndex)
	}

	// 保留的应当是最后 10 条
	if s.History[0].Content != "entry 20" {
		t.Fatalf("unexpected first entry after trim: %q", s.History[0].Content)
	}
}

func TestTrimHistoryNoop(t *testing.T) {
	s := NewSession("chat-1", "通用奇幻世界")
	s.AddHistory(EntrySystem, "only one", "", "")

	if removed := s.TrimHistory(10); removed != 0 {
		t.Fatalf("trim below limit should be a no-op, removed %d", removed)
	}
	if removed := s.TrimHistory(0); removed != 0 {
		t.Fatalf("trim with zero limit should be a no-op, removed %d", removed)
	}
}

func TestPlayerRoster(t *testing.T) {
	s := NewSession("chat-1", "通用奇幻世界")

	s.AddPlayer("u1")
	s.AddPlayer("u2")
	s.AddPlayer("u1") // 重复加入不生效
	if len(s.PlayerIDs) != 2 {
		t.Fatalf("roster size: got %d want 2", len(s.PlayerIDs))
	}
	if !s.HasPlayer("u2") {
		t.Fatal("u2 should be in roster")
	}

	s.RemovePlayer("u1")
	if s.HasPlayer("u1") {
		t.Fatal("u1 should be removed")
	}
}

func TestStoryContextBounds(t *testing.T) {
	ctx := &StoryContext{}
	for i := 0; i < 30; i++ {
		ctx.AddKeyEvent(fmt.Sprintf("event %d", i))
	}
	if len(ctx.KeyEvents) != maxKeyEvents {
		t.Fatalf("key events should cap at %d, got %d", maxKeyEvents, len(ctx.KeyEvents))
	}
	if ctx.KeyEvents[0] != "event 10" {
		t.Fatalf("oldest events should drop first, got %q", ctx.KeyEvents[0])
	}

	ctx.AddClue("铜钥匙")
	ctx.AddClue("铜钥匙")
	if len(ctx.DiscoveredClues) != 1 {
		t.Fatalf("duplicate clue must be ignored, got %v", ctx.DiscoveredClues)
	}

	ctx.AddOpenThread("地下室的声音")
	ctx.ResolveThread("地下室的声音")
	if len(ctx.OpenThreads) != 0 {
		t.Fatalf("resolved thread should be removed, got %v", ctx.OpenThreads)
	}
}

func TestWorldStateDescription(t *testing.T) {
	w := WorldState{TimeOfDay: "night", Weather: "foggy", Location: "黑森林"}
	desc := w.Description()
	if desc == "" {
		t.Fatal("description should not be empty")
	}
	for _, want := range []string{"夜幕", "浓雾", "黑森林"} {
		if !strings.Contains(desc, want) {
			t.Fatalf("description %q missing %q", desc, want)
		}
	}
}
