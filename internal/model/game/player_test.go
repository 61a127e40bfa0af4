package game

import (
	"errors"
	"testing"
)

func TestModifyHPClamping(t *testing.T) {
	p := NewPlayer("chat-1", "u1", "爱丽丝")

	old, current := p.ModifyHP(-5)
	if old != 20 || current != 15 {
		t.Fatalf("ModifyHP(-5): got %d -> %d, want 20 -> 15", old, current)
	}

	_, current = p.ModifyHP(-100)
	if current != 0 {
		t.Fatalf("HP should clamp at 0, got %d", current)
	}

	_, current = p.ModifyHP(999)
	if current != p.HPMax {
		t.Fatalf("HP should clamp at max %d, got %d", p.HPMax, current)
	}
}

func TestModifyMPClamping(t *testing.T) {
	p := NewPlayer("chat-1", "u1", "爱丽丝")

	_, current := p.ModifyMP(50)
	if current != p.MPMax {
		t.Fatalf("MP should clamp at max %d, got %d", p.MPMax, current)
	}

	_, current = p.ModifyMP(-999)
	if current != 0 {
		t.Fatalf("MP should clamp at 0, got %d", current)
	}
}

func TestInventoryStacking(t *testing.T) {
	p := NewPlayer("chat-1", "u1", "爱丽丝")

	p.AddItem("torch", 2)
	p.AddItem("torch", 3)

	if len(p.Inventory) != 1 {
		t.Fatalf("expected single stack, got %d stacks", len(p.Inventory))
	}
	if got := p.ItemCount("torch"); got != 5 {
		t.Fatalf("expected torch x5, got x%d", got)
	}

	if p.RemoveItem("torch", 6) {
		t.Fatal("removing more than stack size should fail")
	}
	if got := p.ItemCount("torch"); got != 5 {
		t.Fatalf("failed removal must not touch the stack, got x%d", got)
	}

	if !p.RemoveItem("torch", 5) {
		t.Fatal("removing the exact quantity should succeed")
	}
	if len(p.Inventory) != 0 {
		t.Fatalf("empty stack should be deleted, got %v", p.Inventory)
	}
}

func TestRemoveMissingItem(t *testing.T) {
	p := NewPlayer("chat-1", "u1", "爱丽丝")
	if p.RemoveItem("幽灵短剑", 1) {
		t.Fatal("removing a nonexistent item should return false")
	}
}

func TestAllocatePoints(t *testing.T) {
	p := NewPlayer("chat-1", "u1", "爱丽丝")

	if err := p.AllocatePoints("str", 10, DefaultMinAttribute, DefaultMaxAttribute); err != nil {
		t.Fatalf("AllocatePoints err: %v", err)
	}
	if p.FreePoints != 20 {
		t.Fatalf("free points: got %d want 20", p.FreePoints)
	}
	if p.Attributes.Strength != DefaultBaseAttribute+10 {
		t.Fatalf("strength: got %d want %d", p.Attributes.Strength, DefaultBaseAttribute+10)
	}

	// 8+10=18 已到上限，再加必须被拒绝且无副作用
	if err := p.AllocatePoints("力量", 1, DefaultMinAttribute, DefaultMaxAttribute); err == nil {
		t.Fatal("allocating beyond max attribute should fail")
	}
	if p.FreePoints != 20 || p.Attributes.Strength != 18 {
		t.Fatalf("rejected allocation must not mutate: free=%d str=%d", p.FreePoints, p.Attributes.Strength)
	}
}

func TestAllocateUnknownAttribute(t *testing.T) {
	p := NewPlayer("chat-1", "u1", "爱丽丝")
	err := p.AllocatePoints("luck", 1, DefaultMinAttribute, DefaultMaxAttribute)
	if !errors.Is(err, ErrUnknownAttribute) {
		t.Fatalf("expected ErrUnknownAttribute, got %v", err)
	}
}

func TestResetPoints(t *testing.T) {
	p := NewPlayer("chat-1", "u1", "爱丽丝")

	if err := p.AllocatePoints("dex", 6, DefaultMinAttribute, DefaultMaxAttribute); err != nil {
		t.Fatalf("AllocatePoints err: %v", err)
	}
	if err := p.AllocatePoints("智力", 4, DefaultMinAttribute, DefaultMaxAttribute); err != nil {
		t.Fatalf("AllocatePoints err: %v", err)
	}

	refunded, err := p.ResetPoints()
	if err != nil {
		t.Fatalf("ResetPoints err: %v", err)
	}
	if refunded != 10 {
		t.Fatalf("refunded: got %d want 10", refunded)
	}
	if p.FreePoints != DefaultFreePoints {
		t.Fatalf("free points after reset: got %d want %d", p.FreePoints, DefaultFreePoints)
	}
	if p.Attributes.Dexterity != DefaultBaseAttribute || p.Attributes.Intelligence != DefaultBaseAttribute {
		t.Fatalf("attributes not restored: dex=%d int=%d", p.Attributes.Dexterity, p.Attributes.Intelligence)
	}
}

func TestLockRejectsAllocation(t *testing.T) {
	p := NewPlayer("chat-1", "u1", "爱丽丝")

	if err := p.Lock(); err != nil {
		t.Fatalf("Lock err: %v", err)
	}
	err := p.AllocatePoints("str", 1, DefaultMinAttribute, DefaultMaxAttribute)
	if !errors.Is(err, ErrCharacterLocked) {
		t.Fatalf("expected ErrCharacterLocked, got %v", err)
	}
	if _, err := p.ResetPoints(); !errors.Is(err, ErrCharacterLocked) {
		t.Fatalf("reset on locked character: got %v", err)
	}

	if err := p.Unlock(); err != nil {
		t.Fatalf("Unlock err: %v", err)
	}
	if err := p.AllocatePoints("str", 1, DefaultMinAttribute, DefaultMaxAttribute); err != nil {
		t.Fatalf("allocation after unlock err: %v", err)
	}
}

func TestAttributeModifier(t *testing.T) {
	a := NewAttributes(10)
	if got := a.Modifier("strength"); got != 0 {
		t.Fatalf("modifier(10): got %d want 0", got)
	}
	a.Set("strength", 18)
	if got := a.Modifier("strength"); got != 4 {
		t.Fatalf("modifier(18): got %d want 4", got)
	}
	a.Set("strength", 7)
	if got := a.Modifier("strength"); got != -2 {
		t.Fatalf("modifier(7): got %d want -2", got)
	}
}
