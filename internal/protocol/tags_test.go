package protocol

import (
	"strings"
	"testing"
)

func TestParseHPAccumulates(t *testing.T) {
	cs := Parse("陷阱触发 [HP -5]，你挣扎起身 [hp -3]，喝下药水 [生命值 +2]", "u1")

	if got := cs.HP["u1"]; got != -6 {
		t.Fatalf("HP delta: got %d want -6", got)
	}
}

func TestParseMPAndAttributes(t *testing.T) {
	cs := Parse("法术反噬 [MP -4] [魔力值 -1]，你顿悟了 [智力 +2] [STR +1]", "u1")

	if got := cs.MP["u1"]; got != -5 {
		t.Fatalf("MP delta: got %d want -5", got)
	}
	if got := cs.Attributes["u1"]["intelligence"]; got != 2 {
		t.Fatalf("intelligence delta: got %d want 2", got)
	}
	if got := cs.Attributes["u1"]["strength"]; got != 1 {
		t.Fatalf("strength delta: got %d want 1", got)
	}
}

func TestParseItems(t *testing.T) {
	cs := Parse("[获得 铜钥匙] [获得 火把 x3] [消耗 绷带 x2] [失去 金币 x10] [使用 解毒剂]", "u1")

	gains := cs.ItemGains["u1"]
	if len(gains) != 2 {
		t.Fatalf("gains: got %v", gains)
	}
	if gains[0].Name != "铜钥匙" || gains[0].Quantity != 1 {
		t.Fatalf("default quantity should be 1: %+v", gains[0])
	}
	if gains[1].Name != "火把" || gains[1].Quantity != 3 {
		t.Fatalf("explicit quantity: %+v", gains[1])
	}

	losses := cs.ItemLosses["u1"]
	if len(losses) != 3 {
		t.Fatalf("losses: got %v", losses)
	}
	if losses[0].Quantity != 2 || losses[1].Quantity != 10 || losses[2].Quantity != 1 {
		t.Fatalf("loss quantities wrong: %+v", losses)
	}
}

func TestParseWorldOverridesLastWins(t *testing.T) {
	cs := Parse("[移动到 森林] 你继续前行 [进入 山洞] [时间 黄昏] [时间 夜晚]", "u1")

	if cs.Location != "山洞" {
		t.Fatalf("location: got %q want 山洞", cs.Location)
	}
	if cs.TimeOfDay != "夜晚" {
		t.Fatalf("time: got %q want 夜晚", cs.TimeOfDay)
	}
}

func TestParseNoTags(t *testing.T) {
	cs := Parse("夜色渐深，篝火噼啪作响。", "u1")
	if !cs.Empty() {
		t.Fatalf("no tags should yield an empty change set: %+v", cs)
	}
}

func TestParseMalformedTags(t *testing.T) {
	cs := Parse("[HP] [获得] [力量 十] [HP -abc] [未知标签 3]", "u1")
	if !cs.Empty() {
		t.Fatalf("malformed tags must be ignored: %+v", cs)
	}
}

func TestStripRemovesTags(t *testing.T) {
	got := Strip("你搜索了箱子 [获得 铜钥匙] [HP -2]")
	if got != "你搜索了箱子" {
		t.Fatalf("Strip: got %q", got)
	}
}

func TestStripTagOnlyText(t *testing.T) {
	got := Strip("[HP -5] [MP +3]\n\n[移动到 森林]")
	if strings.TrimSpace(got) != "" {
		t.Fatalf("tag-only text should strip to nothing, got %q", got)
	}
}

func TestStripPreservesUntaggedText(t *testing.T) {
	text := "风穿过走廊，  带着潮湿的气息。\n\n\n什么也没有发生。"
	if got := Strip(text); got != text {
		t.Fatalf("untagged text must be returned unchanged:\n got %q\nwant %q", got, text)
	}
}

func TestStripIdempotent(t *testing.T) {
	text := "你举起火把 [消耗 火把 x1]。\n\n\n洞口塌了 [HP -4]\n[移动到 暗河]"
	once := Strip(text)
	twice := Strip(once)
	if once != twice {
		t.Fatalf("Strip is not idempotent:\n once %q\ntwice %q", once, twice)
	}
	if strings.Contains(once, "[") {
		t.Fatalf("tags survived strip: %q", once)
	}
	if strings.Contains(once, "\n\n\n") {
		t.Fatalf("more than one blank line in a row: %q", once)
	}
}

func TestParseAttributesAllAliases(t *testing.T) {
	text := "[力量 +1][敏捷 +1][体质 +1][智力 +1][感知 +1][魅力 +1][DEX +1][wis +1]"
	cs := Parse(text, "u1")

	attrs := cs.Attributes["u1"]
	if len(attrs) != 6 {
		t.Fatalf("expected all six attributes, got %v", attrs)
	}
	if attrs["dexterity"] != 2 || attrs["wisdom"] != 2 {
		t.Fatalf("aliases should accumulate onto canonical names: %v", attrs)
	}
}

func TestParseAttributeFullEnglishNames(t *testing.T) {
	text := "巨力灌体 [strength +2] 心思也更敏锐了 [Wisdom -1]"
	cs := Parse(text, "u1")

	attrs := cs.Attributes["u1"]
	if attrs["strength"] != 2 {
		t.Fatalf("full name strength should parse: %v", attrs)
	}
	if attrs["wisdom"] != -1 {
		t.Fatalf("full name wisdom should parse case-insensitively: %v", attrs)
	}

	clean := Strip(text)
	if strings.Contains(clean, "[") {
		t.Fatalf("full-name tags should be stripped: %q", clean)
	}
}
