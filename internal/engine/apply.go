package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/yaori/paotuan/backend/internal/model/game"
	"github.com/yaori/paotuan/backend/internal/protocol"
	"github.com/yaori/paotuan/backend/internal/storage"
)

// Applier 把解析出的状态变更落到玩家和会话上。
// 每个字段组独立读取、修改、持久化，单组失败不影响其他组，
// 只会记录日志并跳过。
type Applier struct {
	store storage.Store
}

// NewApplier 构造应用器。
func NewApplier(store storage.Store) *Applier {
	return &Applier{store: store}
}

// Apply 按 HP、MP、属性、物品、场景的顺序应用变更，
// 返回面向玩家的变更摘要，没有任何生效变更时返回空串。
func (a *Applier) Apply(ctx context.Context, cs *protocol.ChangeSet, session *game.Session) string {
	if cs == nil || cs.Empty() {
		return ""
	}

	var lines []string
	lines = append(lines, a.applyHP(ctx, session.ID, cs.HP)...)
	lines = append(lines, a.applyMP(ctx, session.ID, cs.MP)...)
	lines = append(lines, a.applyAttributes(ctx, session.ID, cs.Attributes)...)
	lines = append(lines, a.applyItemGains(ctx, session.ID, cs.ItemGains)...)
	lines = append(lines, a.applyItemLosses(ctx, session.ID, cs.ItemLosses)...)
	lines = append(lines, a.applyWorld(ctx, cs, session)...)

	return strings.Join(lines, "\n")
}

func (a *Applier) applyHP(ctx context.Context, sessionID string, deltas map[string]int) []string {
	var lines []string
	for _, userID := range sortedKeys(deltas) {
		delta := deltas[userID]
		player, err := a.store.GetPlayer(ctx, sessionID, userID)
		if err != nil {
			log.Printf("[applier] skip HP change for %s: %v", userID, err)
			continue
		}
		old, current := player.ModifyHP(delta)
		if err := a.store.SavePlayer(ctx, player); err != nil {
			log.Printf("[applier] save player %s: %v", userID, err)
			continue
		}
		lines = append(lines, fmt.Sprintf("❤️ %s HP: %d → %d (%+d)", player.CharacterName, old, current, delta))
	}
	return lines
}

func (a *Applier) applyMP(ctx context.Context, sessionID string, deltas map[string]int) []string {
	var lines []string
	for _, userID := range sortedKeys(deltas) {
		delta := deltas[userID]
		player, err := a.store.GetPlayer(ctx, sessionID, userID)
		if err != nil {
			log.Printf("[applier] skip MP change for %s: %v", userID, err)
			continue
		}
		old, current := player.ModifyMP(delta)
		if err := a.store.SavePlayer(ctx, player); err != nil {
			log.Printf("[applier] save player %s: %v", userID, err)
			continue
		}
		lines = append(lines, fmt.Sprintf("🔮 %s MP: %d → %d (%+d)", player.CharacterName, old, current, delta))
	}
	return lines
}

func (a *Applier) applyAttributes(ctx context.Context, sessionID string, changes map[string]map[string]int) []string {
	var lines []string
	for _, userID := range sortedKeys(changes) {
		player, err := a.store.GetPlayer(ctx, sessionID, userID)
		if err != nil {
			log.Printf("[applier] skip attribute change for %s: %v", userID, err)
			continue
		}
		deltas := changes[userID]
		for _, attr := range sortedKeys(deltas) {
			old := player.Attributes.Get(attr)
			player.Attributes.Set(attr, old+deltas[attr])
			lines = append(lines, fmt.Sprintf("⚔️ %s %s: %d → %d (%+d)",
				player.CharacterName, attributeDisplay(attr), old, old+deltas[attr], deltas[attr]))
		}
		if err := a.store.SavePlayer(ctx, player); err != nil {
			log.Printf("[applier] save player %s: %v", userID, err)
		}
	}
	return lines
}

func (a *Applier) applyItemGains(ctx context.Context, sessionID string, gains map[string][]protocol.ItemChange) []string {
	var lines []string
	for _, userID := range sortedKeys(gains) {
		player, err := a.store.GetPlayer(ctx, sessionID, userID)
		if err != nil {
			log.Printf("[applier] skip item gain for %s: %v", userID, err)
			continue
		}
		for _, item := range gains[userID] {
			player.AddItem(item.Name, item.Quantity)
			lines = append(lines, fmt.Sprintf("🎒 %s 获得 %s x%d", player.CharacterName, item.Name, item.Quantity))
		}
		if err := a.store.SavePlayer(ctx, player); err != nil {
			log.Printf("[applier] save player %s: %v", userID, err)
		}
	}
	return lines
}

func (a *Applier) applyItemLosses(ctx context.Context, sessionID string, losses map[string][]protocol.ItemChange) []string {
	var lines []string
	for _, userID := range sortedKeys(losses) {
		player, err := a.store.GetPlayer(ctx, sessionID, userID)
		if err != nil {
			log.Printf("[applier] skip item loss for %s: %v", userID, err)
			continue
		}
		changed := false
		for _, item := range losses[userID] {
			// 模型偶尔会报告玩家并不持有的物品，静默忽略。
			if !player.RemoveItem(item.Name, item.Quantity) {
				continue
			}
			changed = true
			lines = append(lines, fmt.Sprintf("🎒 %s 失去 %s x%d", player.CharacterName, item.Name, item.Quantity))
		}
		if !changed {
			continue
		}
		if err := a.store.SavePlayer(ctx, player); err != nil {
			log.Printf("[applier] save player %s: %v", userID, err)
		}
	}
	return lines
}

func (a *Applier) applyWorld(ctx context.Context, cs *protocol.ChangeSet, session *game.Session) []string {
	var lines []string
	changed := false
	if cs.Location != "" && cs.Location != session.World.Location {
		session.World.Location = cs.Location
		lines = append(lines, "📍 场景移动到："+cs.Location)
		changed = true
	}
	if cs.TimeOfDay != "" && cs.TimeOfDay != session.World.TimeOfDay {
		session.World.TimeOfDay = cs.TimeOfDay
		lines = append(lines, "🕐 时间来到："+cs.TimeOfDay)
		changed = true
	}
	if changed {
		if err := a.store.SaveSession(ctx, session); err != nil {
			log.Printf("[applier] save session %s: %v", session.ID, err)
		}
	}
	return lines
}

var attributeDisplayNames = map[string]string{
	"strength":     "力量",
	"dexterity":    "敏捷",
	"constitution": "体质",
	"intelligence": "智力",
	"wisdom":       "感知",
	"charisma":     "魅力",
}

func attributeDisplay(canonical string) string {
	if name, ok := attributeDisplayNames[canonical]; ok {
		return name
	}
	return canonical
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
