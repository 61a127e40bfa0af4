package ai

import (
	"fmt"
	"strings"

	"github.com/yaori/paotuan/backend/internal/model/game"
)

// ActorAction 是批量回合中一名角色的行动，用于拼装提示词。
type ActorAction struct {
	CharacterName string
	Action        string
}

// tagProtocolHint 告诉模型如何用内联标签声明状态变化，
// 与 internal/protocol 解析的格式一一对应。
const tagProtocolHint = `如果剧情导致角色状态变化，请在叙述中用方括号标签标明：
[HP -5] [MP +3] [力量 +1] 表示数值变化
[获得 物品名] / [获得 物品名 x2] 表示获得物品
[失去 物品名] / [消耗 物品名 x2] 表示失去物品
[移动到 新地点] 表示场景变化，[时间 夜晚] 表示时间变化
没有状态变化就不要输出任何标签。`

// BuildNarrativePrompt 为单人行动构建 DM 叙述提示词。
func BuildNarrativePrompt(session *game.Session, player *game.Player, action, extra string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "你是一个专业的 TRPG 游戏主持人(DM)，正在主持一场 %s 世界观的跑团游戏。\n\n", session.WorldName)
	writeSceneBlock(&b, session)

	if player != nil {
		fmt.Fprintf(&b, "玩家角色: %s\nHP: %d/%d  MP: %d/%d\n\n",
			player.CharacterName, player.HPCurrent, player.HPMax, player.MPCurrent, player.MPMax)
	}

	writeHistoryBlock(&b, session)
	writeLoreBlock(&b, session)

	if extra != "" {
		fmt.Fprintf(&b, "额外上下文: %s\n\n", extra)
	}

	fmt.Fprintf(&b, "玩家行动: %s\n\n", action)
	b.WriteString(`请作为 DM 回应玩家的行动。要求:
1. 描述行动的结果和场景变化
2. 如果涉及 NPC，描述 NPC 的反应
3. 保持叙述的沉浸感和戏剧性
4. 如果需要掷骰子判定，说明需要什么检定
5. 回复控制在150字以内，使用第三人称叙述
`)
	b.WriteString("\n")
	b.WriteString(tagProtocolHint)
	return b.String()
}

// BuildBatchPrompt 为一个收集完成的回合构建提示词，按提交顺序列出每名角色的行动。
func BuildBatchPrompt(session *game.Session, actions []ActorAction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "你是一个专业的 TRPG 游戏主持人(DM)，正在主持一场 %s 世界观的多人跑团游戏。\n\n", session.WorldName)
	writeSceneBlock(&b, session)
	writeHistoryBlock(&b, session)
	writeLoreBlock(&b, session)

	b.WriteString("本回合所有玩家的行动（按提交顺序）:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s: %s\n", a.CharacterName, a.Action)
	}
	b.WriteString("\n")
	b.WriteString(`请作为 DM 在一段连贯的叙述里回应所有角色的行动。要求:
1. 每个角色的行动都要有交代，可以互相影响
2. 保持叙述的沉浸感和戏剧性
3. 回复控制在250字以内，使用第三人称叙述
`)
	b.WriteString("\n")
	b.WriteString(tagProtocolHint)
	return b.String()
}

// BuildIntroPrompt 生成会话开场白的提示词。
func BuildIntroPrompt(session *game.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "你是一个专业的 TRPG 游戏主持人(DM)。一场新的冒险即将开始。\n\n")
	writeSceneBlock(&b, session)
	writeLoreBlock(&b, session)

	b.WriteString(`请生成一段引人入胜的开场白，介绍这个世界和冒险的开始。要求:
1. 营造氛围感
2. 暗示可能的冒险方向
3. 控制在150字以内`)
	return b.String()
}

// BuildSummaryPrompt 基于最近的历史构建剧情摘要提示词。
func BuildSummaryPrompt(session *game.Session, entries []game.HistoryEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "你是一个 TRPG 跑团记录员。请把下面的游戏记录压缩成一段剧情摘要。\n\n")
	if session.Story.StorySummary != "" {
		fmt.Fprintf(&b, "此前的剧情摘要:\n%s\n\n", session.Story.StorySummary)
	}

	b.WriteString("最近的游戏记录:\n")
	for _, entry := range entries {
		name := entry.CharacterName
		if name == "" {
			name = string(entry.Kind)
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", entry.Kind, name, entry.Content)
	}

	b.WriteString("\n要求: 保留关键事件、人物关系和未解决的线索，控制在200字以内。")
	return b.String()
}

// BuildImagePrompt 为高潮场景构建插画提示词。
func BuildImagePrompt(session *game.Session, sceneText string) string {
	return fmt.Sprintf(
		"%s，%s。场景：%s。%s",
		session.WorldName, session.World.Location, sceneText, "奇幻插画风格，高细节，戏剧性光影",
	)
}

func writeSceneBlock(b *strings.Builder, session *game.Session) {
	fmt.Fprintf(b, "当前场景:\n- 位置: %s\n- 时间: %s\n- 天气: %s\n",
		session.World.Location, session.World.TimeOfDay, session.World.Weather)
	if session.World.LocationDescription != "" {
		fmt.Fprintf(b, "- 位置描述: %s\n", session.World.LocationDescription)
	}
	if session.Story.StorySummary != "" {
		fmt.Fprintf(b, "- 剧情至今: %s\n", session.Story.StorySummary)
	}
	b.WriteString("\n")
}

func writeHistoryBlock(b *strings.Builder, session *game.Session) {
	recent := session.RecentHistory(5)
	b.WriteString("最近的游戏记录:\n")
	if len(recent) == 0 {
		b.WriteString("游戏刚刚开始\n\n")
		return
	}
	for _, entry := range recent {
		name := entry.CharacterName
		if name == "" {
			name = "系统"
		}
		fmt.Fprintf(b, "[%s] %s: %s\n", entry.Kind, name, entry.Content)
	}
	b.WriteString("\n")
}

func writeLoreBlock(b *strings.Builder, session *game.Session) {
	b.WriteString("世界观设定:\n")
	if len(session.Lore) == 0 {
		b.WriteString("通用奇幻世界设定\n\n")
		return
	}
	lore := session.Lore
	if len(lore) > 3 {
		lore = lore[:3]
	}
	for _, entry := range lore {
		fmt.Fprintf(b, "%s\n", entry)
	}
	b.WriteString("\n")
}
