package engine

import (
	"strings"

	"github.com/yaori/paotuan/backend/internal/model/game"
)

const (
	// summaryInterval 是触发剧情摘要所需的新增历史条数。
	summaryInterval = 10
	// climaxMinInterval 是两次高潮配图之间至少间隔的历史条数。
	climaxMinInterval = 5
	// climaxTension 是单个高潮关键词即可触发配图的紧张度下限。
	climaxTension = 7
)

// escalatingKeywords 推高紧张度，deescalatingKeywords 则缓和局势。
// 计数按出现的不同关键词个数，同一关键词重复出现只算一次。
var escalatingKeywords = []string{
	"战斗", "攻击", "袭击", "埋伏", "危险", "威胁",
	"鲜血", "怒吼", "咆哮", "爆炸", "陷阱", "黑暗",
	"死亡", "恐惧", "追杀", "崩塌", "轰然", "利爪",
}

var deescalatingKeywords = []string{
	"平静", "安全", "休息", "放松", "祥和", "温暖",
	"安心", "痊愈", "和平", "欢笑", "胜利", "篝火",
}

// climaxKeywords 标记戏剧性顶点，用于判断是否值得为场景配图。
var climaxKeywords = []string{
	"决战", "最终", "致命", "生死", "爆发", "巨响",
	"决一死战", "全力一击", "燃烧", "怒吼", "崩塌", "觉醒",
}

func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// UpdateTension 根据一段 DM 叙述调整会话紧张度，并返回调整后的值。
// 紧张度始终钳制在 [0,10]。
func UpdateTension(session *game.Session, narrative string) int {
	delta := countKeywords(narrative, escalatingKeywords) - countKeywords(narrative, deescalatingKeywords)
	level := session.Story.TensionLevel + delta
	if level < 0 {
		level = 0
	}
	if level > 10 {
		level = 10
	}
	session.Story.TensionLevel = level
	return level
}

// ShouldSummarize 在距上次摘要累计了足够多的历史后返回 true。
func ShouldSummarize(session *game.Session) bool {
	return len(session.History)-session.Story.LastSummaryIndex >= summaryInterval
}

// IsClimax 判断一段叙述是否到达戏剧高潮：距上次配图足够久，
// 且高潮关键词密集，或紧张度已高企时出现单个高潮关键词。
func IsClimax(session *game.Session, narrative string) bool {
	if len(session.History)-session.Story.LastImageIndex < climaxMinInterval {
		return false
	}
	hits := countKeywords(narrative, climaxKeywords)
	if hits >= 2 {
		return true
	}
	return hits >= 1 && session.Story.TensionLevel >= climaxTension
}
