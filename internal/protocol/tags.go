// Package protocol 实现叙事文本中内联状态标签的解析与剥离。
//
// DM 模型在生成的叙述里用方括号标签声明状态变化，例如：
//
//	你搜索了箱子 [获得 铜钥匙] [HP -2]
//	[移动到 地下室] [时间 夜晚]
//
// Parse 把这些标签收集为一个 ChangeSet，Strip 把它们从展示文本中移除。
// 两者都是纯函数：对缺失或畸形的标签不报错，零匹配就是空变更集。
package protocol

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yaori/paotuan/backend/internal/model/game"
)

// ItemChange 是一条物品增减记录。
type ItemChange struct {
	Name     string
	Quantity int
}

// ChangeSet 是从一段生成文本中解析出的全部状态变化，按用户分组。
// 它只在一次生成调用的生命周期内存在，应用后即丢弃。
type ChangeSet struct {
	HP         map[string]int            // userID -> HP 增减
	MP         map[string]int            // userID -> MP 增减
	Attributes map[string]map[string]int // userID -> 规范属性名 -> 增减
	ItemGains  map[string][]ItemChange   // userID -> 获得列表
	ItemLosses map[string][]ItemChange   // userID -> 失去列表
	Location   string                    // 世界位置覆盖，后出现的生效
	TimeOfDay  string                    // 世界时间覆盖，后出现的生效
}

// NewChangeSet 返回一个空变更集。
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		HP:         make(map[string]int),
		MP:         make(map[string]int),
		Attributes: make(map[string]map[string]int),
		ItemGains:  make(map[string][]ItemChange),
		ItemLosses: make(map[string][]ItemChange),
	}
}

// Empty 判断变更集是否没有任何变化。
func (c *ChangeSet) Empty() bool {
	return len(c.HP) == 0 && len(c.MP) == 0 && len(c.Attributes) == 0 &&
		len(c.ItemGains) == 0 && len(c.ItemLosses) == 0 &&
		c.Location == "" && c.TimeOfDay == ""
}

var (
	hpPattern   = regexp.MustCompile(`(?i)\[\s*(?:HP|生命值|生命)\s*([+-]?\d+)\s*\]`)
	mpPattern   = regexp.MustCompile(`(?i)\[\s*(?:MP|魔力值|魔力)\s*([+-]?\d+)\s*\]`)
	attrPattern = regexp.MustCompile(`(?i)\[\s*(力量|敏捷|体质|智力|感知|魅力|strength|dexterity|constitution|intelligence|wisdom|charisma|STR|DEX|CON|INT|WIS|CHA)\s*([+-]?\d+)\s*\]`)
	gainPattern = regexp.MustCompile(`\[\s*获得\s+(.+?)(?:\s*[xX×]\s*(\d+))?\s*\]`)
	losePattern = regexp.MustCompile(`\[\s*(?:失去|消耗|使用)\s+(.+?)(?:\s*[xX×]\s*(\d+))?\s*\]`)
	movePattern = regexp.MustCompile(`\[\s*(?:移动到|进入|来到|到达)\s*(.+?)\s*\]`)
	timePattern = regexp.MustCompile(`\[\s*时间\s*(.+?)\s*\]`)

	allPatterns = []*regexp.Regexp{
		hpPattern, mpPattern, attrPattern, gainPattern, losePattern, movePattern, timePattern,
	}

	multiBlank  = regexp.MustCompile(`\n{3,}`)
	inlineSpace = regexp.MustCompile(`[ \t]{2,}`)
)

// Parse 从生成文本解析变更集，所有匹配到的标签都归属于 actingUserID。
// 协议本身不区分多名行动者；批量回合由调用方对每名行动者各解析一次。
func Parse(text, actingUserID string) *ChangeSet {
	cs := NewChangeSet()
	if text == "" || actingUserID == "" {
		return cs
	}

	for _, m := range hpPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			cs.HP[actingUserID] += n
		}
	}
	for _, m := range mpPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			cs.MP[actingUserID] += n
		}
	}
	for _, m := range attrPattern.FindAllStringSubmatch(text, -1) {
		canonical, ok := game.CanonicalAttribute(m[1])
		if !ok {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if cs.Attributes[actingUserID] == nil {
			cs.Attributes[actingUserID] = make(map[string]int)
		}
		cs.Attributes[actingUserID][canonical] += n
	}
	for _, m := range gainPattern.FindAllStringSubmatch(text, -1) {
		cs.ItemGains[actingUserID] = append(cs.ItemGains[actingUserID], itemChange(m))
	}
	for _, m := range losePattern.FindAllStringSubmatch(text, -1) {
		cs.ItemLosses[actingUserID] = append(cs.ItemLosses[actingUserID], itemChange(m))
	}
	for _, m := range movePattern.FindAllStringSubmatch(text, -1) {
		cs.Location = m[1] // 最后一个生效
	}
	for _, m := range timePattern.FindAllStringSubmatch(text, -1) {
		cs.TimeOfDay = m[1]
	}

	return cs
}

func itemChange(m []string) ItemChange {
	quantity := 1
	if m[2] != "" {
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			quantity = n
		}
	}
	return ItemChange{Name: strings.TrimSpace(m[1]), Quantity: quantity}
}

// Strip 移除文本中全部可识别的标签并规整残留的空白：
// 行内多余空格合并为一个，连续空行至多保留一行。Strip 是幂等的。
func Strip(text string) string {
	cleaned := text
	matched := false
	for _, p := range allPatterns {
		if p.MatchString(cleaned) {
			matched = true
			cleaned = p.ReplaceAllString(cleaned, "")
		}
	}
	// 没有标签的文本原样返回，空白不动
	if !matched {
		return text
	}

	cleaned = inlineSpace.ReplaceAllString(cleaned, " ")

	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	cleaned = strings.Join(lines, "\n")
	cleaned = multiBlank.ReplaceAllString(cleaned, "\n\n")

	return strings.TrimSpace(cleaned)
}
