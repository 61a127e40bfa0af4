package engine

import "strings"

// actionKeywords 是触发 DM 响应的行动意图关键词，数据驱动，便于调整。
var actionKeywords = []string{
	"我要", "我想", "我打算", "我试图", "我尝试",
	"攻击", "防御", "逃跑", "躲避", "闪避",
	"调查", "检查", "查看", "观察", "搜索", "搜查",
	"打开", "关闭", "拿起", "捡起", "使用", "丢弃",
	"前往", "走向", "进入", "离开", "跟随",
	"说服", "询问", "交谈", "对话", "威胁",
	"施放", "施法", "念咒", "祈祷",
	"潜行", "偷袭", "偷窃", "撬锁",
	"购买", "出售", "交易", "休息",
}

// checkHintRules 把行动动词映射到建议的检定类别，按声明顺序匹配，先命中先生效。
var checkHintRules = []struct {
	check    string
	keywords []string
}{
	{"感知", []string{"调查", "检查", "查看", "观察", "搜索", "搜查", "侦查", "寻找"}},
	{"力量", []string{"推开", "搬动", "举起", "破门", "掰开", "拉动"}},
	{"敏捷", []string{"闪避", "躲避", "跳跃", "攀爬", "翻滚", "平衡"}},
	{"隐匿", []string{"潜行", "躲藏", "隐蔽", "跟踪"}},
	{"巧手", []string{"偷窃", "扒窃", "撬锁", "解除陷阱"}},
	{"魅力", []string{"说服", "劝说", "交涉", "威胁", "威吓", "欺骗", "讨价还价"}},
	{"智力", []string{"回忆", "辨认", "解读", "研究", "推理", "破译"}},
	{"攻击", []string{"攻击", "挥砍", "劈砍", "刺击", "射击", "偷袭"}},
}

// Classifier 判断一条玩家消息是否需要 DM 响应。
// 纯文本启发式，不访问任何外部服务。
type Classifier struct {
	// MinNarrativeLength 是长文本兜底阈值（按 rune 计），超过即视为叙事输入。
	MinNarrativeLength int
}

// NewClassifier 返回使用默认阈值的分类器。
func NewClassifier() *Classifier {
	return &Classifier{MinNarrativeLength: 20}
}

// IsRoleplay 检查消息是否带有角色扮演的格式标记：
// 动作星号、旁白括号、场景方括号或对话引号。
func (c *Classifier) IsRoleplay(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	pairs := [][2]string{
		{"*", "*"},
		{"（", "）"},
		{"(", ")"},
		{"【", "】"},
		{"“", "”"},
		{"\"", "\""},
	}
	for _, p := range pairs {
		open := strings.Index(trimmed, p[0])
		if open < 0 {
			continue
		}
		if strings.Index(trimmed[open+len(p[0]):], p[1]) >= 0 {
			return true
		}
	}
	return false
}

// IsAction 检查消息是否表达了游戏内行动：命中关键词、提到在场 NPC，
// 或文本足够长以至于应当推进剧情。
func (c *Classifier) IsAction(text string, npcNames []string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, kw := range actionKeywords {
		if strings.Contains(trimmed, kw) {
			return true
		}
	}
	for _, name := range npcNames {
		if name != "" && strings.Contains(trimmed, name) {
			return true
		}
	}
	minLen := c.MinNarrativeLength
	if minLen <= 0 {
		minLen = 20
	}
	return len([]rune(trimmed)) >= minLen
}

// CheckHint 返回这条行动可能需要的检定提示，匹配不到时返回空串。
func CheckHint(text string) string {
	for _, rule := range checkHintRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return "🎲 此行动可能需要进行" + rule.check + "检定"
			}
		}
	}
	return ""
}
