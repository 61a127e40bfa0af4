package game

import (
	"time"

	"github.com/google/uuid"
)

// Status 表示会话生命周期状态。
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// EntryKind 标记一条历史记录的来源。
type EntryKind string

const (
	EntryDM     EntryKind = "dm"
	EntryPlayer EntryKind = "player"
	EntrySystem EntryKind = "system"
	EntryDice   EntryKind = "dice"
)

// HistoryEntry 是会话历史中的一条记录。
type HistoryEntry struct {
	ID            string         `json:"id"`
	Kind          EntryKind      `json:"kind"`
	Content       string         `json:"content"`
	UserID        string         `json:"userId,omitempty"`
	CharacterName string         `json:"characterName,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// WorldState 描述会话共享的世界状态。
type WorldState struct {
	TimeOfDay           string `json:"timeOfDay"`
	Weather             string `json:"weather"`
	Location            string `json:"location"`
	LocationDescription string `json:"locationDescription,omitempty"`
}

var timeDescriptions = map[string]string{
	"dawn":  "黎明时分，天边泛起鱼肚白",
	"day":   "阳光明媚的白天",
	"dusk":  "黄昏降临，夕阳西下",
	"night": "夜幕降临，星光点点",
}

var weatherDescriptions = map[string]string{
	"sunny":  "天气晴朗",
	"cloudy": "乌云密布",
	"rainy":  "细雨绵绵",
	"stormy": "狂风暴雨",
	"snowy":  "大雪纷飞",
	"foggy":  "浓雾弥漫",
}

// Description 返回世界状态的文字描述，用于提示词与状态展示。
func (w WorldState) Description() string {
	desc := timeDescriptions[w.TimeOfDay]
	if wd := weatherDescriptions[w.Weather]; wd != "" {
		if desc != "" {
			desc += "，"
		}
		desc += wd
	}
	if desc != "" {
		desc += "。"
	}
	return desc + "当前位置：" + w.Location
}

// NPCState 记录一个 NPC 的当前状态。
type NPCState struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Location    string `json:"location,omitempty"`
	Attitude    string `json:"attitude"` // friendly / neutral / hostile
	Description string `json:"description,omitempty"`
}

const (
	maxKeyEvents = 20
)

// StoryContext 维持叙事连贯性所需的派生状态。
type StoryContext struct {
	TensionLevel     int      `json:"tensionLevel"`
	StorySummary     string   `json:"storySummary,omitempty"`
	KeyEvents        []string `json:"keyEvents,omitempty"`
	OpenThreads      []string `json:"openThreads,omitempty"`
	DiscoveredClues  []string `json:"discoveredClues,omitempty"`
	LastImageIndex   int      `json:"lastImageIndex"`
	LastSummaryIndex int      `json:"lastSummaryIndex"`
}

// AddKeyEvent 记录关键事件，只保留最近的若干条。
func (c *StoryContext) AddKeyEvent(event string) {
	c.KeyEvents = append(c.KeyEvents, event)
	if len(c.KeyEvents) > maxKeyEvents {
		c.KeyEvents = c.KeyEvents[len(c.KeyEvents)-maxKeyEvents:]
	}
}

// AddClue 记录新发现的线索，重复的忽略。
func (c *StoryContext) AddClue(clue string) {
	for _, existing := range c.DiscoveredClues {
		if existing == clue {
			return
		}
	}
	c.DiscoveredClues = append(c.DiscoveredClues, clue)
}

// AddOpenThread 记录未解决的谜题。
func (c *StoryContext) AddOpenThread(thread string) {
	for _, existing := range c.OpenThreads {
		if existing == thread {
			return
		}
	}
	c.OpenThreads = append(c.OpenThreads, thread)
}

// ResolveThread 将谜题标记为已解决。
func (c *StoryContext) ResolveThread(thread string) {
	for i, existing := range c.OpenThreads {
		if existing == thread {
			c.OpenThreads = append(c.OpenThreads[:i], c.OpenThreads[i+1:]...)
			return
		}
	}
}

// Session 是一个聊天群组绑定的跑团会话。
type Session struct {
	ID        string              `json:"id"`
	Status    Status              `json:"status"`
	WorldName string              `json:"worldName"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
	World     WorldState          `json:"world"`
	History   []HistoryEntry      `json:"history"`
	NPCs      map[string]NPCState `json:"npcs,omitempty"`
	Lore      []string            `json:"lore,omitempty"`
	PlayerIDs []string            `json:"playerIds,omitempty"`
	Story     StoryContext        `json:"story"`
}

// NewSession 创建一个新的活跃会话。
func NewSession(id, worldName string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Status:    StatusActive,
		WorldName: worldName,
		CreatedAt: now,
		UpdatedAt: now,
		World: WorldState{
			TimeOfDay: "day",
			Weather:   "sunny",
			Location:  "未知地点",
		},
		NPCs:  make(map[string]NPCState),
		Story: StoryContext{TensionLevel: 3},
	}
}

// IsActive 判断会话是否进行中。
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// Clone 返回会话的深拷贝。存储层对外只交出拷贝，
// 避免多个协程同时改写同一份历史。
func (s *Session) Clone() *Session {
	clone := *s
	clone.History = append([]HistoryEntry(nil), s.History...)
	clone.Lore = append([]string(nil), s.Lore...)
	clone.PlayerIDs = append([]string(nil), s.PlayerIDs...)
	if s.NPCs != nil {
		clone.NPCs = make(map[string]NPCState, len(s.NPCs))
		for name, npc := range s.NPCs {
			clone.NPCs[name] = npc
		}
	}
	clone.Story.KeyEvents = append([]string(nil), s.Story.KeyEvents...)
	clone.Story.OpenThreads = append([]string(nil), s.Story.OpenThreads...)
	clone.Story.DiscoveredClues = append([]string(nil), s.Story.DiscoveredClues...)
	return &clone
}

// AddHistory 追加一条历史记录。历史是只追加的，除 TrimHistory 外不得修改。
func (s *Session) AddHistory(kind EntryKind, content, userID, characterName string) {
	s.History = append(s.History, HistoryEntry{
		ID:            uuid.NewString(),
		Kind:          kind,
		Content:       content,
		UserID:        userID,
		CharacterName: characterName,
		Timestamp:     time.Now().UTC(),
	})
	s.UpdatedAt = time.Now().UTC()
}

// RecentHistory 返回最近的 count 条历史记录。
func (s *Session) RecentHistory(count int) []HistoryEntry {
	if count <= 0 || len(s.History) == 0 {
		return nil
	}
	if len(s.History) <= count {
		return s.History
	}
	return s.History[len(s.History)-count:]
}

// TrimHistory 从头部修剪历史到 maxLength 条，并同步下移两个书签索引，
// 使其仍然是合法偏移。返回实际删除的条目数。
func (s *Session) TrimHistory(maxLength int) int {
	if maxLength <= 0 || len(s.History) <= maxLength {
		return 0
	}

	removed := len(s.History) - maxLength
	s.History = append([]HistoryEntry(nil), s.History[removed:]...)

	s.Story.LastImageIndex = max(0, s.Story.LastImageIndex-removed)
	s.Story.LastSummaryIndex = max(0, s.Story.LastSummaryIndex-removed)

	s.UpdatedAt = time.Now().UTC()
	return removed
}

// AddPlayer 将玩家加入会话名单。
func (s *Session) AddPlayer(userID string) {
	for _, id := range s.PlayerIDs {
		if id == userID {
			return
		}
	}
	s.PlayerIDs = append(s.PlayerIDs, userID)
	s.UpdatedAt = time.Now().UTC()
}

// RemovePlayer 将玩家移出会话名单。
func (s *Session) RemovePlayer(userID string) {
	for i, id := range s.PlayerIDs {
		if id == userID {
			s.PlayerIDs = append(s.PlayerIDs[:i], s.PlayerIDs[i+1:]...)
			s.UpdatedAt = time.Now().UTC()
			return
		}
	}
}

// HasPlayer 判断玩家是否已加入。
func (s *Session) HasPlayer(userID string) bool {
	for _, id := range s.PlayerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddNPC 登记一个 NPC，同名覆盖。
func (s *Session) AddNPC(npc NPCState) {
	if npc.Status == "" {
		npc.Status = "normal"
	}
	if npc.Attitude == "" {
		npc.Attitude = "neutral"
	}
	if s.NPCs == nil {
		s.NPCs = make(map[string]NPCState)
	}
	s.NPCs[npc.Name] = npc
	s.UpdatedAt = time.Now().UTC()
}
