package engine

import (
	"sync"
	"time"
)

// PlayerAction 是一名玩家在本回合提交的行动。
type PlayerAction struct {
	UserID        string
	CharacterName string
	Action        string
	SubmittedAt   time.Time
}

// AddStatus 描述一次提交被收集器如何处理。
type AddStatus int

const (
	// AddAccepted 行动被记录为新条目。
	AddAccepted AddStatus = iota
	// AddUpdated 同一玩家重复提交，覆盖旧行动但不改变计数。
	AddUpdated
	// AddRoundClosing 回合已进入结算，提交应转入新回合。
	AddRoundClosing
	// AddNotInRoster 玩家不在本回合定格的名单里。
	AddNotInRoster
)

// AddResult 是 Add 的返回值。AllReady 恰好在不同提交者数量
// 达到名单总数的那一次提交上为 true。
type AddResult struct {
	Status       AddStatus
	AllReady     bool
	FirstOfRound bool
	ActedCount   int
	Total        int
}

// RoundCallbacks 由编排器提供，在收集器自己的计时器里触发。
// 两个回调都可能在收集器内部锁之外被调用。
type RoundCallbacks struct {
	OnTimeout func()
	OnRemind  func(missing []string)
}

// Collector 收集一个回合内所有在场玩家的行动。
// 第一条行动到达时启动窗口计时和提醒循环，Drain 是唯一的关闭路径：
// 无论因全员就绪还是超时而结算，计时器和提醒循环都会被取消。
type Collector struct {
	window   time.Duration
	reminder time.Duration
	cb       RoundCallbacks

	mu         sync.Mutex
	expected   []string
	actions    map[string]*PlayerAction
	order      []string
	firstAt    time.Time
	processing bool

	timeout      *time.Timer
	reminderStop chan struct{}
}

// NewCollector 为一个回合创建收集器，名单在此刻定格。
// 计时器在第一条行动到达时才启动。
func NewCollector(expected []string, window, reminder time.Duration, cb RoundCallbacks) *Collector {
	roster := make([]string, len(expected))
	copy(roster, expected)
	return &Collector{
		window:   window,
		reminder: reminder,
		cb:       cb,
		expected: roster,
		actions:  make(map[string]*PlayerAction, len(roster)),
	}
}

// Add 记录一名玩家的行动。重复提交覆盖旧行动但不占新名额。
// 拒绝时区分两种原因：回合已进入结算，或玩家不在名单里。
func (c *Collector) Add(userID, characterName, action string) AddResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := AddResult{Total: len(c.expected), ActedCount: len(c.actions)}
	if c.processing {
		result.Status = AddRoundClosing
		return result
	}
	if !c.isExpected(userID) {
		result.Status = AddNotInRoster
		return result
	}

	now := time.Now()
	if existing, ok := c.actions[userID]; ok {
		existing.Action = action
		existing.SubmittedAt = now
		result.Status = AddUpdated
	} else {
		if len(c.actions) == 0 {
			c.firstAt = now
			c.startTimersLocked()
			result.FirstOfRound = true
		}
		c.actions[userID] = &PlayerAction{
			UserID:        userID,
			CharacterName: characterName,
			Action:        action,
			SubmittedAt:   now,
		}
		c.order = append(c.order, userID)
		result.Status = AddAccepted
	}

	result.ActedCount = len(c.actions)
	result.AllReady = len(c.actions) == len(c.expected)
	return result
}

// Missing 返回尚未提交行动的玩家；结算已开始时返回 nil。
func (c *Collector) Missing() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return nil
	}
	return c.missingLocked()
}

// IsProcessing 报告结算是否已经开始。
func (c *Collector) IsProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Drain 关闭收集窗口，返回按提交顺序排列的行动和未提交的玩家。
// 只有第一个调用者拿到 ok=true，之后的行动提交一律被拒绝。
func (c *Collector) Drain() (batch []PlayerAction, missing []string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing {
		return nil, nil, false
	}
	c.processing = true

	if c.timeout != nil {
		c.timeout.Stop()
	}
	if c.reminderStop != nil {
		close(c.reminderStop)
		c.reminderStop = nil
	}

	batch = make([]PlayerAction, 0, len(c.order))
	for _, userID := range c.order {
		batch = append(batch, *c.actions[userID])
	}
	return batch, c.missingLocked(), true
}

func (c *Collector) isExpected(userID string) bool {
	for _, id := range c.expected {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Collector) missingLocked() []string {
	var missing []string
	for _, id := range c.expected {
		if _, ok := c.actions[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// startTimersLocked 启动窗口超时和提醒循环，调用方必须持有 c.mu。
func (c *Collector) startTimersLocked() {
	if c.window > 0 && c.cb.OnTimeout != nil {
		c.timeout = time.AfterFunc(c.window, c.cb.OnTimeout)
	}
	if c.reminder > 0 && c.cb.OnRemind != nil {
		stop := make(chan struct{})
		c.reminderStop = stop
		go c.remindLoop(stop)
	}
}

func (c *Collector) remindLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.reminder)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			missing := c.Missing()
			if len(missing) == 0 {
				return
			}
			c.cb.OnRemind(missing)
		}
	}
}
