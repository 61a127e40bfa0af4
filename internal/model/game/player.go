package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 玩家角色默认值，与配置层保持一致。
const (
	DefaultFreePoints    = 30
	DefaultBaseAttribute = 8
	DefaultMaxAttribute  = 18
	DefaultMinAttribute  = 3
	DefaultMaxHP         = 20
	DefaultMaxMP         = 10
)

var (
	ErrCharacterLocked   = errors.New("character is locked")
	ErrCharacterUnlocked = errors.New("character is not locked")
	ErrUnknownAttribute  = errors.New("unknown attribute")
)

// Attributes 是六项基础属性。
type Attributes struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// attributeAliases 把简写和中文别名映射到规范属性名。
var attributeAliases = map[string]string{
	"str": "strength", "力量": "strength",
	"dex": "dexterity", "敏捷": "dexterity",
	"con": "constitution", "体质": "constitution",
	"int": "intelligence", "智力": "intelligence",
	"wis": "wisdom", "感知": "wisdom",
	"cha": "charisma", "魅力": "charisma",
	"strength": "strength", "dexterity": "dexterity",
	"constitution": "constitution", "intelligence": "intelligence",
	"wisdom": "wisdom", "charisma": "charisma",
}

// CanonicalAttribute 将属性别名规范化，未知属性返回 false。
func CanonicalAttribute(name string) (string, bool) {
	canonical, ok := attributeAliases[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// Get 按规范属性名读取属性值。
func (a Attributes) Get(name string) int {
	switch name {
	case "strength":
		return a.Strength
	case "dexterity":
		return a.Dexterity
	case "constitution":
		return a.Constitution
	case "intelligence":
		return a.Intelligence
	case "wisdom":
		return a.Wisdom
	case "charisma":
		return a.Charisma
	}
	return 0
}

// Set 按规范属性名写入属性值。
func (a *Attributes) Set(name string, value int) {
	switch name {
	case "strength":
		a.Strength = value
	case "dexterity":
		a.Dexterity = value
	case "constitution":
		a.Constitution = value
	case "intelligence":
		a.Intelligence = value
	case "wisdom":
		a.Wisdom = value
	case "charisma":
		a.Charisma = value
	}
}

// Modifier 返回 D&D 风格的属性调整值。
func (a Attributes) Modifier(name string) int {
	v := a.Get(name)
	if v >= 10 {
		return (v - 10) / 2
	}
	// 向下取整，负数除法在 Go 里向零取整
	return -((11 - v) / 2)
}

// NewAttributes 以同一基础值初始化全部六项属性。
func NewAttributes(base int) Attributes {
	return Attributes{
		Strength:     base,
		Dexterity:    base,
		Constitution: base,
		Intelligence: base,
		Wisdom:       base,
		Charisma:     base,
	}
}

// Item 是背包中的一叠同名物品。
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Player 是 (会话, 用户) 唯一的角色状态。
type Player struct {
	UserID        string     `json:"userId"`
	SessionID     string     `json:"sessionId"`
	CharacterName string     `json:"characterName"`
	Attributes    Attributes `json:"attributes"`
	HPCurrent     int        `json:"hpCurrent"`
	HPMax         int        `json:"hpMax"`
	MPCurrent     int        `json:"mpCurrent"`
	MPMax         int        `json:"mpMax"`
	Inventory     []Item     `json:"inventory,omitempty"`
	Skills        []string   `json:"skills,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// 加点子账本
	FreePoints int            `json:"freePoints"`
	Allocated  map[string]int `json:"allocated,omitempty"`
	Locked     bool           `json:"locked"`
}

// NewPlayer 创建一个使用默认数值的新角色。
func NewPlayer(sessionID, userID, characterName string) *Player {
	if characterName == "" {
		characterName = "无名冒险者"
	}
	now := time.Now().UTC()
	return &Player{
		UserID:        userID,
		SessionID:     sessionID,
		CharacterName: characterName,
		Attributes:    NewAttributes(DefaultBaseAttribute),
		HPCurrent:     DefaultMaxHP,
		HPMax:         DefaultMaxHP,
		MPCurrent:     DefaultMaxMP,
		MPMax:         DefaultMaxMP,
		CreatedAt:     now,
		UpdatedAt:     now,
		FreePoints:    DefaultFreePoints,
		Allocated:     make(map[string]int),
	}
}

// Clone 返回角色的深拷贝，存储层对外只交出拷贝。
func (p *Player) Clone() *Player {
	clone := *p
	clone.Inventory = append([]Item(nil), p.Inventory...)
	clone.Skills = append([]string(nil), p.Skills...)
	if p.Allocated != nil {
		clone.Allocated = make(map[string]int, len(p.Allocated))
		for attr, points := range p.Allocated {
			clone.Allocated[attr] = points
		}
	}
	return &clone
}

// ModifyHP 增减生命值并钳制在 [0, max]，返回修改前后的值。
func (p *Player) ModifyHP(delta int) (old, current int) {
	old = p.HPCurrent
	p.HPCurrent = clamp(p.HPCurrent+delta, 0, p.HPMax)
	p.UpdatedAt = time.Now().UTC()
	return old, p.HPCurrent
}

// ModifyMP 增减魔力值并钳制在 [0, max]，返回修改前后的值。
func (p *Player) ModifyMP(delta int) (old, current int) {
	old = p.MPCurrent
	p.MPCurrent = clamp(p.MPCurrent+delta, 0, p.MPMax)
	p.UpdatedAt = time.Now().UTC()
	return old, p.MPCurrent
}

// IsAlive 判断角色是否存活。
func (p *Player) IsAlive() bool {
	return p.HPCurrent > 0
}

// AddItem 按名称堆叠地把物品加入背包。
func (p *Player) AddItem(name string, quantity int) {
	if quantity <= 0 {
		return
	}
	for i := range p.Inventory {
		if p.Inventory[i].Name == name {
			p.Inventory[i].Quantity += quantity
			p.UpdatedAt = time.Now().UTC()
			return
		}
	}
	p.Inventory = append(p.Inventory, Item{Name: name, Quantity: quantity})
	p.UpdatedAt = time.Now().UTC()
}

// RemoveItem 从背包移除物品。数量不足或物品不存在时不做任何修改并返回 false。
func (p *Player) RemoveItem(name string, quantity int) bool {
	if quantity <= 0 {
		return false
	}
	for i := range p.Inventory {
		if p.Inventory[i].Name != name {
			continue
		}
		if p.Inventory[i].Quantity < quantity {
			return false
		}
		if p.Inventory[i].Quantity == quantity {
			p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
		} else {
			p.Inventory[i].Quantity -= quantity
		}
		p.UpdatedAt = time.Now().UTC()
		return true
	}
	return false
}

// ItemCount 返回背包中指定物品的数量。
func (p *Player) ItemCount(name string) int {
	for _, item := range p.Inventory {
		if item.Name == name {
			return item.Quantity
		}
	}
	return 0
}

// AllocatePoints 在 [min, max] 范围内给属性加减点。
// 任一检查失败时不产生任何副作用。
func (p *Player) AllocatePoints(attribute string, points, minAttr, maxAttr int) error {
	if p.Locked {
		return ErrCharacterLocked
	}

	canonical, ok := CanonicalAttribute(attribute)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAttribute, attribute)
	}

	if points > 0 && points > p.FreePoints {
		return fmt.Errorf("点数不足：剩余 %d 点，需要 %d 点", p.FreePoints, points)
	}

	current := p.Attributes.Get(canonical)
	next := current + points
	if next > maxAttr {
		return fmt.Errorf("属性不能超过 %d：当前 %d", maxAttr, current)
	}
	if next < minAttr {
		return fmt.Errorf("属性不能低于 %d：当前 %d", minAttr, current)
	}

	if points < 0 && p.Allocated[canonical]+points < 0 {
		return fmt.Errorf("无法减点：该属性只分配了 %d 点", p.Allocated[canonical])
	}

	p.Attributes.Set(canonical, next)
	p.FreePoints -= points
	if p.Allocated == nil {
		p.Allocated = make(map[string]int)
	}
	p.Allocated[canonical] += points
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Lock 锁定角色，之后拒绝任何加点。
func (p *Player) Lock() error {
	if p.Locked {
		return ErrCharacterLocked
	}
	p.Locked = true
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Unlock 解锁角色（管理操作）。
func (p *Player) Unlock() error {
	if !p.Locked {
		return ErrCharacterUnlocked
	}
	p.Locked = false
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetPoints 撤销全部加点，属性恢复到分配前的值并返还点数。
func (p *Player) ResetPoints() (refunded int, err error) {
	if p.Locked {
		return 0, ErrCharacterLocked
	}
	for attr, points := range p.Allocated {
		p.Attributes.Set(attr, p.Attributes.Get(attr)-points)
		refunded += points
	}
	p.FreePoints += refunded
	p.Allocated = make(map[string]int)
	p.UpdatedAt = time.Now().UTC()
	return refunded, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
