package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/yaori/paotuan/backend/internal/model/game"
	"github.com/yaori/paotuan/backend/internal/protocol"
	"github.com/yaori/paotuan/backend/internal/service/ai"
	"github.com/yaori/paotuan/backend/internal/storage"
)

// Messenger 把 DM 的输出推送给会话内的所有客户端。
type Messenger interface {
	SendText(sessionID, text string)
	SendImage(sessionID, imageBase64 string)
}

// ImageGenerator 为高潮场景生成插画，是可选依赖，失败只影响配图。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Config 是编排器的运行参数。
type Config struct {
	BatchEnabled     bool
	RoundWindow      time.Duration
	ReminderInterval time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	Temperature      float32
	MaxTokens        int
	ShowCheckHints   bool
	ImageEnabled     bool
}

// Orchestrator 驱动一条玩家消息走完完整的回合流程：
// 分类、收集、生成、解析标签、应用状态、推送结果。
// 每个会话至多持有一个未结算的收集器。
type Orchestrator struct {
	store      storage.Store
	generator  ai.Generator
	messenger  Messenger
	images     ImageGenerator
	applier    *Applier
	classifier *Classifier
	retry      RetryPolicy
	cfg        Config

	mu         sync.Mutex
	collectors map[string]*Collector
	locks      map[string]*sync.Mutex
}

// NewOrchestrator 组装编排器。images 可以为 nil，表示不配图。
func NewOrchestrator(store storage.Store, generator ai.Generator, messenger Messenger, images ImageGenerator, cfg Config) *Orchestrator {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return &Orchestrator{
		store:      store,
		generator:  generator,
		messenger:  messenger,
		images:     images,
		applier:    NewApplier(store),
		classifier: NewClassifier(),
		retry:      RetryPolicy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay},
		cfg:        cfg,
		collectors: make(map[string]*Collector),
		locks:      make(map[string]*sync.Mutex),
	}
}

// HandleMessage 处理一条进入会话的玩家消息。
// 非行动的闲聊只记入历史；行动消息在多人会话里进入回合收集，
// 否则直接触发一次叙事生成。
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, userID, text string) error {
	lock := o.sessionLock(sessionID)
	lock.Lock()

	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		lock.Unlock()
		return err
	}
	if !session.IsActive() {
		lock.Unlock()
		return fmt.Errorf("session %s is not active", sessionID)
	}

	player, err := o.store.GetPlayer(ctx, sessionID, userID)
	if err != nil && !errors.Is(err, storage.ErrPlayerNotFound) {
		lock.Unlock()
		return err
	}
	name := "旁观者"
	if player != nil {
		name = player.CharacterName
	}

	npcNames := make([]string, 0, len(session.NPCs))
	for npcName := range session.NPCs {
		npcNames = append(npcNames, npcName)
	}
	isAction := o.classifier.IsRoleplay(text) || o.classifier.IsAction(text, npcNames)

	session.AddHistory(game.EntryPlayer, text, userID, name)
	if err := o.store.SaveSession(ctx, session); err != nil {
		lock.Unlock()
		return err
	}
	// 回合结算可能在当前协程里重新拿锁，这里必须先放开
	lock.Unlock()
	if !isAction {
		return nil
	}

	if o.cfg.ShowCheckHints {
		if hint := CheckHint(text); hint != "" {
			o.messenger.SendText(sessionID, hint)
		}
	}

	if o.cfg.BatchEnabled && player != nil && len(session.PlayerIDs) >= 2 {
		o.submitToRound(sessionID, session.PlayerIDs, player, text)
		return nil
	}
	o.runSoloTurn(ctx, sessionID, player, text)
	return nil
}

// OpeningNarration 为会话生成开场白，推送并记入历史。
func (o *Orchestrator) OpeningNarration(ctx context.Context, sessionID string) error {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	raw, ok := o.generate(ctx, sessionID, ai.BuildIntroPrompt(session))
	if !ok {
		return fmt.Errorf("opening narration generation failed for %s", sessionID)
	}
	clean := protocol.Strip(raw)
	session.AddHistory(game.EntryDM, clean, "", "DM")
	if err := o.store.SaveSession(ctx, session); err != nil {
		return err
	}
	o.messenger.SendText(sessionID, clean)
	return nil
}

// submitToRound 把行动交给本会话的收集器，必要时开启新回合。
// 名单在回合开启时定格，回合中途入场的玩家只能等下一回合。
func (o *Orchestrator) submitToRound(sessionID string, roster []string, player *game.Player, action string) {
	c := o.collectorFor(sessionID, roster)
	res := c.Add(player.UserID, player.CharacterName, action)
	switch res.Status {
	case AddRoundClosing:
		// 上个回合正在结算，开新回合重新记入
		c = o.replaceCollector(sessionID, roster)
		res = c.Add(player.UserID, player.CharacterName, action)
	case AddNotInRoster:
		o.messenger.SendText(sessionID, fmt.Sprintf(
			"⏳ %s 在本回合开始后才入场，请等待下一回合", player.CharacterName))
		return
	}

	if res.FirstOfRound {
		o.messenger.SendText(sessionID, fmt.Sprintf(
			"🎭 新的回合开始，%d 名玩家请在 %d 秒内提交行动",
			res.Total, int(o.cfg.RoundWindow/time.Second)))
	}
	if res.AllReady {
		o.closeRound(sessionID, c)
	}
}

// sessionLock 返回会话专属的互斥锁。存储层交出的都是快照，
// 读取、修改、写回必须在这把锁内串行，否则并发回合会互相覆盖历史。
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}

// collectorFor 返回会话当前的收集器；不存在或已进入结算时换新。
func (o *Orchestrator) collectorFor(sessionID string, roster []string) *Collector {
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.collectors[sessionID]; ok && !existing.IsProcessing() {
		return existing
	}
	c := o.newCollector(sessionID, roster)
	o.collectors[sessionID] = c
	return c
}

func (o *Orchestrator) replaceCollector(sessionID string, roster []string) *Collector {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := o.newCollector(sessionID, roster)
	o.collectors[sessionID] = c
	return c
}

// newCollector 构建一个绑定到会话的收集器，超时和提醒回调都指向编排器。
func (o *Orchestrator) newCollector(sessionID string, roster []string) *Collector {
	var c *Collector
	c = NewCollector(roster, o.cfg.RoundWindow, o.cfg.ReminderInterval, RoundCallbacks{
		OnTimeout: func() { o.closeRound(sessionID, c) },
		OnRemind: func(missing []string) {
			o.messenger.SendText(sessionID,
				"⏰ 仍在等待这些玩家行动："+o.displayNames(sessionID, missing))
		},
	})
	return c
}

// closeRound 结算一个回合。Drain 保证全员就绪和超时两条路径只有一条生效。
func (o *Orchestrator) closeRound(sessionID string, c *Collector) {
	batch, missing, ok := c.Drain()
	if !ok {
		return
	}

	o.mu.Lock()
	if o.collectors[sessionID] == c {
		delete(o.collectors, sessionID)
	}
	o.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if len(missing) > 0 {
		o.messenger.SendText(sessionID,
			"⏰ 回合结束，以下玩家本回合未行动："+o.displayNames(sessionID, missing))
	}
	o.runBatchTurn(context.Background(), sessionID, batch)
}

func (o *Orchestrator) runBatchTurn(ctx context.Context, sessionID string, batch []PlayerAction) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("[engine] batch turn: load session %s: %v", sessionID, err)
		return
	}

	actions := make([]ai.ActorAction, 0, len(batch))
	actorIDs := make([]string, 0, len(batch))
	for _, pa := range batch {
		actions = append(actions, ai.ActorAction{CharacterName: pa.CharacterName, Action: pa.Action})
		actorIDs = append(actorIDs, pa.UserID)
	}

	raw, ok := o.generate(ctx, sessionID, ai.BuildBatchPrompt(session, actions))
	if !ok {
		return
	}
	o.finishTurn(ctx, session, raw, actorIDs)
}

func (o *Orchestrator) runSoloTurn(ctx context.Context, sessionID string, player *game.Player, action string) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("[engine] solo turn: load session %s: %v", sessionID, err)
		return
	}

	raw, ok := o.generate(ctx, sessionID, ai.BuildNarrativePrompt(session, player, action, ""))
	if !ok {
		return
	}
	var actorIDs []string
	if player != nil {
		actorIDs = []string{player.UserID}
	}
	o.finishTurn(ctx, session, raw, actorIDs)
}

// finishTurn 是生成成功后的共同收尾：解析标签、应用变更、
// 更新紧张度与摘要、持久化并推送。
func (o *Orchestrator) finishTurn(ctx context.Context, session *game.Session, raw string, actorIDs []string) {
	clean := protocol.Strip(raw)

	var summaryParts []string
	for _, userID := range actorIDs {
		cs := protocol.Parse(raw, userID)
		if part := o.applier.Apply(ctx, cs, session); part != "" {
			summaryParts = append(summaryParts, part)
		}
	}

	session.AddHistory(game.EntryDM, clean, "", "DM")
	UpdateTension(session, clean)
	if ShouldSummarize(session) {
		o.refreshSummary(ctx, session)
	}
	if err := o.store.SaveSession(ctx, session); err != nil {
		log.Printf("[engine] save session %s: %v", session.ID, err)
	}

	o.messenger.SendText(session.ID, clean)
	if len(summaryParts) > 0 {
		o.messenger.SendText(session.ID, "📊 状态变化\n"+strings.Join(summaryParts, "\n"))
	}
	o.maybeIllustrate(ctx, session, clean)
}

// refreshSummary 重新生成剧情摘要。摘要失败不阻塞回合，只记日志。
func (o *Orchestrator) refreshSummary(ctx context.Context, session *game.Session) {
	start := session.Story.LastSummaryIndex
	if start < 0 || start > len(session.History) {
		start = 0
	}
	entries := session.History[start:]

	text, err := o.generator.Generate(ctx, ai.BuildSummaryPrompt(session, entries), o.cfg.Temperature, o.cfg.MaxTokens)
	if err != nil {
		log.Printf("[engine] summary generation for %s: %v", session.ID, err)
		return
	}
	session.Story.StorySummary = strings.TrimSpace(text)
	session.Story.LastSummaryIndex = len(session.History)
	log.Printf("[engine] story summary refreshed for %s", session.ID)
}

// maybeIllustrate 在判定为高潮场景时生成插画并推送，任何失败都只记日志。
func (o *Orchestrator) maybeIllustrate(ctx context.Context, session *game.Session, clean string) {
	if !o.cfg.ImageEnabled || o.images == nil {
		return
	}
	if !IsClimax(session, clean) {
		return
	}

	scene := clean
	if runes := []rune(scene); len(runes) > 100 {
		scene = string(runes[:100])
	}
	image, err := o.images.GenerateImage(ctx, ai.BuildImagePrompt(session, scene))
	if err != nil {
		log.Printf("[engine] climax illustration for %s: %v", session.ID, err)
		return
	}

	session.Story.LastImageIndex = len(session.History)
	if err := o.store.SaveSession(ctx, session); err != nil {
		log.Printf("[engine] save session %s after illustration: %v", session.ID, err)
	}
	o.messenger.SendImage(session.ID, image)
}

// generate 带重试地调用生成器，最终失败时给会话推送一条兜底提示。
func (o *Orchestrator) generate(ctx context.Context, sessionID, prompt string) (string, bool) {
	raw, err := o.retry.Do(ctx, func(ctx context.Context) (string, error) {
		return o.generator.Generate(ctx, prompt, o.cfg.Temperature, o.cfg.MaxTokens)
	})
	if err != nil {
		log.Printf("[engine] narrative generation for %s: %v", sessionID, err)
		o.messenger.SendText(sessionID, "🎲 DM 陷入了沉思，请稍后再试")
		return "", false
	}
	return raw, true
}

func (o *Orchestrator) displayNames(sessionID string, userIDs []string) string {
	names := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		player, err := o.store.GetPlayer(context.Background(), sessionID, id)
		if err != nil {
			names = append(names, id)
			continue
		}
		names = append(names, player.CharacterName)
	}
	return strings.Join(names, "、")
}
