package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yaori/paotuan/backend/internal/model/game"
)

// FileStore 把会话和玩家保存为 JSON 文件，并维护内存缓存。
// 目录布局：<dir>/sessions/<id>.json，<dir>/players/<sessionID>/<userID>.json。
type FileStore struct {
	dir        string
	maxHistory int

	mu       sync.Mutex
	sessions map[string]*game.Session
	players  map[string]map[string]*game.Player
}

// NewFileStore 打开（必要时创建）数据目录并加载所有未结束的会话。
// maxHistory 大于 0 时，每次保存会话前都会修剪历史。
func NewFileStore(dir string, maxHistory int) (*FileStore, error) {
	s := &FileStore{
		dir:        dir,
		maxHistory: maxHistory,
		sessions:   make(map[string]*game.Session),
		players:    make(map[string]map[string]*game.Player),
	}
	for _, sub := range []string{s.sessionsDir(), s.playersDir()} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) sessionsDir() string { return filepath.Join(s.dir, "sessions") }
func (s *FileStore) playersDir() string  { return filepath.Join(s.dir, "players") }

func (s *FileStore) loadAll() error {
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		return fmt.Errorf("read sessions dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.sessionsDir(), entry.Name()))
		if err != nil {
			log.Printf("[storage] 读取会话文件失败 %s: %v", entry.Name(), err)
			continue
		}
		var session game.Session
		if err := json.Unmarshal(data, &session); err != nil {
			log.Printf("[storage] 解析会话文件失败 %s: %v", entry.Name(), err)
			continue
		}
		if session.Status == game.StatusEnded {
			continue
		}
		s.sessions[session.ID] = &session
	}

	playerDirs, err := os.ReadDir(s.playersDir())
	if err != nil {
		return fmt.Errorf("read players dir: %w", err)
	}
	for _, dir := range playerDirs {
		if !dir.IsDir() {
			continue
		}
		sessionID := dir.Name()
		files, err := os.ReadDir(filepath.Join(s.playersDir(), sessionID))
		if err != nil {
			continue
		}
		for _, file := range files {
			if !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(s.playersDir(), sessionID, file.Name()))
			if err != nil {
				continue
			}
			var player game.Player
			if err := json.Unmarshal(data, &player); err != nil {
				log.Printf("[storage] 解析玩家文件失败 %s/%s: %v", sessionID, file.Name(), err)
				continue
			}
			if s.players[sessionID] == nil {
				s.players[sessionID] = make(map[string]*game.Player)
			}
			s.players[sessionID][player.UserID] = &player
		}
	}
	return nil
}

// GetSession 返回缓存中活跃会话的深拷贝。
// 调用方各自持有独立快照，写回必须经由 SaveSession。
func (s *FileStore) GetSession(_ context.Context, id string) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// SaveSession 持久化会话，保存前按配置修剪历史。
// 缓存里装入的是快照，调用方之后的改动不会泄漏进缓存。
func (s *FileStore) SaveSession(_ context.Context, session *game.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxHistory > 0 {
		session.TrimHistory(s.maxHistory)
	}
	snapshot := session.Clone()
	if err := s.writeSession(snapshot); err != nil {
		return err
	}
	s.sessions[snapshot.ID] = snapshot
	return nil
}

func (s *FileStore) writeSession(session *game.Session) error {
	if s.maxHistory > 0 {
		session.TrimHistory(s.maxHistory)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	path := filepath.Join(s.sessionsDir(), safeName(session.ID)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// CreateSession 创建并持久化一个新会话。
func (s *FileStore) CreateSession(_ context.Context, id, worldName string) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok && existing.IsActive() {
		return nil, ErrSessionExists
	}
	session := game.NewSession(id, worldName)
	if err := s.writeSession(session); err != nil {
		return nil, err
	}
	s.sessions[id] = session
	return session.Clone(), nil
}

// EndSession 软删除：状态翻转为 ended、落盘，并移出活跃缓存。
func (s *FileStore) EndSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Status = game.StatusEnded
	if err := s.writeSession(session); err != nil {
		return err
	}
	delete(s.sessions, id)
	delete(s.players, id)
	return nil
}

// GetPlayer 返回指定玩家的深拷贝。
func (s *FileStore) GetPlayer(_ context.Context, sessionID, userID string) (*game.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[sessionID][userID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return player.Clone(), nil
}

// SavePlayer 持久化玩家，缓存里装入快照。
func (s *FileStore) SavePlayer(_ context.Context, player *game.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writePlayer(player.Clone())
}

func (s *FileStore) writePlayer(player *game.Player) error {
	dir := filepath.Join(s.playersDir(), safeName(player.SessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create player dir: %w", err)
	}
	data, err := json.MarshalIndent(player, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	path := filepath.Join(dir, safeName(player.UserID)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write player file: %w", err)
	}
	if s.players[player.SessionID] == nil {
		s.players[player.SessionID] = make(map[string]*game.Player)
	}
	s.players[player.SessionID][player.UserID] = player
	return nil
}

// CreatePlayer 创建角色并把玩家加入会话名单。
func (s *FileStore) CreatePlayer(_ context.Context, sessionID, userID, characterName string) (*game.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	player := game.NewPlayer(sessionID, userID, characterName)
	if err := s.writePlayer(player); err != nil {
		return nil, err
	}
	session.AddPlayer(userID)
	if err := s.writeSession(session); err != nil {
		return nil, err
	}
	return player.Clone(), nil
}

// DeletePlayer 删除角色并把玩家移出会话名单。
func (s *FileStore) DeletePlayer(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[sessionID][userID]; !ok {
		return ErrPlayerNotFound
	}
	delete(s.players[sessionID], userID)

	path := filepath.Join(s.playersDir(), safeName(sessionID), safeName(userID)+".json")
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove player file: %w", err)
	}

	if session, ok := s.sessions[sessionID]; ok {
		session.RemovePlayer(userID)
		return s.writeSession(session)
	}
	return nil
}

// GetPlayersInSession 返回会话中的全部玩家。
func (s *FileStore) GetPlayersInSession(_ context.Context, sessionID string) ([]*game.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	players := make([]*game.Player, 0, len(s.players[sessionID]))
	for _, p := range s.players[sessionID] {
		players = append(players, p.Clone())
	}
	return players, nil
}

// safeName 把会话/用户 ID 中的路径分隔符替换掉，保证可以作为文件名。
func safeName(id string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return replacer.Replace(id)
}
