package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yaori/paotuan/backend/internal/model/game"
)

// RedisStore 把会话和玩家以 JSON 形式存进 Redis。
// 键布局：trpg:session:<id>、trpg:player:<sessionID>:<userID>。
type RedisStore struct {
	client     *redis.Client
	maxHistory int
}

// NewRedisStore 连接 Redis 并做一次探活。
func NewRedisStore(ctx context.Context, addr, password string, db, maxHistory int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, maxHistory: maxHistory}, nil
}

func sessionKey(id string) string {
	return "trpg:session:" + id
}

func playerKey(sessionID, userID string) string {
	return "trpg:player:" + sessionID + ":" + userID
}

// GetSession 返回活跃或暂停中的会话；已结束的视为不存在。
func (s *RedisStore) GetSession(ctx context.Context, id string) (*game.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var session game.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.Status == game.StatusEnded {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// SaveSession 持久化会话，保存前按配置修剪历史。
func (s *RedisStore) SaveSession(ctx context.Context, session *game.Session) error {
	if s.maxHistory > 0 {
		session.TrimHistory(s.maxHistory)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// CreateSession 创建并写入一个新会话。
func (s *RedisStore) CreateSession(ctx context.Context, id, worldName string) (*game.Session, error) {
	if existing, err := s.GetSession(ctx, id); err == nil && existing.IsActive() {
		return nil, ErrSessionExists
	}
	session := game.NewSession(id, worldName)
	if err := s.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession 软删除：状态翻转为 ended 后写回。
func (s *RedisStore) EndSession(ctx context.Context, id string) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	session.Status = game.StatusEnded
	return s.SaveSession(ctx, session)
}

// GetPlayer 返回指定玩家。
func (s *RedisStore) GetPlayer(ctx context.Context, sessionID, userID string) (*game.Player, error) {
	data, err := s.client.Get(ctx, playerKey(sessionID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get player: %w", err)
	}
	var player game.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, fmt.Errorf("unmarshal player: %w", err)
	}
	return &player, nil
}

// SavePlayer 持久化玩家。
func (s *RedisStore) SavePlayer(ctx context.Context, player *game.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	if err := s.client.Set(ctx, playerKey(player.SessionID, player.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set player: %w", err)
	}
	return nil
}

// CreatePlayer 创建角色并把玩家加入会话名单。
func (s *RedisStore) CreatePlayer(ctx context.Context, sessionID, userID, characterName string) (*game.Player, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	player := game.NewPlayer(sessionID, userID, characterName)
	if err := s.SavePlayer(ctx, player); err != nil {
		return nil, err
	}
	session.AddPlayer(userID)
	if err := s.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return player, nil
}

// DeletePlayer 删除角色并把玩家移出会话名单。
func (s *RedisStore) DeletePlayer(ctx context.Context, sessionID, userID string) error {
	removed, err := s.client.Del(ctx, playerKey(sessionID, userID)).Result()
	if err != nil {
		return fmt.Errorf("redis del player: %w", err)
	}
	if removed == 0 {
		return ErrPlayerNotFound
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	session.RemovePlayer(userID)
	return s.SaveSession(ctx, session)
}

// GetPlayersInSession 按会话名单逐个取出玩家，名单里没有存档的跳过。
func (s *RedisStore) GetPlayersInSession(ctx context.Context, sessionID string) ([]*game.Player, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	players := make([]*game.Player, 0, len(session.PlayerIDs))
	for _, userID := range session.PlayerIDs {
		player, err := s.GetPlayer(ctx, sessionID, userID)
		if errors.Is(err, ErrPlayerNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}
	return players, nil
}
