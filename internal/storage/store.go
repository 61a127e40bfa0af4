package storage

import (
	"context"
	"errors"

	"github.com/yaori/paotuan/backend/internal/model/game"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrSessionExists   = errors.New("session already exists")
)

// Store 抽象会话与玩家的持久化。实现必须保证同一会话内
// 单次读-改-写的原子性由调用方负责，跨会话互不影响。
type Store interface {
	GetSession(ctx context.Context, id string) (*game.Session, error)
	SaveSession(ctx context.Context, session *game.Session) error
	CreateSession(ctx context.Context, id, worldName string) (*game.Session, error)
	// EndSession 把会话标记为已结束（软删除）并持久化。
	EndSession(ctx context.Context, id string) error

	GetPlayer(ctx context.Context, sessionID, userID string) (*game.Player, error)
	SavePlayer(ctx context.Context, player *game.Player) error
	CreatePlayer(ctx context.Context, sessionID, userID, characterName string) (*game.Player, error)
	DeletePlayer(ctx context.Context, sessionID, userID string) error
	GetPlayersInSession(ctx context.Context, sessionID string) ([]*game.Player, error)
}
