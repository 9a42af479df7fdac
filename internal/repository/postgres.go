package repository

import (
	"context"
	"errors"
	"time"

	"github.com/immxrtalbeast/chat_gateway/internal/domain"
	"github.com/immxrtalbeast/chat_gateway/internal/repository/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageStore struct {
	db *gorm.DB
}

func NewPostgresMessageStore(db *gorm.DB) *PostgresMessageStore {
	return &PostgresMessageStore{db: db}
}

// Migrate creates or updates the chat tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Room{}, &model.Message{}, &model.ChatSession{})
}

func (s *PostgresMessageStore) GetOrCreateRoom(ctx context.Context, name string, defaults domain.RoomDefaults) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("room name is required")
	}

	candidate := model.Room{
		Name:       name,
		BuyerID:    defaults.BuyerID,
		BuyerName:  nullableString(defaults.BuyerName),
		BuyerEmail: nullableString(defaults.BuyerEmail),
		CreatedAt:  time.Now().UTC(),
		IsActive:   true,
	}

	// Concurrent first joins race on the unique name; the loser reads the winner's row.
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&candidate).Error
	if err != nil {
		return nil, err
	}

	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return toDomainRoom(&room), nil
}

func (s *PostgresMessageStore) GetRoomByName(ctx context.Context, name string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := s.db.WithContext(ctx).First(&room, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return toDomainRoom(&room), nil
}

func (s *PostgresMessageStore) CreateMessage(ctx context.Context, room *domain.Room, ident domain.Identity, text string, productID *int64) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errors.New("room is nil")
	}

	msg := toModelMessage(domain.NewMessage(room, ident, text, productID))
	if err := s.db.WithContext(ctx).Omit("Room").Create(msg).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return toDomainMessage(msg), nil
}

func (s *PostgresMessageStore) ListMessages(ctx context.Context, roomID int64, limit, offset int) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainMessage(&rows[i]))
	}
	return result, nil
}

func (s *PostgresMessageStore) TagProduct(ctx context.Context, messageID int64, productID int64) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msg model.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Message{}).Where("id = ?", messageID).Update("product_id", productID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrMessageNotFound
		}
		return tx.First(&msg, "id = ?", messageID).Error
	})
	if err != nil {
		return nil, err
	}
	return toDomainMessage(&msg), nil
}

func (s *PostgresMessageStore) OpenOrRefreshSession(ctx context.Context, room *domain.Room, ident domain.Identity) (*domain.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errors.New("room is nil")
	}

	now := time.Now().UTC()
	var sess model.ChatSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ? AND user_id = ? AND ended_at IS NULL", room.ID, ident.UserID).
			First(&sess).Error
		if err == nil {
			sess.StartedAt = now
			sess.UserName = ident.DisplayName
			sess.UserEmail = ident.Email
			sess.UserRole = string(ident.Role)
			return tx.Model(&sess).Updates(map[string]any{
				"started_at": now,
				"user_name":  ident.DisplayName,
				"user_email": ident.Email,
				"user_role":  string(ident.Role),
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		sess = model.ChatSession{
			RoomID:    room.ID,
			UserID:    ident.UserID,
			UserName:  ident.DisplayName,
			UserEmail: ident.Email,
			UserRole:  string(ident.Role),
			StartedAt: now,
		}
		return tx.Omit("Room").Create(&sess).Error
	})
	if err != nil {
		// The partial unique index rejected a concurrent insert; reuse the row that won.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.db.WithContext(ctx).
				Where("room_id = ? AND user_id = ? AND ended_at IS NULL", room.ID, ident.UserID).
				First(&sess).Error; err != nil {
				return nil, err
			}
			return toDomainSession(&sess), nil
		}
		return nil, err
	}
	return toDomainSession(&sess), nil
}

func (s *PostgresMessageStore) CloseSession(ctx context.Context, sessionID int64, endedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("id = ?", sessionID).
		Update("ended_at", endedAt.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresMessageStore) MarkRead(ctx context.Context, room *domain.Room, readerRole domain.Role) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if room == nil {
		return 0, errors.New("room is nil")
	}

	res := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("room_id = ? AND sender_type = ? AND is_read = ?", room.ID, string(domain.UnreadKindFor(readerRole)), false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func toDomainRoom(room *model.Room) *domain.Room {
	return &domain.Room{
		ID:         room.ID,
		Name:       room.Name,
		BuyerID:    room.BuyerID,
		BuyerName:  derefString(room.BuyerName),
		BuyerEmail: derefString(room.BuyerEmail),
		CreatedAt:  room.CreatedAt.UTC(),
		IsActive:   room.IsActive,
	}
}

func toModelMessage(msg *domain.Message) *model.Message {
	return &model.Message{
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		UserID:     msg.UserID,
		UserName:   msg.UserName,
		UserEmail:  msg.UserEmail,
		Message:    msg.Text,
		SenderType: string(msg.SenderKind),
		ProductID:  msg.TaggedProductID,
		CreatedAt:  msg.CreatedAt.UTC(),
		IsRead:     msg.IsRead,
	}
}

func toDomainMessage(msg *model.Message) *domain.Message {
	return &domain.Message{
		ID:              msg.ID,
		RoomID:          msg.RoomID,
		UserID:          msg.UserID,
		UserName:        msg.UserName,
		UserEmail:       msg.UserEmail,
		Text:            msg.Message,
		SenderKind:      domain.SenderKind(msg.SenderType),
		TaggedProductID: msg.ProductID,
		CreatedAt:       msg.CreatedAt.UTC(),
		IsRead:          msg.IsRead,
	}
}

func toDomainSession(sess *model.ChatSession) *domain.ChatSession {
	var endedAt *time.Time
	if sess.EndedAt != nil {
		t := sess.EndedAt.UTC()
		endedAt = &t
	}
	return &domain.ChatSession{
		ID:        sess.ID,
		RoomID:    sess.RoomID,
		UserID:    sess.UserID,
		UserName:  sess.UserName,
		UserEmail: sess.UserEmail,
		UserRole:  domain.Role(sess.UserRole),
		StartedAt: sess.StartedAt.UTC(),
		EndedAt:   endedAt,
	}
}
