package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/scriptflow/tokenizer"
	"github.com/BaSui01/scriptflow/types"
)

// messageRecord is the persisted message row.
type messageRecord struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID string `gorm:"index;size:64"`
	Role           string `gorm:"size:16"`
	Content        string
	Tokens         int
	CreatedAt      time.Time
}

func (messageRecord) TableName() string { return "conversation_messages" }

// GormStore keeps conversation history in a relational database. The
// shipped driver is the pure-Go sqlite build, good enough for a
// single-node durable history.
type GormStore struct {
	db  *gorm.DB
	tok tokenizer.Tokenizer
}

// NewSQLiteStore opens (or creates) a sqlite-backed store at path. Use
// ":memory:" for an ephemeral database.
func NewSQLiteStore(path string, tok tokenizer.Tokenizer) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return NewGormStore(db, tok)
}

// NewGormStore wraps an existing gorm handle and migrates the schema.
func NewGormStore(db *gorm.DB, tok tokenizer.Tokenizer) (*GormStore, error) {
	if tok == nil {
		tok = tokenizer.NewEstimate()
	}
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate conversation schema: %w", err)
	}
	return &GormStore{db: db, tok: tok}, nil
}

// Get returns the full ordered history.
func (s *GormStore) Get(ctx context.Context, conversationID string) ([]types.Message, error) {
	var records []messageRecord
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("read conversation %s: %w", conversationID, err)
	}

	msgs := make([]types.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, types.Message{
			Role:      types.Role(r.Role),
			Content:   r.Content,
			Tokens:    r.Tokens,
			Timestamp: r.CreatedAt,
		})
	}
	return msgs, nil
}

// AddMessage appends one message.
func (s *GormStore) AddMessage(ctx context.Context, conversationID string, msg types.Message) error {
	record := messageRecord{
		ConversationID: conversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		Tokens:         msg.Tokens,
		CreatedAt:      msg.Timestamp,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("append to conversation %s: %w", conversationID, err)
	}
	return nil
}

// MessagesForContext returns the newest messages fitting the budget.
func (s *GormStore) MessagesForContext(ctx context.Context, conversationID string, maxTokens int) ([]types.Message, error) {
	msgs, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return trimToBudget(msgs, maxTokens, s.tok), nil
}

// Clear removes the conversation.
func (s *GormStore) Clear(ctx context.Context, conversationID string) error {
	return s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&messageRecord{}).Error
}
