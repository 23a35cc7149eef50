package chat

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Conversation is a persisted troubleshooting session owned by one user.
type Conversation struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Title     string         `json:"title"`
	UserID    uint           `json:"user_id" gorm:"index"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	Turns     []Turn         `json:"-" gorm:"foreignKey:ConversationID"`
}

// Turn is one question and the agent's answer.
type Turn struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	ConversationID uint           `json:"conversation_id" gorm:"index"`
	Query          string         `json:"query" gorm:"type:text"`
	Response       string         `json:"response" gorm:"type:text"`
	Error          string         `json:"error,omitempty"`
	Reasoning      datatypes.JSON `json:"reasoning,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

func (c *Conversation) DisplayTitle() string {
	if c.Title == "" {
		return "Untitled conversation"
	}
	return c.Title
}

// TitleFrom derives a conversation title from its first question.
func TitleFrom(query string) string {
	r := []rune(query)
	if len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return string(r)
}

// BuildSlidingWindow keeps the latest turns that fit in 85% of a
// contextSize-token window, at 4 chars/token.
func BuildSlidingWindow(turns []Turn, contextSize int) []Turn {
	maxChars := int(float64(contextSize)*0.85) * 4
	var window []Turn
	totalChars := 0

	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		n := len(t.Query) + len(t.Response)
		if totalChars+n > maxChars {
			break
		}
		window = append([]Turn{t}, window...)
		totalChars += n
	}
	return window
}

// Migrate creates the conversation tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Conversation{}, &Turn{})
}

// ListConversations returns userID's conversations, newest first.
func ListConversations(db *gorm.DB, userID uint) ([]Conversation, error) {
	var convs []Conversation
	err := db.Where("user_id = ?", userID).Order("updated_at desc").Find(&convs).Error
	return convs, err
}

// GetConversation loads a conversation owned by userID.
func GetConversation(db *gorm.DB, userID, id uint) (*Conversation, error) {
	var c Conversation
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListTurns returns the turns of a conversation in order.
func ListTurns(db *gorm.DB, conversationID uint) ([]Turn, error) {
	var turns []Turn
	err := db.Where("conversation_id = ?", conversationID).Order("id asc").Find(&turns).Error
	return turns, err
}

// AddTurn stores t and bumps the conversation's UpdatedAt.
func AddTurn(db *gorm.DB, c *Conversation, t *Turn) error {
	return db.Transaction(func(tx *gorm.DB) error {
		t.ConversationID = c.ID
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		updates := map[string]any{"updated_at": time.Now()}
		if c.Title == "" {
			c.Title = TitleFrom(t.Query)
			updates["title"] = c.Title
		}
		return tx.Model(c).Updates(updates).Error
	})
}

// DeleteConversation soft-deletes a conversation and its turns.
func DeleteConversation(db *gorm.DB, c *Conversation) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", c.ID).Delete(&Turn{}).Error; err != nil {
			return err
		}
		return tx.Delete(c).Error
	})
}
