package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chatbird/chatbird-bridge/internal/domain"
	"github.com/chatbird/chatbird-bridge/internal/repository"
)

const myUserID = "64f0000000000000000000aa"

func main() {
	// Default to a dummy database in the current directory
	dbPath := "dummy_chatbird.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	fmt.Printf("Using database at: %s\n", dbPath)

	db, err := initDatabase(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Delete all messages but keep conversations
	ctx := context.Background()
	if err := db.WithContext(ctx).Exec("DELETE FROM messages").Error; err != nil {
		log.Fatalf("Failed to delete messages: %v", err)
	}
	fmt.Println("Deleted all messages from database")

	if err := seedDummyData(db); err != nil {
		log.Fatalf("Failed to seed dummy data: %v", err)
	}

	fmt.Println("Successfully regenerated messages for all conversations!")
	fmt.Printf("Database location: %s\n", dbPath)
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	err = db.AutoMigrate(
		&repository.MessageModel{},
		&repository.ConversationModel{},
		&repository.ParticipantModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func seedDummyData(db *gorm.DB) error {
	recipients := []struct {
		name string
		lang string
	}{
		{"Alice Johnson", "en"},
		{"Bob Smith", "en"},
		{"Maria Garcia", "es"},
		{"Noah Anderson", "en"},
		{"Yuki Tanaka", "ja"},
		{"Pierre Dubois", "fr"},
		{"Olivia White", "en"},
	}

	sampleTexts := []string{
		"Hey! How are you doing?",
		"Just checking in",
		"Can we meet tomorrow?",
		"Thanks for your help!",
		"See you later!",
		"That sounds great!",
		"Let me know when you're free",
		"Perfect! I'll be there",
		"Did you see the latest news?",
		"Have a great day!",
		"What time works for you?",
		"I'll send it over shortly",
		"Looking forward to it!",
		"Let's catch up soon",
		"Can you send me that file?",
		"Talk to you later!",
	}

	convRepo := repository.NewConversationRepository(db)
	partRepo := repository.NewParticipantRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	ctx := context.Background()
	now := time.Now()

	conversations := make([]*domain.Conversation, 0, len(recipients))

	existing, err := convRepo.GetAll(ctx, 100, 0)
	if err == nil && len(existing) > 0 {
		fmt.Printf("Found %d existing conversations, will regenerate messages for them\n", len(existing))
		conversations = existing
	} else {
		fmt.Println("No existing conversations found, creating new ones...")
		for _, r := range recipients {
			recipientID := uuid.NewString()
			conv := domain.NewConversation(uuid.NewString(), recipientID, r.name)
			if err := convRepo.Upsert(ctx, conv); err != nil {
				return fmt.Errorf("failed to create conversation %s: %w", conv.ID, err)
			}
			for _, p := range []*domain.Participant{
				{ID: myUserID, ConversationID: conv.ID, Name: "Me", PreferredLanguage: "en"},
				{ID: recipientID, ConversationID: conv.ID, Name: r.name, PreferredLanguage: r.lang},
			} {
				if err := partRepo.Upsert(ctx, p); err != nil {
					return fmt.Errorf("failed to create participant: %w", err)
				}
			}
			conversations = append(conversations, conv)
		}
	}

	for _, conv := range conversations {
		// 10-15 messages per conversation, oldest first, spaced
		// 10-60 minutes apart starting 1-3 days back
		numMessages := 10 + rand.Intn(6)
		messageTime := now.Add(-time.Duration(1+rand.Intn(3)) * 24 * time.Hour)

		var lastMessage *domain.Message
		unreadCount := 0

		for j := 0; j < numMessages; j++ {
			if j > 0 {
				messageTime = messageTime.Add(time.Duration(10+rand.Intn(50)) * time.Minute)
				if messageTime.After(now) {
					messageTime = now.Add(-time.Duration(rand.Intn(30)) * time.Minute)
				}
			}

			isMine := rand.Float32() < 0.4
			sender := myUserID
			senderName := "Me"
			if !isMine {
				sender = conv.RecipientID
				senderName = conv.RecipientName
			}

			var msg *domain.Message
			roll := rand.Float32()
			switch {
			case roll < 0.8:
				text := sampleTexts[rand.Intn(len(sampleTexts))]
				msg = domain.NewTextMessage(uuid.NewString(), conv.ID, sender, senderName, text, "en", messageTime, isMine)
			case roll < 0.9:
				msg = domain.NewMediaMessage(uuid.NewString(), conv.ID, sender, senderName,
					domain.MessageTypeImage,
					&domain.Media{
						URL:          "https://example.com/media/photo.jpg",
						Size:         int64(500000 + rand.Intn(2000000)),
						OriginalName: "photo.jpg",
					},
					"", messageTime, isMine)
			default:
				msg = domain.NewMediaMessage(uuid.NewString(), conv.ID, sender, senderName,
					domain.MessageTypeVideo,
					&domain.Media{
						URL:          "https://example.com/media/clip.mp4",
						Size:         int64(3000000 + rand.Intn(7000000)),
						OriginalName: "clip.mp4",
					},
					"", messageTime, isMine)
			}

			if err := msgRepo.CreateOrIgnore(ctx, msg); err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}

			// The tail of the conversation stays unread when the other
			// user sent it
			if !isMine && j >= numMessages-3 {
				unreadCount++
			}
			lastMessage = msg
		}

		conv.UnreadCount = unreadCount
		conv.LastMessageTime = lastMessage.CreatedAt
		conv.LastMessageText = lastMessage.Preview()
		if lastMessage.IsMine {
			conv.LastMessageSender = "me"
		} else {
			conv.LastMessageSender = conv.RecipientName
		}

		if err := convRepo.Upsert(ctx, conv); err != nil {
			return fmt.Errorf("failed to update conversation %s: %w", conv.ID, err)
		}

		fmt.Printf("Seeded conversation with %s: %d messages (unread: %d)\n",
			conv.RecipientName, numMessages, conv.UnreadCount)
	}

	return nil
}
