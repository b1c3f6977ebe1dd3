// Package seed fills a database with demo data, either from a YAML fixture
// or generated with gofakeit. It goes through the repositories so counters
// and unread bookkeeping match what the API would have produced.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"vibefeed/internal/auth"
	"vibefeed/internal/middleware"
	"vibefeed/internal/models"
	"vibefeed/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DefaultPassword is used for fixture users without a password.
const DefaultPassword = "password123"

var categories = []string{"tech", "art", "music", "travel", "food", "sports", "books"}

// Fixture is the YAML seed document.
type Fixture struct {
	Users         []FixtureUser         `yaml:"users"`
	Posts         []FixturePost         `yaml:"posts"`
	Conversations []FixtureConversation `yaml:"conversations"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Bio      string `yaml:"bio"`
	Location string `yaml:"location"`
	Website  string `yaml:"website"`
	Verified bool   `yaml:"verified"`
}

// FixturePost references users by username. Ago places the post in the past.
type FixturePost struct {
	Author   string        `yaml:"author"`
	Type     string        `yaml:"type"`
	Content  string        `yaml:"content"`
	Tags     []string      `yaml:"tags"`
	Category string        `yaml:"category"`
	MediaURL string        `yaml:"mediaUrl"`
	Ago      time.Duration `yaml:"ago"`
	LikedBy  []string      `yaml:"likedBy"`
	SavedBy  []string      `yaml:"savedBy"`
}

type FixtureConversation struct {
	Participants []string         `yaml:"participants"`
	Messages     []FixtureMessage `yaml:"messages"`
}

type FixtureMessage struct {
	From string `yaml:"from"`
	Text string `yaml:"text"`
}

// Summary counts what a seeding run created.
type Summary struct {
	Users         int
	Posts         int
	Likes         int
	Saves         int
	Conversations int
	Messages      int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d posts, %d likes, %d saves, %d conversations, %d messages",
		s.Users, s.Posts, s.Likes, s.Saves, s.Conversations, s.Messages)
}

// LoadFixture reads and parses a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes a YAML fixture. Unknown keys are rejected.
func ParseFixture(raw []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Seeder writes demo data through the repositories.
type Seeder struct {
	db    *gorm.DB
	users repository.UserRepository
	posts repository.PostRepository
	chat  repository.ChatRepository
	now   func() time.Time
}

// NewSeeder binds a Seeder to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{
		db:    db,
		users: repository.NewUserRepository(db),
		posts: repository.NewPostRepository(db),
		chat:  repository.NewChatRepository(db),
		now:   time.Now,
	}
}

// Clear deletes every seeded row, children first.
func (s *Seeder) Clear(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Message{},
		&models.ConversationParticipant{},
		&models.Conversation{},
		&models.SavedPost{},
		&models.Like{},
		&models.Post{},
		&models.User{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// ApplyFixture creates everything the fixture describes.
func (s *Seeder) ApplyFixture(ctx context.Context, f *Fixture) (Summary, error) {
	var sum Summary
	byName := make(map[string]uint, len(f.Users))

	for _, fu := range f.Users {
		password := fu.Password
		if password == "" {
			password = DefaultPassword
		}
		email := fu.Email
		if email == "" {
			email = fu.Username + "@example.com"
		}
		u, err := s.createUser(ctx, models.User{
			Username: fu.Username,
			Email:    strings.ToLower(email),
			Name:     fu.Name,
			Bio:      fu.Bio,
			Location: fu.Location,
			Website:  fu.Website,
			Verified: fu.Verified,
		}, password)
		if err != nil {
			return sum, err
		}
		byName[u.Username] = u.ID
		sum.Users++
	}

	lookup := func(username string) (uint, error) {
		id, ok := byName[username]
		if !ok {
			return 0, fmt.Errorf("fixture references unknown user %q", username)
		}
		return id, nil
	}

	for _, fp := range f.Posts {
		authorID, err := lookup(fp.Author)
		if err != nil {
			return sum, err
		}
		postType := models.PostType(fp.Type)
		if postType == "" {
			postType = models.PostTypeText
		}
		post := &models.Post{
			UserID:    authorID,
			Type:      postType,
			Content:   fp.Content,
			Tags:      fp.Tags,
			Category:  fp.Category,
			MediaURL:  fp.MediaURL,
			CreatedAt: s.now().Add(-fp.Ago),
		}
		if err := s.posts.Create(ctx, post); err != nil {
			return sum, fmt.Errorf("create post by %s: %w", fp.Author, err)
		}
		sum.Posts++

		for _, name := range fp.LikedBy {
			id, err := lookup(name)
			if err != nil {
				return sum, err
			}
			if _, err := s.posts.Like(ctx, id, post.ID); err != nil {
				return sum, fmt.Errorf("like post %d: %w", post.ID, err)
			}
			sum.Likes++
		}
		for _, name := range fp.SavedBy {
			id, err := lookup(name)
			if err != nil {
				return sum, err
			}
			if _, err := s.posts.Save(ctx, id, post.ID); err != nil {
				return sum, fmt.Errorf("save post %d: %w", post.ID, err)
			}
			sum.Saves++
		}
	}

	for _, fc := range f.Conversations {
		ids := make([]uint, 0, len(fc.Participants))
		for _, name := range fc.Participants {
			id, err := lookup(name)
			if err != nil {
				return sum, err
			}
			ids = append(ids, id)
		}
		conv, err := s.chat.CreateConversation(ctx, ids)
		if err != nil {
			return sum, fmt.Errorf("create conversation: %w", err)
		}
		sum.Conversations++

		for _, fm := range fc.Messages {
			senderID, err := lookup(fm.From)
			if err != nil {
				return sum, err
			}
			if !conv.HasParticipant(senderID) {
				return sum, fmt.Errorf("%s is not a participant of conversation %d", fm.From, conv.ID)
			}
			msg := &models.Message{ConversationID: conv.ID, SenderID: senderID, Text: fm.Text}
			if err := s.chat.CreateMessage(ctx, msg); err != nil {
				return sum, fmt.Errorf("create message: %w", err)
			}
			sum.Messages++
		}
	}

	middleware.Logger.InfoContext(ctx, "fixture applied", "summary", sum.String())
	return sum, nil
}

// Random generates numUsers users and numPosts posts with gofakeit content,
// spreads likes over them and opens a conversation between neighbours.
// A non-zero seed makes the output repeatable.
func (s *Seeder) Random(ctx context.Context, numUsers, numPosts int, seed int64) (Summary, error) {
	var sum Summary
	if numUsers <= 0 {
		return sum, nil
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(seed)
	//nolint:gosec // demo data only
	r := rand.New(rand.NewSource(seed))

	password, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return sum, err
	}

	ids := make([]uint, 0, numUsers)
	for i := range numUsers {
		username := fmt.Sprintf("%s%d", strings.ToLower(faker.FirstName()), i+1)
		u := &models.User{
			Username: username,
			Email:    username + "@example.com",
			Password: password,
			Name:     faker.Name(),
			Bio:      faker.Sentence(8),
			Location: faker.City(),
			Website:  faker.URL(),
		}
		if err := s.users.Create(ctx, u); err != nil {
			return sum, fmt.Errorf("create user %s: %w", username, err)
		}
		ids = append(ids, u.ID)
		sum.Users++
	}

	for range numPosts {
		age := time.Duration(r.Intn(90*24))*time.Hour + time.Duration(r.Intn(60))*time.Minute
		post := &models.Post{
			UserID:    ids[r.Intn(len(ids))],
			Type:      models.PostTypeText,
			Content:   faker.Paragraph(1, 2, 10, " "),
			Tags:      models.Tags{strings.ToLower(faker.Word()), strings.ToLower(faker.Word())},
			Category:  categories[r.Intn(len(categories))],
			CreatedAt: s.now().Add(-age),
		}
		if r.Intn(4) == 0 {
			post.Type = models.PostTypeImage
			post.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", faker.UUID())
			post.MediaType = "image/jpeg"
		}
		if err := s.posts.Create(ctx, post); err != nil {
			return sum, fmt.Errorf("create post: %w", err)
		}
		sum.Posts++

		for _, likerID := range ids {
			if likerID != post.UserID && r.Intn(3) == 0 {
				if _, err := s.posts.Like(ctx, likerID, post.ID); err != nil {
					return sum, fmt.Errorf("like post %d: %w", post.ID, err)
				}
				sum.Likes++
			}
		}
	}

	for i := 0; i+1 < len(ids); i += 2 {
		conv, err := s.chat.CreateConversation(ctx, []uint{ids[i], ids[i+1]})
		if err != nil {
			return sum, fmt.Errorf("create conversation: %w", err)
		}
		sum.Conversations++
		for j := range 3 {
			msg := &models.Message{ConversationID: conv.ID, SenderID: ids[i+j%2], Text: faker.Sentence(6)}
			if err := s.chat.CreateMessage(ctx, msg); err != nil {
				return sum, fmt.Errorf("create message: %w", err)
			}
			sum.Messages++
		}
	}

	middleware.Logger.InfoContext(ctx, "random data generated", "summary", sum.String())
	return sum, nil
}

func (s *Seeder) createUser(ctx context.Context, u models.User, password string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u.Password = hash
	if err := s.users.Create(ctx, &u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return &u, nil
}
