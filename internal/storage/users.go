package storage

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var userColumns = []string{"id", "email", "telegram_chat_id", "is_staff", "created_at"}

// CreateUser inserts u and returns its id. A duplicate email or chat id
// yields ErrConflict.
func (q *Q) CreateUser(ctx context.Context, u User) (int64, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return q.insertID(ctx, q.sb.Insert("users").
		Columns("email", "telegram_chat_id", "is_staff", "created_at").
		Values(strings.TrimSpace(u.Email), u.TelegramChatID, u.IsStaff, u.CreatedAt.UTC()))
}

func (q *Q) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := q.get(ctx, &u, q.sb.Select(userColumns...).From("users").Where(sq.Eq{"id": id}))
	return u, err
}

func (q *Q) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.get(ctx, &u, q.sb.Select(userColumns...).From("users").Where(sq.Eq{"email": strings.TrimSpace(email)}))
	return u, err
}

func (q *Q) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := q.selectAll(ctx, &out, q.sb.Select(userColumns...).From("users").OrderBy("id"))
	return out, err
}

// SetUserChatID links a Telegram chat to the user. nil unlinks it.
func (q *Q) SetUserChatID(ctx context.Context, id int64, chatID *int64) error {
	return q.execOne(ctx, q.sb.Update("users").Set("telegram_chat_id", chatID).Where(sq.Eq{"id": id}))
}
