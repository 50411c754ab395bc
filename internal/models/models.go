package models

import "time"

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email     string    `gorm:"not null" json:"email"`
	PWHash    string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is a post category. Groups are created from the admin CLI only.
type Group struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Slug        string `gorm:"uniqueIndex;size:50;not null" json:"slug"`
	Description string `gorm:"not null" json:"description"`
}

type Post struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Text     string    `gorm:"not null" json:"text"`
	PubDate  time.Time `gorm:"not null;index" json:"pub_date"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	Author   User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	GroupID  *uint     `gorm:"index" json:"group_id,omitempty"`
	Group    *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL" json:"group,omitempty"`
	// Image is the storage path of the attachment, empty when there is none.
	Image    string    `json:"image,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`

	CommentCount int64 `gorm:"->;-:migration" json:"comment_count"`
}

type Comment struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	PostID   uint      `gorm:"not null;index" json:"post_id"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	Author   User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Text     string    `gorm:"not null" json:"text"`
	Created  time.Time `gorm:"not null;index" json:"created"`
}

// Follow is a directed edge: User follows Author.
type Follow struct {
	ID       uint `gorm:"primaryKey"`
	UserID   uint `gorm:"not null;uniqueIndex:idx_follow_user_author"`
	User     User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	AuthorID uint `gorm:"not null;uniqueIndex:idx_follow_user_author;index"`
	Author   User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{&User{}, &Group{}, &Post{}, &Comment{}, &Follow{}}
}
