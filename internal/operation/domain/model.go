package domain

import "time"

// Type is the kind of work recorded against an article.
type Type int16

const (
	TypeCreated Type = iota + 1
	TypeProgrammed
	TypeTested
	TypeLabeled
	TypePacked
	TypeShipped
)

var typeNames = map[Type]string{
	TypeCreated:    "created",
	TypeProgrammed: "programmed",
	TypeTested:     "tested",
	TypeLabeled:    "labeled",
	TypePacked:     "packed",
	TypeShipped:    "shipped",
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Operation is an append-only audit entry. Rows disappear only with their
// article.
type Operation struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	ArticleID   int64     `json:"article_id" gorm:"column:article_id"`
	Type        Type      `json:"type" gorm:"column:type"`
	Responsible string    `json:"responsible" gorm:"column:responsible"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Operation) TableName() string { return "operations" }

type ListFilter struct {
	ArticleID int64
	Type      Type
	// BeforeID continues a listing below the last ID of the previous page.
	BeforeID int64
	Limit    int
}
