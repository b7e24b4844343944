package store

// GORM models used for persistence. Timestamps are stored as epoch
// milliseconds to match the wire format, not as time.Time columns.
type UserModel struct {
	ID       string `gorm:"primaryKey"`
	Username string
	Email    string `gorm:"uniqueIndex;not null"`
	Password string `gorm:"not null"`
}

type BookModel struct {
	ID          string     `gorm:"primaryKey"`
	Title       string     `gorm:"not null"`
	Author      string     `gorm:"not null"`
	Description string     `gorm:"type:text"`
	Status      string     `gorm:"not null"`
	OwnerUserID string     `gorm:"not null;index"`
	Owner       *UserModel `gorm:"foreignKey:OwnerUserID;constraint:OnDelete:CASCADE"`
	CoverImage  string     `gorm:"type:text"`
	CreatedAt   int64      `gorm:"not null;autoCreateTime:false"`
}
