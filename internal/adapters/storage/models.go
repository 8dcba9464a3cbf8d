package storage

import "time"

// ProjectModel is the GORM model for projects table
type ProjectModel struct {
	CreatedAt time.Time
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null;default:''"`
	Path      string `gorm:"not null;uniqueIndex:idx_project_path"`
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (ProjectModel) TableName() string { return "projects" }

// SessionModel is the GORM model for sessions table
type SessionModel struct {
	AgentType    string     `gorm:"not null;default:'claude'"`
	ArchivedAt   *time.Time `gorm:"default:null"`
	CLISessionID string     `gorm:"column:cli_session_id;not null;default:''"`
	CreatedAt    time.Time  `gorm:"not null;index:idx_created_at"`
	ErrorMessage string     `gorm:"not null;default:''"`
	ID           string     `gorm:"primaryKey"`
	IsArchived   bool       `gorm:"not null;default:false"`
	Metadata     string     `gorm:"type:text;not null;default:'{}'"`
	Name         string     `gorm:"not null;default:''"`
	ProjectID    string     `gorm:"not null;index:idx_project_id"`
	SessionPath  string     `gorm:"not null;default:''"`
	State        string     `gorm:"not null;default:'idle';check:state IN ('idle','working','error')"`
	UpdatedAt    time.Time  `gorm:"not null;index:idx_updated_at"`
	UserID       string     `gorm:"not null;default:'';index:idx_user_id"`
}

// TableName specifies the table name for GORM
func (SessionModel) TableName() string { return "sessions" }

// SessionMessageModel is the GORM model for streamed message contents
type SessionMessageModel struct {
	Content     string `gorm:"type:text;not null;default:'[]'"`
	CreatedAt   time.Time
	IsError     bool   `gorm:"not null;default:false"`
	IsStreaming bool   `gorm:"not null;default:false"`
	MessageID   string `gorm:"primaryKey"`
	ParentID    string `gorm:"not null;default:''"`
	Position    int    `gorm:"not null;default:0"`
	Role        string `gorm:"not null"`
	SessionID   string `gorm:"primaryKey"`
	UpdatedAt   time.Time
	Usage       string `gorm:"type:text;not null;default:''"`
}

// TableName specifies the table name for GORM
func (SessionMessageModel) TableName() string { return "session_messages" }
