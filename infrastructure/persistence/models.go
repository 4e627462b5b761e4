package persistence

import "time"

// ServiceModel is the services table.
type ServiceModel struct {
	ID                   int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID               int64      `gorm:"column:user_id;index;not null"`
	Data                 string     `gorm:"column:data;type:text;not null"`
	Category             string     `gorm:"column:category;size:255;index"`
	GPS                  string     `gorm:"column:gps;type:text"`
	IsActive             bool       `gorm:"column:is_active;index;not null;default:true"`
	IsTarissable         bool       `gorm:"column:is_tarissable;not null;default:false"`
	VitesseTarissement   string     `gorm:"column:vitesse_tarissement;size:16"`
	ActiveDays           int        `gorm:"column:active_days"`
	AutoDeactivateAt     *time.Time `gorm:"column:auto_deactivate_at;index"`
	LastReactivatedAt    *time.Time `gorm:"column:last_reactivated_at"`
	LastAlertAt          *time.Time `gorm:"column:last_alert_at"`
	EmbeddingStatus      string     `gorm:"column:embedding_status;size:16;index;not null;default:pending"`
	EmbeddingError       string     `gorm:"column:embedding_error;type:text"`
	EmbeddingLastAttempt *time.Time `gorm:"column:embedding_last_attempt"`
	EmbeddingAttempts    int        `gorm:"column:embedding_attempts;not null;default:0"`
	CreatedAt            time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

// TableName returns the table name.
func (ServiceModel) TableName() string { return "services" }

// ServiceLogModel is the append-only service_logs table.
type ServiceLogModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ServiceID    int64     `gorm:"column:service_id;index;not null"`
	UserID       int64     `gorm:"column:user_id"`
	Modification string    `gorm:"column:modification;size:32;not null"`
	Detail       string    `gorm:"column:detail;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (ServiceLogModel) TableName() string { return "service_logs" }

// HistoryModel is the history table.
type HistoryModel struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	UserID    int64     `gorm:"column:user_id;index:ix_history_lookup,priority:1"`
	ServiceID int64     `gorm:"column:service_id;index:ix_history_lookup,priority:2"`
	EventType string    `gorm:"column:event_type;size:32;index:ix_history_lookup,priority:3;not null"`
	Intent    string    `gorm:"column:intent;size:64"`
	Input     string    `gorm:"column:input;type:text"`
	Response  string    `gorm:"column:response;type:text"`
	Model     string    `gorm:"column:model;size:128"`
	Tokens    int       `gorm:"column:tokens"`
	CreatedAt time.Time `gorm:"column:created_at;index:ix_history_lookup,priority:4;not null"`
}

// TableName returns the table name.
func (HistoryModel) TableName() string { return "history" }

// ReviewModel is the reviews table.
type ReviewModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ServiceID int64     `gorm:"column:service_id;index;not null"`
	UserID    int64     `gorm:"column:user_id"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   string    `gorm:"column:comment;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;index;not null"`
}

// TableName returns the table name.
func (ReviewModel) TableName() string { return "reviews" }

// InteractionModel is the interactions table.
type InteractionModel struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	ServiceID   int64      `gorm:"column:service_id;index;not null"`
	UserID      int64      `gorm:"column:user_id"`
	Kind        string     `gorm:"column:kind;size:16;not null"`
	OccurredAt  time.Time  `gorm:"column:occurred_at;index;not null"`
	RespondedAt *time.Time `gorm:"column:responded_at"`
}

// TableName returns the table name.
func (InteractionModel) TableName() string { return "interactions" }
