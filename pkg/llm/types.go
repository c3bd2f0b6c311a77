// Базовые типы - универсальный язык общения с моделями и хостингом дообучения.
package llm

import "time"

// Role - роль автора сообщения.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message - одно сообщение чата.
type Message struct {
	Role    Role
	Content string
}

// NewMessage - сокращение для литерала Message.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// JobStatus - статус задачи дообучения.
type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobValidatingFiles JobStatus = "validating_files"
	JobQueued          JobStatus = "queued"
	JobRunning         JobStatus = "running"
	JobSucceeded       JobStatus = "succeeded"
	JobFailed          JobStatus = "failed"
	JobCancelled       JobStatus = "cancelled"
)

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// FineTuneRequest - параметры создания задачи.
type FineTuneRequest struct {
	TrainingFileID string
	BaseModel      string
	Suffix         string // Необязательный суффикс имени дообученной модели
}

// FineTuneJob - снимок задачи дообучения.
type FineTuneJob struct {
	ID             string
	Model          string
	FineTunedModel string // Заполнено только при JobSucceeded
	Status         JobStatus
	TrainingFile   string
	CreatedAt      time.Time
	FinishedAt     time.Time
}

// FineTuneEvent - запись из журнала задачи.
type FineTuneEvent struct {
	ID        string
	CreatedAt time.Time
	Level     string
	Message   string
}
