// Интерфейсы провайдеров, через которые работает весь пайплайн.

package llm

import "context"

// Provider - контракт для чат-модели (генерация данных и проверка дообученной модели).
type Provider interface {
	// Generate отправляет историю сообщений и возвращает ответ модели.
	// opts переопределяют модель, температуру и лимит токенов для конкретного вызова.
	Generate(ctx context.Context, messages []Message, opts ...GenerateOption) (Message, error)
}

// FineTuner - контракт для хостинга дообучения моделей.
//
// Переходы статусов задачи принадлежат провайдеру, клиент их только наблюдает.
type FineTuner interface {
	// UploadTrainingFile загружает JSONL датасет и возвращает ID файла.
	UploadTrainingFile(ctx context.Context, path string) (string, error)

	// CreateFineTuneJob создаёт задачу дообучения.
	CreateFineTuneJob(ctx context.Context, req FineTuneRequest) (FineTuneJob, error)

	// RetrieveFineTuneJob возвращает актуальное состояние задачи.
	RetrieveFineTuneJob(ctx context.Context, jobID string) (FineTuneJob, error)

	// ListFineTuneEvents возвращает до limit последних событий задачи (новые первыми).
	ListFineTuneEvents(ctx context.Context, jobID string, limit int) ([]FineTuneEvent, error)

	// CancelFineTuneJob просит провайдера отменить задачу.
	CancelFineTuneJob(ctx context.Context, jobID string) (FineTuneJob, error)
}
