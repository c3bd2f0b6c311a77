// Package utils предоставляет файловый логгер для CLI утилит пайплайна.
//
// Логгер создаёт .log файл с timestamp в имени и пишет в него JSON строки
// через zerolog. До InitLogger все вызовы Info/Error/... молча игнорируются.
// Thread-safe через sync.Mutex.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logFile     *os.File
	logger      zerolog.Logger
	logMutex    sync.Mutex
	initialized bool
)

// InitLogger создает/открывает .log файл в директории dir (пусто = текущая).
//
// Имя файла: poncho-tune-YYYY-MM-DD-HH-MM.log
// При debug=false отладочные сообщения отбрасываются.
func InitLogger(dir string, debug bool) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if initialized {
		return nil
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	timestamp := time.Now().Format("2006-01-02-15-04")
	filename := filepath.Join(dir, fmt.Sprintf("poncho-tune-%s.log", timestamp))

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = f
	setOutput(f, debug)
	initialized = true

	logger.Info().Str("file", filename).Msg("Logger initialized")
	return nil
}

// setOutput переключает логгер на произвольный writer. Вызывается под logMutex.
func setOutput(w io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	log(zerolog.InfoLevel, msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	log(zerolog.ErrorLevel, msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	log(zerolog.DebugLevel, msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	log(zerolog.WarnLevel, msg, keyvals...)
}

// log - внутренняя функция записи в лог.
//
// keyvals трактуются парами ключ/значение, непарный хвост отбрасывается.
// Ошибки пишутся через Err-поле, остальное через Interface.
func log(level zerolog.Level, msg string, keyvals ...any) {
	logMutex.Lock()
	defer logMutex.Unlock()

	if !initialized {
		return
	}

	ev := logger.WithLevel(level)
	if ev == nil {
		return
	}

	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		switch v := keyvals[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}

	ev.Msg(msg)
}

// Close закрывает лог-файл.
//
// Вызывается через defer в main().
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile != nil {
		if err := logFile.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Sync failed: %v]\n", err)
		}
		if err := logFile.Close(); err != nil {
			// Логгер уже закрывается, только stderr
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Close failed: %v]\n", err)
		}
		logFile = nil
	}
	initialized = false
}
