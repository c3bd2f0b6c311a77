package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupGracefulShutdown создаёт контекст, отменяемый по SIGINT/SIGTERM.
//
// Использование:
//   ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
//   defer shutdown()
//
// Возвращаемая функция отписывается от сигналов, отменяет контекст
// и закрывает лог-файл. Повторный сигнал после отмены не перехватывается
// и завершает процесс стандартным образом.
func SetupGracefulShutdown(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			Info("Received signal, shutting down gracefully", "signal", sig.String())
			signal.Stop(sigChan)
			cancel()
		case <-done:
		}
	}()

	return ctx, func() {
		close(done)
		signal.Stop(sigChan)
		cancel()
		Close()
	}
}
