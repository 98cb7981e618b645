package serverapp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
)

// Start binds the listen address and serves in the background. It requires
// Init to have completed; a bind failure is returned directly.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	ln, err := net.Listen("tcp", a.serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", a.serverAddr, err)
	}
	a.listenAddr = ln.Addr().String()
	a.serverErrors = startServer(a.cfg, a.logger, a.srv, ln)
	a.started = true
	return a.serverErrors, nil
}

// Addr returns the bound listen address once Start succeeded.
func (a *App) Addr() string {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.listenAddr
}

// WaitForStop blocks until a stop signal arrives or the server fails.
// reason is "signal" or "server_error".
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", errors.New("both stop and serverErrors channels are nil")
	}

	// A nil channel never becomes ready, so the select waits on whichever is set.
	select {
	case err := <-serverErrors:
		if err == nil {
			return "server_error", errors.New("server stopped unexpectedly")
		}
		return "server_error", fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return "signal", nil
	}
}
