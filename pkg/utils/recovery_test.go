package utils

import (
	"context"
	"sync"
	"testing"

	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"go.uber.org/zap/zaptest"
)

// setupTestLogger sets up a test logger and returns a function to restore the original logger
func setupTestLogger(t *testing.T) func() {
	testLogger := zaptest.NewLogger(t)
	originalLogger := logger.Log
	logger.Log = testLogger
	return func() {
		logger.Log = originalLogger
	}
}

func TestSafeGo(t *testing.T) {
	cleanup := setupTestLogger(t)
	defer cleanup()

	// Test case 1: Function runs without panic
	successChan := make(chan bool, 1)
	SafeGo(func() {
		successChan <- true
	}, nil)

	if success := <-successChan; !success {
		t.Error("Expected function to execute successfully")
	}

	// Test case 2: Function panics and is recovered
	var wg sync.WaitGroup
	wg.Add(1)
	var recoveredPanic interface{}

	SafeGo(func() {
		defer wg.Done()
		panic("test panic")
	}, func(r interface{}, stack []byte) {
		recoveredPanic = r
	})

	wg.Wait()
	if recoveredPanic != "test panic" {
		t.Errorf("Expected panic to be recovered with 'test panic', got %v", recoveredPanic)
	}
}

func TestSafeGoDefaultHandlerDoesNotCrash(t *testing.T) {
	cleanup := setupTestLogger(t)
	defer cleanup()

	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo(func() {
		defer wg.Done()
		panic("unhandled")
	}, nil)
	wg.Wait()
}

func TestRecoverWithLog(t *testing.T) {
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	func() {
		defer RecoverWithLog(ctx, "test operation")
		panic("test panic with context")
	}()
	// Reaching here means the panic was recovered.
}
