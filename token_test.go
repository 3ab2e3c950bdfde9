package mqttc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenCompleteOnce(t *testing.T) {
	tok := newToken()

	first := errors.New("first")
	tok.complete(first)
	tok.complete(errors.New("second"))

	if !errors.Is(tok.Error(), first) {
		t.Errorf("Error() = %v, want first completion to win", tok.Error())
	}

	select {
	case <-tok.Done():
	default:
		t.Error("Done() should be closed after completion")
	}
}

func TestTokenWaitContextCancel(t *testing.T) {
	tok := newToken()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tok.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want context.DeadlineExceeded", err)
	}

	// The operation itself is still pending; a later completion is visible.
	tok.complete(nil)
	if err := tok.Wait(context.Background()); err != nil {
		t.Errorf("Wait() after completion = %v, want nil", err)
	}
}
