package app

import (
	"context"
	"sync"

	"github.com/eiannone/keyboard"
	"go.uber.org/zap"
)

type keyAction int

const (
	keyToggle keyAction = iota
	keySelect
	keyAdjust
	keyReset
	keyQuit
)

// adjustStep is how far one key press moves the selected parameter.
const adjustStep = 5

type keyEvent struct {
	action keyAction
	index  int
	delta  int
}

// mapKey translates a key press into a controller action.
func mapKey(char rune, key keyboard.Key) (keyEvent, bool) {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return keyEvent{action: keyQuit}, true
	case char == 'q' || char == 'Q':
		return keyEvent{action: keyQuit}, true
	case key == keyboard.KeySpace || char == ' ':
		return keyEvent{action: keyToggle}, true
	case char >= '1' && char <= '8':
		return keyEvent{action: keySelect, index: int(char - '1')}, true
	case char == '+' || char == '=' || key == keyboard.KeyArrowUp || key == keyboard.KeyArrowRight:
		return keyEvent{action: keyAdjust, delta: adjustStep}, true
	case char == '-' || char == '_' || key == keyboard.KeyArrowDown || key == keyboard.KeyArrowLeft:
		return keyEvent{action: keyAdjust, delta: -adjustStep}, true
	case char == 'd' || char == 'D':
		return keyEvent{action: keyReset}, true
	}
	return keyEvent{}, false
}

// startInputListener reads the keyboard until ctx is done. A nil channel is
// returned when no keyboard is available.
func startInputListener(ctx context.Context, log *zap.Logger) <-chan keyEvent {
	if err := keyboard.Open(); err != nil {
		log.Warn("keyboard input disabled", zap.Error(err))
		return nil
	}

	events := make(chan keyEvent, 16)
	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			ev, ok := mapKey(char, key)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case events <- ev:
			}
			if ev.action == keyQuit {
				return
			}
		}
	}()
	return events
}
