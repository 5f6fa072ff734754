package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadKeys(t *testing.T) {
	t.Run("should forward key presses", func(t *testing.T) {
		// Arrange
		var (
			keyCh = make(chan rune)
			done  = make(chan struct{})
			keys  = []rune{'s', 'q'}
			next  = func() (rune, error) {
				if len(keys) == 0 {
					return 0, errors.New("keyboard closed")
				}
				var key = keys[0]
				keys = keys[1:]
				return key, nil
			}
		)
		defer close(done)

		// Act
		go readKeys(next, keyCh, done)

		// Assert
		assert.Equal(t, 's', <-keyCh)
		assert.Equal(t, 'q', <-keyCh)
	})

	t.Run("should exit once the watcher stops reading", func(t *testing.T) {
		// Arrange
		var (
			keyCh    = make(chan rune)
			done     = make(chan struct{})
			finished = make(chan struct{})
			next     = func() (rune, error) { return 'x', nil }
		)

		// Act
		go func() {
			readKeys(next, keyCh, done)
			close(finished)
		}()
		close(done)

		// Assert
		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("key reader still blocked after done was closed")
		}
	})
}
