package coordinator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// roomCodeAlphabet excludes the homoglyphs O/0 and I/1 (spec §6).
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6
const maxRoomCodeAttempts = 20

func generateRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	n := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("coordinator: generate room code: %w", err)
		}
		buf[i] = roomCodeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// newUniqueRoomCode generates a room code, regenerating on collision
// against exists, up to a bounded number of attempts.
func newUniqueRoomCode(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxRoomCodeAttempts; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrRoomFull
}
