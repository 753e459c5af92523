package keeper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ruteri/envelope-registry/interfaces"
)

var prefixSequence = []byte("seq/")

func sequenceKey(address interfaces.Address) []byte {
	return append(append([]byte{}, prefixSequence...), address[:]...)
}

// lastSequence returns the last sequence accepted from address, 0 if none.
func (k *Keeper) lastSequence(address interfaces.Address) (uint64, error) {
	data, err := k.kv.Get(sequenceKey(address))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt sequence for %s", address)
	}
	return binary.BigEndian.Uint64(data), nil
}

// useSequence consumes seq for sender. It must be called with k.mu held, before
// the message touches any other state. A consumed sequence stays consumed even
// if the message itself then fails.
func (k *Keeper) useSequence(sender interfaces.Address, seq uint64) error {
	last, err := k.lastSequence(sender)
	if err != nil {
		return err
	}
	if seq <= last {
		return fmt.Errorf("%w: got %d, last accepted from %s is %d", interfaces.ErrStaleSequence, seq, sender, last)
	}
	if err := k.kv.Apply([]interfaces.KVWrite{{Key: sequenceKey(sender), Value: binary.BigEndian.AppendUint64(nil, seq)}}); err != nil {
		return fmt.Errorf("failed to commit sequence: %w", err)
	}
	return nil
}

func (k *Keeper) QueryAccountSequence(ctx context.Context, req *interfaces.QueryAccountSequenceRequest) (*interfaces.QueryAccountSequenceResponse, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	seq, err := k.lastSequence(req.Address)
	if err != nil {
		return nil, err
	}
	return &interfaces.QueryAccountSequenceResponse{Sequence: seq}, nil
}
