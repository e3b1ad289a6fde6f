// Package cryptoprovider defines the async block-cipher offload interface
// the core's concurrency model allows (spec.md §5): encryption/decryption
// of single blocks, plus a streaming variant over a whole track's raw data
// with one-chunk back-pressure. A provider forbids reentrancy: a second
// call while one is in flight fails with himderr.ErrProviderBusy.
package cryptoprovider

import (
	"context"
	"sync/atomic"

	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/himderr"
)

// BlockKeys bundles the four key/IV inputs every block (de/en)cryption
// needs, mirroring cipher.EncryptBlock/DecryptBlock's parameter list.
type BlockKeys struct {
	TrackKey    [8]byte
	FragmentKey [8]byte
	BlockKey    [8]byte
	BlockIV     [8]byte
}

// Provider is the async CryptoProvider interface. Implementations may hand
// work to a worker goroutine pool, but MUST reject concurrent use of the
// same Provider value.
type Provider interface {
	Encrypt(ctx context.Context, keys BlockKeys, data []byte) ([]byte, error)
	Decrypt(ctx context.Context, keys BlockKeys, data []byte) ([]byte, error)

	// StreamEncrypt consumes rawData (a whole track's decoded audio) and
	// yields one ciphertext chunk at a time over the returned channel, sized
	// to cipher.HimdAudioSize. The channel is closed when rawData is
	// exhausted or ctx is cancelled. Back-pressure: at most one chunk is
	// buffered ahead of the consumer.
	StreamEncrypt(ctx context.Context, keys BlockKeys, rawData []byte) (<-chan []byte, <-chan error)
}

// InlineProvider runs Encrypt and Decrypt synchronously on the calling
// goroutine; StreamEncrypt produces its blocks on one goroutine of its own.
// It is the reference Provider: callers wanting more overlap with I/O
// supply their own Provider instead.
type InlineProvider struct {
	busy int32
}

// NewInlineProvider builds a Provider with no worker pool.
func NewInlineProvider() *InlineProvider {
	return &InlineProvider{}
}

func (p *InlineProvider) enter() error {
	if !atomic.CompareAndSwapInt32(&p.busy, 0, 1) {
		return himderr.ErrProviderBusy
	}
	return nil
}

func (p *InlineProvider) leave() {
	atomic.StoreInt32(&p.busy, 0)
}

func (p *InlineProvider) Encrypt(ctx context.Context, keys BlockKeys, data []byte) ([]byte, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return cipher.EncryptBlock(keys.TrackKey, keys.FragmentKey, keys.BlockKey, keys.BlockIV, data), nil
}

func (p *InlineProvider) Decrypt(ctx context.Context, keys BlockKeys, data []byte) ([]byte, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return cipher.DecryptBlock(keys.TrackKey, keys.FragmentKey, keys.BlockKey, keys.BlockIV, data), nil
}

func (p *InlineProvider) StreamEncrypt(ctx context.Context, keys BlockKeys, rawData []byte) (<-chan []byte, <-chan error) {
	out := make(chan []byte) // unbuffered: exactly one chunk in flight
	errs := make(chan error, 1)

	if err := p.enter(); err != nil {
		close(out)
		errs <- err
		close(errs)
		return out, errs
	}

	go func() {
		defer p.leave()
		defer close(out)
		defer close(errs)

		for off := 0; off < len(rawData); off += cipher.HimdAudioSize {
			end := off + cipher.HimdAudioSize
			chunk := rawData[off:min(end, len(rawData))]
			if len(chunk) < cipher.HimdAudioSize {
				padded := make([]byte, cipher.HimdAudioSize)
				copy(padded, chunk)
				chunk = padded
			}

			ct := cipher.EncryptBlock(keys.TrackKey, keys.FragmentKey, keys.BlockKey, keys.BlockIV, chunk)

			select {
			case out <- ct:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return out, errs
}
