// Package cipher implements the DES/3DES primitives of Sony's HiMD DRM
// scheme: EKB root unwrap, per-track and per-block key derivation, block
// payload encryption, the ANSI X9.19 retail-MAC variant, and the ICV/track
// MAC constructions layered on top of it (spec.md §4.1).
//
// All key material here is 8 or 16 (or, for EKB roots, 24) bytes; callers
// are expected to pass correctly sized slices, mismatches are a programming
// fault and panic rather than return an error, per spec.md §4.1.
package cipher

import (
	gocipher "crypto/cipher"
	"crypto/des"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/himderr"
)

// EkbRoots maps an EKB number to its 24-byte root key. Only the one EKB
// version this library understands is populated; spec.md §1 explicitly
// scopes schema evolution beyond it out.
var EkbRoots = map[uint32][24]byte{
	0x00010012: hexRoot("F51ECB2A808F15FD542EF5123BCDBCA4F51ECB2A808F15FD"),
}

// MainKey is the first 16 bytes of the one known EKB root.
var MainKey = func() [16]byte {
	var k [16]byte
	root := EkbRoots[0x00010012]
	copy(k[:], root[:16])
	return k
}()

func hexRoot(hexStr string) [24]byte {
	var out [24]byte
	b, err := decodeHex(hexStr)
	if err != nil {
		panic(err)
	}
	copy(out[:], b)
	return out
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, errors.New("cipher: odd-length hex literal")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, errors.Errorf("cipher: invalid hex digit %q", c)
	}
}

// RootForEkb looks up the root key for an EKB number, returning
// himderr.ErrUnknownEkb when it isn't the one version this library knows.
func RootForEkb(ekb uint32) ([24]byte, error) {
	root, ok := EkbRoots[ekb]
	if !ok {
		return [24]byte{}, errors.Wrapf(himderr.ErrUnknownEkb, "ekb 0x%08X", ekb)
	}
	return root, nil
}

// TripleDESECBDecrypt decrypts data (any multiple of 8 bytes) with a 24-byte
// 3DES key in ECB mode, no padding.
func TripleDESECBDecrypt(key [24]byte, data []byte) []byte {
	block, err := des.NewTripleDESCipher(key[:])
	if err != nil {
		panic(err)
	}
	return ecbCrypt(block, data, false)
}

// TripleDESECBEncrypt is the encrypting counterpart of TripleDESECBDecrypt.
func TripleDESECBEncrypt(key [24]byte, data []byte) []byte {
	block, err := des.NewTripleDESCipher(key[:])
	if err != nil {
		panic(err)
	}
	return ecbCrypt(block, data, true)
}

// DESECBEncrypt encrypts a single 8-byte block with a single-DES key.
func DESECBEncrypt(key, block [8]byte) [8]byte {
	c, err := des.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	var out [8]byte
	c.Encrypt(out[:], block[:])
	return out
}

// DESECBDecrypt decrypts a single 8-byte block with a single-DES key.
func DESECBDecrypt(key, block [8]byte) [8]byte {
	c, err := des.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	var out [8]byte
	c.Decrypt(out[:], block[:])
	return out
}

func ecbCrypt(block gocipher.Block, data []byte, encrypt bool) []byte {
	if len(data)%block.BlockSize() != 0 {
		panic("cipher: data is not a multiple of the block size")
	}
	out := make([]byte, len(data))
	bs := block.BlockSize()
	for off := 0; off < len(data); off += bs {
		if encrypt {
			block.Encrypt(out[off:off+bs], data[off:off+bs])
		} else {
			block.Decrypt(out[off:off+bs], data[off:off+bs])
		}
	}
	return out
}

// DESCBCEncrypt/DESCBCDecrypt run DES-CBC over data (a multiple of 8 bytes)
// with an 8-byte key and IV, no padding.
func DESCBCEncrypt(key, iv [8]byte, data []byte) []byte {
	block, err := des.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(data))
	gocipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out, data)
	return out
}

func DESCBCDecrypt(key, iv [8]byte, data []byte) []byte {
	block, err := des.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(data))
	gocipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(out, data)
	return out
}

var zeroIV = [8]byte{}

// CreateTrackKey decrypts a track's 8-byte encrypted key using the EKB root
// for the given EKB number, per spec.md §4.1.
func CreateTrackKey(ekb uint32, encryptedKey [8]byte) ([8]byte, error) {
	root, err := RootForEkb(ekb)
	if err != nil {
		return [8]byte{}, err
	}
	pt := TripleDESECBDecrypt(root, encryptedKey[:])
	var out [8]byte
	copy(out[:], pt[:8])
	return out, nil
}

// EncryptTrackKey re-encrypts a track key under the one supported EKB's
// root, producing the "kek" stored in a track slot.
func EncryptTrackKey(trackKey [8]byte) [8]byte {
	root := EkbRoots[0x00010012]
	ct := TripleDESECBEncrypt(root, trackKey[:])
	var out [8]byte
	copy(out[:], ct[:8])
	return out
}

func xor8(a, b [8]byte) [8]byte {
	var out [8]byte
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// DeriveBlockKey computes the per-block DES key used to (de)crypt one audio
// block's payload, from the track key, the fragment key, and the block's own
// stored key field.
func DeriveBlockKey(trackKey, fragmentKey, blockKey [8]byte) [8]byte {
	return DESECBEncrypt(xor8(trackKey, fragmentKey), blockKey)
}

const HimdAudioSize = 0x3FC0

// EncryptBlock/DecryptBlock run DES-CBC over an audio block's 0x3FC0-byte
// payload with the block key derived from (trackKey, fragmentKey, blockKey)
// and the block's own IV.
func EncryptBlock(trackKey, fragmentKey, blockKey, blockIV [8]byte, payload []byte) []byte {
	if len(payload) != HimdAudioSize {
		panic("cipher: payload must be exactly HIMD_AUDIO_SIZE bytes")
	}
	key := DeriveBlockKey(trackKey, fragmentKey, blockKey)
	return DESCBCEncrypt(key, blockIV, payload)
}

func DecryptBlock(trackKey, fragmentKey, blockKey, blockIV [8]byte, payload []byte) []byte {
	if len(payload) != HimdAudioSize {
		panic("cipher: payload must be exactly HIMD_AUDIO_SIZE bytes")
	}
	key := DeriveBlockKey(trackKey, fragmentKey, blockKey)
	return DESCBCDecrypt(key, blockIV, payload)
}

// RetailMac computes the ANSI X9.19 retail-MAC variant Sony DRM uses
// throughout: CBC-MAC the message under key[0:8] with a zero IV, then
// "whiten" the final block by decrypting it with key[8:16] and re-encrypting
// with key[0:8].
func RetailMac(message []byte, key [16]byte) [8]byte {
	if len(message)%8 != 0 {
		panic("cipher: retail-MAC message must be a multiple of 8 bytes")
	}

	var k1, k2 [8]byte
	copy(k1[:], key[0:8])
	copy(k2[:], key[8:16])

	cbc := DESCBCEncrypt(k1, zeroIV, message)
	var last [8]byte
	copy(last[:], cbc[len(cbc)-8:])

	whitened := DESECBDecrypt(k2, last)
	return DESECBEncrypt(k1, whitened)
}

// CreateIcvMac signs the 24-byte ICV header||icv blob with the session key.
func CreateIcvMac(headerIcv [24]byte, sessionKey [8]byte) [8]byte {
	cbc := DESCBCEncrypt(sessionKey, zeroIV, headerIcv[:])
	var out [8]byte
	copy(out[:], cbc[len(cbc)-8:])
	return out
}

// CreateTrackMac signs a 0x28-byte track entry tail with a key derived from
// the track's own key, per spec.md §4.1.
func CreateTrackMac(trackKey [8]byte, trackEntryTail []byte) [8]byte {
	if len(trackEntryTail) != 0x28 {
		panic("cipher: track entry tail must be exactly 0x28 bytes")
	}
	macKey := DESECBEncrypt(trackKey, [8]byte{})
	cbc := DESCBCEncrypt(macKey, zeroIV, trackEntryTail)
	var out [8]byte
	copy(out[:], cbc[len(cbc)-8:])
	return out
}

// DecryptMaclistKey decrypts the 16-byte head/body key ciphers stored in
// MCLIST with the one supported EKB's root.
func DecryptMaclistKey(keyCipher [16]byte) [16]byte {
	root := EkbRoots[0x00010012]
	pt := TripleDESECBDecrypt(root, keyCipher[:])
	var out [16]byte
	copy(out[:], pt[:16])
	return out
}

// GetMP3EncryptionKey derives the 4-byte XOR key used to obfuscate (not
// encrypt, in the cryptographic sense) MP3 payload bytes in SMPA blocks.
func GetMP3EncryptionKey(discID [16]byte, trackNumber uint32) [4]byte {
	v := (trackNumber*0x6953B2ED + 0x6BAAB1) ^ be32(discID[12:16])
	var out [4]byte
	putBe32(out[:], v)
	return out
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBe32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
