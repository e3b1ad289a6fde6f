// Package block implements the 16 384-byte ATDATA audio block format, the
// fragment walker, and the pull-based block/frame readers and writers used
// to stream decrypted (or de-obfuscated, for MP3) audio out of — and
// encrypted audio into — a HiMD disc (spec.md §4.3).
package block

import (
	"github.com/pkg/errors"

	"github.com/asivery/himd-js/bytesio"
	"github.com/asivery/himd-js/himderr"
)

// Size is the fixed size of one ATDATA block.
const Size = 0x4000

// HimdAudioSize is the payload capacity of one block.
const HimdAudioSize = 0x3FC0

// Block type tags (spec.md §3.3).
var (
	TypeSMPA = [4]byte{'S', 'M', 'P', 'A'}
	TypeA3D  = [4]byte{'A', '3', 'D', ' '}
	TypeATX  = [4]byte{'A', 'T', 'X', ' '}
	TypeLPCM = [4]byte{'L', 'P', 'C', 'M'}
)

const (
	offType         = 0
	offNFrames      = 4
	offMCode        = 6
	offLenData      = 8
	offSerial       = 12
	offBlockKey     = 16
	offIV           = 24
	offPayload      = 32
	offBackupType   = 16368
	offBackupMCode  = 16374
	offContentIDLo  = 16376
	offBackupSerial = 16380

	// MCode values (spec.md §3.3).
	MCodeDefault uint16 = 3
	MCodeLPCM    uint16 = 0x0124
)

// Block is one parsed 16 384-byte ATDATA block.
type Block struct {
	Type           [4]byte
	NFrames        uint16
	MCode          uint16
	LenData        uint16
	Serial         uint32
	Key            [8]byte
	IV             [8]byte
	Payload        [HimdAudioSize]byte
	BackupType     [4]byte
	BackupMCode    uint16
	ContentIDLo    uint32
	BackupSerial   uint32
}

// Parse decodes a raw 16 384-byte buffer into a Block.
func Parse(raw []byte) (Block, error) {
	if len(raw) != Size {
		return Block{}, errors.Wrapf(himderr.ErrBlockDataTooLarge, "block is %d bytes, want %d", len(raw), Size)
	}

	var b Block
	copy(b.Type[:], raw[offType:offType+4])
	b.NFrames = bytesio.BE16(raw[offNFrames:])
	b.MCode = bytesio.BE16(raw[offMCode:])
	b.LenData = bytesio.BE16(raw[offLenData:])
	b.Serial = bytesio.BE32(raw[offSerial:])
	copy(b.Key[:], raw[offBlockKey:offBlockKey+8])
	copy(b.IV[:], raw[offIV:offIV+8])
	copy(b.Payload[:], raw[offPayload:offPayload+HimdAudioSize])
	copy(b.BackupType[:], raw[offBackupType:offBackupType+4])
	b.BackupMCode = bytesio.BE16(raw[offBackupMCode:])
	b.ContentIDLo = bytesio.BE32(raw[offContentIDLo:])
	b.BackupSerial = bytesio.BE32(raw[offBackupSerial:])
	return b, nil
}

// Bytes serialises the block back to its 16 384-byte on-disc form.
func (b Block) Bytes() []byte {
	raw := make([]byte, Size)
	copy(raw[offType:], b.Type[:])
	bytesio.PutBE16(raw[offNFrames:], b.NFrames)
	bytesio.PutBE16(raw[offMCode:], b.MCode)
	bytesio.PutBE16(raw[offLenData:], b.LenData)
	bytesio.PutBE32(raw[offSerial:], b.Serial)
	copy(raw[offBlockKey:], b.Key[:])
	copy(raw[offIV:], b.IV[:])
	copy(raw[offPayload:], b.Payload[:])
	copy(raw[offBackupType:], b.BackupType[:])
	bytesio.PutBE16(raw[offBackupMCode:], b.BackupMCode)
	bytesio.PutBE32(raw[offContentIDLo:], b.ContentIDLo)
	bytesio.PutBE32(raw[offBackupSerial:], b.BackupSerial)
	return raw
}

// StampBackup mirrors the primary type/mCode/serial fields into their
// backup counterparts and the low 32 bits of the content id into
// ContentIDLo, as every freshly written block must carry.
func (b *Block) StampBackup(contentID [20]byte) {
	b.BackupType = b.Type
	b.BackupMCode = b.MCode
	b.BackupSerial = b.Serial
	b.ContentIDLo = bytesio.BE32(contentID[16:20])
}
