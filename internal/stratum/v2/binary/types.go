package binary

import (
	"github.com/chimera-pool/stratum-noise-proxy/internal/bitcoin"
)

// =============================================================================
// STRATUM V2 MESSAGE SET
// The subset of the mining protocol this proxy produces and consumes.
// =============================================================================

// Message type discriminants, one per struct below. Values are this
// proxy's own numbering — nothing downstream depends on matching any other
// implementation's byte-for-byte assignment as long as both ends of a
// frame agree, which here they always do (we decode what we encode).
const (
	MsgTypeSetupConnection uint8 = iota
	MsgTypeSetupConnectionSuccess
	MsgTypeSetupConnectionError
	MsgTypeOpenStandardMiningChannel
	MsgTypeOpenStandardMiningChannelSuccess
	MsgTypeOpenStandardMiningChannelError
	MsgTypeUpdateChannel
	MsgTypeCloseChannel
	MsgTypeSubmitSharesStandard
	MsgTypeSubmitSharesSuccess
	MsgTypeSubmitSharesError
	MsgTypeNewMiningJob
	MsgTypeSetNewPrevHash
	MsgTypeSetTarget
	MsgTypeReconnect
	MsgTypeChannelEndpointChanged
)

// Bounded-string limits from the data model: 0..32, 1..32, 0..255, 1..255,
// 0..64k, 1..64k. Only the ones actually used below are named.
const (
	shortMin0 = 0
	shortMax  = 255
	bytesMin0 = 0
	bytesMax32 = 32
	// errorCodeMax bounds every ErrorCode/ReasonCode string to Str0_32, the
	// width the translator's ShareRjct code truncation targets (spec §4.H
	// step 4, §2 row B's "0..32" bucket).
	errorCodeMax = 32
)

// ChannelMessageBit is packed into a frame's extension_id to flag a
// channel-scoped message, per the frame layout in the data model.
const ChannelMessageBit uint16 = 0x8000

// FrameHeaderSize is the size, in bytes, of a V2 frame header:
// extension_id:u16 | msg_type:u8 | msg_length:u24.
const FrameHeaderSize = 6

// Frame is a decoded V2 protocol frame: header plus raw payload bytes.
type Frame struct {
	ExtensionID uint16
	MsgType     uint8
	Payload     []byte
}

// IsChannelMessage reports whether ChannelMessageBit is set on the frame.
func (f Frame) IsChannelMessage() bool { return f.ExtensionID&ChannelMessageBit != 0 }

// EncodeFrame packs msgType and payload into a complete frame, including
// the 6-byte header.
func EncodeFrame(extensionID uint16, msgType uint8, payload []byte) []byte {
	w := NewWriter()
	w.WriteU16(extensionID)
	w.WriteU8(msgType)
	w.WriteU24(uint32(len(payload)))
	w.WriteRawBytes(payload)
	return w.Bytes()
}

// DecodeFrameHeader reads the 6-byte header from data and returns the
// declared payload length so the caller can size its read buffer before
// the payload itself has necessarily arrived (used by the stream framer).
func DecodeFrameHeader(data []byte) (extensionID uint16, msgType uint8, msgLength uint32, err error) {
	r := NewReader(data)
	if extensionID, err = r.ReadU16(); err != nil {
		return
	}
	if msgType, err = r.ReadU8(); err != nil {
		return
	}
	msgLength, err = r.ReadU24()
	return
}

// DecodeFrame decodes a complete frame (header + payload) from data.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderSize {
		return Frame{}, ErrTruncatedMessage
	}
	extensionID, msgType, msgLength, err := DecodeFrameHeader(data)
	if err != nil {
		return Frame{}, err
	}
	body := data[FrameHeaderSize:]
	if uint32(len(body)) < msgLength {
		return Frame{}, ErrTruncatedMessage
	}
	if uint32(len(body)) > msgLength {
		return Frame{}, ErrTrailingBytes
	}
	return Frame{ExtensionID: extensionID, MsgType: msgType, Payload: body}, nil
}

// -----------------------------------------------------------------------------
// Connection setup
// -----------------------------------------------------------------------------

// SetupConnection is the first message the initiator sends on a new V2
// session.
type SetupConnection struct {
	ProtocolVersion uint16
	Flags           uint32
	EndpointHost    string
	EndpointPort    uint16
	Vendor          string
	HardwareVersion string
	Firmware        string
	DeviceID        string
}

func (m SetupConnection) MsgType() uint8 { return MsgTypeSetupConnection }

func (m SetupConnection) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU16(m.ProtocolVersion)
	w.WriteU32(m.Flags)
	if err := w.WriteBoundedString8(m.EndpointHost, shortMin0, shortMax); err != nil {
		return nil, err
	}
	w.WriteU16(m.EndpointPort)
	if err := w.WriteBoundedString8(m.Vendor, shortMin0, shortMax); err != nil {
		return nil, err
	}
	if err := w.WriteBoundedString8(m.HardwareVersion, shortMin0, shortMax); err != nil {
		return nil, err
	}
	if err := w.WriteBoundedString8(m.Firmware, shortMin0, shortMax); err != nil {
		return nil, err
	}
	if err := w.WriteBoundedString8(m.DeviceID, shortMin0, shortMax); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeSetupConnection(data []byte) (SetupConnection, error) {
	r := NewReader(data)
	var m SetupConnection
	var err error
	if m.ProtocolVersion, err = r.ReadU16(); err != nil {
		return m, err
	}
	if m.Flags, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.EndpointHost, err = r.ReadBoundedString8(shortMin0, shortMax); err != nil {
		return m, err
	}
	if m.EndpointPort, err = r.ReadU16(); err != nil {
		return m, err
	}
	if m.Vendor, err = r.ReadBoundedString8(shortMin0, shortMax); err != nil {
		return m, err
	}
	if m.HardwareVersion, err = r.ReadBoundedString8(shortMin0, shortMax); err != nil {
		return m, err
	}
	if m.Firmware, err = r.ReadBoundedString8(shortMin0, shortMax); err != nil {
		return m, err
	}
	if m.DeviceID, err = r.ReadBoundedString8(shortMin0, shortMax); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// SetupConnectionSuccess confirms protocol negotiation.
type SetupConnectionSuccess struct {
	UsedProtocolVersion uint16
	Flags               uint32
}

func (m SetupConnectionSuccess) MsgType() uint8 { return MsgTypeSetupConnectionSuccess }

func (m SetupConnectionSuccess) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU16(m.UsedProtocolVersion)
	w.WriteU32(m.Flags)
	return w.Bytes(), nil
}

func DecodeSetupConnectionSuccess(data []byte) (SetupConnectionSuccess, error) {
	r := NewReader(data)
	var m SetupConnectionSuccess
	var err error
	if m.UsedProtocolVersion, err = r.ReadU16(); err != nil {
		return m, err
	}
	if m.Flags, err = r.ReadU32(); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// SetupConnectionError reports why setup was refused.
type SetupConnectionError struct {
	Flags     uint32
	ErrorCode string
}

func (m SetupConnectionError) MsgType() uint8 { return MsgTypeSetupConnectionError }

func (m SetupConnectionError) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.Flags)
	if err := w.WriteBoundedString8(m.ErrorCode, shortMin0, errorCodeMax); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeSetupConnectionError(data []byte) (SetupConnectionError, error) {
	r := NewReader(data)
	var m SetupConnectionError
	var err error
	if m.Flags, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.ErrorCode, err = r.ReadBoundedString8(shortMin0, errorCodeMax); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// -----------------------------------------------------------------------------
// Channel lifecycle
// -----------------------------------------------------------------------------

// OpenStandardMiningChannel requests a new standard channel.
type OpenStandardMiningChannel struct {
	RequestID       uint32
	User            string
	NominalHashrate float32
	MaxTarget       bitcoin.Target
}

func (m OpenStandardMiningChannel) MsgType() uint8 { return MsgTypeOpenStandardMiningChannel }

func (m OpenStandardMiningChannel) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.RequestID)
	if err := w.WriteBoundedString8(m.User, shortMin0, shortMax); err != nil {
		return nil, err
	}
	w.WriteF32(m.NominalHashrate)
	b := m.MaxTarget.Bytes()
	w.WriteRawBytes(b[:])
	return w.Bytes(), nil
}

func DecodeOpenStandardMiningChannel(data []byte) (OpenStandardMiningChannel, error) {
	r := NewReader(data)
	var m OpenStandardMiningChannel
	var err error
	if m.RequestID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.User, err = r.ReadBoundedString8(shortMin0, shortMax); err != nil {
		return m, err
	}
	if m.NominalHashrate, err = r.ReadF32(); err != nil {
		return m, err
	}
	raw, err := r.ReadRawBytes(32)
	if err != nil {
		return m, err
	}
	var tb [32]byte
	copy(tb[:], raw)
	m.MaxTarget = bitcoin.TargetFromBytes(tb)
	return m, r.Finish()
}

// OpenStandardMiningChannelSuccess confirms the channel and assigns its
// initial target and extranonce prefix.
type OpenStandardMiningChannelSuccess struct {
	RequestID         uint32
	ChannelID         uint32
	Target            bitcoin.Target
	ExtranoncePrefix  []byte
	GroupChannelID    uint32
}

func (m OpenStandardMiningChannelSuccess) MsgType() uint8 {
	return MsgTypeOpenStandardMiningChannelSuccess
}

func (m OpenStandardMiningChannelSuccess) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.RequestID)
	w.WriteU32(m.ChannelID)
	b := m.Target.Bytes()
	w.WriteRawBytes(b[:])
	if err := w.WriteBoundedBytes8(m.ExtranoncePrefix, bytesMin0, bytesMax32); err != nil {
		return nil, err
	}
	w.WriteU32(m.GroupChannelID)
	return w.Bytes(), nil
}

func DecodeOpenStandardMiningChannelSuccess(data []byte) (OpenStandardMiningChannelSuccess, error) {
	r := NewReader(data)
	var m OpenStandardMiningChannelSuccess
	var err error
	if m.RequestID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	raw, err := r.ReadRawBytes(32)
	if err != nil {
		return m, err
	}
	var tb [32]byte
	copy(tb[:], raw)
	m.Target = bitcoin.TargetFromBytes(tb)
	if m.ExtranoncePrefix, err = r.ReadBoundedBytes8(bytesMin0, bytesMax32); err != nil {
		return m, err
	}
	if m.GroupChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// OpenStandardMiningChannelError reports why a channel open was refused.
type OpenStandardMiningChannelError struct {
	RequestID uint32
	ErrorCode string
}

func (m OpenStandardMiningChannelError) MsgType() uint8 {
	return MsgTypeOpenStandardMiningChannelError
}

func (m OpenStandardMiningChannelError) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.RequestID)
	if err := w.WriteBoundedString8(m.ErrorCode, shortMin0, errorCodeMax); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeOpenStandardMiningChannelError(data []byte) (OpenStandardMiningChannelError, error) {
	r := NewReader(data)
	var m OpenStandardMiningChannelError
	var err error
	if m.RequestID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.ErrorCode, err = r.ReadBoundedString8(shortMin0, errorCodeMax); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// UpdateChannel adjusts an open channel's hashrate/target.
type UpdateChannel struct {
	ChannelID       uint32
	NominalHashrate float32
	MaxTarget       bitcoin.Target
}

func (m UpdateChannel) MsgType() uint8 { return MsgTypeUpdateChannel }

func (m UpdateChannel) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	w.WriteF32(m.NominalHashrate)
	b := m.MaxTarget.Bytes()
	w.WriteRawBytes(b[:])
	return w.Bytes(), nil
}

func DecodeUpdateChannel(data []byte) (UpdateChannel, error) {
	r := NewReader(data)
	var m UpdateChannel
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.NominalHashrate, err = r.ReadF32(); err != nil {
		return m, err
	}
	raw, err := r.ReadRawBytes(32)
	if err != nil {
		return m, err
	}
	var tb [32]byte
	copy(tb[:], raw)
	m.MaxTarget = bitcoin.TargetFromBytes(tb)
	return m, r.Finish()
}

// CloseChannel closes a previously opened channel.
type CloseChannel struct {
	ChannelID  uint32
	ReasonCode string
}

func (m CloseChannel) MsgType() uint8 { return MsgTypeCloseChannel }

func (m CloseChannel) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	if err := w.WriteBoundedString8(m.ReasonCode, shortMin0, errorCodeMax); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeCloseChannel(data []byte) (CloseChannel, error) {
	r := NewReader(data)
	var m CloseChannel
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.ReasonCode, err = r.ReadBoundedString8(shortMin0, errorCodeMax); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// ChannelEndpointChanged signals that a channel's upstream routing changed
// and any cached job state for it should be dropped.
type ChannelEndpointChanged struct {
	ChannelID uint32
}

func (m ChannelEndpointChanged) MsgType() uint8 { return MsgTypeChannelEndpointChanged }

func (m ChannelEndpointChanged) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	return w.Bytes(), nil
}

func DecodeChannelEndpointChanged(data []byte) (ChannelEndpointChanged, error) {
	r := NewReader(data)
	var m ChannelEndpointChanged
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// -----------------------------------------------------------------------------
// Share submission
// -----------------------------------------------------------------------------

// SubmitSharesStandard reports a share found on a standard channel.
type SubmitSharesStandard struct {
	ChannelID uint32
	SeqNum    uint32
	JobID     uint32
	Nonce     uint32
	NTime     uint32
	Version   uint32
}

func (m SubmitSharesStandard) MsgType() uint8 { return MsgTypeSubmitSharesStandard }

func (m SubmitSharesStandard) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	w.WriteU32(m.SeqNum)
	w.WriteU32(m.JobID)
	w.WriteU32(m.Nonce)
	w.WriteU32(m.NTime)
	w.WriteU32(m.Version)
	return w.Bytes(), nil
}

func DecodeSubmitSharesStandard(data []byte) (SubmitSharesStandard, error) {
	r := NewReader(data)
	var m SubmitSharesStandard
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.SeqNum, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.JobID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.Nonce, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.NTime, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.Version, err = r.ReadU32(); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// SubmitSharesSuccess batches acceptance of one or more in-order shares.
type SubmitSharesSuccess struct {
	ChannelID               uint32
	LastSeqNum              uint32
	NewSubmitsAcceptedCount uint32
	NewSharesSum            uint64
}

func (m SubmitSharesSuccess) MsgType() uint8 { return MsgTypeSubmitSharesSuccess }

func (m SubmitSharesSuccess) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	w.WriteU32(m.LastSeqNum)
	w.WriteU32(m.NewSubmitsAcceptedCount)
	w.WriteU64(m.NewSharesSum)
	return w.Bytes(), nil
}

func DecodeSubmitSharesSuccess(data []byte) (SubmitSharesSuccess, error) {
	r := NewReader(data)
	var m SubmitSharesSuccess
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.LastSeqNum, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.NewSubmitsAcceptedCount, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.NewSharesSum, err = r.ReadU64(); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// SubmitSharesError reports rejection of a single share.
type SubmitSharesError struct {
	ChannelID uint32
	SeqNum    uint32
	ErrorCode string
}

func (m SubmitSharesError) MsgType() uint8 { return MsgTypeSubmitSharesError }

func (m SubmitSharesError) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	w.WriteU32(m.SeqNum)
	if err := w.WriteBoundedString8(m.ErrorCode, shortMin0, errorCodeMax); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeSubmitSharesError(data []byte) (SubmitSharesError, error) {
	r := NewReader(data)
	var m SubmitSharesError
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.SeqNum, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.ErrorCode, err = r.ReadBoundedString8(shortMin0, errorCodeMax); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// -----------------------------------------------------------------------------
// Jobs and targets
// -----------------------------------------------------------------------------

// NewMiningJob announces a job for a channel. FutureJob is true when the
// job's prev-hash has not yet been announced via SetNewPrevHash (spec §4.H
// step 2: "future_job: !clean_jobs").
type NewMiningJob struct {
	ChannelID  uint32
	JobID      uint32
	FutureJob  bool
	Version    uint32
	MerkleRoot [32]byte
}

func (m NewMiningJob) MsgType() uint8 { return MsgTypeNewMiningJob }

func (m NewMiningJob) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	w.WriteU32(m.JobID)
	w.WriteBool(m.FutureJob)
	w.WriteU32(m.Version)
	w.WriteRawBytes(m.MerkleRoot[:])
	return w.Bytes(), nil
}

func DecodeNewMiningJob(data []byte) (NewMiningJob, error) {
	r := NewReader(data)
	var m NewMiningJob
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.JobID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.FutureJob, err = r.ReadBool(); err != nil {
		return m, err
	}
	if m.Version, err = r.ReadU32(); err != nil {
		return m, err
	}
	raw, err := r.ReadRawBytes(32)
	if err != nil {
		return m, err
	}
	copy(m.MerkleRoot[:], raw)
	return m, r.Finish()
}

// SetNewPrevHash announces a new previous block hash for a job already
// sent via NewMiningJob.
type SetNewPrevHash struct {
	ChannelID uint32
	JobID     uint32
	PrevHash  [32]byte
	MinNTime  uint32
	NBits     uint32
}

func (m SetNewPrevHash) MsgType() uint8 { return MsgTypeSetNewPrevHash }

func (m SetNewPrevHash) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	w.WriteU32(m.JobID)
	w.WriteRawBytes(m.PrevHash[:])
	w.WriteU32(m.MinNTime)
	w.WriteU32(m.NBits)
	return w.Bytes(), nil
}

func DecodeSetNewPrevHash(data []byte) (SetNewPrevHash, error) {
	r := NewReader(data)
	var m SetNewPrevHash
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.JobID, err = r.ReadU32(); err != nil {
		return m, err
	}
	raw, err := r.ReadRawBytes(32)
	if err != nil {
		return m, err
	}
	copy(m.PrevHash[:], raw)
	if m.MinNTime, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.NBits, err = r.ReadU32(); err != nil {
		return m, err
	}
	return m, r.Finish()
}

// SetTarget updates a channel's share target outside of a channel-open
// handshake (the translator's mapping of a V1 mining.set_difficulty).
type SetTarget struct {
	ChannelID uint32
	MaxTarget bitcoin.Target
}

func (m SetTarget) MsgType() uint8 { return MsgTypeSetTarget }

func (m SetTarget) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteU32(m.ChannelID)
	b := m.MaxTarget.Bytes()
	w.WriteRawBytes(b[:])
	return w.Bytes(), nil
}

func DecodeSetTarget(data []byte) (SetTarget, error) {
	r := NewReader(data)
	var m SetTarget
	var err error
	if m.ChannelID, err = r.ReadU32(); err != nil {
		return m, err
	}
	raw, err := r.ReadRawBytes(32)
	if err != nil {
		return m, err
	}
	var tb [32]byte
	copy(tb[:], raw)
	m.MaxTarget = bitcoin.TargetFromBytes(tb)
	return m, r.Finish()
}

// Reconnect instructs the downstream device to reconnect elsewhere.
type Reconnect struct {
	NewHost string
	NewPort uint16
}

func (m Reconnect) MsgType() uint8 { return MsgTypeReconnect }

func (m Reconnect) Encode() ([]byte, error) {
	w := NewWriter()
	if err := w.WriteBoundedString8(m.NewHost, shortMin0, shortMax); err != nil {
		return nil, err
	}
	w.WriteU16(m.NewPort)
	return w.Bytes(), nil
}

func DecodeReconnect(data []byte) (Reconnect, error) {
	r := NewReader(data)
	var m Reconnect
	var err error
	if m.NewHost, err = r.ReadBoundedString8(shortMin0, shortMax); err != nil {
		return m, err
	}
	if m.NewPort, err = r.ReadU16(); err != nil {
		return m, err
	}
	return m, r.Finish()
}
