// Package translator implements the V2↔V1 protocol translation state
// machine (spec §4.H), the hard core's largest component. One Translator
// is bound to exactly one (V2 downstream, V1 upstream) session pair; all
// mutation happens on whichever goroutine calls its Handle* methods, which
// the supervisor serializes per spec §5 ("the translator's message-
// handling logic is purely synchronous and never suspends").
package translator

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chimera-pool/stratum-noise-proxy/internal/bitcoin"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/dispatch"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/merkle"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v1"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/binary"
)

// agentSignature is the user-agent string this proxy identifies itself
// with on the upstream mining.subscribe call.
const agentSignature = "stratum-noise-proxy/1.0"

// defaultVersionRollingMask is requested from upstream via mining.configure
// when the downstream V2 device sends SetupConnection; the upstream's
// response (its own mask, possibly narrower) is what the translator
// actually applies at submit time.
const defaultVersionRollingMask = "1fffe000"

// errorCodeMax mirrors the V2 wire format's Str0_32 bound on ErrorCode
// fields (binary.errorCodeMax is unexported; this is the translator's own
// copy of the same constant used for truncating rejection messages).
const errorCodeMax = 32

// EmitV1Func sends one complete, newline-terminated V1 JSON-RPC line
// upstream.
type EmitV1Func func(line []byte) error

// EmitV2Func sends one decoded V2 message downstream, already paired with
// its channel-message flag.
type EmitV2Func func(channelMessage bool, msgType uint8, payload []byte) error

// Config bundles a Translator's fixed collaborators.
type Config struct {
	EmitV1 EmitV1Func
	EmitV2 EmitV2Func
	Logger zerolog.Logger

	// AllowClientReconnect gates translation of V1 client.reconnect into a
	// V2 Reconnect (spec §4.H "when enabled by configuration").
	AllowClientReconnect bool
}

// Translator is the per-connection V2↔V1 state machine (spec §3 "Translator
// state").
type Translator struct {
	emitV1 EmitV1Func
	emitV2 EmitV2Func
	logger zerolog.Logger

	allowClientReconnect bool

	v1RequestID uint32
	v1Pending   map[uint32]pendingEntry

	channel         *channelState
	extranonce1     []byte
	extranonce2Size int
	versionMask     *uint32

	currentJobV1 *v1.NotifyParams
	v2JobIDNext  uint32
	v2ToV1JobMap map[uint32]jobEntry

	currentTarget bitcoin.Target

	setupProtocolVersion uint16
	setupFlags           uint32

	merkle *merkle.Builder
	v2disp *dispatch.Dispatcher
}

// New builds a Translator ready to handle frames for one new session.
func New(cfg Config) *Translator {
	t := &Translator{
		emitV1:               cfg.EmitV1,
		emitV2:               cfg.EmitV2,
		logger:               cfg.Logger,
		allowClientReconnect: cfg.AllowClientReconnect,
		v1Pending:            make(map[uint32]pendingEntry),
		v2ToV1JobMap:         make(map[uint32]jobEntry),
		currentTarget:        bitcoin.Difficulty1Target,
		merkle:               merkle.NewBuilder(),
	}
	t.v2disp = t.buildV2Dispatcher()
	return t
}

func (t *Translator) nextV1RequestID() uint32 {
	id := t.v1RequestID
	t.v1RequestID++
	return id
}

// buildV2Dispatcher wires Component G (internal/stratum/dispatch) to this
// translator's handler methods, exercising the frame-dispatcher component
// rather than hand-rolling a second switch statement for the same job.
func (t *Translator) buildV2Dispatcher() *dispatch.Dispatcher {
	d := dispatch.New(func(frame binary.Frame) error {
		t.logger.Warn().Uint8("msg_type", frame.MsgType).Msg("translator: unhandled v2 message type, dropping")
		return nil
	})
	d.Register(binary.MsgTypeSetupConnection, t.handleSetupConnection)
	d.Register(binary.MsgTypeOpenStandardMiningChannel, t.handleOpenStandardMiningChannel)
	d.Register(binary.MsgTypeUpdateChannel, t.handleUpdateChannel)
	d.Register(binary.MsgTypeCloseChannel, t.handleCloseChannel)
	d.Register(binary.MsgTypeSubmitSharesStandard, t.handleSubmitSharesStandard)
	return d
}

// HandleV2Frame routes one decoded downstream V2 frame through the
// dispatcher.
func (t *Translator) HandleV2Frame(frame binary.Frame) error {
	return t.v2disp.Dispatch(frame)
}

// --------------------------------------------------------------------------
// V2 -> V1
// --------------------------------------------------------------------------

func (t *Translator) handleSetupConnection(frame binary.Frame) error {
	msg, err := binary.DecodeSetupConnection(frame.Payload)
	if err != nil {
		return fmt.Errorf("translator: decoding SetupConnection: %w", err)
	}
	t.setupProtocolVersion = msg.ProtocolVersion
	t.setupFlags = msg.Flags

	maskJSON, _ := json.Marshal(defaultVersionRollingMask)
	params := v1.ConfigureParams{
		Extensions: []string{"version-rolling"},
		Params: map[string]json.RawMessage{
			"version-rolling.mask": maskJSON,
		},
	}
	id := t.nextV1RequestID()
	t.v1Pending[id] = pendingEntry{Kind: PendingConfigure}
	return t.sendV1Request(id, v1.MethodConfigure, params)
}

func (t *Translator) handleOpenStandardMiningChannel(frame binary.Frame) error {
	msg, err := binary.DecodeOpenStandardMiningChannel(frame.Payload)
	if err != nil {
		return fmt.Errorf("translator: decoding OpenStandardMiningChannel: %w", err)
	}
	t.channel = &channelState{
		ChannelID:       0,
		RequestID:       msg.RequestID,
		User:            msg.User,
		NominalHashrate: msg.NominalHashrate,
		MaxTarget:       msg.MaxTarget,
	}

	subscribeID := t.nextV1RequestID()
	t.v1Pending[subscribeID] = pendingEntry{Kind: PendingSubscribe}
	if err := t.sendV1Request(subscribeID, v1.MethodSubscribe, v1.SubscribeParams{UserAgent: agentSignature}); err != nil {
		return err
	}

	authorizeID := t.nextV1RequestID()
	t.v1Pending[authorizeID] = pendingEntry{Kind: PendingAuthorize}
	return t.sendV1Request(authorizeID, v1.MethodAuthorize, v1.AuthorizeParams{Username: msg.User})
}

func (t *Translator) handleUpdateChannel(frame binary.Frame) error {
	msg, err := binary.DecodeUpdateChannel(frame.Payload)
	if err != nil {
		return fmt.Errorf("translator: decoding UpdateChannel: %w", err)
	}
	if t.channel == nil || t.channel.ChannelID != msg.ChannelID {
		t.logger.Warn().Uint32("channel_id", msg.ChannelID).Msg("translator: UpdateChannel for unknown channel, dropping")
		return nil
	}
	t.channel.NominalHashrate = msg.NominalHashrate
	t.channel.MaxTarget = msg.MaxTarget
	return nil
}

func (t *Translator) handleCloseChannel(frame binary.Frame) error {
	msg, err := binary.DecodeCloseChannel(frame.Payload)
	if err != nil {
		return fmt.Errorf("translator: decoding CloseChannel: %w", err)
	}
	if t.channel != nil && t.channel.ChannelID == msg.ChannelID {
		t.channel = nil
	}
	return nil
}

func (t *Translator) handleSubmitSharesStandard(frame binary.Frame) error {
	msg, err := binary.DecodeSubmitSharesStandard(frame.Payload)
	if err != nil {
		return fmt.Errorf("translator: decoding SubmitSharesStandard: %w", err)
	}

	job, ok := t.v2ToV1JobMap[msg.JobID]
	if !ok {
		return t.emitSubmitError(msg.ChannelID, msg.SeqNum, "V2 Job ID not previously provided by upstream")
	}

	extranonce2 := make([]byte, t.extranonce2Size)
	// msg.NTime here carries the V2 submit's ntime_offset (spec §4.H step
	// 3 names the field ntime_offset; the wire struct keeps the shorter
	// NTime name since every other message's NTime field is an absolute
	// value and this is the only offset).
	ntime := job.NTime + msg.NTime

	var versionBits *v1.HexU32Be
	if t.versionMask != nil {
		vb := v1.HexU32Be(msg.Version & *t.versionMask)
		versionBits = &vb
	}

	params := v1.SubmitParams{
		WorkerName:  t.workerName(),
		JobID:       job.V1JobID,
		ExtraNonce2: v1.HexBytes(extranonce2),
		NTime:       v1.HexU32Be(ntime),
		Nonce:       v1.HexU32Be(msg.Nonce),
		VersionBits: versionBits,
	}

	id := t.nextV1RequestID()
	t.v1Pending[id] = pendingEntry{Kind: PendingSubmit, ChannelID: msg.ChannelID, V2SeqNum: msg.SeqNum}
	return t.sendV1Request(id, v1.MethodSubmit, params)
}

func (t *Translator) workerName() string {
	if t.channel == nil {
		return ""
	}
	return t.channel.User
}

func (t *Translator) sendV1Request(id uint32, method string, params any) error {
	line, err := v1.EncodeRequest(&id, method, params)
	if err != nil {
		return fmt.Errorf("translator: encoding %s request: %w", method, err)
	}
	return t.emitV1(line)
}

// --------------------------------------------------------------------------
// V1 -> V2
// --------------------------------------------------------------------------

// HandleV1Line decodes and routes one upstream V1 JSON line.
func (t *Translator) HandleV1Line(line []byte) error {
	frame, err := v1.ParseFrame(line)
	if err != nil {
		t.logger.Warn().Err(err).Msg("translator: malformed v1 line, dropping")
		return nil
	}
	switch frame.Kind {
	case v1.FrameRequest:
		return t.handleV1Request(frame.Request)
	case v1.FrameResponse:
		return t.handleV1Response(frame.Response)
	default:
		t.logger.Warn().Msg("translator: unrecognized v1 frame shape, dropping")
		return nil
	}
}

func (t *Translator) handleV1Request(req *v1.RequestFrame) error {
	switch req.Method {
	case v1.MethodNotify:
		var params v1.NotifyParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			t.logger.Warn().Err(err).Msg("translator: malformed mining.notify params, dropping")
			return nil
		}
		return t.handleV1Notify(params)
	case v1.MethodSetDifficulty:
		var params v1.SetDifficultyParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			t.logger.Warn().Err(err).Msg("translator: malformed mining.set_difficulty params, dropping")
			return nil
		}
		return t.handleV1SetDifficulty(params)
	case v1.MethodSetVersionMask:
		var params v1.SetVersionMaskParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			t.logger.Warn().Err(err).Msg("translator: malformed mining.set_version_mask params, dropping")
			return nil
		}
		mask := uint32(params.Mask)
		t.versionMask = &mask
		return nil
	case v1.MethodClientReconn:
		if !t.allowClientReconnect {
			t.logger.Debug().Msg("translator: client.reconnect received but disabled, dropping")
			return nil
		}
		var params v1.ClientReconnectParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			t.logger.Warn().Err(err).Msg("translator: malformed client.reconnect params, dropping")
			return nil
		}
		return t.handleV1ClientReconnect(params)
	default:
		t.logger.Debug().Str("method", req.Method).Msg("translator: unknown v1 method, dropping")
		return nil
	}
}

func (t *Translator) handleV1Notify(params v1.NotifyParams) error {
	if t.channel == nil {
		t.logger.Warn().Msg("translator: mining.notify with no open channel, dropping")
		return nil
	}

	branch := make([][]byte, len(params.MerkleBranch))
	for i, h := range params.MerkleBranch {
		branch[i] = h
	}
	extranonce2 := make([]byte, t.extranonce2Size)
	root := t.merkle.ComputeJobRoot(params.Coinb1, t.extranonce1, extranonce2, params.Coinb2, branch)

	v2JobID := t.v2JobIDNext
	t.v2JobIDNext++

	if err := t.emitV2Message(true, binary.NewMiningJob{
		ChannelID:  t.channel.ChannelID,
		JobID:      v2JobID,
		FutureJob:  !params.CleanJobs,
		Version:    uint32(params.Version),
		MerkleRoot: root,
	}); err != nil {
		return err
	}

	var prevHash [32]byte
	copy(prevHash[:], params.PrevHash[:])
	if err := t.emitV2Message(true, binary.SetNewPrevHash{
		ChannelID: t.channel.ChannelID,
		JobID:     v2JobID,
		PrevHash:  prevHash,
		MinNTime:  uint32(params.NTime),
		NBits:     uint32(params.NBits),
	}); err != nil {
		return err
	}

	t.v2ToV1JobMap[v2JobID] = jobEntry{V1JobID: params.JobID, NTime: uint32(params.NTime), Version: uint32(params.Version)}
	t.currentJobV1 = &params
	return nil
}

func (t *Translator) handleV1SetDifficulty(params v1.SetDifficultyParams) error {
	t.currentTarget = bitcoin.FromPoolDifficulty(uint64(params.Difficulty))
	if t.channel == nil {
		return nil
	}
	t.channel.DifficultySeen = true
	if t.channel.readyToOpen() {
		return t.completeChannelOpen()
	}
	if t.channel.OpenedSuccess {
		return t.emitV2Message(true, binary.SetTarget{ChannelID: t.channel.ChannelID, MaxTarget: t.currentTarget})
	}
	return nil
}

func (t *Translator) completeChannelOpen() error {
	c := t.channel
	c.OpenedSuccess = true
	return t.emitV2Message(false, binary.OpenStandardMiningChannelSuccess{
		RequestID:        c.RequestID,
		ChannelID:        c.ChannelID,
		Target:           t.currentTarget,
		ExtranoncePrefix: t.extranonce1,
		GroupChannelID:   0,
	})
}

func (t *Translator) handleV1ClientReconnect(params v1.ClientReconnectParams) error {
	if len(params.Host) > 255 {
		t.logger.Warn().Int("len", len(params.Host)).Msg("translator: client.reconnect host overlong, dropping")
		return nil
	}
	if params.Port < 0 || params.Port > 65535 {
		t.logger.Warn().Int("port", int(params.Port)).Msg("translator: client.reconnect port out of range, dropping")
		return nil
	}
	return t.emitV2Message(false, binary.Reconnect{NewHost: params.Host, NewPort: uint16(params.Port)})
}

func (t *Translator) handleV1Response(resp *v1.ResponseFrame) error {
	entry, ok := t.v1Pending[resp.ID]
	if !ok {
		t.logger.Warn().Uint32("id", resp.ID).Msg("translator: v1 response has no matching pending request, dropping")
		return nil
	}
	delete(t.v1Pending, resp.ID)

	switch entry.Kind {
	case PendingConfigure:
		return t.handleConfigureResponse(resp)
	case PendingSubscribe:
		return t.handleSubscribeResponse(resp)
	case PendingAuthorize:
		return t.handleAuthorizeResponse(resp)
	case PendingSubmit:
		return t.handleSubmitResponse(entry, resp)
	default:
		return nil
	}
}

func (t *Translator) handleConfigureResponse(resp *v1.ResponseFrame) error {
	var fields map[string]json.RawMessage
	if len(resp.Result) > 0 {
		_ = json.Unmarshal(resp.Result, &fields)
	}
	if raw, ok := fields["version-rolling.mask"]; ok {
		var maskHex v1.HexU32Be
		if err := json.Unmarshal(raw, &maskHex); err == nil {
			mask := uint32(maskHex)
			t.versionMask = &mask
		}
	}
	return t.emitV2Message(false, binary.SetupConnectionSuccess{
		UsedProtocolVersion: t.setupProtocolVersion,
		Flags:               t.setupFlags,
	})
}

func (t *Translator) handleSubscribeResponse(resp *v1.ResponseFrame) error {
	if t.channel == nil {
		return nil
	}
	var result v1.SubscribeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.logger.Warn().Err(err).Msg("translator: malformed mining.subscribe result, dropping")
		return nil
	}
	t.extranonce1 = result.ExtraNonce1
	t.extranonce2Size = result.ExtraNonce2Size
	t.channel.SubscribeDone = true
	if t.channel.readyToOpen() {
		return t.completeChannelOpen()
	}
	return nil
}

func (t *Translator) handleAuthorizeResponse(resp *v1.ResponseFrame) error {
	if t.channel == nil {
		return nil
	}
	var authorized bool
	if resp.Error == nil {
		_ = json.Unmarshal(resp.Result, &authorized)
	}
	if resp.Error != nil || !authorized {
		err := t.emitV2Message(false, binary.OpenStandardMiningChannelError{
			RequestID: t.channel.RequestID,
			ErrorCode: truncateErrorCode("authorization failed"),
		})
		t.channel = nil
		return err
	}
	t.channel.Authorized = true
	if t.channel.readyToOpen() {
		return t.completeChannelOpen()
	}
	return nil
}

func (t *Translator) handleSubmitResponse(entry pendingEntry, resp *v1.ResponseFrame) error {
	if resp.Error != nil {
		code := fmt.Sprintf("ShareRjct:StratumError(%d, \"%s", resp.Error.Code, resp.Error.Message)
		return t.emitSubmitError(entry.ChannelID, entry.V2SeqNum, code)
	}

	var accepted bool
	if err := json.Unmarshal(resp.Result, &accepted); err != nil {
		t.logger.Warn().Err(err).Msg("translator: malformed mining.submit result, dropping")
		return nil
	}
	if !accepted {
		return t.emitSubmitError(entry.ChannelID, entry.V2SeqNum, "share rejected")
	}

	return t.emitV2Message(true, binary.SubmitSharesSuccess{
		ChannelID:               entry.ChannelID,
		LastSeqNum:              entry.V2SeqNum,
		NewSubmitsAcceptedCount: 1,
		NewSharesSum:            t.currentTarget.GetDifficulty(),
	})
}

func (t *Translator) emitSubmitError(channelID, seqNum uint32, code string) error {
	return t.emitV2Message(true, binary.SubmitSharesError{
		ChannelID: channelID,
		SeqNum:    seqNum,
		ErrorCode: truncateErrorCode(code),
	})
}

// truncateErrorCode clips s to the V2 wire format's Str0_32 bound on error
// codes (spec §4.H step 4's "{truncated_message}"). The truncation is
// byte-based: error strings in this proxy are ASCII (stratum error text,
// fixed English messages), so byte and rune truncation coincide.
func truncateErrorCode(s string) string {
	if len(s) <= errorCodeMax {
		return s
	}
	return s[:errorCodeMax]
}

type v2Message interface {
	MsgType() uint8
	Encode() ([]byte, error)
}

func (t *Translator) emitV2Message(channelMessage bool, msg v2Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("translator: encoding %T: %w", msg, err)
	}
	return t.emitV2(channelMessage, msg.MsgType(), payload)
}
