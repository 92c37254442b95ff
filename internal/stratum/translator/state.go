package translator

import "github.com/chimera-pool/stratum-noise-proxy/internal/bitcoin"

// PendingKind discriminates which V2-triggering request a pending V1
// request ID correlates to (spec §3 "PendingKind").
type PendingKind int

const (
	PendingConfigure PendingKind = iota
	PendingSubscribe
	PendingAuthorize
	PendingSubmit
	PendingOther
)

func (k PendingKind) String() string {
	switch k {
	case PendingConfigure:
		return "configure"
	case PendingSubscribe:
		return "subscribe"
	case PendingAuthorize:
		return "authorize"
	case PendingSubmit:
		return "submit"
	default:
		return "other"
	}
}

// pendingEntry correlates an outstanding V1 request ID with what should
// happen when its response arrives.
type pendingEntry struct {
	Kind      PendingKind
	ChannelID uint32
	V2SeqNum  uint32
}

// channelState is the one standard channel a V2 session opens (spec §3,
// glossary "Channel" — this proxy has one standard channel per session).
type channelState struct {
	ChannelID       uint32
	RequestID       uint32
	User            string
	NominalHashrate float32
	MaxTarget       bitcoin.Target

	SubscribeDone bool
	Authorized    bool
	DifficultySeen bool
	OpenedSuccess bool
}

// readyToOpen reports whether every precondition spec §4.H step 5 names
// has been observed.
func (c *channelState) readyToOpen() bool {
	return c != nil && c.SubscribeDone && c.Authorized && c.DifficultySeen && !c.OpenedSuccess
}

// jobEntry records what's needed to rebuild a V1 mining.submit from a V2
// SubmitSharesStandard referencing this V2 job id (spec §3
// v2_to_v1_job_map).
type jobEntry struct {
	V1JobID string
	NTime   uint32
	Version uint32
}
