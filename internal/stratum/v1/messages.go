package v1

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Method names for the mining.* calls this proxy speaks.
const (
	MethodConfigure      = "mining.configure"
	MethodSubscribe      = "mining.subscribe"
	MethodAuthorize      = "mining.authorize"
	MethodSubmit         = "mining.submit"
	MethodSetDifficulty  = "mining.set_difficulty"
	MethodNotify         = "mining.notify"
	MethodSetVersionMask = "mining.set_version_mask"
	MethodClientReconn   = "client.reconnect"
)

// ConfigureParams is mining.configure's positional [extensions, params]
// pair.
type ConfigureParams struct {
	Extensions []string
	Params     map[string]json.RawMessage
}

func (c ConfigureParams) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{c.Extensions, c.Params})
}

func (c *ConfigureParams) UnmarshalJSON(data []byte) error {
	var arr [2]json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: mining.configure params: %w", err)
	}
	if err := json.Unmarshal(arr[0], &c.Extensions); err != nil {
		return err
	}
	return json.Unmarshal(arr[1], &c.Params)
}

// SubscribeParams is mining.subscribe's positional [user_agent, session_id?].
type SubscribeParams struct {
	UserAgent string
	SessionID *string
}

func (s SubscribeParams) MarshalJSON() ([]byte, error) {
	if s.SessionID != nil {
		return json.Marshal([2]any{s.UserAgent, *s.SessionID})
	}
	return json.Marshal([1]any{s.UserAgent})
}

func (s *SubscribeParams) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: mining.subscribe params: %w", err)
	}
	if len(arr) == 0 {
		return fmt.Errorf("v1: mining.subscribe params: expected at least 1 element")
	}
	if err := json.Unmarshal(arr[0], &s.UserAgent); err != nil {
		return err
	}
	if len(arr) >= 2 {
		var id string
		if err := json.Unmarshal(arr[1], &id); err != nil {
			return err
		}
		s.SessionID = &id
	}
	return nil
}

// SubscribeResult is mining.subscribe's response payload:
// [[[subscription_type, subscription_id], ...], extranonce1, extranonce2_size].
type SubscribeResult struct {
	ExtraNonce1     ExtraNonce1
	ExtraNonce2Size int
}

func (r SubscribeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{[][2]string{}, r.ExtraNonce1, r.ExtraNonce2Size})
}

func (r *SubscribeResult) UnmarshalJSON(data []byte) error {
	var arr [3]json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: mining.subscribe result: %w", err)
	}
	if err := json.Unmarshal(arr[1], &r.ExtraNonce1); err != nil {
		return err
	}
	return json.Unmarshal(arr[2], &r.ExtraNonce2Size)
}

// AuthorizeParams is mining.authorize's positional [username, password].
type AuthorizeParams struct {
	Username string
	Password string
}

func (a AuthorizeParams) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{a.Username, a.Password})
}

func (a *AuthorizeParams) UnmarshalJSON(data []byte) error {
	var arr [2]string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: mining.authorize params: %w", err)
	}
	a.Username, a.Password = arr[0], arr[1]
	return nil
}

// SubmitParams is mining.submit's positional
// [worker_name, job_id, extranonce2, ntime, nonce, version_bits?].
type SubmitParams struct {
	WorkerName  string
	JobID       string
	ExtraNonce2 HexBytes
	NTime       HexU32Be
	Nonce       HexU32Be
	VersionBits *HexU32Be
}

func (s SubmitParams) MarshalJSON() ([]byte, error) {
	if s.VersionBits != nil {
		return json.Marshal([6]any{s.WorkerName, s.JobID, s.ExtraNonce2, s.NTime, s.Nonce, *s.VersionBits})
	}
	return json.Marshal([5]any{s.WorkerName, s.JobID, s.ExtraNonce2, s.NTime, s.Nonce})
}

func (s *SubmitParams) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: mining.submit params: %w", err)
	}
	if len(arr) < 5 {
		return fmt.Errorf("v1: mining.submit params: expected at least 5 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &s.WorkerName); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[1], &s.JobID); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[2], &s.ExtraNonce2); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[3], &s.NTime); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[4], &s.Nonce); err != nil {
		return err
	}
	if len(arr) >= 6 {
		var vb HexU32Be
		if err := json.Unmarshal(arr[5], &vb); err != nil {
			return err
		}
		s.VersionBits = &vb
	}
	return nil
}

// SetDifficultyParams is mining.set_difficulty's positional [difficulty].
type SetDifficultyParams struct {
	Difficulty float64
}

func (s SetDifficultyParams) MarshalJSON() ([]byte, error) {
	return json.Marshal([1]float64{s.Difficulty})
}

func (s *SetDifficultyParams) UnmarshalJSON(data []byte) error {
	var arr [1]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: mining.set_difficulty params: %w", err)
	}
	s.Difficulty = arr[0]
	return nil
}

// NotifyParams is mining.notify's positional parameter set describing a
// new job.
type NotifyParams struct {
	JobID        string
	PrevHash     PrevHash
	Coinb1       HexBytes
	Coinb2       HexBytes
	MerkleBranch []HexBytes
	Version      HexU32Be
	NBits        HexU32Be
	NTime        HexU32Be
	CleanJobs    bool
}

func (n NotifyParams) MarshalJSON() ([]byte, error) {
	branch := n.MerkleBranch
	if branch == nil {
		branch = []HexBytes{}
	}
	return json.Marshal([9]any{
		n.JobID, n.PrevHash, n.Coinb1, n.Coinb2, branch, n.Version, n.NBits, n.NTime, n.CleanJobs,
	})
}

func (n *NotifyParams) UnmarshalJSON(data []byte) error {
	var arr [9]json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: mining.notify params: %w", err)
	}
	fields := []struct {
		dst any
	}{
		{&n.JobID}, {&n.PrevHash}, {&n.Coinb1}, {&n.Coinb2}, {&n.MerkleBranch},
		{&n.Version}, {&n.NBits}, {&n.NTime}, {&n.CleanJobs},
	}
	for i, f := range fields {
		if err := json.Unmarshal(arr[i], f.dst); err != nil {
			return fmt.Errorf("v1: mining.notify params[%d]: %w", i, err)
		}
	}
	return nil
}

// SetVersionMaskParams is mining.set_version_mask's positional [mask].
type SetVersionMaskParams struct {
	Mask HexU32Be
}

func (s SetVersionMaskParams) MarshalJSON() ([]byte, error) {
	return json.Marshal([1]HexU32Be{s.Mask})
}

func (s *SetVersionMaskParams) UnmarshalJSON(data []byte) error {
	var arr [1]HexU32Be
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: mining.set_version_mask params: %w", err)
	}
	s.Mask = arr[0]
	return nil
}

// FlexInt is a JSON integer that also accepts the same value encoded as a
// string, matching the leniency real miner firmware needs for
// client.reconnect's port field (spec §4.H).
type FlexInt int

func (n FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(n))
}

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		*n = FlexInt(asInt)
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("v1: value is neither a JSON number nor string: %w", err)
	}
	parsed, err := strconv.Atoi(asString)
	if err != nil {
		return fmt.Errorf("v1: %q is not an integer: %w", asString, err)
	}
	*n = FlexInt(parsed)
	return nil
}

// ClientReconnectParams is client.reconnect's positional
// [host, port, wait_time?]. port may arrive as either a JSON number or a
// JSON string (spec §4.H).
type ClientReconnectParams struct {
	Host     string
	Port     FlexInt
	WaitTime *FlexInt
}

func (c ClientReconnectParams) MarshalJSON() ([]byte, error) {
	if c.WaitTime != nil {
		return json.Marshal([3]any{c.Host, c.Port, *c.WaitTime})
	}
	return json.Marshal([2]any{c.Host, c.Port})
}

func (c *ClientReconnectParams) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: client.reconnect params: %w", err)
	}
	if len(arr) < 2 {
		return fmt.Errorf("v1: client.reconnect params: expected at least 2 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &c.Host); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[1], &c.Port); err != nil {
		return err
	}
	if len(arr) >= 3 {
		var wt FlexInt
		if err := json.Unmarshal(arr[2], &wt); err != nil {
			return err
		}
		c.WaitTime = &wt
	}
	return nil
}
