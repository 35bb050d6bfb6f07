package state

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// StateHeader is persisted under KeyState. The wire format is protobuf so
// that light clients can decode it without the Go types.
type StateHeader struct {
	ChainId     string
	Height      uint64
	Time        uint64
	Operational bool
	Owner       []byte
	RootHash    []byte
	Hash        []byte
}

const (
	headerFieldChainId     protowire.Number = 1
	headerFieldHeight      protowire.Number = 2
	headerFieldTime        protowire.Number = 3
	headerFieldOperational protowire.Number = 4
	headerFieldOwner       protowire.Number = 5
	headerFieldRootHash    protowire.Number = 6
	headerFieldHash        protowire.Number = 7
)

var ErrHeaderMalformed = errors.New("state header malformed")

func (h *StateHeader) GetHash() []byte {
	if h == nil {
		return nil
	}
	return h.Hash
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	n.Owner = cloneBytes(h.Owner)
	n.RootHash = cloneBytes(h.RootHash)
	n.Hash = cloneBytes(h.Hash)
	return &n
}

func (h *StateHeader) Marshal() []byte {
	var b []byte
	if h.ChainId != "" {
		b = protowire.AppendTag(b, headerFieldChainId, protowire.BytesType)
		b = protowire.AppendString(b, h.ChainId)
	}
	if h.Height != 0 {
		b = protowire.AppendTag(b, headerFieldHeight, protowire.VarintType)
		b = protowire.AppendVarint(b, h.Height)
	}
	if h.Time != 0 {
		b = protowire.AppendTag(b, headerFieldTime, protowire.VarintType)
		b = protowire.AppendVarint(b, h.Time)
	}
	if h.Operational {
		b = protowire.AppendTag(b, headerFieldOperational, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(h.Operational))
	}
	for _, f := range []struct {
		num protowire.Number
		val []byte
	}{
		{headerFieldOwner, h.Owner},
		{headerFieldRootHash, h.RootHash},
		{headerFieldHash, h.Hash},
	} {
		if len(f.val) == 0 {
			continue
		}
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendBytes(b, f.val)
	}
	return b
}

func (h *StateHeader) Unmarshal(b []byte) error {
	*h = StateHeader{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Join(ErrHeaderMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case typ == protowire.VarintType && (num == headerFieldHeight || num == headerFieldTime || num == headerFieldOperational):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return errors.Join(ErrHeaderMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case headerFieldHeight:
				h.Height = v
			case headerFieldTime:
				h.Time = v
			default:
				h.Operational = protowire.DecodeBool(v)
			}
		case typ == protowire.BytesType && num >= headerFieldChainId && num <= headerFieldHash:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return errors.Join(ErrHeaderMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case headerFieldChainId:
				h.ChainId = string(v)
			case headerFieldOwner:
				h.Owner = cloneBytes(v)
			case headerFieldRootHash:
				h.RootHash = cloneBytes(v)
			case headerFieldHash:
				h.Hash = cloneBytes(v)
			default:
				return ErrHeaderMalformed
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.Join(ErrHeaderMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	n := make([]byte, len(b))
	copy(n, b)
	return n
}
