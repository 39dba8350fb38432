// One-shot TCP handshake payload (§4.3: "the initial server-to-client
// frame carries the passphrase string raw (no RpcBody)"), extended to
// carry the registry snapshot and the client's assigned index
// alongside the passphrase in one compact frame instead of three
// ad hoc ones. Encoded with github.com/tinylib/msgp's manual
// Writer/Reader (no generated (Un)MarshalMsg — this is a hand-rolled
// three-field struct, not worth a go:generate step).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"
)

// handshakeMsg is the raw (non-RpcBody) frame both sides exchange
// once at connection setup.
type handshakeMsg struct {
	Passphrase  string
	ClientIndex uint32
	Registry    map[string]string
}

func encodeHandshake(h handshakeMsg) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := w.WriteMapHeader(3); err != nil {
		return nil, err
	}
	if err := w.WriteString("passphrase"); err != nil {
		return nil, err
	}
	if err := w.WriteString(h.Passphrase); err != nil {
		return nil, err
	}
	if err := w.WriteString("clientIndex"); err != nil {
		return nil, err
	}
	if err := w.WriteUint32(h.ClientIndex); err != nil {
		return nil, err
	}
	if err := w.WriteString("registry"); err != nil {
		return nil, err
	}
	if err := w.WriteMapHeader(uint32(len(h.Registry))); err != nil {
		return nil, err
	}
	for k, v := range h.Registry {
		if err := w.WriteString(k); err != nil {
			return nil, err
		}
		if err := w.WriteString(v); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHandshake(b []byte) (handshakeMsg, error) {
	var h handshakeMsg
	h.Registry = make(map[string]string)

	r := msgp.NewReader(bytes.NewReader(b))
	n, err := r.ReadMapHeader()
	if err != nil {
		return h, errors.Wrap(err, "rigelnet: handshake map header")
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return h, errors.Wrap(err, "rigelnet: handshake key")
		}
		switch key {
		case "passphrase":
			if h.Passphrase, err = r.ReadString(); err != nil {
				return h, err
			}
		case "clientIndex":
			if h.ClientIndex, err = r.ReadUint32(); err != nil {
				return h, err
			}
		case "registry":
			m, err := r.ReadMapHeader()
			if err != nil {
				return h, err
			}
			for j := uint32(0); j < m; j++ {
				k, err := r.ReadString()
				if err != nil {
					return h, err
				}
				v, err := r.ReadString()
				if err != nil {
					return h, err
				}
				h.Registry[k] = v
			}
		default:
			if err := r.Skip(); err != nil {
				return h, err
			}
		}
	}
	return h, nil
}
