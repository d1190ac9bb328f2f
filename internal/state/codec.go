package state

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes a Context for a Store
type Codec interface {
	Name() string
	Marshal(c *Context) ([]byte, error)
	Unmarshal(data []byte) (*Context, error)
}

// JSONCodec is the serialize/restore format
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(c *Context) ([]byte, error) {
	return json.Marshal(c)
}

func (JSONCodec) Unmarshal(data []byte) (*Context, error) {
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode context json: %w", err)
	}
	c.normalize()
	return &c, nil
}

// MsgpackCodec is a compact binary encoding used by the redis store
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Marshal(c *Context) ([]byte, error) {
	return msgpack.Marshal(c)
}

func (MsgpackCodec) Unmarshal(data []byte) (*Context, error) {
	var c Context
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode context msgpack: %w", err)
	}
	c.normalize()
	return &c, nil
}

// Serialize encodes the Context so a host process can persist it
func (c *Context) Serialize() ([]byte, error) {
	return JSONCodec{}.Marshal(c)
}

// Restore rebuilds a Context from Serialize output
func Restore(data []byte) (*Context, error) {
	return JSONCodec{}.Unmarshal(data)
}
