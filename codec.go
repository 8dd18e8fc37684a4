package main

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Client -> server command tags (first byte of every datagram).
const (
	CmdInvalid byte = iota
	CmdKeepAlive
	CmdLogin
	CmdCreateCharacter
	cmdCount
)

// Server -> client message tags.
const (
	MsgInvalid byte = iota
	MsgCharacterID
	MsgBadPw
	MsgNewAccountCreated
)

// MaxDatagramLen bounds every encoded message to a size that survives
// common UDP path MTUs without fragmentation.
const MaxDatagramLen = 1200

var commandNames = [cmdCount]string{"Invalid", "KeepAlive", "Login", "CreateCharacter"}

// CommandName returns a printable name for a command tag.
func CommandName(tag byte) string {
	if tag < cmdCount {
		return commandNames[tag]
	}
	return fmt.Sprintf("Unknown(%d)", tag)
}

// Command is a fully parsed inbound datagram. It is a value type: the
// receive loop copies it into the inbound queue and lane 0 copies it out,
// so no ownership is ever shared across threads.
type Command struct {
	Type    byte
	Color   byte
	LANPort uint16
	LANIP   uint32
	Name    string
	Pass    []byte
	Sender  netip.AddrPort
}

// Datagram is an encoded outbound message plus its destination.
type Datagram struct {
	Bytes []byte
	To    netip.AddrPort
}

// DecodeCommand parses one datagram. Every read is bounded by len(buf);
// a truncated or unrecognized datagram yields an error and must be
// dropped by the caller, never enqueued.
func DecodeCommand(buf []byte, sender netip.AddrPort) (Command, error) {
	if len(buf) == 0 {
		return Command{}, fmt.Errorf("empty datagram")
	}

	cmd := Command{Type: buf[0], Sender: sender}
	switch cmd.Type {
	case CmdKeepAlive:
		return cmd, nil

	case CmdLogin:
		// tag, ~port u16 LE, ~ip u32 LE, name_len u8, name, NUL-terminated pass
		if len(buf) < 8 {
			return Command{}, fmt.Errorf("login: truncated header (%d bytes)", len(buf))
		}
		cmd.LANPort = ^binary.LittleEndian.Uint16(buf[1:3])
		cmd.LANIP = ^binary.LittleEndian.Uint32(buf[3:7])

		nameLen := int(buf[7])
		idx := 8
		if idx+nameLen > len(buf) {
			return Command{}, fmt.Errorf("login: name length %d exceeds datagram", nameLen)
		}
		cmd.Name = string(buf[idx : idx+nameLen])
		idx += nameLen

		// The password run ends at a zero byte; the scan is bounded by the
		// datagram so a missing terminator consumes the remainder instead
		// of reading past the buffer.
		end := idx
		for end < len(buf) && buf[end] != 0 {
			end++
		}
		cmd.Pass = append([]byte(nil), buf[idx:end]...)
		return cmd, nil

	case CmdCreateCharacter:
		if len(buf) < 2 {
			return Command{}, fmt.Errorf("create character: missing color byte")
		}
		cmd.Color = buf[1]
		return cmd, nil
	}

	return Command{}, fmt.Errorf("unrecognized command tag %d", cmd.Type)
}

// EncodeKeepAlive encodes the client keep-alive ping.
func EncodeKeepAlive() []byte {
	return []byte{CmdKeepAlive}
}

// EncodeLogin encodes a login command. Port and IP are stored bit-inverted
// on the wire; DecodeCommand applies the same inversion so the two sides
// stay symmetric.
func EncodeLogin(lanPort uint16, lanIP uint32, name string, pass []byte) ([]byte, error) {
	if len(name) > 255 {
		return nil, fmt.Errorf("login: name too long (%d bytes)", len(name))
	}
	for _, b := range pass {
		if b == 0 {
			return nil, fmt.Errorf("login: password may not contain NUL")
		}
	}
	if 8+len(name)+len(pass)+1 > MaxDatagramLen {
		return nil, fmt.Errorf("login: message exceeds %d bytes", MaxDatagramLen)
	}

	buf := make([]byte, 0, 8+len(name)+len(pass)+1)
	buf = append(buf, CmdLogin)
	buf = binary.LittleEndian.AppendUint16(buf, ^lanPort)
	buf = binary.LittleEndian.AppendUint32(buf, ^lanIP)
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = append(buf, pass...)
	buf = append(buf, 0)
	return buf, nil
}

// EncodeCreateCharacter encodes a character creation request.
func EncodeCreateCharacter(color byte) []byte {
	return []byte{CmdCreateCharacter, color}
}

// EncodeCharacterID encodes the login/creation success reply.
func EncodeCharacterID(entityID uint64) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, MsgCharacterID)
	buf = binary.LittleEndian.AppendUint64(buf, entityID)
	return buf
}

// EncodeBadPw encodes the authentication failure reply.
func EncodeBadPw() []byte {
	return []byte{MsgBadPw}
}

// EncodeNewAccountCreated encodes the fresh-account reply.
func EncodeNewAccountCreated() []byte {
	return []byte{MsgNewAccountCreated}
}

// AppendEntity appends an entity's snapshot encoding to buf: id, features,
// position, type, and for characters the color and owning account name.
// There is no outbound tag carrying these yet; snapshot assembly uses this
// as its per-entity building block.
func AppendEntity(buf []byte, e Entity, ownerName string) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, e.ID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Features))
	buf = append(buf, e.X, e.Y, byte(e.Type))
	if e.Type == EntityCharacter {
		buf = append(buf, e.Color)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(ownerName)))
		buf = append(buf, ownerName...)
	}
	return buf
}
